package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/piotrusio02/reservation-system-api/internal/domain"
)

// CatalogRepository persists the service registry with its per-service
// scheduling policies.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

const serviceColumns = `id, company_id, name, duration_minutes,
allow_overlap, single_per_client,
min_lead_time_seconds, max_horizon_seconds, cancellation_grace_seconds, confirm_timeout_seconds,
active, created_at`

type rowQuerier interface {
	queryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getService(ctx context.Context, q rowQuerier, serviceID string, forUpdate bool) (domain.Service, error) {
	query := `SELECT ` + serviceColumns + ` FROM services WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var (
		svc     domain.Service
		lead    int64
		horizon int64
		grace   int64
		confirm int64
	)
	err := q.queryRow(ctx, query, serviceID).Scan(
		&svc.ID, &svc.CompanyID, &svc.Name, &svc.DurationMinutes,
		&svc.Policy.AllowOverlap, &svc.Policy.SingleBookingPerClient,
		&lead, &horizon, &grace, &confirm,
		&svc.Active, &svc.CreatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Service{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Service{}, domain.ErrServiceNotFound
		}
		return domain.Service{}, fmt.Errorf("get service: %w", err)
	}
	svc.Policy.MinLeadTime = time.Duration(lead) * time.Second
	svc.Policy.MaxHorizon = time.Duration(horizon) * time.Second
	svc.Policy.CancellationGrace = time.Duration(grace) * time.Second
	svc.Policy.ConfirmTimeout = time.Duration(confirm) * time.Second
	return svc, nil
}

func (r *CatalogRepository) InsertService(ctx context.Context, svc domain.Service) error {
	const stmt = `
INSERT INTO services (
	id, company_id, name, duration_minutes,
	allow_overlap, single_per_client,
	min_lead_time_seconds, max_horizon_seconds, cancellation_grace_seconds, confirm_timeout_seconds,
	active, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.exec(ctx, stmt,
		svc.ID, svc.CompanyID, svc.Name, svc.DurationMinutes,
		svc.Policy.AllowOverlap, svc.Policy.SingleBookingPerClient,
		int64(svc.Policy.MinLeadTime.Seconds()), int64(svc.Policy.MaxHorizon.Seconds()),
		int64(svc.Policy.CancellationGrace.Seconds()), int64(svc.Policy.ConfirmTimeout.Seconds()),
		svc.Active, svc.CreatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("insert service: %w", err)
	}
	return nil
}

func (r *CatalogRepository) GetService(ctx context.Context, serviceID string) (domain.Service, error) {
	return getService(ctx, r, serviceID, false)
}

func (r *CatalogRepository) ListServices(ctx context.Context, companyID string) ([]domain.Service, error) {
	const query = `
SELECT ` + serviceColumns + `
FROM services
WHERE $1 = '' OR company_id = $1
ORDER BY created_at ASC`

	rows, err := r.query(ctx, query, companyID)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	defer rows.Close()

	var services []domain.Service
	for rows.Next() {
		var (
			svc     domain.Service
			lead    int64
			horizon int64
			grace   int64
			confirm int64
		)
		if err := rows.Scan(
			&svc.ID, &svc.CompanyID, &svc.Name, &svc.DurationMinutes,
			&svc.Policy.AllowOverlap, &svc.Policy.SingleBookingPerClient,
			&lead, &horizon, &grace, &confirm,
			&svc.Active, &svc.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan service: %w", err)
		}
		svc.Policy.MinLeadTime = time.Duration(lead) * time.Second
		svc.Policy.MaxHorizon = time.Duration(horizon) * time.Second
		svc.Policy.CancellationGrace = time.Duration(grace) * time.Second
		svc.Policy.ConfirmTimeout = time.Duration(confirm) * time.Second
		services = append(services, svc)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate services: %w", rows.Err())
	}
	return services, nil
}

func (r *CatalogRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *CatalogRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}

func (r *CatalogRepository) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Query(ctx, sql, args...)
	}
	return r.pool.Query(ctx, sql, args...)
}
