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

// ReservationRepository persists reservations and their append-only state
// history. Ledger mutations stay in SlotRepository; the booking service joins
// both inside one transaction via the shared context-carried tx.
type ReservationRepository struct {
	pool *pgxpool.Pool
}

func NewReservationRepository(pool *pgxpool.Pool) *ReservationRepository {
	return &ReservationRepository{pool: pool}
}

func (r *ReservationRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := withTx(ctx, r.pool, fn); err != nil {
		if isSerializationFailure(err) {
			return domain.ErrConcurrencyConflict
		}
		return err
	}
	return nil
}

const reservationColumns = `id, service_id, client_id, slot_id, units, state, confirm_deadline, created_at`

// InsertReservation writes the reservation together with its initial history.
func (r *ReservationRepository) InsertReservation(ctx context.Context, res domain.Reservation) error {
	const stmt = `
INSERT INTO reservations (id, service_id, client_id, slot_id, units, state, confirm_deadline, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.exec(ctx, stmt,
		res.ID, res.ServiceID, res.ClientID, res.SlotID,
		res.Units, res.State, res.ConfirmDeadline, res.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConcurrencyConflict
		}
		if isForeignKeyViolation(err) {
			return domain.ErrSlotNotFound
		}
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("insert reservation: %w", err)
	}
	for _, change := range res.History {
		if err := r.appendHistory(ctx, res.ID, change); err != nil {
			return err
		}
	}
	return nil
}

// UpdateState persists a transition already validated by the state machine
// and appends the history entry.
func (r *ReservationRepository) UpdateState(ctx context.Context, reservationID string, state domain.ReservationState, at time.Time) error {
	const stmt = `UPDATE reservations SET state = $2 WHERE id = $1`

	tag, err := r.exec(ctx, stmt, reservationID, state)
	if err != nil {
		return fmt.Errorf("update reservation state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrReservationNotFound
	}
	return r.appendHistory(ctx, reservationID, domain.StateChange{State: state, At: at})
}

func (r *ReservationRepository) appendHistory(ctx context.Context, reservationID string, change domain.StateChange) error {
	const stmt = `
INSERT INTO reservation_history (reservation_id, state, occurred_at)
VALUES ($1, $2, $3)`

	if _, err := r.exec(ctx, stmt, reservationID, change.State, change.At); err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

func (r *ReservationRepository) GetReservation(ctx context.Context, reservationID string) (domain.Reservation, error) {
	res, err := r.getReservation(ctx, reservationID, false)
	if err != nil {
		return domain.Reservation{}, err
	}
	history, err := r.loadHistory(ctx, reservationID)
	if err != nil {
		return domain.Reservation{}, err
	}
	res.History = history
	return res, nil
}

// GetReservationForUpdate locks the reservation row; history is not loaded
// since transitions only need the current state.
func (r *ReservationRepository) GetReservationForUpdate(ctx context.Context, reservationID string) (domain.Reservation, error) {
	return r.getReservation(ctx, reservationID, true)
}

func (r *ReservationRepository) getReservation(ctx context.Context, reservationID string, forUpdate bool) (domain.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var res domain.Reservation
	err := r.queryRow(ctx, query, reservationID).Scan(
		&res.ID, &res.ServiceID, &res.ClientID, &res.SlotID,
		&res.Units, &res.State, &res.ConfirmDeadline, &res.CreatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Reservation{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Reservation{}, domain.ErrReservationNotFound
		}
		return domain.Reservation{}, fmt.Errorf("get reservation: %w", err)
	}
	return res, nil
}

func (r *ReservationRepository) loadHistory(ctx context.Context, reservationID string) ([]domain.StateChange, error) {
	const query = `
SELECT state, occurred_at
FROM reservation_history
WHERE reservation_id = $1
ORDER BY id ASC`

	rows, err := r.query(ctx, query, reservationID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	defer rows.Close()

	var history []domain.StateChange
	for rows.Next() {
		var change domain.StateChange
		if err := rows.Scan(&change.State, &change.At); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		history = append(history, change)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate history: %w", rows.Err())
	}
	return history, nil
}

// ListClientHeldSlots returns the slots backing the client's confirmed
// reservations on the service; input to the single-booking policy check.
func (r *ReservationRepository) ListClientHeldSlots(ctx context.Context, serviceID, clientID string) ([]domain.TimeSlot, error) {
	const query = `
SELECT s.id, s.service_id, s.start_at, s.end_at, s.capacity, s.remaining, s.retired, s.created_at
FROM reservations res
JOIN slots s ON s.id = res.slot_id
WHERE res.service_id = $1 AND res.client_id = $2 AND res.state = 'confirmed'`

	rows, err := r.query(ctx, query, serviceID, clientID)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("list client held slots: %w", err)
	}
	defer rows.Close()
	return collectSlots(rows)
}

func (r *ReservationRepository) ListByClient(ctx context.Context, clientID string) ([]domain.Reservation, error) {
	const query = `
SELECT ` + reservationColumns + `
FROM reservations
WHERE client_id = $1
ORDER BY created_at DESC`
	return r.listReservations(ctx, query, clientID)
}

func (r *ReservationRepository) ListByService(ctx context.Context, serviceID string) ([]domain.Reservation, error) {
	const query = `
SELECT ` + reservationColumns + `
FROM reservations
WHERE service_id = $1
ORDER BY created_at DESC`
	return r.listReservations(ctx, query, serviceID)
}

// ListConfirmedEnded returns ids of confirmed reservations whose slot has
// ended; candidates for the fulfilled transition.
func (r *ReservationRepository) ListConfirmedEnded(ctx context.Context, now time.Time, limit int) ([]string, error) {
	const query = `
SELECT res.id
FROM reservations res
JOIN slots s ON s.id = res.slot_id
WHERE res.state = 'confirmed' AND s.end_at <= $1
ORDER BY s.end_at ASC
LIMIT $2`
	return r.listIDs(ctx, query, now, limit)
}

// ListConfirmedPastDeadline returns ids of confirmed reservations whose
// confirmation deadline lapsed before their slot ended; candidates for the
// expired transition.
func (r *ReservationRepository) ListConfirmedPastDeadline(ctx context.Context, now time.Time, limit int) ([]string, error) {
	const query = `
SELECT res.id
FROM reservations res
JOIN slots s ON s.id = res.slot_id
WHERE res.state = 'confirmed'
  AND res.confirm_deadline IS NOT NULL AND res.confirm_deadline <= $1
  AND s.end_at > $1
ORDER BY res.confirm_deadline ASC
LIMIT $2`
	return r.listIDs(ctx, query, now, limit)
}

func (r *ReservationRepository) listIDs(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reservation ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan reservation id: %w", err)
		}
		ids = append(ids, id)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate reservation ids: %w", rows.Err())
	}
	return ids, nil
}

func (r *ReservationRepository) listReservations(ctx context.Context, query string, args ...any) ([]domain.Reservation, error) {
	rows, err := r.query(ctx, query, args...)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	defer rows.Close()

	var reservations []domain.Reservation
	for rows.Next() {
		var res domain.Reservation
		if err := rows.Scan(
			&res.ID, &res.ServiceID, &res.ClientID, &res.SlotID,
			&res.Units, &res.State, &res.ConfirmDeadline, &res.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		reservations = append(reservations, res)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate reservations: %w", rows.Err())
	}
	return reservations, nil
}

func (r *ReservationRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *ReservationRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}

func (r *ReservationRepository) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Query(ctx, sql, args...)
	}
	return r.pool.Query(ctx, sql, args...)
}
