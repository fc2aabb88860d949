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

// SlotRepository is the persistence side of the availability ledger. The
// per-slot mutual exclusion required for capacity accounting is implemented
// here with row-level locks: every mutation of remaining runs under
// SELECT ... FOR UPDATE on the slot row.
type SlotRepository struct {
	pool *pgxpool.Pool
}

func NewSlotRepository(pool *pgxpool.Pool) *SlotRepository {
	return &SlotRepository{pool: pool}
}

func (r *SlotRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := withTx(ctx, r.pool, fn); err != nil {
		if isSerializationFailure(err) {
			return domain.ErrConcurrencyConflict
		}
		return err
	}
	return nil
}

const slotColumns = `id, service_id, start_at, end_at, capacity, remaining, retired, created_at`

func scanSlot(row pgx.Row) (domain.TimeSlot, error) {
	var s domain.TimeSlot
	err := row.Scan(&s.ID, &s.ServiceID, &s.Start, &s.End, &s.Capacity, &s.Remaining, &s.Retired, &s.CreatedAt)
	return s, err
}

// GetServiceForUpdate locks the service row; publications serialize on it so
// the overlap check and the insert act as one atomic step.
func (r *SlotRepository) GetServiceForUpdate(ctx context.Context, serviceID string) (domain.Service, error) {
	return getService(ctx, r, serviceID, true)
}

func (r *SlotRepository) GetService(ctx context.Context, serviceID string) (domain.Service, error) {
	return getService(ctx, r, serviceID, false)
}

func (r *SlotRepository) GetSlot(ctx context.Context, slotID string) (domain.TimeSlot, error) {
	const query = `SELECT ` + slotColumns + ` FROM slots WHERE id = $1`
	s, err := scanSlot(r.queryRow(ctx, query, slotID))
	if err != nil {
		return domain.TimeSlot{}, mapSlotErr(err)
	}
	return s, nil
}

// GetSlotForUpdate locks the slot row for the duration of the enclosing
// transaction. Reserve and release on the same slot serialize here.
func (r *SlotRepository) GetSlotForUpdate(ctx context.Context, slotID string) (domain.TimeSlot, error) {
	const query = `SELECT ` + slotColumns + ` FROM slots WHERE id = $1 FOR UPDATE`
	s, err := scanSlot(r.queryRow(ctx, query, slotID))
	if err != nil {
		return domain.TimeSlot{}, mapSlotErr(err)
	}
	return s, nil
}

// ListActiveOverlapping returns active slots of the service intersecting
// [start, end) under half-open semantics.
func (r *SlotRepository) ListActiveOverlapping(ctx context.Context, serviceID string, start, end time.Time) ([]domain.TimeSlot, error) {
	const query = `
SELECT ` + slotColumns + `
FROM slots
WHERE service_id = $1 AND NOT retired AND start_at < $3 AND end_at > $2
ORDER BY start_at ASC`

	rows, err := r.query(ctx, query, serviceID, start, end)
	if err != nil {
		return nil, fmt.Errorf("list overlapping slots: %w", err)
	}
	defer rows.Close()
	return collectSlots(rows)
}

func (r *SlotRepository) InsertSlot(ctx context.Context, slot domain.TimeSlot) error {
	const stmt = `
INSERT INTO slots (id, service_id, start_at, end_at, capacity, remaining, retired, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.exec(ctx, stmt,
		slot.ID, slot.ServiceID, slot.Start, slot.End,
		slot.Capacity, slot.Remaining, slot.Retired, slot.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			// Only the id can collide; starts may repeat when the policy
			// allows overlapping slots.
			return domain.ErrConcurrencyConflict
		}
		if isForeignKeyViolation(err) {
			return domain.ErrServiceNotFound
		}
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("insert slot: %w", err)
	}
	return nil
}

// DecrementRemaining commits units of capacity. The guard in the statement is
// the final word on the no-double-booking invariant even if a caller skipped
// the row lock.
func (r *SlotRepository) DecrementRemaining(ctx context.Context, slotID string, units int) error {
	const stmt = `
UPDATE slots SET remaining = remaining - $2
WHERE id = $1 AND NOT retired AND remaining >= $2`

	tag, err := r.exec(ctx, stmt, slotID, units)
	if err != nil {
		if isCheckViolation(err) {
			return domain.ErrCapacityExhausted
		}
		return fmt.Errorf("decrement remaining: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCapacityExhausted
	}
	return nil
}

// IncrementRemaining hands units back, never past total capacity.
func (r *SlotRepository) IncrementRemaining(ctx context.Context, slotID string, units int) error {
	const stmt = `
UPDATE slots SET remaining = remaining + $2
WHERE id = $1 AND remaining + $2 <= capacity`

	tag, err := r.exec(ctx, stmt, slotID, units)
	if err != nil {
		if isCheckViolation(err) {
			return domain.ErrOverRelease
		}
		return fmt.Errorf("increment remaining: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOverRelease
	}
	return nil
}

func (r *SlotRepository) RetireSlot(ctx context.Context, slotID string) error {
	const stmt = `UPDATE slots SET retired = TRUE WHERE id = $1`
	tag, err := r.exec(ctx, stmt, slotID)
	if err != nil {
		return fmt.Errorf("retire slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSlotNotFound
	}
	return nil
}

// ListAvailable is one page of the restartable availability listing: active
// slots with remaining capacity intersecting [from, to), ordered by
// (start, id). The cursor restarts the sequence strictly past a previously
// seen slot; the id tiebreak keeps slots sharing a start from repeating or
// dropping out between pages.
func (r *SlotRepository) ListAvailable(ctx context.Context, serviceID string, from, to time.Time, after *domain.SlotCursor, limit int) ([]domain.TimeSlot, error) {
	const query = `
SELECT ` + slotColumns + `
FROM slots
WHERE service_id = $1 AND NOT retired AND remaining > 0
  AND start_at < $3 AND end_at > $2
  AND ($4::timestamptz IS NULL OR start_at > $4 OR (start_at = $4 AND id > $5::uuid))
ORDER BY start_at ASC, id ASC
LIMIT $6`

	var afterStart *time.Time
	var afterID *string
	if after != nil {
		afterStart = &after.Start
		afterID = &after.ID
	}

	rows, err := r.query(ctx, query, serviceID, from, to, afterStart, afterID, limit)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("list available slots: %w", err)
	}
	defer rows.Close()
	return collectSlots(rows)
}

// RetireEnded soft-deletes slots whose interval has passed and which no
// confirmed reservation still references. Used by the sweep.
func (r *SlotRepository) RetireEnded(ctx context.Context, now time.Time) (int64, error) {
	const stmt = `
UPDATE slots SET retired = TRUE
WHERE NOT retired AND end_at <= $1
  AND NOT EXISTS (
	SELECT 1 FROM reservations res
	WHERE res.slot_id = slots.id AND res.state = 'confirmed'
  )`

	tag, err := r.exec(ctx, stmt, now)
	if err != nil {
		return 0, fmt.Errorf("retire ended slots: %w", err)
	}
	return tag.RowsAffected(), nil
}

func collectSlots(rows pgx.Rows) ([]domain.TimeSlot, error) {
	var slots []domain.TimeSlot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		slots = append(slots, s)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate slots: %w", rows.Err())
	}
	return slots, nil
}

func mapSlotErr(err error) error {
	if isInvalidUUID(err) {
		return domain.ErrInvalidID
	}
	if err == pgx.ErrNoRows {
		return domain.ErrSlotNotFound
	}
	return fmt.Errorf("get slot: %w", err)
}

func (r *SlotRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *SlotRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}

func (r *SlotRepository) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Query(ctx, sql, args...)
	}
	return r.pool.Query(ctx, sql, args...)
}
