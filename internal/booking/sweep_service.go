package booking

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/piotrusio02/reservation-system-api/internal/clock"
	"github.com/piotrusio02/reservation-system-api/internal/domain"
	"github.com/piotrusio02/reservation-system-api/internal/events"
	"github.com/piotrusio02/reservation-system-api/internal/metrics"
)

// SweepStore lists and transitions the reservations the sweep acts on.
type SweepStore interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetReservationForUpdate(ctx context.Context, reservationID string) (domain.Reservation, error)
	UpdateState(ctx context.Context, reservationID string, state domain.ReservationState, at time.Time) error
	ListConfirmedEnded(ctx context.Context, now time.Time, limit int) ([]string, error)
	ListConfirmedPastDeadline(ctx context.Context, now time.Time, limit int) ([]string, error)
}

// SweepLedger is the ledger slice the sweep releases capacity through.
type SweepLedger interface {
	GetSlotForUpdate(ctx context.Context, slotID string) (domain.TimeSlot, error)
	IncrementRemaining(ctx context.Context, slotID string, units int) error
	RetireEnded(ctx context.Context, now time.Time) (int64, error)
}

// SweepService drives the time-based transitions: confirmed reservations
// whose slot has ended become fulfilled, confirmed reservations past their
// confirmation deadline become expired and release capacity, and ended slots
// with no active reservations are retired. Each item runs in its own short
// transaction and every candidate is re-checked under the row lock, so
// running the sweep twice is a no-op.
type SweepService struct {
	reservations SweepStore
	ledger       SweepLedger
	clock        clock.Clock
	events       events.Publisher
	metrics      *metrics.Metrics
	logger       zerolog.Logger
	batchSize    int
}

func NewSweepService(store SweepStore, ledger SweepLedger, clk clock.Clock, pub events.Publisher, m *metrics.Metrics, logger zerolog.Logger, batchSize int) *SweepService {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &SweepService{
		reservations: store,
		ledger:       ledger,
		clock:        clk,
		events:       pub,
		metrics:      m,
		logger:       logger.With().Str("component", "sweep").Logger(),
		batchSize:    batchSize,
	}
}

// SweepReport summarizes one sweep pass.
type SweepReport struct {
	Fulfilled    int
	Expired      int
	SlotsRetired int64
}

// RunOnce executes one sweep pass. Fulfillment runs before expiry so a
// reservation whose slot already ended is fulfilled, not expired.
func (s *SweepService) RunOnce(ctx context.Context) (SweepReport, error) {
	now := s.clock.Now()
	var report SweepReport

	ended, err := s.reservations.ListConfirmedEnded(ctx, now, s.batchSize)
	if err != nil {
		return report, err
	}
	for _, id := range ended {
		ok, err := s.fulfill(ctx, id, now)
		if err != nil {
			return report, err
		}
		if ok {
			report.Fulfilled++
		}
	}

	lapsed, err := s.reservations.ListConfirmedPastDeadline(ctx, now, s.batchSize)
	if err != nil {
		return report, err
	}
	for _, id := range lapsed {
		ok, err := s.expire(ctx, id, now)
		if err != nil {
			return report, err
		}
		if ok {
			report.Expired++
		}
	}

	report.SlotsRetired, err = s.ledger.RetireEnded(ctx, now)
	if err != nil {
		return report, err
	}

	s.metrics.SweepTransitions.WithLabelValues("fulfilled").Add(float64(report.Fulfilled))
	s.metrics.SweepTransitions.WithLabelValues("expired").Add(float64(report.Expired))
	if report.Fulfilled > 0 || report.Expired > 0 || report.SlotsRetired > 0 {
		s.logger.Info().
			Int("fulfilled", report.Fulfilled).
			Int("expired", report.Expired).
			Int64("slots_retired", report.SlotsRetired).
			Msg("sweep pass")
	}
	return report, nil
}

func (s *SweepService) fulfill(ctx context.Context, reservationID string, now time.Time) (bool, error) {
	applied := false
	var event events.Event

	err := s.reservations.WithTx(ctx, func(txCtx context.Context) error {
		res, err := s.reservations.GetReservationForUpdate(txCtx, reservationID)
		if err != nil {
			return err
		}
		slot, err := s.ledger.GetSlotForUpdate(txCtx, res.SlotID)
		if err != nil {
			return err
		}
		// Re-check under the lock: a concurrent cancel may have won.
		if res.State != domain.StateConfirmed || !slot.Ended(now) {
			return nil
		}
		if err := res.Transition(domain.StateFulfilled, now); err != nil {
			return err
		}
		if err := s.reservations.UpdateState(txCtx, res.ID, domain.StateFulfilled, now); err != nil {
			return err
		}
		applied = true
		event = s.lifecycleEvent(events.KindReservationFulfilled, res, now)
		return nil
	})
	if err != nil || !applied {
		return false, err
	}
	_ = s.events.Publish(ctx, event)
	return true, nil
}

func (s *SweepService) expire(ctx context.Context, reservationID string, now time.Time) (bool, error) {
	applied := false
	var event events.Event

	err := s.reservations.WithTx(ctx, func(txCtx context.Context) error {
		res, err := s.reservations.GetReservationForUpdate(txCtx, reservationID)
		if err != nil {
			return err
		}
		slot, err := s.ledger.GetSlotForUpdate(txCtx, res.SlotID)
		if err != nil {
			return err
		}
		if res.State != domain.StateConfirmed || slot.Ended(now) {
			return nil
		}
		if res.ConfirmDeadline == nil || res.ConfirmDeadline.After(now) {
			return nil
		}
		if err := res.Transition(domain.StateExpired, now); err != nil {
			return err
		}
		if err := s.reservations.UpdateState(txCtx, res.ID, domain.StateExpired, now); err != nil {
			return err
		}
		if res.State.ReleasesCapacity() {
			if err := s.ledger.IncrementRemaining(txCtx, slot.ID, res.Units); err != nil {
				s.logger.Error().Err(err).Str("slot_id", slot.ID).Msg("release capacity on expiry")
				return err
			}
		}
		applied = true
		event = s.lifecycleEvent(events.KindReservationExpired, res, now)
		return nil
	})
	if err != nil || !applied {
		return false, err
	}
	_ = s.events.Publish(ctx, event)
	return true, nil
}

func (s *SweepService) lifecycleEvent(kind string, res domain.Reservation, now time.Time) events.Event {
	return events.Event{
		Kind:          kind,
		OccurredAt:    now,
		ServiceID:     res.ServiceID,
		SlotID:        res.SlotID,
		ReservationID: res.ID,
		ClientID:      res.ClientID,
		Units:         res.Units,
	}
}

// Run loops RunOnce on the interval until the context is done.
func (s *SweepService) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				s.logger.Error().Err(err).Msg("sweep pass failed")
			}
		}
	}
}
