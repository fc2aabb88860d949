package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/piotrusio02/reservation-system-api/internal/cache"
	"github.com/piotrusio02/reservation-system-api/internal/clock"
	"github.com/piotrusio02/reservation-system-api/internal/domain"
	"github.com/piotrusio02/reservation-system-api/internal/events"
	"github.com/piotrusio02/reservation-system-api/internal/metrics"
)

// ReservationStore is the reservation-side persistence the coordinator needs.
type ReservationStore interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	InsertReservation(ctx context.Context, res domain.Reservation) error
	GetReservation(ctx context.Context, reservationID string) (domain.Reservation, error)
	GetReservationForUpdate(ctx context.Context, reservationID string) (domain.Reservation, error)
	UpdateState(ctx context.Context, reservationID string, state domain.ReservationState, at time.Time) error
	ListClientHeldSlots(ctx context.Context, serviceID, clientID string) ([]domain.TimeSlot, error)
	ListByClient(ctx context.Context, clientID string) ([]domain.Reservation, error)
	ListByService(ctx context.Context, serviceID string) ([]domain.Reservation, error)
}

// SlotLedger is the slice of the ledger the coordinator mutates. Both stores
// must join the same context-carried transaction.
type SlotLedger interface {
	GetService(ctx context.Context, serviceID string) (domain.Service, error)
	GetSlotForUpdate(ctx context.Context, slotID string) (domain.TimeSlot, error)
	DecrementRemaining(ctx context.Context, slotID string, units int) error
	IncrementRemaining(ctx context.Context, slotID string, units int) error
}

// ReservationService is the scheduling coordinator: it serializes admissions
// and cancellations per slot and keeps ledger and reservation records in
// lockstep inside one transaction.
type ReservationService struct {
	reservations ReservationStore
	ledger       SlotLedger
	cache        *cache.Availability
	clock        clock.Clock
	events       events.Publisher
	metrics      *metrics.Metrics
	logger       zerolog.Logger
}

func NewReservationService(store ReservationStore, ledger SlotLedger, c *cache.Availability, clk clock.Clock, pub events.Publisher, m *metrics.Metrics, logger zerolog.Logger) *ReservationService {
	return &ReservationService{
		reservations: store,
		ledger:       ledger,
		cache:        c,
		clock:        clk,
		events:       pub,
		metrics:      m,
		logger:       logger.With().Str("component", "reservations").Logger(),
	}
}

type RequestReservationInput struct {
	ServiceID string
	ClientID  string
	SlotID    string
	// Units defaults to 1 when zero.
	Units int
}

// RequestReservation admits and commits a reservation as one indivisible
// operation: the slot row lock is taken, the conflict detector evaluates the
// current ledger state, capacity is decremented, and the confirmed
// reservation is inserted, or none of it happens.
func (s *ReservationService) RequestReservation(ctx context.Context, in RequestReservationInput) (domain.Reservation, error) {
	if in.ServiceID == "" || in.ClientID == "" || in.SlotID == "" {
		return domain.Reservation{}, domain.ErrInvalidID
	}
	units := in.Units
	if units == 0 {
		units = 1
	}
	if units < 1 {
		return domain.Reservation{}, domain.ErrInvalidUnits
	}

	now := s.clock.Now()
	started := time.Now()
	var result domain.Reservation

	err := s.reservations.WithTx(ctx, func(txCtx context.Context) error {
		svc, err := s.ledger.GetService(txCtx, in.ServiceID)
		if err != nil {
			return err
		}

		slot, err := s.ledger.GetSlotForUpdate(txCtx, in.SlotID)
		if err != nil {
			return err
		}
		if slot.ServiceID != svc.ID {
			return domain.ErrSlotNotFound
		}

		var held []domain.TimeSlot
		if svc.Policy.SingleBookingPerClient {
			held, err = s.reservations.ListClientHeldSlots(txCtx, svc.ID, in.ClientID)
			if err != nil {
				return err
			}
		}

		if err := domain.Admit(domain.AdmissionRequest{
			Slot:       slot,
			Policy:     svc.Policy,
			Units:      units,
			Now:        now,
			ClientHeld: held,
		}); err != nil {
			return err
		}

		if err := s.ledger.DecrementRemaining(txCtx, slot.ID, units); err != nil {
			return err
		}

		res := domain.Reservation{
			ID:        newID(),
			ServiceID: svc.ID,
			ClientID:  in.ClientID,
			SlotID:    slot.ID,
			Units:     units,
			State:     domain.StateConfirmed,
			CreatedAt: now,
			History: []domain.StateChange{
				{State: domain.StatePending, At: now},
				{State: domain.StateConfirmed, At: now},
			},
		}
		if svc.Policy.ConfirmTimeout > 0 {
			deadline := now.Add(svc.Policy.ConfirmTimeout)
			res.ConfirmDeadline = &deadline
		}

		if err := s.reservations.InsertReservation(txCtx, res); err != nil {
			return err
		}
		result = res
		return nil
	})

	s.metrics.TxDuration.Observe(time.Since(started).Seconds())
	s.metrics.Admissions.WithLabelValues(admissionOutcome(err)).Inc()

	if err != nil {
		return domain.Reservation{}, err
	}

	s.cache.Invalidate(in.ServiceID)
	_ = s.events.Publish(ctx, events.Event{
		Kind:          events.KindReservationConfirmed,
		OccurredAt:    now,
		ServiceID:     result.ServiceID,
		SlotID:        result.SlotID,
		ReservationID: result.ID,
		ClientID:      result.ClientID,
		Units:         result.Units,
	})
	s.logger.Info().
		Str("reservation_id", result.ID).
		Str("slot_id", result.SlotID).
		Int("units", result.Units).
		Msg("reservation confirmed")
	return result, nil
}

// CancelReservation releases a confirmed reservation before the cancellation
// window closes. Cancellation and admission on the same slot serialize on the
// slot row lock, so capacity accounting never races.
func (s *ReservationService) CancelReservation(ctx context.Context, reservationID, actor string) (domain.Reservation, error) {
	if reservationID == "" {
		return domain.Reservation{}, domain.ErrInvalidID
	}
	if actor == "" {
		return domain.Reservation{}, domain.ErrActorRequired
	}

	now := s.clock.Now()
	var result domain.Reservation

	err := s.reservations.WithTx(ctx, func(txCtx context.Context) error {
		res, err := s.reservations.GetReservationForUpdate(txCtx, reservationID)
		if err != nil {
			return err
		}

		slot, err := s.ledger.GetSlotForUpdate(txCtx, res.SlotID)
		if err != nil {
			return err
		}
		svc, err := s.ledger.GetService(txCtx, res.ServiceID)
		if err != nil {
			return err
		}

		if err := res.CancellableAt(slot.Start, svc.Policy.CancellationGrace, now); err != nil {
			return err
		}
		if err := res.Transition(domain.StateCancelled, now); err != nil {
			return err
		}
		if err := s.reservations.UpdateState(txCtx, res.ID, domain.StateCancelled, now); err != nil {
			return err
		}
		if res.State.ReleasesCapacity() {
			if err := s.ledger.IncrementRemaining(txCtx, slot.ID, res.Units); err != nil {
				// Losing capacity accounting is a defect, never a user error.
				s.logger.Error().Err(err).Str("slot_id", slot.ID).Msg("release capacity")
				return fmt.Errorf("release capacity for slot %s: %w", slot.ID, err)
			}
		}
		result = res
		return nil
	})
	if err != nil {
		return domain.Reservation{}, err
	}

	s.cache.Invalidate(result.ServiceID)
	_ = s.events.Publish(ctx, events.Event{
		Kind:          events.KindReservationCancelled,
		OccurredAt:    now,
		ServiceID:     result.ServiceID,
		SlotID:        result.SlotID,
		ReservationID: result.ID,
		ClientID:      result.ClientID,
		Actor:         actor,
		Units:         result.Units,
	})
	return result, nil
}

// GetReservation returns a snapshot including the full state history.
func (s *ReservationService) GetReservation(ctx context.Context, reservationID string) (domain.Reservation, error) {
	if reservationID == "" {
		return domain.Reservation{}, domain.ErrInvalidID
	}
	return s.reservations.GetReservation(ctx, reservationID)
}

func (s *ReservationService) ListClientReservations(ctx context.Context, clientID string) ([]domain.Reservation, error) {
	if clientID == "" {
		return nil, domain.ErrInvalidID
	}
	return s.reservations.ListByClient(ctx, clientID)
}

func (s *ReservationService) ListServiceReservations(ctx context.Context, serviceID string) ([]domain.Reservation, error) {
	if serviceID == "" {
		return nil, domain.ErrInvalidID
	}
	return s.reservations.ListByService(ctx, serviceID)
}

func admissionOutcome(err error) string {
	switch {
	case err == nil:
		return "confirmed"
	case errors.Is(err, domain.ErrCapacityExhausted):
		return "capacity_exhausted"
	case errors.Is(err, domain.ErrLeadTimeViolation):
		return "lead_time_violation"
	case errors.Is(err, domain.ErrHorizonViolation):
		return "horizon_violation"
	case errors.Is(err, domain.ErrPolicyViolation):
		return "policy_violation"
	case errors.Is(err, domain.ErrSlotRetired):
		return "slot_retired"
	case errors.Is(err, domain.ErrSlotNotFound), errors.Is(err, domain.ErrServiceNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrConcurrencyConflict):
		return "concurrency_conflict"
	default:
		return "error"
	}
}
