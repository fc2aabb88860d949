package booking

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/piotrusio02/reservation-system-api/internal/clock"
	"github.com/piotrusio02/reservation-system-api/internal/domain"
	"github.com/piotrusio02/reservation-system-api/internal/events"
	"github.com/piotrusio02/reservation-system-api/internal/metrics"
)

func newSweepService(store *fakeStore, clk clock.Clock) *SweepService {
	return NewSweepService(store, store, clk, events.Nop{}, metrics.New(), zerolog.Nop(), 0)
}

func confirmedReservation(id, slotID string, units int, createdAt time.Time) domain.Reservation {
	return domain.Reservation{
		ID:        id,
		ServiceID: "svc-1",
		ClientID:  "client-1",
		SlotID:    slotID,
		Units:     units,
		State:     domain.StateConfirmed,
		CreatedAt: createdAt,
		History: []domain.StateChange{
			{State: domain.StatePending, At: createdAt},
			{State: domain.StateConfirmed, At: createdAt},
		},
	}
}

func TestSweepService_RunOnce(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	t.Run("fulfills confirmed reservations on ended slots", func(t *testing.T) {
		store := newFakeStore()
		store.addService(domain.Service{ID: "svc-1", Name: "Haircut", DurationMinutes: 60, Active: true})
		store.addSlot(domain.TimeSlot{ID: "slot-1", ServiceID: "svc-1", Start: start, End: start.Add(time.Hour), Capacity: 1, Remaining: 0})
		store.addReservation(confirmedReservation("res-1", "slot-1", 1, start.Add(-time.Hour)))

		clk := clock.NewFake(start.Add(2 * time.Hour))
		sweep := newSweepService(store, clk)

		report, err := sweep.RunOnce(context.Background())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if report.Fulfilled != 1 || report.Expired != 0 {
			t.Fatalf("expected 1 fulfilled, got %+v", report)
		}
		res := store.reservations["res-1"]
		if res.State != domain.StateFulfilled {
			t.Fatalf("expected fulfilled, got %s", res.State)
		}
		// Fulfillment keeps the capacity committed.
		if store.slots["slot-1"].Remaining != 0 {
			t.Fatalf("fulfilled reservation must not release capacity")
		}
		// The emptied slot is retired in the same pass.
		if report.SlotsRetired != 1 || !store.slots["slot-1"].Retired {
			t.Fatalf("expected the ended slot retired, got %+v", report)
		}
	})

	t.Run("expires reservations past their confirm deadline", func(t *testing.T) {
		store := newFakeStore()
		store.addService(domain.Service{ID: "svc-1", Name: "Haircut", DurationMinutes: 60, Active: true})
		store.addSlot(domain.TimeSlot{ID: "slot-1", ServiceID: "svc-1", Start: start.Add(24 * time.Hour), End: start.Add(25 * time.Hour), Capacity: 2, Remaining: 1})
		res := confirmedReservation("res-1", "slot-1", 1, start)
		deadline := start.Add(30 * time.Minute)
		res.ConfirmDeadline = &deadline
		store.addReservation(res)

		clk := clock.NewFake(start.Add(time.Hour))
		sweep := newSweepService(store, clk)

		report, err := sweep.RunOnce(context.Background())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if report.Expired != 1 || report.Fulfilled != 0 {
			t.Fatalf("expected 1 expired, got %+v", report)
		}
		if store.reservations["res-1"].State != domain.StateExpired {
			t.Fatalf("expected expired, got %s", store.reservations["res-1"].State)
		}
		if store.slots["slot-1"].Remaining != 2 {
			t.Fatalf("expiry must release capacity, remaining %d", store.slots["slot-1"].Remaining)
		}
	})

	t.Run("future deadline leaves the reservation alone", func(t *testing.T) {
		store := newFakeStore()
		store.addService(domain.Service{ID: "svc-1", Name: "Haircut", DurationMinutes: 60, Active: true})
		store.addSlot(domain.TimeSlot{ID: "slot-1", ServiceID: "svc-1", Start: start.Add(24 * time.Hour), End: start.Add(25 * time.Hour), Capacity: 1, Remaining: 0})
		res := confirmedReservation("res-1", "slot-1", 1, start)
		deadline := start.Add(2 * time.Hour)
		res.ConfirmDeadline = &deadline
		store.addReservation(res)

		sweep := newSweepService(store, clock.NewFake(start.Add(time.Hour)))

		report, err := sweep.RunOnce(context.Background())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if report.Expired != 0 {
			t.Fatalf("expected no expiry, got %+v", report)
		}
		if store.reservations["res-1"].State != domain.StateConfirmed {
			t.Fatalf("reservation must stay confirmed")
		}
	})

	t.Run("ended slot beats the confirm deadline", func(t *testing.T) {
		store := newFakeStore()
		store.addService(domain.Service{ID: "svc-1", Name: "Haircut", DurationMinutes: 60, Active: true})
		store.addSlot(domain.TimeSlot{ID: "slot-1", ServiceID: "svc-1", Start: start, End: start.Add(time.Hour), Capacity: 1, Remaining: 0})
		res := confirmedReservation("res-1", "slot-1", 1, start.Add(-time.Hour))
		deadline := start.Add(-30 * time.Minute)
		res.ConfirmDeadline = &deadline
		store.addReservation(res)

		sweep := newSweepService(store, clock.NewFake(start.Add(2*time.Hour)))

		report, err := sweep.RunOnce(context.Background())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if report.Fulfilled != 1 || report.Expired != 0 {
			t.Fatalf("expected fulfillment to win, got %+v", report)
		}
	})

	t.Run("running twice is a no-op", func(t *testing.T) {
		store := newFakeStore()
		store.addService(domain.Service{ID: "svc-1", Name: "Haircut", DurationMinutes: 60, Active: true})
		store.addSlot(domain.TimeSlot{ID: "slot-1", ServiceID: "svc-1", Start: start, End: start.Add(time.Hour), Capacity: 1, Remaining: 0})
		store.addReservation(confirmedReservation("res-1", "slot-1", 1, start.Add(-time.Hour)))

		clk := clock.NewFake(start.Add(2 * time.Hour))
		sweep := newSweepService(store, clk)

		if _, err := sweep.RunOnce(context.Background()); err != nil {
			t.Fatalf("first pass failed: %v", err)
		}
		clk.Advance(time.Minute)
		report, err := sweep.RunOnce(context.Background())
		if err != nil {
			t.Fatalf("second pass failed: %v", err)
		}
		if report.Fulfilled != 0 || report.Expired != 0 || report.SlotsRetired != 0 {
			t.Fatalf("expected an empty second pass, got %+v", report)
		}
	})

	t.Run("retires ended slots with no reservations", func(t *testing.T) {
		store := newFakeStore()
		store.addService(domain.Service{ID: "svc-1", Name: "Haircut", DurationMinutes: 60, Active: true})
		store.addSlot(domain.TimeSlot{ID: "slot-1", ServiceID: "svc-1", Start: start, End: start.Add(time.Hour), Capacity: 1, Remaining: 1})

		sweep := newSweepService(store, clock.NewFake(start.Add(2*time.Hour)))

		report, err := sweep.RunOnce(context.Background())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if report.SlotsRetired != 1 {
			t.Fatalf("expected the empty ended slot retired, got %+v", report)
		}
	})
}
