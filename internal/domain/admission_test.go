package domain

import (
	"testing"
	"time"
)

func TestAdmit(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	slot := TimeSlot{
		ID:        "slot-1",
		ServiceID: "svc-1",
		Start:     now.Add(2 * time.Hour),
		End:       now.Add(3 * time.Hour),
		Capacity:  2,
		Remaining: 2,
	}
	policy := Policy{MinLeadTime: time.Hour, MaxHorizon: 30 * 24 * time.Hour}

	req := func(mutate func(*AdmissionRequest)) AdmissionRequest {
		r := AdmissionRequest{Slot: slot, Policy: policy, Units: 1, Now: now}
		if mutate != nil {
			mutate(&r)
		}
		return r
	}

	t.Run("admits within all rules", func(t *testing.T) {
		if err := Admit(req(nil)); err != nil {
			t.Fatalf("expected admit, got %v", err)
		}
	})

	t.Run("unknown slot", func(t *testing.T) {
		if err := Admit(req(func(r *AdmissionRequest) { r.Slot = TimeSlot{} })); err != ErrSlotNotFound {
			t.Fatalf("expected ErrSlotNotFound, got %v", err)
		}
	})

	t.Run("retired slot", func(t *testing.T) {
		if err := Admit(req(func(r *AdmissionRequest) { r.Slot.Retired = true })); err != ErrSlotRetired {
			t.Fatalf("expected ErrSlotRetired, got %v", err)
		}
	})

	t.Run("zero units", func(t *testing.T) {
		if err := Admit(req(func(r *AdmissionRequest) { r.Units = 0 })); err != ErrInvalidUnits {
			t.Fatalf("expected ErrInvalidUnits, got %v", err)
		}
	})

	t.Run("lead time violation two minutes out", func(t *testing.T) {
		err := Admit(req(func(r *AdmissionRequest) {
			r.Slot.Start = now.Add(2 * time.Minute)
			r.Slot.End = now.Add(62 * time.Minute)
		}))
		if err != ErrLeadTimeViolation {
			t.Fatalf("expected ErrLeadTimeViolation, got %v", err)
		}
	})

	t.Run("two hours out clears a one hour lead", func(t *testing.T) {
		if err := Admit(req(nil)); err != nil {
			t.Fatalf("expected admit, got %v", err)
		}
	})

	t.Run("horizon violation", func(t *testing.T) {
		err := Admit(req(func(r *AdmissionRequest) {
			r.Slot.Start = now.Add(31 * 24 * time.Hour)
			r.Slot.End = r.Slot.Start.Add(time.Hour)
		}))
		if err != ErrHorizonViolation {
			t.Fatalf("expected ErrHorizonViolation, got %v", err)
		}
	})

	t.Run("zero lead and horizon disable the rules", func(t *testing.T) {
		err := Admit(req(func(r *AdmissionRequest) {
			r.Policy = Policy{}
			r.Slot.Start = now.Add(time.Minute)
			r.Slot.End = now.Add(2 * time.Minute)
		}))
		if err != nil {
			t.Fatalf("expected admit, got %v", err)
		}
	})

	t.Run("single booking policy rejects overlapping hold", func(t *testing.T) {
		err := Admit(req(func(r *AdmissionRequest) {
			r.Policy.SingleBookingPerClient = true
			r.ClientHeld = []TimeSlot{{Start: slot.Start.Add(-30 * time.Minute), End: slot.Start.Add(30 * time.Minute)}}
		}))
		if err != ErrPolicyViolation {
			t.Fatalf("expected ErrPolicyViolation, got %v", err)
		}
	})

	t.Run("single booking policy allows disjoint hold", func(t *testing.T) {
		err := Admit(req(func(r *AdmissionRequest) {
			r.Policy.SingleBookingPerClient = true
			r.ClientHeld = []TimeSlot{{Start: slot.End, End: slot.End.Add(time.Hour)}}
		}))
		if err != nil {
			t.Fatalf("expected admit, got %v", err)
		}
	})

	t.Run("capacity exhausted", func(t *testing.T) {
		err := Admit(req(func(r *AdmissionRequest) { r.Slot.Remaining = 0 }))
		if err != ErrCapacityExhausted {
			t.Fatalf("expected ErrCapacityExhausted, got %v", err)
		}
	})

	t.Run("requesting more units than remaining", func(t *testing.T) {
		err := Admit(req(func(r *AdmissionRequest) { r.Units = 3 }))
		if err != ErrCapacityExhausted {
			t.Fatalf("expected ErrCapacityExhausted, got %v", err)
		}
	})
}
