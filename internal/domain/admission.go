package domain

import "time"

// AdmissionRequest carries everything the conflict detector needs to decide.
// All inputs are values; the decision is a pure function of them.
type AdmissionRequest struct {
	Slot   TimeSlot
	Policy Policy
	Units  int
	Now    time.Time
	// ClientHeld are the slots backing the client's confirmed reservations on
	// the same service; consulted only under SingleBookingPerClient.
	ClientHeld []TimeSlot
}

// Admit decides whether a reservation can be committed against the slot.
// nil means admit; any other return is the typed rejection reason. Checks are
// ordered so the most specific reason wins: liveness, units, time rules,
// client policy, then capacity.
func Admit(req AdmissionRequest) error {
	if req.Slot.ID == "" {
		return ErrSlotNotFound
	}
	if req.Slot.Retired {
		return ErrSlotRetired
	}
	if req.Units < 1 {
		return ErrInvalidUnits
	}
	if req.Policy.MinLeadTime > 0 && req.Slot.Start.Sub(req.Now) < req.Policy.MinLeadTime {
		return ErrLeadTimeViolation
	}
	if req.Policy.MaxHorizon > 0 && req.Slot.Start.Sub(req.Now) > req.Policy.MaxHorizon {
		return ErrHorizonViolation
	}
	if req.Policy.SingleBookingPerClient {
		for _, held := range req.ClientHeld {
			if held.Overlaps(req.Slot) {
				return ErrPolicyViolation
			}
		}
	}
	if req.Slot.Remaining < req.Units {
		return ErrCapacityExhausted
	}
	return nil
}
