package domain

import "time"

type ReservationState string

const (
	// StatePending is the transient state held during admission. It is never
	// persisted on its own; a request either commits as confirmed or is
	// rejected without any ledger mutation.
	StatePending   ReservationState = "pending"
	StateConfirmed ReservationState = "confirmed"
	StateCancelled ReservationState = "cancelled"
	StateFulfilled ReservationState = "fulfilled"
	StateExpired   ReservationState = "expired"
)

// StateChange is one entry of a reservation's append-only history.
type StateChange struct {
	State ReservationState
	At    time.Time
}

// Reservation occupies Units of capacity on exactly one slot for its entire
// lifetime, except during the transient pending window.
type Reservation struct {
	ID        string
	ServiceID string
	ClientID  string
	SlotID    string
	Units     int
	State     ReservationState
	// ConfirmDeadline is set when the service requires external confirmation;
	// the sweep expires the reservation once the deadline passes.
	ConfirmDeadline *time.Time
	CreatedAt       time.Time
	History         []StateChange
}

// legalTransitions enumerates every permitted edge of the lifecycle.
var legalTransitions = map[ReservationState][]ReservationState{
	StatePending:   {StateConfirmed},
	StateConfirmed: {StateCancelled, StateFulfilled, StateExpired},
}

func transitionAllowed(from, to ReservationState) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition moves the reservation to the target state and appends to the
// history. Illegal transitions fail with ErrInvalidTransition and leave the
// reservation untouched.
func (r *Reservation) Transition(to ReservationState, at time.Time) error {
	if !transitionAllowed(r.State, to) {
		return ErrInvalidTransition
	}
	r.State = to
	r.History = append(r.History, StateChange{State: to, At: at.UTC()})
	return nil
}

// CancellableAt checks the cancellation window against the slot start: a
// confirmed reservation may be cancelled only before start minus grace.
func (r *Reservation) CancellableAt(slotStart time.Time, grace time.Duration, now time.Time) error {
	if r.State != StateConfirmed {
		return ErrInvalidTransition
	}
	if !now.Before(slotStart.Add(-grace)) {
		return ErrCancellationWindowClosed
	}
	return nil
}

// ReleasesCapacity reports whether entering the state hands the reservation's
// units back to the ledger.
func (s ReservationState) ReleasesCapacity() bool {
	return s == StateCancelled || s == StateExpired
}
