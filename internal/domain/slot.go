package domain

import "time"

// TimeSlot is a published, capacity-bounded half-open interval [Start, End)
// during which a service may be booked. The interval and total capacity are
// immutable once published; only Remaining and Retired change over the slot's
// life, and only through the ledger.
type TimeSlot struct {
	ID        string
	ServiceID string
	Start     time.Time
	End       time.Time
	Capacity  int
	Remaining int
	Retired   bool
	CreatedAt time.Time
}

// NewTimeSlot validates and builds an unpublished slot with full remaining
// capacity. The ID is assigned by the caller at publication time.
func NewTimeSlot(serviceID string, start, end time.Time, capacity int) (TimeSlot, error) {
	if serviceID == "" {
		return TimeSlot{}, ErrInvalidID
	}
	if !start.Before(end) {
		return TimeSlot{}, ErrInvalidInterval
	}
	if capacity < 1 {
		return TimeSlot{}, ErrInvalidCapacity
	}
	return TimeSlot{
		ServiceID: serviceID,
		Start:     start.UTC(),
		End:       end.UTC(),
		Capacity:  capacity,
		Remaining: capacity,
	}, nil
}

// Overlaps reports whether two slots intersect under half-open semantics:
// max(a.Start, b.Start) < min(a.End, b.End).
func (s TimeSlot) Overlaps(other TimeSlot) bool {
	return s.OverlapsInterval(other.Start, other.End)
}

// OverlapsInterval reports whether the slot intersects [start, end).
func (s TimeSlot) OverlapsInterval(start, end time.Time) bool {
	return s.Start.Before(end) && start.Before(s.End)
}

// Active reports whether the slot still accepts ledger operations.
func (s TimeSlot) Active() bool {
	return !s.Retired
}

// Ended reports whether the slot's interval lies entirely in the past.
func (s TimeSlot) Ended(now time.Time) bool {
	return !s.End.After(now)
}

// SlotCursor restarts a paged availability listing past one slot. Pages are
// ordered by (Start, ID) so slots sharing a start, which overlap-allowing
// services may publish, neither repeat nor vanish across pages.
type SlotCursor struct {
	Start time.Time
	ID    string
}

// Before reports whether the cursor sorts strictly ahead of the slot.
func (c SlotCursor) Before(s TimeSlot) bool {
	if !c.Start.Equal(s.Start) {
		return c.Start.Before(s.Start)
	}
	return c.ID < s.ID
}
