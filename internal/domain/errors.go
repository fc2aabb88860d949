package domain

import "errors"

var (
	// Validation failures: the caller built a bad request.
	ErrInvalidInterval  = errors.New("invalid interval")
	ErrInvalidCapacity  = errors.New("invalid capacity")
	ErrInvalidUnits     = errors.New("invalid units")
	ErrInvalidID        = errors.New("invalid id")
	ErrActorRequired    = errors.New("actor required")
	ErrNameRequired     = errors.New("service name required")
	ErrInvalidPageToken = errors.New("invalid page token")
	ErrInvalidDuration  = errors.New("invalid service duration")

	// Business rejections, surfaced to the caller as a typed denial.
	ErrOverlapRejected   = errors.New("slot overlaps existing availability")
	ErrCapacityExhausted = errors.New("capacity exhausted")
	ErrPolicyViolation   = errors.New("booking policy violation")
	ErrLeadTimeViolation = errors.New("slot starts inside minimum lead time")
	ErrHorizonViolation  = errors.New("slot starts beyond booking horizon")

	// Lifecycle rule violations.
	ErrInvalidTransition        = errors.New("invalid reservation transition")
	ErrCancellationWindowClosed = errors.New("cancellation window closed")

	// Lookup failures.
	ErrServiceNotFound     = errors.New("service not found")
	ErrSlotNotFound        = errors.New("slot not found")
	ErrSlotRetired         = errors.New("slot retired")
	ErrReservationNotFound = errors.New("reservation not found")

	// The losing side of a race; callers may safely retry.
	ErrConcurrencyConflict = errors.New("concurrent admission conflict")

	// Internal invariant violations: defects in the caller, never user errors.
	ErrSlotInUse   = errors.New("slot has active reservations")
	ErrOverRelease = errors.New("release would exceed slot capacity")
)
