package domain

import "time"

// Policy holds the per-service scheduling rules consulted at publication and
// admission time. Zero durations disable the corresponding rule.
type Policy struct {
	// AllowOverlap permits two active slots of the service to intersect in
	// time (e.g., multiple staff acting as independent resources).
	AllowOverlap bool
	// SingleBookingPerClient rejects an admission when the client already
	// holds a confirmed reservation on an overlapping slot of the service.
	SingleBookingPerClient bool
	// MinLeadTime is the minimum gap between "now" and a bookable slot start.
	MinLeadTime time.Duration
	// MaxHorizon is the maximum distance into the future for bookable slots.
	MaxHorizon time.Duration
	// CancellationGrace closes cancellations this long before slot start.
	CancellationGrace time.Duration
	// ConfirmTimeout expires a confirmed reservation whose external
	// confirmation has not completed within this window. Zero means the
	// service requires no external confirmation.
	ConfirmTimeout time.Duration
}

// Service is a bookable offering published by a company. Company and client
// identities are opaque keys owned by the profile layer.
type Service struct {
	ID              string
	CompanyID       string
	Name            string
	DurationMinutes int
	Policy          Policy
	Active          bool
	CreatedAt       time.Time
}

// NewService validates and builds a service record. The ID is assigned by the
// catalog at registration time.
func NewService(companyID, name string, durationMinutes int, policy Policy) (Service, error) {
	if companyID == "" {
		return Service{}, ErrInvalidID
	}
	if name == "" {
		return Service{}, ErrNameRequired
	}
	if durationMinutes < 1 {
		return Service{}, ErrInvalidDuration
	}
	return Service{
		CompanyID:       companyID,
		Name:            name,
		DurationMinutes: durationMinutes,
		Policy:          policy,
		Active:          true,
	}, nil
}

// Duration returns the service duration as a time.Duration.
func (s Service) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}
