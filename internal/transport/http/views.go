package http

import (
	"time"

	"github.com/piotrusio02/reservation-system-api/internal/domain"
)

type slotView struct {
	ID        string    `json:"slot_id"`
	ServiceID string    `json:"service_id"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Capacity  int       `json:"capacity"`
	Remaining int       `json:"remaining_capacity"`
}

func toSlotView(s domain.TimeSlot) slotView {
	return slotView{
		ID:        s.ID,
		ServiceID: s.ServiceID,
		Start:     s.Start,
		End:       s.End,
		Capacity:  s.Capacity,
		Remaining: s.Remaining,
	}
}

func toSlotViews(slots []domain.TimeSlot) []slotView {
	out := make([]slotView, 0, len(slots))
	for _, s := range slots {
		out = append(out, toSlotView(s))
	}
	return out
}

type stateChangeView struct {
	State string    `json:"state"`
	At    time.Time `json:"at"`
}

type reservationView struct {
	ID              string            `json:"id"`
	ServiceID       string            `json:"service_id"`
	ClientID        string            `json:"client_id"`
	SlotID          string            `json:"slot_id"`
	Units           int               `json:"units"`
	State           string            `json:"state"`
	ConfirmDeadline *time.Time        `json:"confirm_deadline,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	History         []stateChangeView `json:"history,omitempty"`
}

func toReservationView(r domain.Reservation) reservationView {
	view := reservationView{
		ID:              r.ID,
		ServiceID:       r.ServiceID,
		ClientID:        r.ClientID,
		SlotID:          r.SlotID,
		Units:           r.Units,
		State:           string(r.State),
		ConfirmDeadline: r.ConfirmDeadline,
		CreatedAt:       r.CreatedAt,
	}
	for _, change := range r.History {
		view.History = append(view.History, stateChangeView{State: string(change.State), At: change.At})
	}
	return view
}

func toReservationViews(reservations []domain.Reservation) []reservationView {
	out := make([]reservationView, 0, len(reservations))
	for _, r := range reservations {
		out = append(out, toReservationView(r))
	}
	return out
}

type serviceView struct {
	ID              string     `json:"id"`
	CompanyID       string     `json:"company_id"`
	Name            string     `json:"name"`
	DurationMinutes int        `json:"duration_minutes"`
	Policy          policyView `json:"policy"`
	Active          bool       `json:"active"`
	CreatedAt       time.Time  `json:"created_at"`
}

type policyView struct {
	AllowOverlap           bool   `json:"allow_overlap"`
	SingleBookingPerClient bool   `json:"single_booking_per_client"`
	MinLeadTime            string `json:"min_lead_time"`
	MaxHorizon             string `json:"max_horizon"`
	CancellationGrace      string `json:"cancellation_grace"`
	ConfirmTimeout         string `json:"confirm_timeout"`
}

func toServiceView(s domain.Service) serviceView {
	return serviceView{
		ID:              s.ID,
		CompanyID:       s.CompanyID,
		Name:            s.Name,
		DurationMinutes: s.DurationMinutes,
		Policy: policyView{
			AllowOverlap:           s.Policy.AllowOverlap,
			SingleBookingPerClient: s.Policy.SingleBookingPerClient,
			MinLeadTime:            s.Policy.MinLeadTime.String(),
			MaxHorizon:             s.Policy.MaxHorizon.String(),
			CancellationGrace:      s.Policy.CancellationGrace.String(),
			ConfirmTimeout:         s.Policy.ConfirmTimeout.String(),
		},
		Active:    s.Active,
		CreatedAt: s.CreatedAt,
	}
}
