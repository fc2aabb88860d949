package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/piotrusio02/reservation-system-api/internal/booking"
	"github.com/piotrusio02/reservation-system-api/internal/domain"
)

// ServiceCatalog is the slice of the catalog service the handlers need.
type ServiceCatalog interface {
	RegisterService(ctx context.Context, in booking.RegisterServiceInput) (domain.Service, error)
	GetService(ctx context.Context, serviceID string) (domain.Service, error)
	ListServices(ctx context.Context, companyID string) ([]domain.Service, error)
}

type registerServiceRequest struct {
	CompanyID       string         `json:"company_id"`
	Name            string         `json:"name"`
	DurationMinutes int            `json:"duration_minutes"`
	Policy          *policyRequest `json:"policy,omitempty"`
}

type policyRequest struct {
	AllowOverlap           bool   `json:"allow_overlap"`
	SingleBookingPerClient bool   `json:"single_booking_per_client"`
	MinLeadTime            string `json:"min_lead_time"`
	MaxHorizon             string `json:"max_horizon"`
	CancellationGrace      string `json:"cancellation_grace"`
	ConfirmTimeout         string `json:"confirm_timeout"`
}

func (p policyRequest) toDomain() (domain.Policy, error) {
	policy := domain.Policy{
		AllowOverlap:           p.AllowOverlap,
		SingleBookingPerClient: p.SingleBookingPerClient,
	}
	for _, field := range []struct {
		raw string
		dst *time.Duration
	}{
		{p.MinLeadTime, &policy.MinLeadTime},
		{p.MaxHorizon, &policy.MaxHorizon},
		{p.CancellationGrace, &policy.CancellationGrace},
		{p.ConfirmTimeout, &policy.ConfirmTimeout},
	} {
		if field.raw == "" {
			continue
		}
		d, err := time.ParseDuration(field.raw)
		if err != nil || d < 0 {
			return domain.Policy{}, domain.ErrInvalidInterval
		}
		*field.dst = d
	}
	return policy, nil
}

// HandleRegisterService registers a bookable service with its policy.
func HandleRegisterService(svc ServiceCatalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerServiceRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		in := booking.RegisterServiceInput{
			CompanyID:       req.CompanyID,
			Name:            req.Name,
			DurationMinutes: req.DurationMinutes,
		}
		if req.Policy != nil {
			policy, err := req.Policy.toDomain()
			if err != nil {
				writeDomainError(w, err)
				return
			}
			in.Policy = &policy
		}

		service, err := svc.RegisterService(r.Context(), in)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toServiceView(service))
	}
}

// HandleGetService returns one service with its policy.
func HandleGetService(svc ServiceCatalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		service, err := svc.GetService(r.Context(), chi.URLParam(r, "serviceID"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toServiceView(service))
	}
}

type listServicesResponse struct {
	Services []serviceView `json:"services"`
}

// HandleListServices lists services, optionally filtered by company.
func HandleListServices(svc ServiceCatalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		services, err := svc.ListServices(r.Context(), r.URL.Query().Get("company_id"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		resp := listServicesResponse{Services: make([]serviceView, 0, len(services))}
		for _, service := range services {
			resp.Services = append(resp.Services, toServiceView(service))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
