package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/piotrusio02/reservation-system-api/internal/booking"
	"github.com/piotrusio02/reservation-system-api/internal/cache"
	"github.com/piotrusio02/reservation-system-api/internal/domain"
)

// newTestRouter mounts the full route tree over canned stubs so handler
// tests exercise routing and URL parameters.
func newTestRouter(cat ServiceCatalog, avail AvailabilityManager, res ReservationCoordinator) http.Handler {
	return NewRouter(RouterDeps{
		Catalog:      cat,
		Availability: avail,
		Reservations: res,
		Logger:       zerolog.Nop(),
	})
}

type stubCatalog struct {
	svc  domain.Service
	list []domain.Service
	err  error
}

func (s *stubCatalog) RegisterService(context.Context, booking.RegisterServiceInput) (domain.Service, error) {
	return s.svc, s.err
}

func (s *stubCatalog) GetService(context.Context, string) (domain.Service, error) {
	return s.svc, s.err
}

func (s *stubCatalog) ListServices(context.Context, string) ([]domain.Service, error) {
	return s.list, s.err
}

type stubAvailability struct {
	slots []domain.TimeSlot
	page  cache.Page
	err   error
}

func (s *stubAvailability) PublishSlots(context.Context, string, []booking.Interval) ([]domain.TimeSlot, error) {
	return s.slots, s.err
}

func (s *stubAvailability) PublishWeekly(context.Context, string, []domain.DayWindow, int, time.Duration) ([]domain.TimeSlot, error) {
	return s.slots, s.err
}

func (s *stubAvailability) Withdraw(context.Context, string) error {
	return s.err
}

func (s *stubAvailability) ListAvailable(context.Context, string, time.Time, time.Time, int, string) (cache.Page, error) {
	return s.page, s.err
}

type stubReservations struct {
	res  domain.Reservation
	list []domain.Reservation
	err  error
}

func (s *stubReservations) RequestReservation(context.Context, booking.RequestReservationInput) (domain.Reservation, error) {
	return s.res, s.err
}

func (s *stubReservations) CancelReservation(context.Context, string, string) (domain.Reservation, error) {
	return s.res, s.err
}

func (s *stubReservations) GetReservation(context.Context, string) (domain.Reservation, error) {
	return s.res, s.err
}

func (s *stubReservations) ListClientReservations(context.Context, string) ([]domain.Reservation, error) {
	return s.list, s.err
}

func (s *stubReservations) ListServiceReservations(context.Context, string) ([]domain.Reservation, error) {
	return s.list, s.err
}

func TestRouterUnknownRoute(t *testing.T) {
	t.Parallel()

	router := newTestRouter(&stubCatalog{}, &stubAvailability{}, &stubReservations{})
	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if body := rec.Body.String(); body == "" || rec.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("expected a JSON error body, got %q", body)
	}
}

func TestRouterHealth(t *testing.T) {
	t.Parallel()

	router := newTestRouter(&stubCatalog{}, &stubAvailability{}, &stubReservations{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "ok" {
		t.Fatalf("expected ok body, got %q", rec.Body.String())
	}
}
