package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/piotrusio02/reservation-system-api/internal/booking"
	"github.com/piotrusio02/reservation-system-api/internal/domain"
)

// ReservationCoordinator is the slice of the scheduling coordinator the
// reservation handlers need.
type ReservationCoordinator interface {
	RequestReservation(ctx context.Context, in booking.RequestReservationInput) (domain.Reservation, error)
	CancelReservation(ctx context.Context, reservationID, actor string) (domain.Reservation, error)
	GetReservation(ctx context.Context, reservationID string) (domain.Reservation, error)
	ListClientReservations(ctx context.Context, clientID string) ([]domain.Reservation, error)
	ListServiceReservations(ctx context.Context, serviceID string) ([]domain.Reservation, error)
}

type createReservationRequest struct {
	ServiceID string `json:"service_id"`
	ClientID  string `json:"client_id"`
	SlotID    string `json:"slot_id"`
	Units     int    `json:"units,omitempty"`
}

// HandleCreateReservation admits a reservation request against the ledger.
func HandleCreateReservation(svc ReservationCoordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createReservationRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		res, err := svc.RequestReservation(r.Context(), booking.RequestReservationInput{
			ServiceID: req.ServiceID,
			ClientID:  req.ClientID,
			SlotID:    req.SlotID,
			Units:     req.Units,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toReservationView(res))
	}
}

type cancelReservationRequest struct {
	Actor string `json:"actor"`
}

// HandleCancelReservation cancels a confirmed reservation.
func HandleCancelReservation(svc ReservationCoordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reservationID := chi.URLParam(r, "reservationID")

		var req cancelReservationRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		res, err := svc.CancelReservation(r.Context(), reservationID, req.Actor)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toReservationView(res))
	}
}

// HandleGetReservation returns a reservation snapshot with its history.
func HandleGetReservation(svc ReservationCoordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := svc.GetReservation(r.Context(), chi.URLParam(r, "reservationID"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toReservationView(res))
	}
}

type listReservationsResponse struct {
	Reservations []reservationView `json:"reservations"`
}

// HandleListClientReservations lists a client's reservations, newest first.
func HandleListClientReservations(svc ReservationCoordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reservations, err := svc.ListClientReservations(r.Context(), chi.URLParam(r, "clientID"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, listReservationsResponse{Reservations: toReservationViews(reservations)})
	}
}

// HandleListServiceReservations lists a service's reservations, newest first.
func HandleListServiceReservations(svc ReservationCoordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reservations, err := svc.ListServiceReservations(r.Context(), chi.URLParam(r, "serviceID"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, listReservationsResponse{Reservations: toReservationViews(reservations)})
	}
}
