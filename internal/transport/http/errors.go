package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/piotrusio02/reservation-system-api/internal/domain"
)

const (
	codeNotFound                 = "not_found"
	codeInvalidRequestBody       = "invalid_request_body"
	codeInvalidID                = "invalid_id"
	codeInvalidInterval          = "invalid_interval"
	codeInvalidCapacity          = "invalid_capacity"
	codeInvalidUnits             = "invalid_units"
	codeInvalidDuration          = "invalid_duration"
	codeInvalidPageToken         = "invalid_page_token"
	codeNameRequired             = "service_name_required"
	codeActorRequired            = "actor_required"
	codeOverlapRejected          = "overlap_rejected"
	codeCapacityExhausted        = "capacity_exhausted"
	codePolicyViolation          = "policy_violation"
	codeLeadTimeViolation        = "lead_time_violation"
	codeHorizonViolation         = "horizon_violation"
	codeInvalidTransition        = "invalid_transition"
	codeCancellationWindowClosed = "cancellation_window_closed"
	codeServiceNotFound          = "service_not_found"
	codeSlotNotFound             = "slot_not_found"
	codeSlotRetired              = "slot_retired"
	codeReservationNotFound      = "reservation_not_found"
	codeConcurrencyConflict      = "concurrency_conflict"
	codeForbidden                = "forbidden"
	codeInternalError            = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(errorResponse{Error: msg, Code: code})
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

// writeDomainError maps the core's typed rejections onto HTTP statuses and
// stable codes. Internal invariant violations stay opaque.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidID):
		writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
	case errors.Is(err, domain.ErrInvalidInterval):
		writeError(w, http.StatusBadRequest, codeInvalidInterval, err.Error())
	case errors.Is(err, domain.ErrInvalidCapacity):
		writeError(w, http.StatusBadRequest, codeInvalidCapacity, err.Error())
	case errors.Is(err, domain.ErrInvalidUnits):
		writeError(w, http.StatusBadRequest, codeInvalidUnits, err.Error())
	case errors.Is(err, domain.ErrInvalidDuration):
		writeError(w, http.StatusBadRequest, codeInvalidDuration, err.Error())
	case errors.Is(err, domain.ErrInvalidPageToken):
		writeError(w, http.StatusBadRequest, codeInvalidPageToken, err.Error())
	case errors.Is(err, domain.ErrNameRequired):
		writeError(w, http.StatusBadRequest, codeNameRequired, err.Error())
	case errors.Is(err, domain.ErrActorRequired):
		writeError(w, http.StatusBadRequest, codeActorRequired, err.Error())
	case errors.Is(err, domain.ErrServiceNotFound):
		writeError(w, http.StatusNotFound, codeServiceNotFound, err.Error())
	case errors.Is(err, domain.ErrSlotNotFound):
		writeError(w, http.StatusNotFound, codeSlotNotFound, err.Error())
	case errors.Is(err, domain.ErrReservationNotFound):
		writeError(w, http.StatusNotFound, codeReservationNotFound, err.Error())
	case errors.Is(err, domain.ErrSlotRetired):
		writeError(w, http.StatusGone, codeSlotRetired, err.Error())
	case errors.Is(err, domain.ErrOverlapRejected):
		writeError(w, http.StatusConflict, codeOverlapRejected, err.Error())
	case errors.Is(err, domain.ErrCapacityExhausted):
		writeError(w, http.StatusConflict, codeCapacityExhausted, err.Error())
	case errors.Is(err, domain.ErrConcurrencyConflict):
		writeError(w, http.StatusConflict, codeConcurrencyConflict, err.Error())
	case errors.Is(err, domain.ErrPolicyViolation):
		writeError(w, http.StatusConflict, codePolicyViolation, err.Error())
	case errors.Is(err, domain.ErrLeadTimeViolation):
		writeError(w, http.StatusUnprocessableEntity, codeLeadTimeViolation, err.Error())
	case errors.Is(err, domain.ErrHorizonViolation):
		writeError(w, http.StatusUnprocessableEntity, codeHorizonViolation, err.Error())
	case errors.Is(err, domain.ErrInvalidTransition):
		writeError(w, http.StatusConflict, codeInvalidTransition, err.Error())
	case errors.Is(err, domain.ErrCancellationWindowClosed):
		writeError(w, http.StatusConflict, codeCancellationWindowClosed, err.Error())
	default:
		// ErrSlotInUse and ErrOverRelease land here on purpose: they signal
		// defects and are surfaced opaquely.
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}
