package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/piotrusio02/reservation-system-api/internal/booking"
	"github.com/piotrusio02/reservation-system-api/internal/cache"
	"github.com/piotrusio02/reservation-system-api/internal/domain"
)

// AvailabilityManager is the slice of the availability service the slot
// handlers need.
type AvailabilityManager interface {
	PublishSlots(ctx context.Context, serviceID string, intervals []booking.Interval) ([]domain.TimeSlot, error)
	PublishWeekly(ctx context.Context, serviceID string, windows []domain.DayWindow, capacity int, horizon time.Duration) ([]domain.TimeSlot, error)
	Withdraw(ctx context.Context, slotID string) error
	ListAvailable(ctx context.Context, serviceID string, from, to time.Time, limit int, pageToken string) (cache.Page, error)
}

type publishSlotsRequest struct {
	Intervals []intervalRequest `json:"intervals"`
}

type intervalRequest struct {
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Capacity int       `json:"capacity"`
}

type publishSlotsResponse struct {
	Slots []slotView `json:"slots"`
}

// HandlePublishSlots publishes concrete availability intervals for a service.
func HandlePublishSlots(svc AvailabilityManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		serviceID := chi.URLParam(r, "serviceID")

		var req publishSlotsRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		intervals := make([]booking.Interval, 0, len(req.Intervals))
		for _, in := range req.Intervals {
			intervals = append(intervals, booking.Interval{Start: in.Start, End: in.End, Capacity: in.Capacity})
		}

		slots, err := svc.PublishSlots(r.Context(), serviceID, intervals)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, publishSlotsResponse{Slots: toSlotViews(slots)})
	}
}

type publishWeeklyRequest struct {
	Windows []weeklyWindowRequest `json:"windows"`
	// Capacity applies to every generated slot.
	Capacity int `json:"capacity"`
	// Horizon bounds the expansion; empty means the service's max horizon.
	Horizon string `json:"horizon,omitempty"`
}

type weeklyWindowRequest struct {
	Day   string `json:"day"`
	Open  string `json:"open"`
	Close string `json:"close"`
}

// HandlePublishWeekly expands recurring opening windows into concrete slots.
func HandlePublishWeekly(svc AvailabilityManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		serviceID := chi.URLParam(r, "serviceID")

		var req publishWeeklyRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		windows := make([]domain.DayWindow, 0, len(req.Windows))
		for _, win := range req.Windows {
			parsed, err := parseDayWindow(win)
			if err != nil {
				writeDomainError(w, err)
				return
			}
			windows = append(windows, parsed)
		}

		var horizon time.Duration
		if req.Horizon != "" {
			var err error
			horizon, err = time.ParseDuration(req.Horizon)
			if err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid horizon")
				return
			}
		}

		slots, err := svc.PublishWeekly(r.Context(), serviceID, windows, req.Capacity, horizon)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, publishSlotsResponse{Slots: toSlotViews(slots)})
	}
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func parseDayWindow(req weeklyWindowRequest) (domain.DayWindow, error) {
	day, ok := weekdays[req.Day]
	if !ok {
		return domain.DayWindow{}, domain.ErrInvalidInterval
	}
	open, err := parseMinuteOfDay(req.Open)
	if err != nil {
		return domain.DayWindow{}, err
	}
	closeAt, err := parseMinuteOfDay(req.Close)
	if err != nil {
		return domain.DayWindow{}, err
	}
	window := domain.DayWindow{Day: day, Open: open, Close: closeAt}
	return window, window.Validate()
}

func parseMinuteOfDay(value string) (int, error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, domain.ErrInvalidInterval
	}
	return t.Hour()*60 + t.Minute(), nil
}

// HandleWithdrawSlot retires a published slot.
func HandleWithdrawSlot(svc AvailabilityManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slotID := chi.URLParam(r, "slotID")
		if err := svc.Withdraw(r.Context(), slotID); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type listSlotsResponse struct {
	Slots         []slotView `json:"slots"`
	NextPageToken string     `json:"next_page_token,omitempty"`
}

// HandleListSlots serves one page of available slots within a window.
func HandleListSlots(svc AvailabilityManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		serviceID := chi.URLParam(r, "serviceID")

		from, err := parseTimeParam(r, "from")
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid from")
			return
		}
		to, err := parseTimeParam(r, "to")
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid to")
			return
		}

		limit := 0
		if raw := r.URL.Query().Get("page_size"); raw != "" {
			limit, err = strconv.Atoi(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid page_size")
				return
			}
		}

		page, err := svc.ListAvailable(r.Context(), serviceID, from, to, limit, r.URL.Query().Get("page_token"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, listSlotsResponse{
			Slots:         toSlotViews(page.Slots),
			NextPageToken: page.NextToken,
		})
	}
}

func parseTimeParam(r *http.Request, name string) (time.Time, error) {
	return time.Parse(time.RFC3339, r.URL.Query().Get(name))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
