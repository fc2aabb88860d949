package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// RouterDeps bundles everything the router wires up.
type RouterDeps struct {
	Catalog        ServiceCatalog
	Availability   AvailabilityManager
	Reservations   ReservationCoordinator
	MetricsHandler http.Handler
	CORSOrigins    []string
	Logger         zerolog.Logger
}

// NewRouter builds the public HTTP surface of the booking core.
func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(deps.Logger))
	r.Use(CORS(deps.CORSOrigins))
	r.NotFound(NotFoundHandler())

	r.Get("/health", HealthHandler)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Route("/services", func(r chi.Router) {
		r.Post("/", HandleRegisterService(deps.Catalog))
		r.Get("/", HandleListServices(deps.Catalog))
		r.Get("/{serviceID}", HandleGetService(deps.Catalog))
		r.Post("/{serviceID}/slots", HandlePublishSlots(deps.Availability))
		r.Get("/{serviceID}/slots", HandleListSlots(deps.Availability))
		r.Post("/{serviceID}/schedule", HandlePublishWeekly(deps.Availability))
		r.Get("/{serviceID}/reservations", HandleListServiceReservations(deps.Reservations))
	})

	r.Delete("/slots/{slotID}", HandleWithdrawSlot(deps.Availability))

	r.Route("/reservations", func(r chi.Router) {
		r.Post("/", HandleCreateReservation(deps.Reservations))
		r.Get("/{reservationID}", HandleGetReservation(deps.Reservations))
		r.Post("/{reservationID}/cancel", HandleCancelReservation(deps.Reservations))
	})

	r.Get("/clients/{clientID}/reservations", HandleListClientReservations(deps.Reservations))

	return r
}
