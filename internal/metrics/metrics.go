package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the booking core's Prometheus instruments.
type Metrics struct {
	registry *prometheus.Registry

	Admissions       *prometheus.CounterVec
	SlotsPublished   prometheus.Counter
	SweepTransitions *prometheus.CounterVec
	TxDuration       prometheus.Histogram
}

// New builds a self-registered metrics set.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Admissions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reservations",
			Name:      "admissions_total",
			Help:      "Reservation admission decisions by outcome.",
		}, []string{"outcome"}),
		SlotsPublished: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "reservations",
			Name:      "slots_published_total",
			Help:      "Slots successfully published to the ledger.",
		}),
		SweepTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reservations",
			Name:      "sweep_transitions_total",
			Help:      "Lifecycle transitions applied by the sweep.",
		}, []string{"kind"}),
		TxDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "reservations",
			Name:      "booking_tx_seconds",
			Help:      "Duration of booking transactions.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// Handler serves the registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
