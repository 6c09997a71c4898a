package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result labels for Events.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

var (
	once sync.Once

	events = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_relay_events_total",
			Help: "Inbound relay events by event name and result.",
		},
		[]string{"event", "result"},
	)

	connections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "support_relay_connections",
			Help: "Currently connected websocket clients.",
		},
	)

	rooms = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "support_relay_rooms",
			Help: "Sessions with at least one connected member.",
		},
	)

	datastoreSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "support_relay_datastore_seconds",
			Help:    "Latency of datastore calls made by the relay.",
			Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)
)

// MustRegister registers collectors with the default registry (idempotent).
func MustRegister() {
	once.Do(func() {
		prometheus.MustRegister(events, connections, rooms, datastoreSeconds)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

func IncEvent(event, result string) {
	events.WithLabelValues(event, result).Inc()
}

func SetConnections(n int) {
	connections.Set(float64(n))
}

func SetRooms(n int) {
	rooms.Set(float64(n))
}

// ObserveDatastore records the time since start for operation.
func ObserveDatastore(operation string, start time.Time) {
	datastoreSeconds.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
