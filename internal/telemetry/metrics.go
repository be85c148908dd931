// Package telemetry provides Prometheus collectors for the widget and the development backend.
package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	// Client counters
	ConnectAttempts prometheus.Counter
	ConnectFailures prometheus.Counter
	StaleEvents     prometheus.Counter
	NoticesExpired  prometheus.Counter

	// Backend collectors
	ConnectedSockets prometheus.Gauge
	MessagesTotal    prometheus.Counter
	ModerationTotal  *prometheus.CounterVec
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		ConnectAttempts = promauto.NewCounter(prometheus.CounterOpts{Name: "wirechat_client_connect_attempts_total", Help: "Channel connection attempts started by the widget"})
		ConnectFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "wirechat_client_connect_failures_total", Help: "Channel connection attempts that ended in the errored state"})
		StaleEvents = promauto.NewCounter(prometheus.CounterOpts{Name: "wirechat_client_stale_events_total", Help: "Events discarded because their channel was already torn down"})
		NoticesExpired = promauto.NewCounter(prometheus.CounterOpts{Name: "wirechat_client_notices_expired_total", Help: "Pinned notices removed by their auto-hide timer"})
		ConnectedSockets = promauto.NewGauge(prometheus.GaugeOpts{Name: "wirechat_server_connected_sockets", Help: "Currently connected websocket clients"})
		MessagesTotal = promauto.NewCounter(prometheus.CounterOpts{Name: "wirechat_server_messages_total", Help: "Chat messages accepted by the backend"})
		ModerationTotal = promauto.NewCounterVec(prometheus.CounterOpts{Name: "wirechat_server_moderation_total", Help: "Moderation requests by action and outcome"}, []string{"action", "outcome"})
	})
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Inc increments c when metrics are initialised.
func Inc(c prometheus.Counter) {
	if c != nil {
		c.Inc()
	}
}

// SetSockets records the number of connected sockets.
func SetSockets(n int) {
	if ConnectedSockets != nil {
		ConnectedSockets.Set(float64(n))
	}
}

// Moderation records a moderation outcome ("accepted" or "rejected").
func Moderation(action, outcome string) {
	if ModerationTotal != nil {
		ModerationTotal.WithLabelValues(action, outcome).Inc()
	}
}
