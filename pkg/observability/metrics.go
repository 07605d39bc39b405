package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the login bridge.
type Metrics struct {
	registry *prometheus.Registry

	// Login flow metrics
	ChallengesTotal  *prometheus.CounterVec
	CallbacksTotal   *prometheus.CounterVec
	CallbackDuration *prometheus.HistogramVec
	SessionsIssued   *prometheus.CounterVec
	PendingLogins    prometheus.Gauge
	SweptStatesTotal prometheus.Counter

	// HTTP metrics
	HTTPRequestsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: registry,

		ChallengesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ssobridge_challenges_total",
				Help: "Total number of login challenges issued",
			},
			[]string{"protocol", "provider"},
		),
		CallbacksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ssobridge_callbacks_total",
				Help: "Total number of IdP callbacks processed",
			},
			[]string{"protocol", "provider", "outcome"},
		),
		CallbackDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ssobridge_callback_duration_seconds",
				Help:    "Callback processing duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"protocol"},
		),
		SessionsIssued: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ssobridge_sessions_issued_total",
				Help: "Total number of sessions issued",
			},
			[]string{"protocol", "provider"},
		),
		PendingLogins: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "ssobridge_pending_logins",
				Help: "Number of in-flight login attempts",
			},
		),
		SweptStatesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ssobridge_swept_states_total",
				Help: "Total number of login attempts reclaimed by TTL sweep",
			},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ssobridge_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
	}

	registry.MustRegister(
		m.ChallengesTotal,
		m.CallbacksTotal,
		m.CallbackDuration,
		m.SessionsIssued,
		m.PendingLogins,
		m.SweptStatesTotal,
		m.HTTPRequestsTotal,
	)

	return m
}

// Handler returns the HTTP handler serving the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Callback outcome label values.
const (
	OutcomeValid    = "valid"
	OutcomeMismatch = "role_mismatch"
	OutcomeProtocol = "protocol_error"
	OutcomeNoState  = "no_state"
)
