// Package metrics provides Prometheus metrics for the kubejit client.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the client.
type Metrics struct {
	APIRequestsTotal   *prometheus.CounterVec
	APIRequestDuration *prometheus.HistogramVec
	SessionTransitions *prometheus.CounterVec
	DecisionsTotal     *prometheus.CounterVec
	UnauthorizedTotal  prometheus.Counter

	registry *prometheus.Registry
}

// New creates and registers all metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		APIRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kubejit_api_requests_total",
				Help: "Backend API calls by endpoint and HTTP status (0 for transport failures).",
			},
			[]string{"endpoint", "status"},
		),
		APIRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kubejit_api_request_duration_seconds",
				Help:    "Backend API call duration by endpoint.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		SessionTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kubejit_session_transitions_total",
				Help: "Session state machine transitions by target state.",
			},
			[]string{"state"},
		),
		DecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kubejit_decisions_total",
				Help: "Approve/reject batches by status and result.",
			},
			[]string{"status", "result"},
		),
		UnauthorizedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "kubejit_unauthorized_responses_total",
				Help: "401 responses routed to the session-expired handler.",
			},
		),
		registry: reg,
	}

	reg.MustRegister(m.APIRequestsTotal)
	reg.MustRegister(m.APIRequestDuration)
	reg.MustRegister(m.SessionTransitions)
	reg.MustRegister(m.DecisionsTotal)
	reg.MustRegister(m.UnauthorizedTotal)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordAPIRequest counts one backend call and its duration. A nil
// receiver is a no-op so callers can run without metrics.
func (m *Metrics) RecordAPIRequest(endpoint, status string, seconds float64) {
	if m == nil {
		return
	}
	m.APIRequestsTotal.WithLabelValues(endpoint, status).Inc()
	m.APIRequestDuration.WithLabelValues(endpoint).Observe(seconds)
}

// RecordTransition counts a session state change.
func (m *Metrics) RecordTransition(state string) {
	if m == nil {
		return
	}
	m.SessionTransitions.WithLabelValues(state).Inc()
}

// RecordDecision counts an approve/reject batch.
func (m *Metrics) RecordDecision(status, result string) {
	if m == nil {
		return
	}
	m.DecisionsTotal.WithLabelValues(status, result).Inc()
}

// RecordUnauthorized counts a 401 seen by the client.
func (m *Metrics) RecordUnauthorized() {
	if m == nil {
		return
	}
	m.UnauthorizedTotal.Inc()
}
