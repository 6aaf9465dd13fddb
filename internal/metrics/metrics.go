// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	relaySessions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_sessions_total",
			Help: "Stream relay sessions by endpoint and outcome (done/error/canceled).",
		},
		[]string{"endpoint", "outcome"},
	)

	relayFrames = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_frames_total",
			Help: "Text frames written to clients per endpoint.",
		},
		[]string{"endpoint"},
	)

	jobTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "job_transitions_total",
			Help: "Job state transitions by target status.",
		},
		[]string{"status"},
	)

	providerLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "provider_call_latency_ms",
			Help:    "Generation provider call latency in milliseconds.",
			Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
		},
		[]string{"operation", "model", "success"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route, method and status code.",
		},
		[]string{"route", "method", "status"},
	)
)

// MustRegister registers collectors with the default registry (idempotent).
func MustRegister() {
	once.Do(func() {
		prometheus.MustRegister(
			relaySessions, relayFrames,
			jobTransitions, providerLatencyMs,
			httpRequests,
		)
	})
}

// Handler serves the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// -------- Relay helpers --------

func RelaySession(endpoint, outcome string) {
	relaySessions.WithLabelValues(norm(endpoint), norm(outcome)).Inc()
}

func RelayFrame(endpoint string) {
	relayFrames.WithLabelValues(norm(endpoint)).Inc()
}

// -------- Job helpers --------

func JobTransition(status string) {
	jobTransitions.WithLabelValues(norm(status)).Inc()
}

// -------- Provider helpers --------

func ObserveProviderCall(operation, model string, started time.Time, err error) {
	providerLatencyMs.
		WithLabelValues(norm(operation), norm(model), strconv.FormatBool(err == nil)).
		Observe(float64(time.Since(started).Milliseconds()))
}

// -------- HTTP helpers --------

func HTTPRequest(route, method string, status int) {
	if route == "" {
		route = "unmatched"
	}
	httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
}
