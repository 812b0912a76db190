// Package metrics exposes Prometheus instrumentation for the suggestion engine.
//
// Metrics are registered on the default registry at init and served by
// `kinotv run --metrics-addr` through promhttp.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SuggestionRuns counts builder executions by result (success, retry, failure)
	SuggestionRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kinotv_suggestion_runs_total",
			Help: "Suggestion builder runs by result",
		},
		[]string{"result"},
	)

	// SuggestionRunDuration tracks wall time of a full builder run
	SuggestionRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kinotv_suggestion_run_duration_seconds",
			Help:    "Suggestion builder run duration",
			Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	// SuggestionLibraryErrors counts per-library pipeline failures
	SuggestionLibraryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kinotv_suggestion_library_errors_total",
			Help: "Per-library suggestion pipeline failures",
		},
		[]string{"kind"},
	)

	// StoreLookups counts suggestion cache reads by the tier that answered
	StoreLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kinotv_suggestion_store_lookups_total",
			Help: "Suggestion cache lookups by tier (memory, durable, miss)",
		},
		[]string{"tier"},
	)

	// StoreEvictions counts memory-tier evictions
	StoreEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kinotv_suggestion_store_evictions_total",
			Help: "Suggestion memory-tier evictions",
		},
	)

	// JobStateTransitions counts job facility state changes
	JobStateTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kinotv_job_state_transitions_total",
			Help: "Job state transitions by job and new state",
		},
		[]string{"job", "state"},
	)
)

var (
	// ClientRequests counts media server requests by outcome
	ClientRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kinotv_client_requests_total",
			Help: "Media server requests by outcome",
		},
		[]string{"result"},
	)

	// ClientBreakerState is the circuit breaker state (0 closed, 1 half-open, 2 open)
	ClientBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kinotv_client_breaker_state",
			Help: "Media server circuit breaker state",
		},
	)
)

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
