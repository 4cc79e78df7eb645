// Package metrics exposes the Prometheus instrumentation for the analysis
// engine. Collectors live on the default registry; scrape them through
// Handler().
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	sandboxRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "analysis",
		Subsystem: "sandbox",
		Name:      "runs_total",
		Help:      "Total sandbox executions by mode and status.",
	}, []string{"mode", "status"})

	sandboxRunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "analysis",
		Subsystem: "sandbox",
		Name:      "run_duration_seconds",
		Help:      "Sandbox execution duration in seconds.",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
	}, []string{"mode"})

	plannerRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "analysis",
		Subsystem: "planner",
		Name:      "requests_total",
		Help:      "Total planner requests by status.",
	}, []string{"status"})

	sessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "analysis",
		Subsystem: "session",
		Name:      "completed_total",
		Help:      "Total analysis sessions by terminal state.",
	}, []string{"state"})

	sessionTurns = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "analysis",
		Subsystem: "session",
		Name:      "turns",
		Help:      "Turns consumed per analysis session.",
		Buckets:   []float64{1, 2, 3, 4, 5},
	})
)

// SandboxRun records one sandbox execution.
func SandboxRun(mode, status string, duration time.Duration) {
	sandboxRunsTotal.WithLabelValues(mode, status).Inc()
	sandboxRunDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// PlannerRequest records one planner round-trip.
func PlannerRequest(status string) {
	plannerRequestsTotal.WithLabelValues(status).Inc()
}

// SessionCompleted records the terminal state of one analysis session and
// how many turns it consumed.
func SessionCompleted(state string, turns int) {
	sessionsTotal.WithLabelValues(state).Inc()
	sessionTurns.Observe(float64(turns))
}

// Handler returns the scrape endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
