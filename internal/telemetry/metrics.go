package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments exported by the engine
type Metrics struct {
	Registry *prometheus.Registry

	AnalysesTotal    prometheus.Counter
	FindingsTotal    *prometheus.CounterVec
	ToolErrorsTotal  *prometheus.CounterVec
	PhaseDuration    *prometheus.HistogramVec
	AdapterRunsTotal *prometheus.CounterVec
}

// NewMetrics creates a Metrics instance backed by its own registry, so that
// multiple engines (and tests) never collide on registration.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		AnalysesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "sentry_analyses_total",
			Help: "Total number of analysis requests processed",
		}),
		FindingsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sentry_findings_total",
			Help: "Total findings produced, by severity",
		}, []string{"severity"}),
		ToolErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sentry_tool_errors_total",
			Help: "Total isolated tool errors, by tool and error type",
		}, []string{"tool", "error_type"}),
		PhaseDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sentry_phase_duration_seconds",
			Help:    "Wall-clock duration of analysis phases",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"phase"}),
		AdapterRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sentry_adapter_runs_total",
			Help: "Adapter invocations, by tool and outcome",
		}, []string{"tool", "outcome"}),
	}
}
