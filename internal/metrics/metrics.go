// Package metrics exposes run statistics as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "flowbuild"

// Metrics holds all Prometheus metrics for flowbuild.
type Metrics struct {
	// Run metrics
	Runs              *prometheus.CounterVec
	RunDuration       prometheus.Histogram
	LastRunTimestamp  prometheus.Gauge
	LastRunSuccess    prometheus.Gauge
	PhaseExecutions   *prometheus.CounterVec
	TargetsInProgress prometheus.Gauge

	// Target metrics
	TargetExecutions *prometheus.CounterVec
	TargetDuration   *prometheus.HistogramVec
	DirtyChecks      *prometheus.CounterVec

	// Error metrics (by error code from structured errors)
	Errors *prometheus.CounterVec
}

// NewMetrics creates a Metrics instance registered with registry.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		Runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Total number of runs by aggregate status",
			},
			[]string{"status"},
		),
		RunDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Run wall time in seconds",
				Buckets:   []float64{1, 5, 15, 30, 60, 300, 900, 1800, 3600},
			},
		),
		LastRunTimestamp: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix time the last run finished",
			},
		),
		LastRunSuccess: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_run_success",
				Help:      "1 if the last run succeeded or had nothing to do, 0 otherwise",
			},
		),
		PhaseExecutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "phase_executions_total",
				Help:      "Total number of phase executions by aggregate status",
			},
			[]string{"phase", "status"},
		),
		TargetsInProgress: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "targets_in_progress",
				Help:      "Number of targets currently executing",
			},
		),

		TargetExecutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "target_executions_total",
				Help:      "Total number of (target, phase) outcomes",
			},
			[]string{"phase", "kind", "status"},
		),
		TargetDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "target_duration_seconds",
				Help:      "Duration of executed targets in seconds",
				Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 15, 60, 300, 900},
			},
			[]string{"phase", "kind"},
		),
		DirtyChecks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dirty_checks_total",
				Help:      "Dirty evaluations by result; forced runs report unknown",
			},
			[]string{"phase", "result"},
		),

		Errors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of errors by error code",
			},
			[]string{"error_code", "component"},
		),
	}
}
