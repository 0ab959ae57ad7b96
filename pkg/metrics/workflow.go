package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// initRunMetrics initializes workflow run metrics.
func (m *Manager) initRunMetrics(cfg Config) {
	m.runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "workflow_runs_total",
			Help:      "Total number of finished workflow runs by status",
		},
		[]string{"status"},
	)

	m.runDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Name:      "workflow_run_duration_seconds",
			Help:      "Workflow run duration in seconds",
			Buckets:   cfg.RunDurationBuckets,
		},
		[]string{"status"},
	)

	m.activeRuns = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Name:      "workflow_active_runs",
			Help:      "Current number of active workflow runs",
		},
	)

	m.registry.MustRegister(m.runsTotal)
	m.registry.MustRegister(m.runDuration)
	m.registry.MustRegister(m.activeRuns)
}

// RecordRunFinished records a finished workflow run.
func (m *Manager) RecordRunFinished(status string, duration time.Duration) {
	if !m.enabled {
		return
	}
	m.runsTotal.WithLabelValues(status).Inc()
	m.runDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// IncActiveRuns increments the active run count.
func (m *Manager) IncActiveRuns() {
	if !m.enabled {
		return
	}
	m.activeRuns.Inc()
}

// DecActiveRuns decrements the active run count.
func (m *Manager) DecActiveRuns() {
	if !m.enabled {
		return
	}
	m.activeRuns.Dec()
}
