package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// initBatchMetrics initializes batch processing metrics.
func (m *Manager) initBatchMetrics(cfg Config) {
	m.batchRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "batch_runs_total",
			Help:      "Total number of batch runs by strategy",
		},
		[]string{"strategy"},
	)

	m.batchItems = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "batch_items_total",
			Help:      "Total number of batch items by outcome",
		},
		[]string{"outcome"},
	)

	m.batchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Name:      "batch_run_duration_seconds",
			Help:      "Batch run duration in seconds",
			Buckets:   cfg.BatchDurationBuckets,
		},
		[]string{"strategy"},
	)

	m.batchRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "batch_retries_total",
			Help:      "Total number of item retry attempts",
		},
	)

	m.adaptiveWorkers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Name:      "batch_adaptive_workers",
			Help:      "Worker count chosen by the adaptive strategy",
		},
	)

	m.registry.MustRegister(m.batchRuns)
	m.registry.MustRegister(m.batchItems)
	m.registry.MustRegister(m.batchDuration)
	m.registry.MustRegister(m.batchRetries)
	m.registry.MustRegister(m.adaptiveWorkers)
}

// ObserveRun records one finished batch run.
func (m *Manager) ObserveRun(strategy string, d time.Duration, succeeded, failed, skipped int) {
	if !m.enabled {
		return
	}
	m.batchRuns.WithLabelValues(strategy).Inc()
	m.batchDuration.WithLabelValues(strategy).Observe(d.Seconds())
	m.batchItems.WithLabelValues("succeeded").Add(float64(succeeded))
	m.batchItems.WithLabelValues("failed").Add(float64(failed))
	m.batchItems.WithLabelValues("skipped").Add(float64(skipped))
}

// ObserveRetries adds to the item retry counter.
func (m *Manager) ObserveRetries(n int) {
	if !m.enabled || n == 0 {
		return
	}
	m.batchRetries.Add(float64(n))
}

// SetAdaptiveWorkers publishes the adaptive controller's worker choice.
func (m *Manager) SetAdaptiveWorkers(n int) {
	if !m.enabled {
		return
	}
	m.adaptiveWorkers.Set(float64(n))
}
