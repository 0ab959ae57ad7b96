// Package metrics provides Prometheus metrics instrumentation for mailsift.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager manages all Prometheus metrics for the engine and the batch
// processor. A disabled Manager is a cheap no-op, so call sites never
// branch on configuration.
type Manager struct {
	registry *prometheus.Registry
	enabled  bool

	// Workflow run metrics
	runsTotal   *prometheus.CounterVec
	runDuration *prometheus.HistogramVec
	activeRuns  prometheus.Gauge

	// Task metrics
	taskExecutions *prometheus.CounterVec
	taskDuration   prometheus.Histogram
	taskRetries    prometheus.Counter

	// Batch metrics
	batchRuns       *prometheus.CounterVec
	batchItems      *prometheus.CounterVec
	batchDuration   *prometheus.HistogramVec
	batchRetries    prometheus.Counter
	adaptiveWorkers prometheus.Gauge
}

// Config holds metrics configuration.
type Config struct {
	Enabled   bool
	Namespace string

	RunDurationBuckets   []float64
	TaskDurationBuckets  []float64
	BatchDurationBuckets []float64
}

// DefaultConfig returns default metrics configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:              true,
		Namespace:            "mailsift",
		RunDurationBuckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		TaskDurationBuckets:  []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		BatchDurationBuckets: []float64{0.01, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
	}
}

// NewManager creates a new metrics manager.
func NewManager(cfg Config) *Manager {
	if !cfg.Enabled {
		return &Manager{enabled: false}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Manager{
		registry: registry,
		enabled:  true,
	}
	m.initRunMetrics(cfg)
	m.initTaskMetrics(cfg)
	m.initBatchMetrics(cfg)
	return m
}

// Enabled returns whether metrics collection is enabled.
func (m *Manager) Enabled() bool {
	return m.enabled
}

// Handler returns the HTTP handler for the metrics endpoint.
func (m *Manager) Handler() http.Handler {
	if !m.enabled {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for test assertions and custom
// collectors.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}
