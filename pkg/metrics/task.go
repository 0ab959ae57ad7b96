package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// initTaskMetrics initializes task metrics.
func (m *Manager) initTaskMetrics(cfg Config) {
	m.taskExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "task_executions_total",
			Help:      "Total number of task executions by status",
		},
		[]string{"status"},
	)

	m.taskDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Name:      "task_duration_seconds",
			Help:      "Task execution duration in seconds",
			Buckets:   cfg.TaskDurationBuckets,
		},
	)

	m.taskRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "task_retries_total",
			Help:      "Total number of task retry attempts",
		},
	)

	m.registry.MustRegister(m.taskExecutions)
	m.registry.MustRegister(m.taskDuration)
	m.registry.MustRegister(m.taskRetries)
}

// RecordTaskExecution records a finished task with its terminal status.
func (m *Manager) RecordTaskExecution(status string, duration time.Duration) {
	if !m.enabled {
		return
	}
	m.taskExecutions.WithLabelValues(status).Inc()
	m.taskDuration.Observe(duration.Seconds())
}

// RecordTaskRetry records one task retry attempt.
func (m *Manager) RecordTaskRetry() {
	if !m.enabled {
		return
	}
	m.taskRetries.Inc()
}
