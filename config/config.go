// Package config provides configuration management for Mailsift.
package config

import (
	"fmt"
	"time"
)

// Config is the top-level configuration for the Mailsift engine.
type Config struct {
	// App is the application configuration.
	App AppConfig `mapstructure:"app" validate:"required"`

	// Log is the logging configuration.
	Log LogConfig `mapstructure:"log" validate:"required"`

	// Batch holds defaults for batch processing runs.
	Batch BatchConfig `mapstructure:"batch"`

	// Adaptive bounds the adaptive strategy's self-tuning.
	Adaptive AdaptiveConfig `mapstructure:"adaptive"`

	// Engine is the workflow engine configuration.
	Engine EngineConfig `mapstructure:"engine"`

	// Archive configures where finished workflow runs are archived.
	Archive ArchiveConfig `mapstructure:"archive"`

	// Metrics is the observability configuration.
	Metrics MetricsConfig `mapstructure:"metrics"`

	// Tracing is the distributed tracing configuration.
	Tracing TracingConfig `mapstructure:"tracing"`
}

// AppConfig holds application metadata and settings.
type AppConfig struct {
	// Name is the application name.
	Name string `mapstructure:"name" validate:"required"`

	// Version is the application version.
	Version string `mapstructure:"version"`

	// Environment is the runtime environment (development, staging, production).
	Environment string `mapstructure:"environment" validate:"oneof=development staging production"`

	// Debug enables debug mode with verbose logging.
	Debug bool `mapstructure:"debug"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`

	// Format is the log output format (json or text).
	Format string `mapstructure:"format" validate:"oneof=json text"`

	// Output is the log destination: stdout, stderr, or a file path.
	Output string `mapstructure:"output"`
}

// BatchConfig holds default options for batch processing.
// Per-run options override these values.
type BatchConfig struct {
	// BatchSize is the grouping granularity for item dispatch.
	BatchSize int `mapstructure:"batch_size" validate:"min=1"`

	// MaxWorkers is the concurrency ceiling for parallel and adaptive runs.
	MaxWorkers int `mapstructure:"max_workers" validate:"min=1"`

	// ChunkSizeThreshold is the item size in bytes above which the
	// chunker is consulted.
	ChunkSizeThreshold int `mapstructure:"chunk_size_threshold" validate:"min=0"`

	// MaxRetries is the retry budget for transient per-item failures.
	MaxRetries int `mapstructure:"max_retries" validate:"min=0"`

	// RetryBackoff is the delay between retry attempts.
	RetryBackoff time.Duration `mapstructure:"retry_backoff" validate:"min=0"`

	// ProgressInterval emits one progress event every N completed items.
	ProgressInterval int `mapstructure:"progress_interval" validate:"min=1"`

	// MemoryBudgetMB bounds heap usage before adaptive runs degrade.
	MemoryBudgetMB int `mapstructure:"memory_budget_mb" validate:"min=0"`

	// RateLimit throttles unit submission (units per second, 0 = unlimited).
	RateLimit float64 `mapstructure:"rate_limit" validate:"min=0"`

	// StreamBuffer is the bounded pipeline capacity for the streaming strategy.
	StreamBuffer int `mapstructure:"stream_buffer" validate:"min=1"`
}

// AdaptiveConfig bounds the adaptive strategy controller.
type AdaptiveConfig struct {
	// MinWorkers is the lower bound for worker scaling.
	MinWorkers int `mapstructure:"min_workers" validate:"min=1"`

	// MaxWorkers is the upper bound for worker scaling.
	MaxWorkers int `mapstructure:"max_workers" validate:"min=1"`

	// MinBatchSize is the lower bound for batch size tuning.
	MinBatchSize int `mapstructure:"min_batch_size" validate:"min=1"`

	// MaxBatchSize is the upper bound for batch size tuning.
	MaxBatchSize int `mapstructure:"max_batch_size" validate:"min=1"`

	// PressureStreak is the number of consecutive over-budget samples
	// before the run degrades to sequential execution.
	PressureStreak int `mapstructure:"pressure_streak" validate:"min=1"`
}

// EngineConfig holds workflow engine settings.
type EngineConfig struct {
	// MaxConcurrentTasks is the engine-wide ceiling on tasks running at once.
	MaxConcurrentTasks int `mapstructure:"max_concurrent_tasks" validate:"min=1"`

	// DefaultTaskTimeout applies to tasks without an explicit timeout.
	// Zero means no timeout.
	DefaultTaskTimeout time.Duration `mapstructure:"default_task_timeout" validate:"min=0"`

	// DefaultRunTimeout applies to workflows without a global timeout.
	// Zero means no timeout.
	DefaultRunTimeout time.Duration `mapstructure:"default_run_timeout" validate:"min=0"`

	// ArchiveRuns enables archiving of finished run results.
	ArchiveRuns bool `mapstructure:"archive_runs"`

	// DrainTimeout bounds how long Stop waits for active runs.
	DrainTimeout time.Duration `mapstructure:"drain_timeout" validate:"min=0"`
}

// ArchiveConfig holds run archive settings.
type ArchiveConfig struct {
	// Backend selects the archive store: memory or badger.
	Backend string `mapstructure:"backend" validate:"oneof=memory badger"`

	// Path is the on-disk directory for the badger backend.
	Path string `mapstructure:"path"`

	// SyncWrites forces synchronous writes in the badger backend.
	SyncWrites bool `mapstructure:"sync_writes"`
}

// MetricsConfig holds metrics settings.
type MetricsConfig struct {
	// Enabled toggles Prometheus metric collection.
	Enabled bool `mapstructure:"enabled"`

	// Namespace is the metric name prefix.
	Namespace string `mapstructure:"namespace"`
}

// TracingConfig holds OpenTelemetry tracing settings.
type TracingConfig struct {
	// Enabled toggles span export.
	Enabled bool `mapstructure:"enabled"`

	// Exporter selects the span exporter (otlp).
	Exporter string `mapstructure:"exporter"`

	// Endpoint is the OTLP collector endpoint (host:port).
	Endpoint string `mapstructure:"endpoint"`

	// Timeout bounds exporter calls.
	Timeout time.Duration `mapstructure:"timeout" validate:"min=0"`

	// SampleRatio is the trace sampling ratio in [0, 1].
	SampleRatio float64 `mapstructure:"sample_ratio" validate:"min=0,max=1"`

	// Headers are extra headers sent to the collector.
	Headers map[string]string `mapstructure:"headers"`
}

// Validate performs cross-field checks that struct tags cannot express.
func (c *Config) Validate() error {
	if err := ValidateWithDetails(c); err != nil {
		return err
	}
	if c.Adaptive.MinWorkers > c.Adaptive.MaxWorkers {
		return fmt.Errorf("adaptive.min_workers (%d) cannot exceed adaptive.max_workers (%d)",
			c.Adaptive.MinWorkers, c.Adaptive.MaxWorkers)
	}
	if c.Adaptive.MinBatchSize > c.Adaptive.MaxBatchSize {
		return fmt.Errorf("adaptive.min_batch_size (%d) cannot exceed adaptive.max_batch_size (%d)",
			c.Adaptive.MinBatchSize, c.Adaptive.MaxBatchSize)
	}
	if c.Archive.Backend == "badger" && c.Archive.Path == "" {
		return fmt.Errorf("archive.path is required for the badger backend")
	}
	return nil
}
