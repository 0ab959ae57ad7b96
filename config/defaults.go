package config

import "time"

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:        "mailsift",
			Version:     "dev",
			Environment: "development",
			Debug:       false,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Batch: BatchConfig{
			BatchSize:          50,
			MaxWorkers:         8,
			ChunkSizeThreshold: 64 * 1024, // 64KB
			MaxRetries:         2,
			RetryBackoff:       200 * time.Millisecond,
			ProgressInterval:   10,
			MemoryBudgetMB:     512,
			RateLimit:          0,
			StreamBuffer:       64,
		},
		Adaptive: AdaptiveConfig{
			MinWorkers:     1,
			MaxWorkers:     16,
			MinBatchSize:   10,
			MaxBatchSize:   500,
			PressureStreak: 3,
		},
		Engine: EngineConfig{
			MaxConcurrentTasks: 8,
			DefaultTaskTimeout: 0,
			DefaultRunTimeout:  0,
			ArchiveRuns:        true,
			DrainTimeout:       30 * time.Second,
		},
		Archive: ArchiveConfig{
			Backend:    "memory",
			Path:       "",
			SyncWrites: false,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "mailsift",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			Exporter:    "otlp",
			Endpoint:    "localhost:4317",
			Timeout:     10 * time.Second,
			SampleRatio: 1.0,
		},
	}
}
