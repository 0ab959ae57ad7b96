package batch

import (
	"fmt"
	"time"

	"github.com/mailsift/mailsift/config"
)

// Strategy is the execution policy for a batch run.
type Strategy int

const (
	// StrategySequential processes items one at a time in input order.
	StrategySequential Strategy = iota
	// StrategyParallel processes items with a bounded worker pool.
	StrategyParallel
	// StrategyStreaming overlaps chunk production and consumption through
	// a bounded pipeline.
	StrategyStreaming
	// StrategyAdaptive tunes worker count and batch size from observed
	// throughput and memory usage.
	StrategyAdaptive
)

// String returns the string representation of the strategy.
func (s Strategy) String() string {
	switch s {
	case StrategySequential:
		return "sequential"
	case StrategyParallel:
		return "parallel"
	case StrategyStreaming:
		return "streaming"
	case StrategyAdaptive:
		return "adaptive"
	default:
		return "unknown"
	}
}

// ParseStrategy parses a strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "sequential":
		return StrategySequential, nil
	case "parallel":
		return StrategyParallel, nil
	case "streaming":
		return StrategyStreaming, nil
	case "adaptive":
		return StrategyAdaptive, nil
	default:
		return StrategySequential, fmt.Errorf("unknown strategy: %q", s)
	}
}

// AdaptiveBounds limits the adaptive controller's tuning range.
type AdaptiveBounds struct {
	MinWorkers     int
	MaxWorkers     int
	MinBatchSize   int
	MaxBatchSize   int
	PressureStreak int
}

// Options configures one Process call. Zero-valued fields take package
// defaults, except MaxWorkers, which must be explicit for concurrent
// strategies.
type Options struct {
	// Strategy selects the execution policy.
	Strategy Strategy

	// BatchSize is the grouping granularity for dispatch.
	BatchSize int

	// MaxWorkers is the concurrency ceiling for parallel, streaming and
	// adaptive strategies. Ignored by sequential.
	MaxWorkers int

	// ChunkSizeThreshold is the item size in bytes above which the
	// chunker is consulted. Zero disables chunking.
	ChunkSizeThreshold int

	// MaxRetries is the per-item retry budget for transient failures.
	MaxRetries int

	// RetryBackoff is the delay between retry attempts.
	RetryBackoff time.Duration

	// ProgressInterval emits one progress event every N completed items.
	ProgressInterval int

	// MemoryBudgetMB is the heap budget consulted by the adaptive
	// strategy. Zero disables pressure-based downgrade.
	MemoryBudgetMB int

	// RateLimit throttles unit dispatch (units/second, 0 = unlimited).
	RateLimit float64

	// StreamBuffer is the bounded pipeline capacity for streaming runs.
	StreamBuffer int

	// Adaptive bounds the adaptive controller. Zero values take defaults.
	Adaptive AdaptiveBounds
}

// Package defaults, applied to zero-valued option fields.
const (
	DefaultBatchSize        = 50
	DefaultProgressInterval = 10
	DefaultRetryBackoff     = 200 * time.Millisecond
	DefaultStreamBuffer     = 64
)

// OptionsFromConfig builds run options from loaded configuration.
func OptionsFromConfig(bc config.BatchConfig, ac config.AdaptiveConfig) Options {
	return Options{
		BatchSize:          bc.BatchSize,
		MaxWorkers:         bc.MaxWorkers,
		ChunkSizeThreshold: bc.ChunkSizeThreshold,
		MaxRetries:         bc.MaxRetries,
		RetryBackoff:       bc.RetryBackoff,
		ProgressInterval:   bc.ProgressInterval,
		MemoryBudgetMB:     bc.MemoryBudgetMB,
		RateLimit:          bc.RateLimit,
		StreamBuffer:       bc.StreamBuffer,
		Adaptive: AdaptiveBounds{
			MinWorkers:     ac.MinWorkers,
			MaxWorkers:     ac.MaxWorkers,
			MinBatchSize:   ac.MinBatchSize,
			MaxBatchSize:   ac.MaxBatchSize,
			PressureStreak: ac.PressureStreak,
		},
	}
}

// normalized returns a copy with defaults applied, or a ConfigurationError
// when the options cannot be used with the selected strategy.
func (o Options) normalized() (Options, error) {
	if o.BatchSize < 0 {
		return o, &ConfigurationError{Field: "batch_size", Reason: "cannot be negative"}
	}
	if o.BatchSize == 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.MaxRetries < 0 {
		return o, &ConfigurationError{Field: "max_retries", Reason: "cannot be negative"}
	}
	if o.RetryBackoff < 0 {
		return o, &ConfigurationError{Field: "retry_backoff", Reason: "cannot be negative"}
	}
	if o.RetryBackoff == 0 {
		o.RetryBackoff = DefaultRetryBackoff
	}
	if o.ChunkSizeThreshold < 0 {
		return o, &ConfigurationError{Field: "chunk_size_threshold", Reason: "cannot be negative"}
	}
	if o.ProgressInterval < 0 {
		return o, &ConfigurationError{Field: "progress_interval", Reason: "cannot be negative"}
	}
	if o.ProgressInterval == 0 {
		o.ProgressInterval = DefaultProgressInterval
	}
	if o.RateLimit < 0 {
		return o, &ConfigurationError{Field: "rate_limit", Reason: "cannot be negative"}
	}
	if o.StreamBuffer < 0 {
		return o, &ConfigurationError{Field: "stream_buffer", Reason: "cannot be negative"}
	}
	if o.StreamBuffer == 0 {
		o.StreamBuffer = DefaultStreamBuffer
	}

	switch o.Strategy {
	case StrategySequential:
		// MaxWorkers is ignored.
	case StrategyParallel, StrategyStreaming:
		if o.MaxWorkers <= 0 {
			return o, &ConfigurationError{
				Field:  "max_workers",
				Reason: fmt.Sprintf("must be positive for %s strategy, got %d", o.Strategy, o.MaxWorkers),
			}
		}
	case StrategyAdaptive:
		if o.MaxWorkers <= 0 {
			return o, &ConfigurationError{
				Field:  "max_workers",
				Reason: fmt.Sprintf("must be positive for adaptive strategy, got %d", o.MaxWorkers),
			}
		}
		if o.Adaptive.MinWorkers <= 0 {
			o.Adaptive.MinWorkers = 1
		}
		if o.Adaptive.MaxWorkers <= 0 {
			o.Adaptive.MaxWorkers = o.MaxWorkers
		}
		if o.Adaptive.MinBatchSize <= 0 {
			o.Adaptive.MinBatchSize = 1
		}
		if o.Adaptive.MaxBatchSize <= 0 {
			o.Adaptive.MaxBatchSize = o.BatchSize
		}
		if o.Adaptive.PressureStreak <= 0 {
			o.Adaptive.PressureStreak = 3
		}
		if o.Adaptive.MinWorkers > o.Adaptive.MaxWorkers {
			return o, &ConfigurationError{
				Field:  "adaptive.min_workers",
				Reason: fmt.Sprintf("lower bound %d exceeds upper bound %d", o.Adaptive.MinWorkers, o.Adaptive.MaxWorkers),
			}
		}
		if o.Adaptive.MinBatchSize > o.Adaptive.MaxBatchSize {
			return o, &ConfigurationError{
				Field:  "adaptive.min_batch_size",
				Reason: fmt.Sprintf("lower bound %d exceeds upper bound %d", o.Adaptive.MinBatchSize, o.Adaptive.MaxBatchSize),
			}
		}
	default:
		return o, &ConfigurationError{Field: "strategy", Reason: fmt.Sprintf("unknown strategy %d", o.Strategy)}
	}

	return o, nil
}
