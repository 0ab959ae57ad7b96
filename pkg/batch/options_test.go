package batch

import (
	"errors"
	"testing"
)

func TestOptions_NormalizedDefaults(t *testing.T) {
	got, err := Options{Strategy: StrategySequential}.normalized()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.BatchSize != DefaultBatchSize {
		t.Errorf("expected default batch size %d, got %d", DefaultBatchSize, got.BatchSize)
	}
	if got.ProgressInterval != DefaultProgressInterval {
		t.Errorf("expected default progress interval %d, got %d", DefaultProgressInterval, got.ProgressInterval)
	}
	if got.RetryBackoff != DefaultRetryBackoff {
		t.Errorf("expected default retry backoff %v, got %v", DefaultRetryBackoff, got.RetryBackoff)
	}
	if got.StreamBuffer != DefaultStreamBuffer {
		t.Errorf("expected default stream buffer %d, got %d", DefaultStreamBuffer, got.StreamBuffer)
	}
}

func TestOptions_NormalizedRejectsNegatives(t *testing.T) {
	tests := []struct {
		name  string
		opts  Options
		field string
	}{
		{"negative batch size", Options{BatchSize: -1}, "batch_size"},
		{"negative retries", Options{MaxRetries: -1}, "max_retries"},
		{"negative backoff", Options{RetryBackoff: -1}, "retry_backoff"},
		{"negative threshold", Options{ChunkSizeThreshold: -1}, "chunk_size_threshold"},
		{"negative interval", Options{ProgressInterval: -1}, "progress_interval"},
		{"negative rate", Options{RateLimit: -1}, "rate_limit"},
		{"negative buffer", Options{StreamBuffer: -1}, "stream_buffer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.opts.normalized()
			var ce *ConfigurationError
			if !errors.As(err, &ce) {
				t.Fatalf("expected ConfigurationError, got %v", err)
			}
			if ce.Field != tt.field {
				t.Errorf("expected field %q, got %q", tt.field, ce.Field)
			}
		})
	}
}

func TestOptions_SequentialIgnoresWorkers(t *testing.T) {
	if _, err := (Options{Strategy: StrategySequential, MaxWorkers: 0}).normalized(); err != nil {
		t.Errorf("sequential should not require workers: %v", err)
	}
}

func TestOptions_AdaptiveBoundsFilled(t *testing.T) {
	got, err := Options{Strategy: StrategyAdaptive, MaxWorkers: 6, BatchSize: 25}.normalized()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Adaptive.MinWorkers != 1 || got.Adaptive.MaxWorkers != 6 {
		t.Errorf("expected worker bounds [1, 6], got [%d, %d]", got.Adaptive.MinWorkers, got.Adaptive.MaxWorkers)
	}
	if got.Adaptive.MinBatchSize != 1 || got.Adaptive.MaxBatchSize != 25 {
		t.Errorf("expected batch bounds [1, 25], got [%d, %d]", got.Adaptive.MinBatchSize, got.Adaptive.MaxBatchSize)
	}
	if got.Adaptive.PressureStreak != 3 {
		t.Errorf("expected default pressure streak 3, got %d", got.Adaptive.PressureStreak)
	}
}

func TestOptions_AdaptiveInvertedBounds(t *testing.T) {
	opts := Options{
		Strategy:   StrategyAdaptive,
		MaxWorkers: 4,
		Adaptive:   AdaptiveBounds{MinWorkers: 8, MaxWorkers: 2},
	}
	_, err := opts.normalized()
	var ce *ConfigurationError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestParseStrategy(t *testing.T) {
	for _, s := range []Strategy{StrategySequential, StrategyParallel, StrategyStreaming, StrategyAdaptive} {
		got, err := ParseStrategy(s.String())
		if err != nil {
			t.Fatalf("round trip failed for %s: %v", s, err)
		}
		if got != s {
			t.Errorf("expected %v, got %v", s, got)
		}
	}
	if _, err := ParseStrategy("bogus"); err == nil {
		t.Error("expected error for unknown strategy")
	}
}
