package batch

import (
	"testing"
	"time"
)

func adaptiveOptions() Options {
	return Options{
		Strategy:       StrategyAdaptive,
		MaxWorkers:     4,
		BatchSize:      10,
		MemoryBudgetMB: 100,
		Adaptive: AdaptiveBounds{
			MinWorkers:     1,
			MaxWorkers:     8,
			MinBatchSize:   2,
			MaxBatchSize:   40,
			PressureStreak: 3,
		},
	}
}

func TestAdaptiveController_StaysWithinBounds(t *testing.T) {
	opts := adaptiveOptions()
	c := newAdaptiveController(opts)

	// Feed improving samples so the controller keeps scaling up.
	for i := 0; i < 50; i++ {
		c.observe(waveSample{succeeded: 10 + i, duration: 100 * time.Millisecond, heapMB: 10})
		if w := c.Workers(); w < opts.Adaptive.MinWorkers || w > opts.Adaptive.MaxWorkers {
			t.Fatalf("workers %d escaped bounds on wave %d", w, i)
		}
		if b := c.BatchSize(); b < opts.Adaptive.MinBatchSize || b > opts.Adaptive.MaxBatchSize {
			t.Fatalf("batch size %d escaped bounds on wave %d", b, i)
		}
	}
	if c.Workers() != opts.Adaptive.MaxWorkers {
		t.Errorf("expected scale-up to the upper bound, got %d workers", c.Workers())
	}
}

func TestAdaptiveController_ReversesOnWorseScore(t *testing.T) {
	c := newAdaptiveController(adaptiveOptions())

	c.observe(waveSample{succeeded: 100, duration: time.Second, heapMB: 10})
	before := c.Workers()
	// A much worse wave should reverse the scaling direction.
	c.observe(waveSample{succeeded: 1, duration: time.Second, heapMB: 10})
	c.observe(waveSample{succeeded: 1, duration: time.Second, heapMB: 10})
	if c.Workers() >= before+2 {
		t.Errorf("expected direction reversal after score drop, workers went %d -> %d", before, c.Workers())
	}
}

func TestAdaptiveController_DegradesAfterPressureStreak(t *testing.T) {
	c := newAdaptiveController(adaptiveOptions())

	over := waveSample{succeeded: 10, duration: time.Second, heapMB: 150}
	c.observe(over)
	c.observe(over)
	if c.Degraded() {
		t.Fatal("degraded before the streak threshold")
	}
	c.observe(over)
	if !c.Degraded() {
		t.Fatal("expected degrade after three consecutive over-budget waves")
	}
	if c.Workers() != 1 {
		t.Errorf("expected sequential execution when degraded, got %d workers", c.Workers())
	}

	// Degrade is sticky for the rest of the run.
	c.observe(waveSample{succeeded: 10, duration: time.Second, heapMB: 5})
	if !c.Degraded() {
		t.Error("expected degrade to persist")
	}
}

func TestAdaptiveController_StreakResetsUnderBudget(t *testing.T) {
	c := newAdaptiveController(adaptiveOptions())

	over := waveSample{succeeded: 10, duration: time.Second, heapMB: 150}
	under := waveSample{succeeded: 10, duration: time.Second, heapMB: 50}
	c.observe(over)
	c.observe(over)
	c.observe(under)
	c.observe(over)
	c.observe(over)
	if c.Degraded() {
		t.Error("expected the under-budget wave to reset the streak")
	}
}
