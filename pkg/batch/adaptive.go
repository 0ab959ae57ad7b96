package batch

import (
	"runtime"
	"time"
)

// waveSample is one observation window for the adaptive controller.
type waveSample struct {
	succeeded int
	duration  time.Duration
	heapMB    float64
}

// adaptiveController tunes worker count and batch size between waves using
// simple hill climbing on an efficiency score: successful items per second
// normalized by heap pressure,
//
//	score = succ/sec / (1 + heapMB/budgetMB)
//
// Both knobs stay inside the configured [min, max] bounds at all times.
// Sustained heap usage above the budget degrades the remainder of the run
// to sequential execution.
type adaptiveController struct {
	bounds   AdaptiveBounds
	budgetMB float64

	workers   int
	batchSize int

	lastScore  float64
	direction  int // +1 scale up, -1 scale down
	overBudget int
	degraded   bool
}

func newAdaptiveController(opts Options) *adaptiveController {
	c := &adaptiveController{
		bounds:    opts.Adaptive,
		budgetMB:  float64(opts.MemoryBudgetMB),
		workers:   opts.MaxWorkers,
		batchSize: opts.BatchSize,
		direction: 1,
	}
	c.clamp()
	return c
}

// Workers returns the worker count for the next wave.
func (c *adaptiveController) Workers() int {
	if c.degraded {
		return 1
	}
	return c.workers
}

// BatchSize returns the wave size for the next wave.
func (c *adaptiveController) BatchSize() int {
	if c.degraded {
		return c.bounds.MinBatchSize
	}
	return c.batchSize
}

// Degraded reports whether the run has downgraded to sequential execution.
func (c *adaptiveController) Degraded() bool {
	return c.degraded
}

// observe folds one wave's sample into the controller and adjusts the
// knobs for the next wave.
func (c *adaptiveController) observe(s waveSample) {
	if c.budgetMB > 0 {
		if s.heapMB > c.budgetMB {
			c.overBudget++
			if c.overBudget >= c.bounds.PressureStreak {
				c.degraded = true
			}
		} else {
			c.overBudget = 0
		}
	}
	if c.degraded {
		return
	}

	score := c.score(s)
	if c.lastScore > 0 && score < c.lastScore {
		// The last adjustment hurt; reverse course.
		c.direction = -c.direction
	}
	c.lastScore = score

	c.workers += c.direction
	c.batchSize += c.direction * maxInt(1, c.batchSize/4)
	c.clamp()
}

func (c *adaptiveController) score(s waveSample) float64 {
	secs := s.duration.Seconds()
	if secs <= 0 {
		return 0
	}
	rate := float64(s.succeeded) / secs
	if c.budgetMB <= 0 {
		return rate
	}
	return rate / (1 + s.heapMB/c.budgetMB)
}

func (c *adaptiveController) clamp() {
	if c.workers < c.bounds.MinWorkers {
		c.workers = c.bounds.MinWorkers
	}
	if c.workers > c.bounds.MaxWorkers {
		c.workers = c.bounds.MaxWorkers
	}
	if c.batchSize < c.bounds.MinBatchSize {
		c.batchSize = c.bounds.MinBatchSize
	}
	if c.batchSize > c.bounds.MaxBatchSize {
		c.batchSize = c.bounds.MaxBatchSize
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// heapMB samples the current heap allocation in megabytes.
func heapMB() float64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return float64(ms.HeapAlloc) / (1024 * 1024)
}
