package batch

import (
	"fmt"
	"sync"
	"time"
)

// Event is an immutable progress snapshot handed to the caller's callback.
// The engine never retains an event after dispatch.
type Event struct {
	// Done is the number of items with a recorded outcome.
	Done int

	// Total is the number of items in the batch.
	Total int

	// Elapsed is the time since the run started.
	Elapsed time.Duration

	// Throughput is the smoothed processing rate in items per second.
	Throughput float64

	// ETA estimates the remaining run time. Zero when unknown.
	ETA time.Duration
}

// ProgressFunc receives progress events. It is called synchronously and
// must tolerate concurrent batch completion; the engine holds no internal
// lock during the call.
type ProgressFunc func(Event)

// ewmaAlpha is the smoothing factor for the throughput estimate.
const ewmaAlpha = 0.3

// progressTracker emits one event at start, one per interval boundary and
// one at completion, so a run of N items with interval 1 emits N+2 events.
type progressTracker struct {
	mu       sync.Mutex
	total    int
	interval int
	start    time.Time
	ewma     float64
	lastTime time.Time
	lastDone int

	cb      ProgressFunc
	builder *resultBuilder
}

func newProgressTracker(total, interval int, cb ProgressFunc, builder *resultBuilder) *progressTracker {
	now := time.Now()
	return &progressTracker{
		total:    total,
		interval: interval,
		start:    now,
		lastTime: now,
		cb:       cb,
		builder:  builder,
	}
}

// begin emits the unconditional start event.
func (t *progressTracker) begin() {
	if t.cb == nil {
		return
	}
	t.emit(0)
}

// itemDone emits an event when done crosses an interval boundary.
func (t *progressTracker) itemDone(done int) {
	if t.cb == nil {
		return
	}
	if done%t.interval != 0 {
		return
	}
	t.emit(done)
}

// finish emits the unconditional completion event.
func (t *progressTracker) finish(done int) {
	if t.cb == nil {
		return
	}
	t.emit(done)
}

// emit computes the snapshot under the tracker lock, then releases it
// before invoking the callback.
func (t *progressTracker) emit(done int) {
	t.mu.Lock()
	now := time.Now()
	elapsed := now.Sub(t.start)

	if done > t.lastDone {
		window := now.Sub(t.lastTime).Seconds()
		if window > 0 {
			sample := float64(done-t.lastDone) / window
			if t.ewma == 0 {
				t.ewma = sample
			} else {
				t.ewma = ewmaAlpha*sample + (1-ewmaAlpha)*t.ewma
			}
		}
		t.lastDone = done
		t.lastTime = now
	}

	ev := Event{
		Done:       done,
		Total:      t.total,
		Elapsed:    elapsed,
		Throughput: t.ewma,
	}
	if t.ewma > 0 && done < t.total {
		ev.ETA = time.Duration(float64(t.total-done) / t.ewma * float64(time.Second))
	}
	t.mu.Unlock()

	t.dispatch(ev)
}

// dispatch invokes the callback, converting a panic into a result warning
// so a failing callback cannot corrupt batch state.
func (t *progressTracker) dispatch(ev Event) {
	defer func() {
		if r := recover(); r != nil && t.builder != nil {
			t.builder.warn(fmt.Sprintf("progress callback panicked: %v", r))
		}
	}()
	t.cb(ev)
}
