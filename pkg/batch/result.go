package batch

import (
	"sync"
	"time"
)

// ErrorKind classifies a recorded per-item failure.
type ErrorKind string

const (
	// KindTransient marks an item that exhausted its retry budget.
	KindTransient ErrorKind = "transient"
	// KindPermanent marks an item that failed without retry.
	KindPermanent ErrorKind = "permanent"
	// KindChunkFormat marks an item whose chunker response was malformed.
	KindChunkFormat ErrorKind = "chunk_format"
	// KindCancelled marks an item skipped because the run was cancelled.
	KindCancelled ErrorKind = "cancelled"
)

// ItemError records one failed or skipped item with enough detail for the
// caller to retry it selectively.
type ItemError struct {
	ItemID  string
	Kind    ErrorKind
	Message string
}

// Result is the finalized outcome of one Process call.
// Invariant: Succeeded + Failed + Skipped == TotalItems.
type Result struct {
	TotalItems int
	Succeeded  int
	Failed     int
	Skipped    int

	Strategy       Strategy
	Duration       time.Duration
	Throughput     float64 // successfully processed items per second
	RetryAttempts  int
	PeakHeapMB     float64
	ChunkedItems   int
	ChunksProduced int

	// Errors lists failed and skipped items in the order their outcomes
	// were recorded.
	Errors []ItemError

	// Warnings carries non-fatal observations, e.g. a panicking progress
	// callback.
	Warnings []string
}

// Complete reports whether every input item has a recorded outcome.
func (r *Result) Complete() bool {
	return r.Succeeded+r.Failed+r.Skipped == r.TotalItems
}

// resultBuilder accumulates the run outcome. All mutations go through the
// single mutex so no worker observes a partially-updated aggregate.
type resultBuilder struct {
	mu  sync.Mutex
	res Result
}

func newResultBuilder(total int, strategy Strategy) *resultBuilder {
	return &resultBuilder{res: Result{TotalItems: total, Strategy: strategy}}
}

// itemSucceeded records a successful item and returns the number of items
// with a recorded outcome so far.
func (b *resultBuilder) itemSucceeded(string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.res.Succeeded++
	return b.res.Succeeded + b.res.Failed
}

// itemFailed records a failed item and returns the number of items with a
// recorded outcome so far.
func (b *resultBuilder) itemFailed(id string, kind ErrorKind, msg string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.res.Failed++
	b.res.Errors = append(b.res.Errors, ItemError{ItemID: id, Kind: kind, Message: msg})
	return b.res.Succeeded + b.res.Failed
}

// itemSkipped records an item that was never processed.
func (b *resultBuilder) itemSkipped(id string, msg string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.res.Skipped++
	b.res.Errors = append(b.res.Errors, ItemError{ItemID: id, Kind: KindCancelled, Message: msg})
}

// succeededCount returns the number of successful items recorded so far.
func (b *resultBuilder) succeededCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.res.Succeeded
}

// completedCount returns the number of items with any recorded outcome,
// skips included.
func (b *resultBuilder) completedCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.res.Succeeded + b.res.Failed + b.res.Skipped
}

func (b *resultBuilder) addRetries(n int) {
	if n == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.res.RetryAttempts += n
}

func (b *resultBuilder) addChunked(chunks int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.res.ChunkedItems++
	b.res.ChunksProduced += chunks
}

func (b *resultBuilder) warn(msg string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.res.Warnings = append(b.res.Warnings, msg)
}

func (b *resultBuilder) sampleHeap(heapMB float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if heapMB > b.res.PeakHeapMB {
		b.res.PeakHeapMB = heapMB
	}
}

// finalize freezes and returns the result. The builder must not be used
// afterwards.
func (b *resultBuilder) finalize(start time.Time) *Result {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.res.Duration = time.Since(start)
	if secs := b.res.Duration.Seconds(); secs > 0 {
		b.res.Throughput = float64(b.res.Succeeded) / secs
	}
	res := b.res
	res.Errors = append([]ItemError(nil), b.res.Errors...)
	res.Warnings = append([]string(nil), b.res.Warnings...)
	return &res
}
