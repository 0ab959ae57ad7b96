package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/mailsift/mailsift/pkg/item"
	"github.com/mailsift/mailsift/pkg/logger"
)

// Recorder receives batch run measurements. Implementations must be safe
// for concurrent use.
type Recorder interface {
	ObserveRun(strategy string, d time.Duration, succeeded, failed, skipped int)
	ObserveRetries(n int)
	SetAdaptiveWorkers(n int)
}

// Processor executes batches of items under a selectable strategy. A
// Processor is safe for concurrent use; each Process call carries its own
// run state.
type Processor struct {
	chunker  item.Chunker
	log      logger.Logger
	recorder Recorder
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithChunker installs the chunker consulted for oversized items.
func WithChunker(c item.Chunker) ProcessorOption {
	return func(p *Processor) { p.chunker = c }
}

// WithLogger overrides the global logger.
func WithLogger(l logger.Logger) ProcessorOption {
	return func(p *Processor) { p.log = l }
}

// WithRecorder installs a metrics recorder.
func WithRecorder(r Recorder) ProcessorOption {
	return func(p *Processor) { p.recorder = r }
}

// NewProcessor creates a batch processor.
func NewProcessor(opts ...ProcessorOption) *Processor {
	p := &Processor{}
	for _, opt := range opts {
		opt(p)
	}
	if p.log == nil {
		p.log = logger.Global()
	}
	return p
}

// Process runs the items through the handler under the configured strategy
// and returns the complete accounting for the run. The returned error is
// non-nil only for unusable options; per-item failures and cancellation are
// reported through the result, which always satisfies
// Succeeded + Failed + Skipped == TotalItems.
func (p *Processor) Process(ctx context.Context, items []item.Item, handler Handler, opts Options, onProgress ProgressFunc) (*Result, error) {
	opts, err := opts.normalized()
	if err != nil {
		return nil, err
	}
	if handler == nil {
		return nil, &ConfigurationError{Field: "handler", Reason: "must not be nil"}
	}

	start := time.Now()
	builder := newResultBuilder(len(items), opts.Strategy)
	tracker := newProgressTracker(len(items), opts.ProgressInterval, onProgress, builder)

	r := &run{
		p:       p,
		opts:    opts,
		builder: builder,
		tracker: tracker,
		handler: handler,
	}
	if opts.RateLimit > 0 {
		burst := int(opts.RateLimit)
		if burst < 1 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	p.log.Debug("batch run starting",
		"strategy", opts.Strategy.String(),
		"items", len(items),
		"max_workers", opts.MaxWorkers,
	)

	tracker.begin()
	if len(items) > 0 {
		switch opts.Strategy {
		case StrategySequential:
			r.runSequential(ctx, items)
		case StrategyParallel:
			r.runWave(ctx, items, opts.MaxWorkers)
		case StrategyStreaming:
			r.runStreaming(ctx, items)
		case StrategyAdaptive:
			r.runAdaptive(ctx, items)
		}
	}
	builder.sampleHeap(heapMB())
	tracker.finish(builder.completedCount())

	res := builder.finalize(start)
	if p.recorder != nil {
		p.recorder.ObserveRun(opts.Strategy.String(), res.Duration, res.Succeeded, res.Failed, res.Skipped)
		p.recorder.ObserveRetries(res.RetryAttempts)
	}
	p.log.Info("batch run finished",
		"strategy", opts.Strategy.String(),
		"total", res.TotalItems,
		"succeeded", res.Succeeded,
		"failed", res.Failed,
		"skipped", res.Skipped,
		"retries", res.RetryAttempts,
		"duration", res.Duration,
	)
	return res, nil
}

// run holds the per-call state shared by the strategy implementations.
type run struct {
	p       *Processor
	opts    Options
	builder *resultBuilder
	tracker *progressTracker
	handler Handler
	limiter *rate.Limiter
}

// runSequential processes items one at a time in input order. A cancelled
// context marks every remaining item skipped.
func (r *run) runSequential(ctx context.Context, items []item.Item) {
	for i, it := range items {
		if ctx.Err() != nil {
			r.skipRemaining(items[i:])
			return
		}
		r.processItem(ctx, it)
	}
}

// processItem expands one item and runs its units inline.
func (r *run) processItem(ctx context.Context, it item.Item) {
	st, units := r.expandItem(ctx, it)
	if st == nil {
		return
	}
	for _, u := range units {
		attempts, err := r.runUnit(ctx, u)
		r.finishUnit(u, st, err, attempts)
	}
}

// runWave processes a slice of items with a bounded worker pool, expanding
// all items up front. Items left incomplete by cancellation are skipped.
func (r *run) runWave(ctx context.Context, items []item.Item, workers int) {
	var (
		states []*itemState
		jobs   []job
	)
	for _, it := range items {
		st, units := r.expandItem(ctx, it)
		if st == nil {
			continue
		}
		states = append(states, st)
		for _, u := range units {
			jobs = append(jobs, job{u: u, st: st})
		}
	}

	pool := newWorkerPool(workers, len(jobs), r.executeJob)
	pool.start(ctx)
	for _, j := range jobs {
		if !pool.submit(ctx, j) {
			break
		}
	}
	pool.close()
	pool.wait()

	r.skipIncomplete(states)
}

// runStreaming overlaps production and consumption: a producer goroutine
// expands items into the pool's bounded channel while workers consume. The
// channel capacity is the pipeline bound, so memory stays proportional to
// StreamBuffer rather than total input size.
func (r *run) runStreaming(ctx context.Context, items []item.Item) {
	states := make([]*itemState, len(items))
	pool := newWorkerPool(r.opts.MaxWorkers, r.opts.StreamBuffer, r.executeJob)
	pool.start(ctx)

	go func() {
		defer pool.close()
		for i, it := range items {
			if ctx.Err() != nil {
				r.skipRemaining(items[i:])
				return
			}
			st, units := r.expandItem(ctx, it)
			if st == nil {
				continue
			}
			states[i] = st
			submitted := true
			for _, u := range units {
				if !pool.submit(ctx, job{u: u, st: st}) {
					submitted = false
					break
				}
			}
			if !submitted {
				r.skipRemaining(items[i+1:])
				return
			}
		}
	}()

	pool.wait()
	r.skipIncomplete(states)
}

// runAdaptive processes items in waves, letting the controller retune the
// worker count and wave size between waves. Sustained memory pressure
// downgrades the remainder of the run to sequential execution.
func (r *run) runAdaptive(ctx context.Context, items []item.Item) {
	ctrl := newAdaptiveController(r.opts)
	for i := 0; i < len(items); {
		if ctx.Err() != nil {
			r.skipRemaining(items[i:])
			return
		}

		end := i + ctrl.BatchSize()
		if end > len(items) {
			end = len(items)
		}
		wave := items[i:end]

		waveStart := time.Now()
		before := r.builder.succeededCount()
		if ctrl.Degraded() {
			r.runSequential(ctx, wave)
		} else {
			r.runWave(ctx, wave, ctrl.Workers())
		}

		heap := heapMB()
		r.builder.sampleHeap(heap)
		ctrl.observe(waveSample{
			succeeded: r.builder.succeededCount() - before,
			duration:  time.Since(waveStart),
			heapMB:    heap,
		})
		if r.p.recorder != nil {
			r.p.recorder.SetAdaptiveWorkers(ctrl.Workers())
		}
		i = end
	}
}

// expandItem validates and expands one item. It returns a nil state when
// the item's outcome was already recorded (invalid item or chunker
// failure).
func (r *run) expandItem(ctx context.Context, it item.Item) (*itemState, []Unit) {
	if err := it.Validate(); err != nil {
		done := r.builder.itemFailed(it.ID, KindPermanent, err.Error())
		r.tracker.itemDone(done)
		return nil, nil
	}
	units, cfe := r.p.expand(ctx, it, r.opts)
	if cfe != nil {
		r.p.log.Warn("chunker rejected item", "item_id", it.ID, "reason", cfe.Reason)
		done := r.builder.itemFailed(it.ID, KindChunkFormat, cfe.Reason)
		r.tracker.itemDone(done)
		return nil, nil
	}
	if len(units) > 1 {
		r.builder.addChunked(len(units))
	}
	return newItemState(it.ID, len(units)), units
}

// executeJob is the worker pool's run function.
func (r *run) executeJob(ctx context.Context, j job) {
	attempts, err := r.runUnit(ctx, j.u)
	r.finishUnit(j.u, j.st, err, attempts)
}

// runUnit invokes the handler with retries for transient failures. The
// returned count is the number of retry attempts consumed.
func (r *run) runUnit(ctx context.Context, u Unit) (retries int, err error) {
	if r.limiter != nil {
		if werr := r.limiter.Wait(ctx); werr != nil {
			return 0, werr
		}
	}
	for attempt := 0; ; attempt++ {
		if cerr := ctx.Err(); cerr != nil {
			return attempt, cerr
		}
		err = r.invoke(ctx, u)
		if err == nil {
			return attempt, nil
		}
		if !IsTransient(err) || attempt >= r.opts.MaxRetries {
			return attempt, err
		}
		select {
		case <-ctx.Done():
			return attempt, err
		case <-time.After(r.opts.RetryBackoff):
		}
	}
}

// invoke calls the handler with panic confinement. A panicking handler
// fails its unit permanently instead of tearing down the run.
func (r *run) invoke(ctx context.Context, u Unit) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = MarkPermanent(fmt.Errorf("handler panicked: %v", rec))
		}
	}()
	return r.handler(ctx, u)
}

// finishUnit folds a unit outcome into its item state and records the item
// outcome when the last unit completes.
func (r *run) finishUnit(u Unit, st *itemState, err error, retries int) {
	r.builder.addRetries(retries)
	msg := ""
	if err != nil {
		msg = err.Error()
		if u.Chunk != nil {
			msg = fmt.Sprintf("chunk %d/%d: %v", u.Chunk.Ordinal+1, u.Chunk.Total, err)
		}
	}
	if last := st.unitFinished(classify(err), msg, err != nil); !last {
		return
	}

	failed, kind, itemMsg := st.outcome()
	var done int
	if failed {
		done = r.builder.itemFailed(st.id, kind, itemMsg)
	} else {
		done = r.builder.itemSucceeded(st.id)
	}
	r.tracker.itemDone(done)
}

// skipRemaining records every item in the slice as skipped.
func (r *run) skipRemaining(items []item.Item) {
	for _, it := range items {
		r.builder.itemSkipped(it.ID, "run cancelled before item was processed")
	}
}

// skipIncomplete records any item whose units did not all finish, which
// happens when workers drain a cancelled run.
func (r *run) skipIncomplete(states []*itemState) {
	for _, st := range states {
		if st != nil && !st.completed() {
			r.builder.itemSkipped(st.id, "run cancelled before item completed")
		}
	}
}

// classify maps a unit error to the recorded error kind.
func classify(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return KindCancelled
	case IsTransient(err):
		return KindTransient
	default:
		var cfe *item.ChunkFormatError
		if errors.As(err, &cfe) {
			return KindChunkFormat
		}
		return KindPermanent
	}
}
