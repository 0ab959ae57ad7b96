package batch

import (
	"context"
	"sync"
	"sync/atomic"
)

// job pairs a schedulable unit with its parent item's fold state.
type job struct {
	u  Unit
	st *itemState
}

// workerPool executes jobs with a fixed number of goroutines reading from a
// shared channel. The channel buffer doubles as the streaming strategy's
// bounded pipeline: submission blocks when the buffer is full, so upstream
// production backs off instead of growing unbounded.
type workerPool struct {
	workers int
	jobs    chan job
	runFn   func(context.Context, job)

	wg        sync.WaitGroup
	processed atomic.Int64
}

func newWorkerPool(workers, buffer int, runFn func(context.Context, job)) *workerPool {
	return &workerPool{
		workers: workers,
		jobs:    make(chan job, buffer),
		runFn:   runFn,
	}
}

// start launches the worker goroutines. Workers exit when the job channel
// is closed; a cancelled context makes them drain without processing.
func (p *workerPool) start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for j := range p.jobs {
				if ctx.Err() != nil {
					// Drain without processing; unfinished items are
					// recorded as skipped by the caller.
					continue
				}
				p.runFn(ctx, j)
				p.processed.Add(1)
			}
		}()
	}
}

// submit enqueues a job, blocking for backpressure. Returns false when the
// context is done.
func (p *workerPool) submit(ctx context.Context, j job) bool {
	select {
	case p.jobs <- j:
		return true
	case <-ctx.Done():
		return false
	}
}

// close signals that no more jobs will be submitted.
func (p *workerPool) close() {
	close(p.jobs)
}

// wait blocks until all workers have exited.
func (p *workerPool) wait() {
	p.wg.Wait()
}
