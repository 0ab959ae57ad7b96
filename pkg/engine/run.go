package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mailsift/mailsift/pkg/archive"
	"github.com/mailsift/mailsift/pkg/dag"
)

// RunHandle is the caller's reference to a submitted run.
type RunHandle struct {
	// RunID uniquely identifies this execution.
	RunID string

	// WorkflowID names the workflow definition being executed.
	WorkflowID string

	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	result *RunResult
}

// Wait blocks until the run reaches a terminal status or the caller's
// context is done. The run itself keeps going when the wait is abandoned.
func (h *RunHandle) Wait(ctx context.Context) (*RunResult, error) {
	select {
	case <-h.done:
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cancel requests cooperative cancellation. Running tasks stop at their
// next checkpoint; completed task results are preserved.
func (h *RunHandle) Cancel() {
	h.cancel()
}

func (h *RunHandle) complete(res *RunResult) {
	h.mu.Lock()
	h.result = res
	h.mu.Unlock()
	close(h.done)
}

// Submit starts executing a registered workflow and returns immediately
// with a handle. The run proceeds independently of the submission context.
func (e *Engine) Submit(ctx context.Context, workflowID string) (*RunHandle, error) {
	if !e.isRunning() {
		return nil, &NotRunningError{}
	}

	e.mu.RLock()
	wf, ok := e.workflows[workflowID]
	plan := e.plans[workflowID]
	order := e.orders[workflowID]
	e.mu.RUnlock()
	if !ok {
		return nil, &WorkflowNotFoundError{ID: workflowID}
	}

	runCtx, cancel := context.WithCancel(context.Background())
	h := &RunHandle{
		RunID:      uuid.New().String(),
		WorkflowID: workflowID,
		cancel:     cancel,
		done:       make(chan struct{}),
	}

	e.runMu.Lock()
	e.runs[h.RunID] = h
	e.runMu.Unlock()
	e.runWG.Add(1)
	e.metrics.IncActiveRuns()

	e.log.Info("run submitted", "run_id", h.RunID, "workflow_id", workflowID, "tasks", plan.TotalTasks)

	go e.executeRun(runCtx, h, wf, plan, order)
	return h, nil
}

// Run is a convenience wrapper: submit and wait.
func (e *Engine) Run(ctx context.Context, workflowID string) (*RunResult, error) {
	h, err := e.Submit(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	return h.Wait(ctx)
}

// runExecution carries the mutable state of one run through the scheduler.
type runExecution struct {
	engine  *Engine
	handle  *RunHandle
	wf      *Workflow
	plan    *dag.ExecutionPlan
	order   []string
	tracker *stateTracker

	// haltDispatch is set by the stop strategy on the first failure and
	// by timeout or cancellation.
	haltDispatch atomic.Bool
	failureSeen  atomic.Bool
}

func (e *Engine) executeRun(ctx context.Context, h *RunHandle, wf *Workflow, plan *dag.ExecutionPlan, order []string) {
	defer e.runWG.Done()

	ctx, span := runTracer().Start(ctx, spanRunExecute)
	span.SetAttributes(
		attribute.String("run.id", h.RunID),
		attribute.String("workflow.id", wf.ID),
	)
	defer span.End()

	timeout := wf.GlobalTimeout
	if timeout == 0 {
		timeout = e.cfg.DefaultRunTimeout
	}
	runCtx := ctx
	var timeoutCancel context.CancelFunc
	if timeout > 0 {
		runCtx, timeoutCancel = context.WithTimeout(ctx, timeout)
		defer timeoutCancel()
	}

	stages := make(map[string]string, len(wf.Tasks))
	for _, t := range wf.Tasks {
		stages[t.ID] = t.Stage
	}
	tracker := newStateTracker(order, stages)

	exec := &runExecution{
		engine:  e,
		handle:  h,
		wf:      wf,
		plan:    plan,
		order:   order,
		tracker: tracker,
	}

	start := time.Now()
	if err := tracker.setRunStatus(RunRunning); err != nil {
		e.log.Error("run transition rejected", "run_id", h.RunID, "error", err)
	}

	if wf.AllowParallel {
		exec.scheduleParallel(runCtx)
	} else {
		exec.scheduleSerial(runCtx)
	}

	// Tasks never dispatched end as Skipped, whatever stopped dispatch.
	skipReason := exec.skipReason(runCtx)
	for _, id := range order {
		tracker.setTaskSkipped(id, skipReason)
	}

	res := exec.finalize(runCtx, start)
	e.recordRunFinished(res)
	e.archiveRun(res)

	// Unregister before completing the handle so a Wait followed by Stats
	// never observes this run as still active.
	e.runMu.Lock()
	delete(e.runs, h.RunID)
	e.runMu.Unlock()
	e.metrics.DecActiveRuns()

	e.log.Info("run finished",
		"run_id", h.RunID,
		"workflow_id", wf.ID,
		"status", string(res.Status),
		"succeeded", res.Succeeded,
		"failed", res.Failed,
		"skipped", res.Skipped,
		"duration", res.Duration,
	)
	h.complete(res)
}

// scheduleSerial executes tasks one at a time in stable topological order.
func (x *runExecution) scheduleSerial(ctx context.Context) {
	for _, taskID := range x.order {
		if ctx.Err() != nil || x.haltDispatch.Load() {
			return
		}
		if !x.depsSatisfied(taskID) {
			continue // already marked skipped
		}
		if !x.tracker.setTaskStatus(taskID, TaskReady) {
			continue
		}
		x.runTask(ctx, taskID)
	}
}

// scheduleParallel dispatches every ready task concurrently, bounded by the
// engine-wide semaphore. Readiness is re-evaluated each time a task
// finishes, so a task becomes ready exactly once and is dispatched at most
// once.
func (x *runExecution) scheduleParallel(ctx context.Context) {
	var wg sync.WaitGroup
	// Each launched task posts exactly one completion.
	done := make(chan struct{}, len(x.order))
	inflight := 0

	for {
		launched, skippedAny := x.dispatchReady(ctx, &wg, done)
		inflight += launched

		if inflight == 0 {
			if skippedAny {
				// A skip can unblock transitive skips; sweep again.
				continue
			}
			break
		}

		select {
		case <-done:
			inflight--
		case <-ctx.Done():
			// Cooperative: wait for in-flight tasks to notice.
			for inflight > 0 {
				<-done
				inflight--
			}
		}
	}
	wg.Wait()
}

// dispatchReady sweeps pending tasks once: tasks with a failed or skipped
// dependency are marked Skipped, tasks whose dependencies all succeeded
// are launched. Returns the number launched and whether any were skipped.
func (x *runExecution) dispatchReady(ctx context.Context, wg *sync.WaitGroup, done chan<- struct{}) (launched int, skippedAny bool) {
	if ctx.Err() != nil || x.haltDispatch.Load() {
		return 0, false
	}
	for _, taskID := range x.order {
		st, _ := x.tracker.taskStatus(taskID)
		if st != TaskPending {
			continue
		}
		if !x.depsSatisfied(taskID) {
			skippedAny = true
			continue
		}
		if !x.allDepsSucceeded(taskID) {
			continue // still waiting on running dependencies
		}
		if !x.tracker.setTaskStatus(taskID, TaskReady) {
			continue
		}
		launched++
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			x.runTask(ctx, id)
			done <- struct{}{}
		}(taskID)
	}
	return launched, skippedAny
}

// depsSatisfied checks dependencies. When a dependency failed or was
// skipped, the task is marked Skipped and false is returned. Returns true
// while dependencies are still in flight.
func (x *runExecution) depsSatisfied(taskID string) bool {
	task, ok := x.plan.GetTask(taskID)
	if !ok {
		return false
	}
	for _, depID := range task.Deps {
		st, _ := x.tracker.taskStatus(depID)
		if st == TaskFailed || st == TaskSkipped {
			x.tracker.setTaskSkipped(taskID, &DependencyUnsatisfiedError{TaskID: taskID, DepID: depID})
			return false
		}
	}
	return true
}

// allDepsSucceeded reports whether every dependency reached TaskSucceeded.
func (x *runExecution) allDepsSucceeded(taskID string) bool {
	task, ok := x.plan.GetTask(taskID)
	if !ok {
		return false
	}
	for _, depID := range task.Deps {
		st, _ := x.tracker.taskStatus(depID)
		if st != TaskSucceeded {
			return false
		}
	}
	return true
}

// runTask acquires a concurrency slot and executes one task with retries
// and its per-task timeout.
func (x *runExecution) runTask(ctx context.Context, taskID string) {
	e := x.engine

	select {
	case e.sem <- struct{}{}:
		defer func() { <-e.sem }()
	case <-ctx.Done():
		x.tracker.setTaskSkipped(taskID, x.skipReason(ctx))
		return
	}

	task, _ := x.plan.GetTask(taskID)
	e.mu.RLock()
	executor := e.executors[task.Stage]
	e.mu.RUnlock()

	if !x.tracker.setTaskStatus(taskID, TaskRunning) {
		return
	}

	ctx, span := runTracer().Start(ctx, spanTaskRun)
	span.SetAttributes(
		attribute.String("task.id", taskID),
		attribute.String("task.stage", task.Stage),
	)
	defer span.End()

	start := time.Now()
	retries, err := x.executeWithRetry(ctx, executor, task)
	duration := time.Since(start)

	if err == nil {
		x.tracker.setTaskStatus(taskID, TaskSucceeded)
		x.tracker.setTaskRetries(taskID, retries)
		e.metrics.RecordTaskExecution(string(TaskSucceeded), duration)
		e.log.Debug("task succeeded", "run_id", x.handle.RunID, "task_id", taskID, "duration", duration)
		return
	}

	x.tracker.setTaskFailed(taskID, &TaskExecutionError{TaskID: taskID, Retries: retries, Cause: err}, retries)
	e.metrics.RecordTaskExecution(string(TaskFailed), duration)
	e.log.Warn("task failed", "run_id", x.handle.RunID, "task_id", taskID, "error", err)

	x.failureSeen.Store(true)
	if x.wf.failureStrategy() == FailureStop {
		x.haltDispatch.Store(true)
	}
}

// executeWithRetry drives the executor with a fixed backoff between
// attempts and the task's timeout on each attempt. It reports how many
// retries were consumed alongside the final error.
func (x *runExecution) executeWithRetry(ctx context.Context, executor Executor, task *dag.Task) (int, error) {
	e := x.engine
	timeout := task.Timeout
	if timeout == 0 {
		timeout = e.cfg.DefaultTaskTimeout
	}

	in := TaskInput{
		RunID:      x.handle.RunID,
		WorkflowID: x.wf.ID,
		Task:       task,
	}

	maxAttempts := task.Retries + 1
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			e.metrics.RecordTaskRetry()
			select {
			case <-ctx.Done():
				return attempt - 1, ctx.Err()
			case <-time.After(100 * time.Millisecond):
			}
		}

		attemptCtx := ctx
		var cancel context.CancelFunc
		if timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, timeout)
		}
		lastErr = x.invokeExecutor(attemptCtx, executor, in)
		if cancel != nil {
			cancel()
		}

		if lastErr == nil {
			if ctx.Err() != nil {
				return attempt, ctx.Err()
			}
			return attempt, nil
		}
		if ctx.Err() != nil {
			// The run was cancelled or timed out; retrying is pointless.
			return attempt, lastErr
		}
	}
	return task.Retries, lastErr
}

// invokeExecutor runs the executor with panic confinement.
func (x *runExecution) invokeExecutor(ctx context.Context, executor Executor, in TaskInput) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &TaskExecutionError{
				TaskID: in.Task.ID,
				Cause:  errors.New("executor panicked"),
			}
			x.engine.log.Error("executor panicked", "task_id", in.Task.ID, "panic", rec)
		}
	}()
	return executor.Execute(ctx, in)
}

// skipReason names why undispatched tasks were skipped.
func (x *runExecution) skipReason(ctx context.Context) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return &WorkflowTimeoutError{RunID: x.handle.RunID, Timeout: x.wf.GlobalTimeout.String()}
	case ctx.Err() != nil:
		return context.Canceled
	default:
		return errors.New("dispatch halted after task failure")
	}
}

// finalize computes the terminal run status and builds the result.
func (x *runExecution) finalize(ctx context.Context, start time.Time) *RunResult {
	succeeded, failed, skipped := x.tracker.counts()

	var status RunStatus
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		status = RunTimedOut
	case ctx.Err() != nil:
		status = RunCancelled
	case failed == 0 && skipped == 0:
		status = RunCompleted
	case x.wf.failureStrategy() == FailureStop:
		status = RunFailed
	default:
		// Continue-strategy runs with any failure or skip finish partially
		// completed, even when nothing succeeded.
		status = RunPartiallyCompleted
	}

	if err := x.tracker.setRunStatus(status); err != nil {
		x.engine.log.Error("run transition rejected", "run_id", x.handle.RunID, "error", err)
	}

	end := time.Now()
	return &RunResult{
		RunID:      x.handle.RunID,
		WorkflowID: x.wf.ID,
		Workflow:   x.wf.Name,
		Status:     status,
		StartedAt:  start,
		EndedAt:    end,
		Duration:   end.Sub(start),
		Succeeded:  succeeded,
		Failed:     failed,
		Skipped:    skipped,
		Tasks:      x.tracker.snapshot(),
	}
}

// archiveRun persists a terminal run result when archiving is enabled.
func (e *Engine) archiveRun(res *RunResult) {
	if !e.archiveRuns || e.store == nil {
		return
	}

	rec := &archive.RunRecord{
		RunID:      res.RunID,
		WorkflowID: res.WorkflowID,
		Workflow:   res.Workflow,
		Status:     string(res.Status),
		StartedAt:  res.StartedAt,
		EndedAt:    res.EndedAt,
		Duration:   res.Duration,
		Tasks:      make(map[string]*archive.TaskRecord, len(res.Tasks)),
	}
	e.mu.RLock()
	if wf, ok := e.workflows[res.WorkflowID]; ok && wf.Metadata != nil {
		rec.Metadata = make(map[string]string, len(wf.Metadata))
		for k, v := range wf.Metadata {
			rec.Metadata[k] = v
		}
	}
	e.mu.RUnlock()

	for id, tr := range res.Tasks {
		trec := &archive.TaskRecord{
			TaskID:    id,
			Stage:     tr.Stage,
			Status:    string(tr.Status),
			Retries:   tr.Retries,
			StartedAt: tr.StartedAt,
			EndedAt:   tr.EndedAt,
		}
		if tr.Error != nil {
			trec.Error = tr.Error.Error()
		}
		if !tr.StartedAt.IsZero() && !tr.EndedAt.IsZero() {
			trec.Duration = tr.EndedAt.Sub(tr.StartedAt)
		}
		rec.Tasks[id] = trec
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.store.SaveRun(ctx, rec); err != nil {
		e.log.Error("archiving run", "run_id", res.RunID, "error", err)
	}
}

// Archive exposes the engine's run archive for introspection. Nil when
// archiving is disabled.
func (e *Engine) Archive() archive.Store {
	return e.store
}
