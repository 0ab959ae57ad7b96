package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mailsift/mailsift/pkg/dag"
)

// failingExecutor fails every task whose ID appears in failIDs.
func failingExecutor(failIDs ...string) Executor {
	fail := make(map[string]bool, len(failIDs))
	for _, id := range failIDs {
		fail[id] = true
	}
	return ExecutorFunc(func(ctx context.Context, in TaskInput) error {
		if fail[in.Task.ID] {
			return errors.New("stage rejected input")
		}
		return nil
	})
}

func TestRun_ContinueStrategySkipsDependents(t *testing.T) {
	e := newTestEngine(t, "extract")
	e.RegisterExecutor("extract", failingExecutor("a"))

	wf := &Workflow{
		ID:   "continue",
		Name: "continue",
		Tasks: []*dag.Task{
			{ID: "a", Stage: "extract"},
			{ID: "b", Stage: "extract", Deps: []string{"a"}},
			{ID: "c", Stage: "extract"},
		},
		AllowParallel: true,
		OnFailure:     FailureContinue,
	}
	if err := e.RegisterWorkflow(wf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res, err := e.Run(context.Background(), "continue")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Status != RunPartiallyCompleted {
		t.Errorf("expected partially_completed, got %s", res.Status)
	}
	if res.Tasks["a"].Status != TaskFailed {
		t.Errorf("expected a failed, got %s", res.Tasks["a"].Status)
	}
	if res.Tasks["b"].Status != TaskSkipped {
		t.Errorf("expected b skipped, got %s", res.Tasks["b"].Status)
	}
	if res.Tasks["c"].Status != TaskSucceeded {
		t.Errorf("expected c succeeded, got %s", res.Tasks["c"].Status)
	}
	if res.Succeeded != 1 || res.Failed != 1 || res.Skipped != 1 {
		t.Errorf("unexpected counts: %d/%d/%d", res.Succeeded, res.Failed, res.Skipped)
	}
}

func TestRun_StopStrategyHaltsDispatch(t *testing.T) {
	e := newTestEngine(t, "extract")
	e.RegisterExecutor("extract", failingExecutor("a"))

	wf := &Workflow{
		ID:   "stop",
		Name: "stop",
		Tasks: []*dag.Task{
			{ID: "a", Stage: "extract"},
			{ID: "b", Stage: "extract", Deps: []string{"a"}},
			{ID: "c", Stage: "extract", Deps: []string{"b"}},
		},
		OnFailure: FailureStop,
	}
	if err := e.RegisterWorkflow(wf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res, err := e.Run(context.Background(), "stop")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Status != RunFailed {
		t.Errorf("expected failed, got %s", res.Status)
	}
	if res.Tasks["a"].Status != TaskFailed {
		t.Errorf("expected a failed, got %s", res.Tasks["a"].Status)
	}
	for _, id := range []string{"b", "c"} {
		if res.Tasks[id].Status != TaskSkipped {
			t.Errorf("expected %s skipped, got %s", id, res.Tasks[id].Status)
		}
	}
}

func TestRun_SerialDeclarationOrder(t *testing.T) {
	e := newTestEngine(t)

	var mu sync.Mutex
	var seen []string
	e.RegisterExecutor("extract", ExecutorFunc(func(ctx context.Context, in TaskInput) error {
		mu.Lock()
		seen = append(seen, in.Task.ID)
		mu.Unlock()
		return nil
	}))

	wf := &Workflow{
		ID:   "serial",
		Name: "serial",
		Tasks: []*dag.Task{
			{ID: "first", Stage: "extract"},
			{ID: "second", Stage: "extract"},
			{ID: "third", Stage: "extract"},
		},
	}
	if err := e.RegisterWorkflow(wf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res, err := e.Run(context.Background(), "serial")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != RunCompleted {
		t.Fatalf("expected completed, got %s", res.Status)
	}

	want := []string{"first", "second", "third"}
	for i, id := range want {
		if seen[i] != id {
			t.Fatalf("expected execution order %v, got %v", want, seen)
		}
	}
}

func TestRun_GlobalTimeout(t *testing.T) {
	e := newTestEngine(t)

	e.RegisterExecutor("extract", ExecutorFunc(func(ctx context.Context, in TaskInput) error {
		if in.Task.ID == "fast" {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
			return nil
		}
	}))

	wf := &Workflow{
		ID:   "timed",
		Name: "timed",
		Tasks: []*dag.Task{
			{ID: "fast", Stage: "extract"},
			{ID: "slow", Stage: "extract", Deps: []string{"fast"}},
			{ID: "after", Stage: "extract", Deps: []string{"slow"}},
		},
		GlobalTimeout: 200 * time.Millisecond,
	}
	if err := e.RegisterWorkflow(wf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res, err := e.Run(context.Background(), "timed")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Status != RunTimedOut {
		t.Errorf("expected timed_out, got %s", res.Status)
	}
	if res.Tasks["fast"].Status != TaskSucceeded {
		t.Errorf("completed work should survive the timeout, got %s", res.Tasks["fast"].Status)
	}
	if res.Tasks["after"].Status != TaskSkipped {
		t.Errorf("expected after skipped, got %s", res.Tasks["after"].Status)
	}
}

func TestRun_TaskTimeoutAndRetries(t *testing.T) {
	e := newTestEngine(t)

	var mu sync.Mutex
	attempts := 0
	e.RegisterExecutor("extract", ExecutorFunc(func(ctx context.Context, in TaskInput) error {
		mu.Lock()
		attempts++
		n := attempts
		mu.Unlock()
		if n < 3 {
			return errors.New("transient upstream failure")
		}
		return nil
	}))

	wf := &Workflow{
		ID:   "retried",
		Name: "retried",
		Tasks: []*dag.Task{
			{ID: "flaky", Stage: "extract", Retries: 2, Timeout: time.Second},
		},
	}
	if err := e.RegisterWorkflow(wf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res, err := e.Run(context.Background(), "retried")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != RunCompleted {
		t.Fatalf("expected completed, got %s", res.Status)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
	if res.Tasks["flaky"].Retries != 2 {
		t.Errorf("expected 2 recorded retries, got %d", res.Tasks["flaky"].Retries)
	}
}

func TestRun_RetriesExhausted(t *testing.T) {
	e := newTestEngine(t)
	e.RegisterExecutor("extract", failingExecutor("doomed"))

	wf := &Workflow{
		ID:    "exhausted",
		Name:  "exhausted",
		Tasks: []*dag.Task{{ID: "doomed", Stage: "extract", Retries: 1}},
	}
	if err := e.RegisterWorkflow(wf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res, err := e.Run(context.Background(), "exhausted")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != RunPartiallyCompleted {
		t.Errorf("expected partially completed, got %s", res.Status)
	}
	tr := res.Tasks["doomed"]
	if tr.Status != TaskFailed {
		t.Errorf("expected failed task, got %s", tr.Status)
	}
	if tr.Error == nil {
		t.Error("expected failure detail on task result")
	}
}

func TestRun_ExecutorPanicConfined(t *testing.T) {
	e := newTestEngine(t)
	e.RegisterExecutor("extract", ExecutorFunc(func(ctx context.Context, in TaskInput) error {
		panic("corrupt message body")
	}))

	wf := &Workflow{
		ID:    "panicky",
		Name:  "panicky",
		Tasks: []*dag.Task{{ID: "a", Stage: "extract"}},
	}
	if err := e.RegisterWorkflow(wf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res, err := e.Run(context.Background(), "panicky")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != RunPartiallyCompleted {
		t.Errorf("expected partially completed, got %s", res.Status)
	}
	if res.Tasks["a"].Status != TaskFailed {
		t.Errorf("expected failed task, got %s", res.Tasks["a"].Status)
	}
}

func TestRun_Cancellation(t *testing.T) {
	e := newTestEngine(t)

	started := make(chan struct{})
	e.RegisterExecutor("extract", ExecutorFunc(func(ctx context.Context, in TaskInput) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}))

	wf := &Workflow{
		ID:   "cancelled",
		Name: "cancelled",
		Tasks: []*dag.Task{
			{ID: "a", Stage: "extract"},
			{ID: "b", Stage: "extract", Deps: []string{"a"}},
		},
	}
	if err := e.RegisterWorkflow(wf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	h, err := e.Submit(context.Background(), "cancelled")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	<-started
	h.Cancel()

	res, err := h.Wait(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != RunCancelled {
		t.Errorf("expected cancelled, got %s", res.Status)
	}
	if res.Tasks["b"].Status != TaskSkipped {
		t.Errorf("expected b skipped, got %s", res.Tasks["b"].Status)
	}
}

func TestRun_ParallelDiamond(t *testing.T) {
	e := newTestEngine(t, "extract")

	wf := &Workflow{
		ID:   "diamond",
		Name: "diamond",
		Tasks: []*dag.Task{
			{ID: "root", Stage: "extract"},
			{ID: "left", Stage: "extract", Deps: []string{"root"}},
			{ID: "right", Stage: "extract", Deps: []string{"root"}},
			{ID: "join", Stage: "extract", Deps: []string{"left", "right"}},
		},
		AllowParallel: true,
	}
	if err := e.RegisterWorkflow(wf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res, err := e.Run(context.Background(), "diamond")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != RunCompleted {
		t.Fatalf("expected completed, got %s", res.Status)
	}
	if res.Succeeded != 4 {
		t.Errorf("expected 4 succeeded, got %d", res.Succeeded)
	}
}

func TestRun_ArchivesTerminalRecord(t *testing.T) {
	e := newTestEngine(t, "extract", "classify")
	e.RegisterWorkflow(linearWorkflow("archived"))

	res, err := e.Run(context.Background(), "archived")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec, err := e.Archive().GetRun(context.Background(), res.RunID)
	if err != nil {
		t.Fatalf("expected archived record: %v", err)
	}
	if rec.WorkflowID != "archived" {
		t.Errorf("unexpected workflow id %q", rec.WorkflowID)
	}
	if rec.Status != string(RunCompleted) {
		t.Errorf("expected completed record, got %s", rec.Status)
	}
	if len(rec.Tasks) != 2 {
		t.Errorf("expected 2 task records, got %d", len(rec.Tasks))
	}
}

func TestRun_DependencyFailurePropagatesTransitively(t *testing.T) {
	e := newTestEngine(t, "extract")
	e.RegisterExecutor("extract", failingExecutor("a"))

	wf := &Workflow{
		ID:   "chain",
		Name: "chain",
		Tasks: []*dag.Task{
			{ID: "a", Stage: "extract"},
			{ID: "b", Stage: "extract", Deps: []string{"a"}},
			{ID: "c", Stage: "extract", Deps: []string{"b"}},
		},
		AllowParallel: true,
		OnFailure:     FailureContinue,
	}
	if err := e.RegisterWorkflow(wf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res, err := e.Run(context.Background(), "chain")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != RunPartiallyCompleted {
		t.Errorf("expected partially completed when nothing succeeds, got %s", res.Status)
	}
	if res.Succeeded != 0 || res.Failed != 1 || res.Skipped != 2 {
		t.Errorf("unexpected counts: %d/%d/%d", res.Succeeded, res.Failed, res.Skipped)
	}
	for _, id := range []string{"b", "c"} {
		if res.Tasks[id].Status != TaskSkipped {
			t.Errorf("expected %s skipped, got %s", id, res.Tasks[id].Status)
		}
	}
}
