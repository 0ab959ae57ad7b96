package engine

import (
	"sync"
	"time"
)

// TaskResult holds the execution outcome of a single task.
type TaskResult struct {
	TaskID    string
	Stage     string
	Status    TaskStatus
	Error     error
	StartedAt time.Time
	EndedAt   time.Time
	Retries   int
}

// RunResult is the finalized outcome of one workflow run.
type RunResult struct {
	RunID      string
	WorkflowID string
	Workflow   string
	Status     RunStatus
	StartedAt  time.Time
	EndedAt    time.Time
	Duration   time.Duration

	Succeeded int
	Failed    int
	Skipped   int

	// Tasks maps task ID to its outcome. Every declared task has an
	// entry; tasks never dispatched are Skipped.
	Tasks map[string]*TaskResult
}

// stateTracker tracks per-task state for one run. Transitions go through
// the single mutex so a task becomes ready exactly once and no observer
// sees a partially-updated aggregate.
type stateTracker struct {
	mu      sync.RWMutex
	status  RunStatus
	results map[string]*TaskResult
}

func newStateTracker(taskIDs []string, stages map[string]string) *stateTracker {
	results := make(map[string]*TaskResult, len(taskIDs))
	for _, id := range taskIDs {
		results[id] = &TaskResult{
			TaskID: id,
			Stage:  stages[id],
			Status: TaskPending,
		}
	}
	return &stateTracker{
		status:  RunPending,
		results: results,
	}
}

// setRunStatus applies a run transition, enforcing the state machine.
func (t *stateTracker) setRunStatus(status RunStatus) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := validateRunTransition(t.status, status); err != nil {
		return err
	}
	t.status = status
	return nil
}

// runStatus returns the current run status.
func (t *stateTracker) runStatus() RunStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// setTaskStatus applies a task transition, enforcing the state machine.
// Returns false when the transition is not legal (e.g., the task already
// reached a terminal state).
func (t *stateTracker) setTaskStatus(taskID string, status TaskStatus) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.results[taskID]
	if !ok {
		return false
	}
	if err := validateTaskTransition(r.Status, status); err != nil {
		return false
	}
	r.Status = status
	switch status {
	case TaskRunning:
		r.StartedAt = time.Now()
	case TaskSucceeded, TaskFailed:
		r.EndedAt = time.Now()
	}
	return true
}

// setTaskFailed marks a task failed with its error and retry count.
func (t *stateTracker) setTaskFailed(taskID string, err error, retries int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.results[taskID]
	if !ok {
		return
	}
	r.Status = TaskFailed
	r.Error = err
	r.Retries = retries
	r.EndedAt = time.Now()
}

// setTaskRetries records how many retries a task consumed.
func (t *stateTracker) setTaskRetries(taskID string, retries int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if r, ok := t.results[taskID]; ok {
		r.Retries = retries
	}
}

// setTaskSkipped marks a task skipped with the reason.
func (t *stateTracker) setTaskSkipped(taskID string, reason error) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.results[taskID]
	if !ok || r.Status.Terminal() {
		return false
	}
	r.Status = TaskSkipped
	r.Error = reason
	r.EndedAt = time.Now()
	return true
}

// taskStatus returns the current status of a task.
func (t *stateTracker) taskStatus(taskID string) (TaskStatus, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.results[taskID]
	if !ok {
		return "", false
	}
	return r.Status, true
}

// snapshot returns a deep copy of all task results.
func (t *stateTracker) snapshot() map[string]*TaskResult {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]*TaskResult, len(t.results))
	for id, r := range t.results {
		cp := *r
		out[id] = &cp
	}
	return out
}

// counts tallies terminal task outcomes.
func (t *stateTracker) counts() (succeeded, failed, skipped int) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, r := range t.results {
		switch r.Status {
		case TaskSucceeded:
			succeeded++
		case TaskFailed:
			failed++
		case TaskSkipped:
			skipped++
		}
	}
	return
}
