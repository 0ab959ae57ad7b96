package engine

import (
	"fmt"
	"time"

	"github.com/mailsift/mailsift/pkg/dag"
)

// FailureStrategy controls how a run reacts to a task failure.
type FailureStrategy string

const (
	// FailureContinue isolates a failure: dependents of the failed task
	// are skipped, independent tasks proceed.
	FailureContinue FailureStrategy = "continue"

	// FailureStop halts dispatch of not-yet-started tasks on the first
	// failure. Running tasks finish cooperatively.
	FailureStop FailureStrategy = "stop"
)

// Workflow is a named DAG of tasks with an execution policy. A workflow is
// immutable once registered.
type Workflow struct {
	// ID uniquely identifies the workflow definition.
	ID string

	// Name is a human-readable name.
	Name string

	// Description documents the workflow's purpose.
	Description string

	// Tasks holds the task declarations. Declaration order is the serial
	// execution order for non-parallel workflows.
	Tasks []*dag.Task

	// AllowParallel permits concurrent dispatch of ready tasks. When
	// false the run executes tasks one at a time in topological order.
	AllowParallel bool

	// OnFailure selects the failure strategy. Empty defaults to continue.
	OnFailure FailureStrategy

	// GlobalTimeout bounds the whole run. Zero means the engine default.
	GlobalTimeout time.Duration

	// Metadata carries free-form attributes, copied into archived runs.
	Metadata map[string]string
}

// Validate checks the workflow definition without compiling it.
func (w *Workflow) Validate() error {
	if w.ID == "" {
		return fmt.Errorf("workflow ID cannot be empty")
	}
	if len(w.Tasks) == 0 {
		return fmt.Errorf("workflow %s has no tasks", w.ID)
	}
	switch w.OnFailure {
	case "", FailureContinue, FailureStop:
	default:
		return fmt.Errorf("workflow %s: unknown failure strategy %q", w.ID, w.OnFailure)
	}
	if w.GlobalTimeout < 0 {
		return fmt.Errorf("workflow %s: global timeout cannot be negative", w.ID)
	}
	return nil
}

// failureStrategy returns the effective strategy.
func (w *Workflow) failureStrategy() FailureStrategy {
	if w.OnFailure == "" {
		return FailureContinue
	}
	return w.OnFailure
}

// RunStatus is the lifecycle status of a workflow run.
type RunStatus string

const (
	RunPending            RunStatus = "pending"
	RunRunning            RunStatus = "running"
	RunCompleted          RunStatus = "completed"
	RunPartiallyCompleted RunStatus = "partially_completed"
	RunFailed             RunStatus = "failed"
	RunTimedOut           RunStatus = "timed_out"
	RunCancelled          RunStatus = "cancelled"
)

// Terminal reports whether the status is final.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunCompleted, RunPartiallyCompleted, RunFailed, RunTimedOut, RunCancelled:
		return true
	}
	return false
}

// TaskStatus is the lifecycle status of a task within a run.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskReady     TaskStatus = "ready"
	TaskRunning   TaskStatus = "running"
	TaskSucceeded TaskStatus = "succeeded"
	TaskFailed    TaskStatus = "failed"
	TaskSkipped   TaskStatus = "skipped"
)

// Terminal reports whether the status is final.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskSucceeded, TaskFailed, TaskSkipped:
		return true
	}
	return false
}

var allowedRunTransitions = map[RunStatus]map[RunStatus]struct{}{
	RunPending: {
		RunRunning:   {},
		RunFailed:    {},
		RunCancelled: {},
	},
	RunRunning: {
		RunCompleted:          {},
		RunPartiallyCompleted: {},
		RunFailed:             {},
		RunTimedOut:           {},
		RunCancelled:          {},
	},
}

var allowedTaskTransitions = map[TaskStatus]map[TaskStatus]struct{}{
	TaskPending: {
		TaskReady:   {},
		TaskSkipped: {},
	},
	TaskReady: {
		TaskRunning: {},
		TaskSkipped: {},
	},
	TaskRunning: {
		TaskSucceeded: {},
		TaskFailed:    {},
	},
}

func validateRunTransition(oldStatus, newStatus RunStatus) error {
	if oldStatus == newStatus {
		return nil
	}
	if oldStatus.Terminal() {
		return fmt.Errorf("illegal run transition %q -> %q: terminal state is immutable", oldStatus, newStatus)
	}
	if _, ok := allowedRunTransitions[oldStatus][newStatus]; !ok {
		return fmt.Errorf("illegal run transition %q -> %q", oldStatus, newStatus)
	}
	return nil
}

func validateTaskTransition(oldStatus, newStatus TaskStatus) error {
	if oldStatus == newStatus {
		return nil
	}
	if oldStatus.Terminal() {
		return fmt.Errorf("illegal task transition %q -> %q: terminal state is immutable", oldStatus, newStatus)
	}
	if _, ok := allowedTaskTransitions[oldStatus][newStatus]; !ok {
		return fmt.Errorf("illegal task transition %q -> %q", oldStatus, newStatus)
	}
	return nil
}
