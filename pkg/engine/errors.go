package engine

import "fmt"

// WorkflowCompileError is returned when a workflow definition fails to
// compile into an executable plan.
type WorkflowCompileError struct {
	WorkflowID string
	Cause      error
}

func (e *WorkflowCompileError) Error() string {
	return fmt.Sprintf("workflow %q compile error: %v", e.WorkflowID, e.Cause)
}

func (e *WorkflowCompileError) Unwrap() error { return e.Cause }

// TaskExecutionError is returned when a task fails after all retries.
type TaskExecutionError struct {
	TaskID  string
	Retries int
	Cause   error
}

func (e *TaskExecutionError) Error() string {
	return fmt.Sprintf("task %q failed after %d retries: %v", e.TaskID, e.Retries, e.Cause)
}

func (e *TaskExecutionError) Unwrap() error { return e.Cause }

// DependencyUnsatisfiedError marks a task skipped because a dependency did
// not succeed. It is recorded on the skipped task, never returned to the
// caller as a run failure.
type DependencyUnsatisfiedError struct {
	TaskID string
	DepID  string
}

func (e *DependencyUnsatisfiedError) Error() string {
	return fmt.Sprintf("task %q skipped: dependency %q did not succeed", e.TaskID, e.DepID)
}

// WorkflowTimeoutError marks a run that hit its global timeout.
type WorkflowTimeoutError struct {
	RunID   string
	Timeout string
}

func (e *WorkflowTimeoutError) Error() string {
	return fmt.Sprintf("run %q timed out after %s", e.RunID, e.Timeout)
}

// NotRunningError is returned when an operation requires the engine to be
// running.
type NotRunningError struct{}

func (e *NotRunningError) Error() string {
	return "engine is not running"
}

// WorkflowNotFoundError is returned when a run references an unregistered
// workflow.
type WorkflowNotFoundError struct {
	ID string
}

func (e *WorkflowNotFoundError) Error() string {
	return fmt.Sprintf("workflow not registered: %s", e.ID)
}

// ExecutorNotFoundError is returned at registration time when a workflow
// names a stage with no registered executor.
type ExecutorNotFoundError struct {
	TaskID string
	Stage  string
}

func (e *ExecutorNotFoundError) Error() string {
	return fmt.Sprintf("task %q names stage %q with no registered executor", e.TaskID, e.Stage)
}
