// Package dag provides the directed acyclic graph underlying workflow
// scheduling: task declarations, dependency edges, cycle detection and
// deterministic topological ordering.
package dag

import (
	"fmt"
	"time"
)

// Task is one declared step of a workflow.
type Task struct {
	// ID is the unique identifier for the task within its workflow.
	ID string `json:"id" yaml:"id"`

	// Name is a human-readable name for the task.
	Name string `json:"name" yaml:"name"`

	// Stage names the executor that runs this task (e.g., "extract",
	// "classify", "archive").
	Stage string `json:"stage" yaml:"stage"`

	// Deps lists the task IDs this task depends on.
	Deps []string `json:"deps,omitempty" yaml:"deps,omitempty"`

	// Timeout is the maximum duration allowed for task execution.
	// Zero means no per-task timeout.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// Retries is the number of times to retry on failure. Zero means no
	// retries.
	Retries int `json:"retries,omitempty" yaml:"retries,omitempty"`

	// Metadata carries arbitrary key-value pairs passed to the executor.
	Metadata map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Validate checks if the task declaration is valid.
func (t *Task) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("task ID cannot be empty")
	}
	if t.Stage == "" {
		return fmt.Errorf("task %s: stage cannot be empty", t.ID)
	}
	if t.Timeout < 0 {
		return fmt.Errorf("task %s: timeout cannot be negative", t.ID)
	}
	if t.Retries < 0 {
		return fmt.Errorf("task %s: retries cannot be negative", t.ID)
	}
	return nil
}

// Clone creates a deep copy of the task.
func (t *Task) Clone() *Task {
	cloned := &Task{
		ID:      t.ID,
		Name:    t.Name,
		Stage:   t.Stage,
		Timeout: t.Timeout,
		Retries: t.Retries,
	}
	if t.Deps != nil {
		cloned.Deps = make([]string, len(t.Deps))
		copy(cloned.Deps, t.Deps)
	}
	if t.Metadata != nil {
		cloned.Metadata = make(map[string]string, len(t.Metadata))
		for k, v := range t.Metadata {
			cloned.Metadata[k] = v
		}
	}
	return cloned
}

// String returns a string representation of the task.
func (t *Task) String() string {
	return fmt.Sprintf("Task{ID: %s, Stage: %s, Deps: %v}", t.ID, t.Stage, t.Deps)
}

// HasDependency checks if the task depends on the given task ID.
func (t *Task) HasDependency(taskID string) bool {
	for _, dep := range t.Deps {
		if dep == taskID {
			return true
		}
	}
	return false
}
