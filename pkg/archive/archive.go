// Package archive provides read-only persistence for finished workflow
// runs. Only terminal run results are written; in-flight state never
// touches the store.
package archive

import (
	"context"
	"fmt"
	"time"
)

// Store defines the interface for run archive backends.
type Store interface {
	// SaveRun archives a finished run.
	SaveRun(ctx context.Context, rec *RunRecord) error

	// GetRun retrieves an archived run by run ID.
	GetRun(ctx context.Context, runID string) (*RunRecord, error)

	// ListRuns returns archived runs matching the filter, newest first,
	// along with the total match count.
	ListRuns(ctx context.Context, filter *RunFilter) ([]*RunRecord, int, error)

	// DeleteRun removes an archived run.
	DeleteRun(ctx context.Context, runID string) error

	// Close releases backend resources.
	Close() error
}

// RunRecord is the archived form of a finished workflow run.
type RunRecord struct {
	RunID      string                 `json:"run_id"`
	WorkflowID string                 `json:"workflow_id"`
	Workflow   string                 `json:"workflow"`
	Status     string                 `json:"status"`
	StartedAt  time.Time              `json:"started_at"`
	EndedAt    time.Time              `json:"ended_at"`
	Duration   time.Duration          `json:"duration"`
	Tasks      map[string]*TaskRecord `json:"tasks"`
	Metadata   map[string]string      `json:"metadata,omitempty"`
}

// TaskRecord is the archived outcome of one task within a run.
type TaskRecord struct {
	TaskID    string        `json:"task_id"`
	Stage     string        `json:"stage"`
	Status    string        `json:"status"`
	Error     string        `json:"error,omitempty"`
	Retries   int           `json:"retries"`
	StartedAt time.Time     `json:"started_at,omitempty"`
	EndedAt   time.Time     `json:"ended_at,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// RunFilter defines filtering options for listing archived runs.
type RunFilter struct {
	WorkflowID string   `json:"workflow_id,omitempty"`
	Status     []string `json:"status,omitempty"`
	Limit      int      `json:"limit"`
	Offset     int      `json:"offset"`
}

// Matches reports whether the record passes the filter's predicates.
func (f *RunFilter) Matches(rec *RunRecord) bool {
	if f == nil {
		return true
	}
	if f.WorkflowID != "" && rec.WorkflowID != f.WorkflowID {
		return false
	}
	if len(f.Status) > 0 {
		ok := false
		for _, s := range f.Status {
			if rec.Status == s {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// NotFoundError indicates that the requested run was not archived.
type NotFoundError struct {
	RunID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("archived run not found: %s", e.RunID)
}

// UnavailableError indicates the archive backend could not be reached or
// opened.
type UnavailableError struct {
	Cause error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("archive unavailable: %v", e.Cause)
}

func (e *UnavailableError) Unwrap() error { return e.Cause }

// SerializationError indicates a record could not be encoded or decoded.
type SerializationError struct {
	Operation string
	Cause     error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("archive %s error: %v", e.Operation, e.Cause)
}

func (e *SerializationError) Unwrap() error { return e.Cause }
