package engine

import (
	"errors"
	"testing"
)

func TestValidateRunTransition(t *testing.T) {
	tests := []struct {
		name      string
		oldStatus RunStatus
		newStatus RunStatus
		wantErr   bool
	}{
		{name: "pending to running", oldStatus: RunPending, newStatus: RunRunning, wantErr: false},
		{name: "running to completed", oldStatus: RunRunning, newStatus: RunCompleted, wantErr: false},
		{name: "running to partially completed", oldStatus: RunRunning, newStatus: RunPartiallyCompleted, wantErr: false},
		{name: "running to timed out", oldStatus: RunRunning, newStatus: RunTimedOut, wantErr: false},
		{name: "pending to completed invalid", oldStatus: RunPending, newStatus: RunCompleted, wantErr: true},
		{name: "terminal immutable", oldStatus: RunCompleted, newStatus: RunFailed, wantErr: true},
		{name: "cancelled immutable", oldStatus: RunCancelled, newStatus: RunRunning, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateRunTransition(tt.oldStatus, tt.newStatus)
			if (err != nil) != tt.wantErr {
				t.Fatalf("validateRunTransition(%q -> %q) error = %v, wantErr %v", tt.oldStatus, tt.newStatus, err, tt.wantErr)
			}
		})
	}
}

func TestValidateTaskTransition(t *testing.T) {
	tests := []struct {
		name      string
		oldStatus TaskStatus
		newStatus TaskStatus
		wantErr   bool
	}{
		{name: "pending to ready", oldStatus: TaskPending, newStatus: TaskReady, wantErr: false},
		{name: "ready to running", oldStatus: TaskReady, newStatus: TaskRunning, wantErr: false},
		{name: "running to succeeded", oldStatus: TaskRunning, newStatus: TaskSucceeded, wantErr: false},
		{name: "pending to skipped", oldStatus: TaskPending, newStatus: TaskSkipped, wantErr: false},
		{name: "pending to running invalid", oldStatus: TaskPending, newStatus: TaskRunning, wantErr: true},
		{name: "terminal immutable", oldStatus: TaskSucceeded, newStatus: TaskFailed, wantErr: true},
		{name: "skipped immutable", oldStatus: TaskSkipped, newStatus: TaskReady, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateTaskTransition(tt.oldStatus, tt.newStatus)
			if (err != nil) != tt.wantErr {
				t.Fatalf("validateTaskTransition(%q -> %q) error = %v, wantErr %v", tt.oldStatus, tt.newStatus, err, tt.wantErr)
			}
		})
	}
}

func TestStateTracker_ReadyExactlyOnce(t *testing.T) {
	tr := newStateTracker([]string{"a"}, map[string]string{"a": "extract"})

	if !tr.setTaskStatus("a", TaskReady) {
		t.Fatal("first ready transition should succeed")
	}
	if tr.setTaskStatus("a", TaskReady) {
		t.Error("second ready transition should be rejected")
	}
}

func TestStateTracker_TerminalTaskIsImmutable(t *testing.T) {
	tr := newStateTracker([]string{"a"}, map[string]string{"a": "extract"})
	tr.setTaskStatus("a", TaskReady)
	tr.setTaskStatus("a", TaskRunning)
	tr.setTaskStatus("a", TaskSucceeded)

	if tr.setTaskStatus("a", TaskFailed) {
		t.Error("succeeded task must not transition to failed")
	}
	if tr.setTaskSkipped("a", errors.New("late skip")) {
		t.Error("succeeded task must not be skipped")
	}
	if st, _ := tr.taskStatus("a"); st != TaskSucceeded {
		t.Errorf("expected succeeded, got %s", st)
	}
}

func TestStateTracker_Counts(t *testing.T) {
	tr := newStateTracker([]string{"a", "b", "c"}, map[string]string{})
	tr.setTaskStatus("a", TaskReady)
	tr.setTaskStatus("a", TaskRunning)
	tr.setTaskStatus("a", TaskSucceeded)
	tr.setTaskFailed("b", errors.New("boom"), 0)
	tr.setTaskSkipped("c", errors.New("dependency failed"))

	succeeded, failed, skipped := tr.counts()
	if succeeded != 1 || failed != 1 || skipped != 1 {
		t.Errorf("unexpected counts: %d/%d/%d", succeeded, failed, skipped)
	}
}

func TestStateTracker_SnapshotIsIsolated(t *testing.T) {
	tr := newStateTracker([]string{"a"}, map[string]string{"a": "extract"})
	snap := tr.snapshot()
	snap["a"].Status = TaskFailed

	if st, _ := tr.taskStatus("a"); st != TaskPending {
		t.Errorf("mutating a snapshot must not affect the tracker, got %s", st)
	}
}
