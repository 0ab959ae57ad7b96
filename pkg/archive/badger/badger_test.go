package badger

import (
	"context"
	"testing"
	"time"

	"github.com/mailsift/mailsift/pkg/archive"
)

// TestBadgerStoreSuite runs the full archive test suite against BadgerStore.
func TestBadgerStoreSuite(t *testing.T) {
	suite := &archive.StoreTestSuite{
		NewStore: func(t *testing.T) archive.Store {
			config := &Config{
				Path:       t.TempDir(),
				SyncWrites: false,
			}
			store, err := NewBadgerStore(config)
			if err != nil {
				t.Fatalf("creating badger store: %v", err)
			}
			return store
		},
	}

	suite.RunAllTests(t)
}

func TestBadgerStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewBadgerStore(&Config{Path: dir})
	if err != nil {
		t.Fatalf("creating badger store: %v", err)
	}

	rec := &archive.RunRecord{
		RunID:      "run-1",
		WorkflowID: "wf-1",
		Status:     "completed",
		StartedAt:  time.Now().UTC(),
		Duration:   time.Second,
		Tasks: map[string]*archive.TaskRecord{
			"extract": {TaskID: "extract", Stage: "extract", Status: "succeeded"},
		},
	}
	if err := store.SaveRun(ctx, rec); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := NewBadgerStore(&Config{Path: dir})
	if err != nil {
		t.Fatalf("reopening badger store: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun after reopen failed: %v", err)
	}
	if got.Status != "completed" || len(got.Tasks) != 1 {
		t.Errorf("record not persisted across reopen: %+v", got)
	}
}

func TestNewBadgerStore_InvalidPath(t *testing.T) {
	_, err := NewBadgerStore(&Config{Path: "/dev/null/not-a-dir"})
	if err == nil {
		t.Fatal("expected error for unusable path")
	}
	if _, ok := err.(*archive.UnavailableError); !ok {
		t.Errorf("expected UnavailableError, got %T", err)
	}
}
