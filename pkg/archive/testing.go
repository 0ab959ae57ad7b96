package archive

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

// StoreTestSuite defines a test suite that can be run against any Store
// implementation.
type StoreTestSuite struct {
	NewStore func(t *testing.T) Store
}

// RunAllTests runs every archive test against the provided store.
func (s *StoreTestSuite) RunAllTests(t *testing.T) {
	t.Run("SaveAndGet", s.TestSaveAndGet)
	t.Run("Overwrite", s.TestOverwrite)
	t.Run("NotFound", s.TestNotFound)
	t.Run("Delete", s.TestDelete)
	t.Run("ListNewestFirst", s.TestListNewestFirst)
	t.Run("ListFilter", s.TestListFilter)
	t.Run("ListPagination", s.TestListPagination)
	t.Run("ConcurrentAccess", s.TestConcurrentAccess)
}

func testRecord(runID, workflowID, status string, startedAt time.Time) *RunRecord {
	return &RunRecord{
		RunID:      runID,
		WorkflowID: workflowID,
		Workflow:   "Test Workflow",
		Status:     status,
		StartedAt:  startedAt,
		EndedAt:    startedAt.Add(time.Second),
		Duration:   time.Second,
		Tasks: map[string]*TaskRecord{
			"extract": {
				TaskID:   "extract",
				Stage:    "extract",
				Status:   "succeeded",
				Duration: 400 * time.Millisecond,
			},
			"classify": {
				TaskID:   "classify",
				Stage:    "classify",
				Status:   status,
				Retries:  1,
				Duration: 600 * time.Millisecond,
			},
		},
		Metadata: map[string]string{"mailbox": "inbox"},
	}
}

// TestSaveAndGet archives a record and reads it back intact.
func (s *StoreTestSuite) TestSaveAndGet(t *testing.T) {
	store := s.NewStore(t)
	defer store.Close()
	ctx := context.Background()

	rec := testRecord("run-1", "wf-1", "completed", time.Now().UTC().Truncate(time.Millisecond))
	if err := store.SaveRun(ctx, rec); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	got, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got.RunID != rec.RunID {
		t.Errorf("expected run ID %s, got %s", rec.RunID, got.RunID)
	}
	if got.WorkflowID != rec.WorkflowID {
		t.Errorf("expected workflow ID %s, got %s", rec.WorkflowID, got.WorkflowID)
	}
	if got.Status != rec.Status {
		t.Errorf("expected status %s, got %s", rec.Status, got.Status)
	}
	if len(got.Tasks) != 2 {
		t.Fatalf("expected 2 task records, got %d", len(got.Tasks))
	}
	if got.Tasks["classify"].Retries != 1 {
		t.Errorf("expected 1 retry on classify, got %d", got.Tasks["classify"].Retries)
	}
	if got.Metadata["mailbox"] != "inbox" {
		t.Errorf("metadata not preserved: %v", got.Metadata)
	}
}

// TestOverwrite re-archiving a run ID replaces the record.
func (s *StoreTestSuite) TestOverwrite(t *testing.T) {
	store := s.NewStore(t)
	defer store.Close()
	ctx := context.Background()

	if err := store.SaveRun(ctx, testRecord("run-1", "wf-1", "failed", time.Now())); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}
	if err := store.SaveRun(ctx, testRecord("run-1", "wf-1", "completed", time.Now())); err != nil {
		t.Fatalf("SaveRun (overwrite) failed: %v", err)
	}

	got, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got.Status != "completed" {
		t.Errorf("expected overwritten status, got %s", got.Status)
	}
}

// TestNotFound missing runs surface NotFoundError.
func (s *StoreTestSuite) TestNotFound(t *testing.T) {
	store := s.NewStore(t)
	defer store.Close()

	_, err := store.GetRun(context.Background(), "nonexistent")
	if err == nil {
		t.Fatal("expected error for nonexistent run")
	}
	if _, ok := err.(*NotFoundError); !ok {
		t.Errorf("expected NotFoundError, got %T", err)
	}
}

// TestDelete removes a record and deleting twice fails.
func (s *StoreTestSuite) TestDelete(t *testing.T) {
	store := s.NewStore(t)
	defer store.Close()
	ctx := context.Background()

	if err := store.SaveRun(ctx, testRecord("run-1", "wf-1", "completed", time.Now())); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}
	if err := store.DeleteRun(ctx, "run-1"); err != nil {
		t.Fatalf("DeleteRun failed: %v", err)
	}
	if _, err := store.GetRun(ctx, "run-1"); err == nil {
		t.Error("expected error after delete")
	}
	if err := store.DeleteRun(ctx, "run-1"); err == nil {
		t.Error("expected error deleting a deleted run")
	}
}

// TestListNewestFirst runs come back ordered by start time, newest first.
func (s *StoreTestSuite) TestListNewestFirst(t *testing.T) {
	store := s.NewStore(t)
	defer store.Close()
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		rec := testRecord(fmt.Sprintf("run-%d", i), "wf-1", "completed", base.Add(time.Duration(i)*time.Minute))
		if err := store.SaveRun(ctx, rec); err != nil {
			t.Fatalf("SaveRun failed: %v", err)
		}
	}

	recs, total, err := store.ListRuns(ctx, nil)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if total != 3 || len(recs) != 3 {
		t.Fatalf("expected 3 runs, got %d (total %d)", len(recs), total)
	}
	for i := 0; i < len(recs)-1; i++ {
		if recs[i].StartedAt.Before(recs[i+1].StartedAt) {
			t.Errorf("expected newest first, got %s before %s", recs[i].RunID, recs[i+1].RunID)
		}
	}
}

// TestListFilter filters by workflow ID and status.
func (s *StoreTestSuite) TestListFilter(t *testing.T) {
	store := s.NewStore(t)
	defer store.Close()
	ctx := context.Background()

	now := time.Now()
	store.SaveRun(ctx, testRecord("run-1", "wf-a", "completed", now))
	store.SaveRun(ctx, testRecord("run-2", "wf-a", "failed", now.Add(time.Second)))
	store.SaveRun(ctx, testRecord("run-3", "wf-b", "completed", now.Add(2*time.Second)))

	recs, total, err := store.ListRuns(ctx, &RunFilter{WorkflowID: "wf-a"})
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if total != 2 || len(recs) != 2 {
		t.Errorf("expected 2 wf-a runs, got %d (total %d)", len(recs), total)
	}

	recs, total, err = store.ListRuns(ctx, &RunFilter{Status: []string{"failed"}})
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if total != 1 || len(recs) != 1 || recs[0].RunID != "run-2" {
		t.Errorf("expected only run-2, got %v (total %d)", recs, total)
	}
}

// TestListPagination limit and offset page through matches while total
// reports the full match count.
func (s *StoreTestSuite) TestListPagination(t *testing.T) {
	store := s.NewStore(t)
	defer store.Close()
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		rec := testRecord(fmt.Sprintf("run-%d", i), "wf-1", "completed", base.Add(time.Duration(i)*time.Minute))
		if err := store.SaveRun(ctx, rec); err != nil {
			t.Fatalf("SaveRun failed: %v", err)
		}
	}

	recs, total, err := store.ListRuns(ctx, &RunFilter{Limit: 2})
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if total != 5 {
		t.Errorf("expected total 5, got %d", total)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(recs))
	}
	if recs[0].RunID != "run-4" {
		t.Errorf("expected newest run first, got %s", recs[0].RunID)
	}

	recs, _, err = store.ListRuns(ctx, &RunFilter{Limit: 2, Offset: 4})
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(recs) != 1 || recs[0].RunID != "run-0" {
		t.Errorf("expected trailing page [run-0], got %v", recs)
	}

	recs, _, err = store.ListRuns(ctx, &RunFilter{Offset: 10})
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("expected empty page past the end, got %d", len(recs))
	}
}

// TestConcurrentAccess concurrent writers and readers do not corrupt the
// store.
func (s *StoreTestSuite) TestConcurrentAccess(t *testing.T) {
	store := s.NewStore(t)
	defer store.Close()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			rec := testRecord(fmt.Sprintf("run-%d", n), "wf-1", "completed", time.Now())
			if err := store.SaveRun(ctx, rec); err != nil {
				t.Errorf("SaveRun failed: %v", err)
			}
			if _, _, err := store.ListRuns(ctx, nil); err != nil {
				t.Errorf("ListRuns failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	_, total, err := store.ListRuns(ctx, nil)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if total != 10 {
		t.Errorf("expected 10 runs, got %d", total)
	}
}
