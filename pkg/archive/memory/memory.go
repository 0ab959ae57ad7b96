// Package memory provides an in-memory implementation of the run archive.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/mailsift/mailsift/pkg/archive"
)

// MemoryStore implements archive.Store using in-memory maps.
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string]*archive.RunRecord
}

// NewMemoryStore creates a new in-memory archive.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs: make(map[string]*archive.RunRecord),
	}
}

// SaveRun archives a finished run.
func (m *MemoryStore) SaveRun(ctx context.Context, rec *archive.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[rec.RunID] = cloneRecord(rec)
	return nil
}

// GetRun retrieves an archived run by ID.
func (m *MemoryStore) GetRun(ctx context.Context, runID string) (*archive.RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, exists := m.runs[runID]
	if !exists {
		return nil, &archive.NotFoundError{RunID: runID}
	}
	return cloneRecord(rec), nil
}

// ListRuns returns archived runs matching the filter, newest first.
func (m *MemoryStore) ListRuns(ctx context.Context, filter *archive.RunFilter) ([]*archive.RunRecord, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*archive.RunRecord
	for _, rec := range m.runs {
		if filter.Matches(rec) {
			matched = append(matched, cloneRecord(rec))
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].StartedAt.After(matched[j].StartedAt)
	})

	total := len(matched)
	if filter != nil {
		if filter.Offset > 0 {
			if filter.Offset >= len(matched) {
				matched = nil
			} else {
				matched = matched[filter.Offset:]
			}
		}
		if filter.Limit > 0 && filter.Limit < len(matched) {
			matched = matched[:filter.Limit]
		}
	}
	return matched, total, nil
}

// DeleteRun removes an archived run.
func (m *MemoryStore) DeleteRun(ctx context.Context, runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.runs[runID]; !exists {
		return &archive.NotFoundError{RunID: runID}
	}
	delete(m.runs, runID)
	return nil
}

// Close implements archive.Store. No resources to release.
func (m *MemoryStore) Close() error {
	return nil
}

// cloneRecord deep-copies a record so callers cannot mutate stored state.
func cloneRecord(rec *archive.RunRecord) *archive.RunRecord {
	copied := *rec
	if rec.Tasks != nil {
		copied.Tasks = make(map[string]*archive.TaskRecord, len(rec.Tasks))
		for id, task := range rec.Tasks {
			taskCopy := *task
			copied.Tasks[id] = &taskCopy
		}
	}
	if rec.Metadata != nil {
		copied.Metadata = make(map[string]string, len(rec.Metadata))
		for k, v := range rec.Metadata {
			copied.Metadata[k] = v
		}
	}
	return &copied
}
