// Package badger provides a Badger-based implementation of the run archive.
package badger

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"

	"github.com/mailsift/mailsift/pkg/archive"
)

// Config holds configuration for BadgerStore.
type Config struct {
	Path       string
	SyncWrites bool
}

// BadgerStore implements archive.Store using Badger.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens the archive database at the configured path.
func NewBadgerStore(config *Config) (*BadgerStore, error) {
	opts := badger.DefaultOptions(config.Path)
	opts.SyncWrites = config.SyncWrites
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, &archive.UnavailableError{Cause: err}
	}
	return &BadgerStore{db: db}, nil
}

func runKey(runID string) []byte {
	return []byte(fmt.Sprintf("run:%s", runID))
}

var runKeyPrefix = []byte("run:")

func serialize(rec *archive.RunRecord) ([]byte, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, &archive.SerializationError{Operation: "marshal", Cause: err}
	}
	return data, nil
}

func deserialize(data []byte, rec *archive.RunRecord) error {
	if err := json.Unmarshal(data, rec); err != nil {
		return &archive.SerializationError{Operation: "unmarshal", Cause: err}
	}
	return nil
}

// SaveRun archives a finished run.
func (b *BadgerStore) SaveRun(ctx context.Context, rec *archive.RunRecord) error {
	data, err := serialize(rec)
	if err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(runKey(rec.RunID), data)
	})
}

// GetRun retrieves an archived run by ID.
func (b *BadgerStore) GetRun(ctx context.Context, runID string) (*archive.RunRecord, error) {
	var rec archive.RunRecord
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(runKey(runID))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return &archive.NotFoundError{RunID: runID}
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return deserialize(val, &rec)
		})
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListRuns returns archived runs matching the filter, newest first.
func (b *BadgerStore) ListRuns(ctx context.Context, filter *archive.RunFilter) ([]*archive.RunRecord, int, error) {
	var matched []*archive.RunRecord

	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = runKeyPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var rec archive.RunRecord
			err := it.Item().Value(func(val []byte) error {
				return deserialize(val, &rec)
			})
			if err != nil {
				return err
			}
			if filter.Matches(&rec) {
				matched = append(matched, &rec)
			}
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
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
func (b *BadgerStore) DeleteRun(ctx context.Context, runID string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(runKey(runID)); err != nil {
			if err == badger.ErrKeyNotFound {
				return &archive.NotFoundError{RunID: runID}
			}
			return err
		}
		return txn.Delete(runKey(runID))
	})
}

// Close closes the underlying database.
func (b *BadgerStore) Close() error {
	return b.db.Close()
}
