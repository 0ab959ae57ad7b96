package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mailsift/mailsift/pkg/item"
)

// Unit is one schedulable piece of work: a whole item, or a single chunk of
// an oversized item. Chunk is nil for whole items.
type Unit struct {
	ItemID   string
	Content  []byte
	Metadata map[string]string
	Chunk    *item.ChunkMeta
}

// Handler processes one unit. Return nil on success; wrap retryable errors
// with MarkTransient.
type Handler func(ctx context.Context, u Unit) error

// itemState folds chunk outcomes back into a single per-item outcome. The
// parent item succeeds only if every chunk succeeded; the first failing
// chunk determines the recorded error.
type itemState struct {
	id string

	mu        sync.Mutex
	remaining int
	failed    bool
	firstKind ErrorKind
	firstMsg  string
	finished  bool
}

func newItemState(id string, units int) *itemState {
	return &itemState{id: id, remaining: units}
}

// unitFinished records one unit outcome. It returns true exactly once, when
// the last unit of the item completes.
func (s *itemState) unitFinished(kind ErrorKind, msg string, failed bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if failed && !s.failed {
		s.failed = true
		s.firstKind = kind
		s.firstMsg = msg
	}
	s.remaining--
	if s.remaining == 0 && !s.finished {
		s.finished = true
		return true
	}
	return false
}

// outcome returns the folded item outcome. Valid only after unitFinished
// has returned true.
func (s *itemState) outcome() (failed bool, kind ErrorKind, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failed, s.firstKind, s.firstMsg
}

// completed reports whether all units of the item have finished.
func (s *itemState) completed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finished
}

// expand turns an item into its schedulable units, consulting the chunker
// for items above the size threshold. A chunker failure of any shape is
// confined to the item and reported as a ChunkFormatError.
func (p *Processor) expand(ctx context.Context, it item.Item, opts Options) ([]Unit, *item.ChunkFormatError) {
	oversized := opts.ChunkSizeThreshold > 0 && it.Size() > opts.ChunkSizeThreshold
	if !oversized || p.chunker == nil {
		return []Unit{{ItemID: it.ID, Content: it.Content, Metadata: it.Metadata}}, nil
	}

	chunks, err := p.safeChunk(ctx, it)
	if err != nil {
		return nil, err
	}

	units := make([]Unit, len(chunks))
	for i, c := range chunks {
		meta := c.Meta
		units[i] = Unit{
			ItemID:   it.ID,
			Content:  c.Content,
			Metadata: it.Metadata,
			Chunk:    &meta,
		}
	}
	return units, nil
}

// safeChunk invokes the chunker with panic confinement and normalizes the
// response at the boundary.
func (p *Processor) safeChunk(ctx context.Context, it item.Item) (chunks []item.Chunk, cfe *item.ChunkFormatError) {
	defer func() {
		if r := recover(); r != nil {
			chunks = nil
			cfe = &item.ChunkFormatError{ItemID: it.ID, Reason: fmt.Sprintf("chunker panicked: %v", r)}
		}
	}()

	raw, err := p.chunker.Chunk(ctx, it)
	if err != nil {
		var formatErr *item.ChunkFormatError
		if errors.As(err, &formatErr) {
			return nil, formatErr
		}
		return nil, &item.ChunkFormatError{ItemID: it.ID, Reason: err.Error()}
	}

	normalized, err := item.Normalize(it, raw)
	if err != nil {
		var formatErr *item.ChunkFormatError
		if errors.As(err, &formatErr) {
			return nil, formatErr
		}
		return nil, &item.ChunkFormatError{ItemID: it.ID, Reason: err.Error()}
	}
	return normalized, nil
}
