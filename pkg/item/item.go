// Package item defines the unit-of-work data model for batch processing:
// items, chunks of oversized items, and the chunker contract.
package item

import (
	"fmt"
)

// Item is one logical unit of work with a stable identity. Items are
// supplied by the caller at batch start and are immutable during processing.
type Item struct {
	// ID uniquely identifies the item within a batch.
	ID string

	// Content is the raw payload (e.g., a message body).
	Content []byte

	// Metadata carries caller-supplied attributes, passed through untouched.
	Metadata map[string]string
}

// Size returns the item's size measure in bytes.
func (it Item) Size() int {
	return len(it.Content)
}

// Validate checks that the item can be processed.
func (it Item) Validate() error {
	if it.ID == "" {
		return fmt.Errorf("item ID cannot be empty")
	}
	return nil
}

// ChunkMeta identifies a chunk's place within its parent item.
type ChunkMeta struct {
	// ItemID is the parent item's ID.
	ItemID string

	// Ordinal is the zero-based position of the chunk within the item.
	Ordinal int

	// Total is the number of chunks the item was split into.
	Total int
}

// Chunk is a (content, metadata) fragment of an oversized item. Chunks are
// owned by the batch run that requested them and discarded once their
// outcome is folded into the parent item's result.
type Chunk struct {
	Content []byte
	Meta    ChunkMeta
}

// ChunkFormatError reports a malformed chunker response. It is isolated to
// one item: the item fails, the batch continues.
type ChunkFormatError struct {
	ItemID string
	Reason string
}

func (e *ChunkFormatError) Error() string {
	return fmt.Sprintf("malformed chunk response for item %s: %s", e.ItemID, e.Reason)
}
