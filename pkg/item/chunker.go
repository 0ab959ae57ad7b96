package item

import (
	"context"
	"fmt"
)

// Chunker splits an oversized item into an ordered sequence of chunks that
// together cover the full item content. Implementations are external
// collaborators; responses are normalized before use.
type Chunker interface {
	Chunk(ctx context.Context, it Item) ([]Chunk, error)
}

// ChunkerFunc adapts a function to the Chunker interface.
type ChunkerFunc func(ctx context.Context, it Item) ([]Chunk, error)

// Chunk implements Chunker.
func (f ChunkerFunc) Chunk(ctx context.Context, it Item) ([]Chunk, error) {
	return f(ctx, it)
}

// Normalize validates a chunker response for an item and fills in missing
// metadata. Any malformed shape becomes a ChunkFormatError so call sites
// never branch on response shape:
//   - the response must be non-empty
//   - each chunk's ItemID must be empty (filled in) or match the item
//   - ordinals must be contiguous from zero, in order
//   - chunk contents must cover the item exactly, with no gaps or overlap
func Normalize(it Item, chunks []Chunk) ([]Chunk, error) {
	if len(chunks) == 0 {
		return nil, &ChunkFormatError{ItemID: it.ID, Reason: "empty chunk sequence"}
	}

	covered := 0
	out := make([]Chunk, len(chunks))
	for i, c := range chunks {
		if c.Meta.ItemID == "" {
			c.Meta.ItemID = it.ID
		}
		if c.Meta.ItemID != it.ID {
			return nil, &ChunkFormatError{
				ItemID: it.ID,
				Reason: fmt.Sprintf("chunk %d tagged with foreign item %s", i, c.Meta.ItemID),
			}
		}
		if c.Meta.Ordinal == 0 && i != 0 {
			// Ordinals left unset by the chunker are assigned here.
			c.Meta.Ordinal = i
		}
		if c.Meta.Ordinal != i {
			return nil, &ChunkFormatError{
				ItemID: it.ID,
				Reason: fmt.Sprintf("non-contiguous ordinal %d at position %d", c.Meta.Ordinal, i),
			}
		}
		if len(c.Content) == 0 {
			return nil, &ChunkFormatError{
				ItemID: it.ID,
				Reason: fmt.Sprintf("chunk %d has empty content", i),
			}
		}
		c.Meta.Total = len(chunks)
		covered += len(c.Content)
		out[i] = c
	}

	if covered != it.Size() {
		return nil, &ChunkFormatError{
			ItemID: it.ID,
			Reason: fmt.Sprintf("chunks cover %d bytes, item has %d", covered, it.Size()),
		}
	}

	return out, nil
}

// SizeChunker is a reference Chunker that splits content on a fixed byte
// budget. Production deployments typically plug in a semantic splitter; this
// implementation is used by examples and tests.
type SizeChunker struct {
	// MaxChunkSize is the maximum chunk content length in bytes.
	MaxChunkSize int
}

// Chunk implements Chunker.
func (c SizeChunker) Chunk(ctx context.Context, it Item) ([]Chunk, error) {
	if c.MaxChunkSize <= 0 {
		return nil, fmt.Errorf("max chunk size must be positive, got %d", c.MaxChunkSize)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	size := it.Size()
	total := size / c.MaxChunkSize
	if size%c.MaxChunkSize > 0 {
		total++
	}
	if total == 0 {
		total = 1
	}

	chunks := make([]Chunk, 0, total)
	for i := 0; i < total; i++ {
		start := i * c.MaxChunkSize
		end := start + c.MaxChunkSize
		if end > size {
			end = size
		}
		chunks = append(chunks, Chunk{
			Content: it.Content[start:end],
			Meta: ChunkMeta{
				ItemID:  it.ID,
				Ordinal: i,
				Total:   total,
			},
		})
	}

	return chunks, nil
}
