// Package chunk splits a markdown document into an ordered sequence of
// character-bounded chunks, never splitting a fenced code block, per
// spec.md §4.4.
package chunk

import (
	"context"

	"github.com/archon-iirc/archon/internal/model"
)

// DefaultChunkSize is used when a caller does not override it.
const DefaultChunkSize = 5000

// Chunker splits one page's markdown body into model.Chunk records, each
// carrying the page's identity and a sequential chunk_number.
type Chunker interface {
	ChunkPage(ctx context.Context, page *model.Page, chunkSize int) ([]*model.Chunk, error)
}
