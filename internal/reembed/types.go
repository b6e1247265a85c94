// Package reembed implements the bulk recomputation engine that rewrites
// chunk embeddings into a new dimension column when the active embedding
// model changes, per spec.md §4.11.
package reembed

import (
	"fmt"

	"github.com/archon-iirc/archon/internal/embedding"
	"github.com/archon-iirc/archon/internal/progress"
	"github.com/archon-iirc/archon/internal/vectorstore"
)

// PageSize is the stable-order page width ReEmbedService walks, fixed per spec.md §4.11.
const PageSize = 100

// Dependencies are the injected collaborators a Service needs.
type Dependencies struct {
	Tracker  *progress.Tracker
	Store    vectorstore.ReEmbedStore
	Embedder embedding.Provider
}

func (d Dependencies) validate() error {
	if d.Tracker == nil {
		return fmt.Errorf("reembed: progress tracker is required")
	}
	if d.Store == nil {
		return fmt.Errorf("reembed: re-embed store is required")
	}
	if d.Embedder == nil {
		return fmt.Errorf("reembed: embedding provider is required")
	}
	return nil
}

// Result summarizes one completed or stopped re-embed run.
type Result struct {
	ProgressID      string
	ChunksProcessed int
	ChunksFailed    int
	EmbeddingModel  string
}

func checkpoint(tracker *progress.Tracker, id string) bool {
	return tracker.IsActive(id)
}

// clampPercent keeps a progress update inside the 15-95 range §4.11 reserves
// for the page-walking phase, leaving room for start/complete bookends.
func clampPercent(n int) int {
	if n < 15 {
		return 15
	}
	if n > 95 {
		return 95
	}
	return n
}
