package ingest

import (
	"context"
	"log/slog"
	"strings"

	"github.com/archon-iirc/archon/internal/codeextract"
	"github.com/archon-iirc/archon/internal/model"
	"github.com/archon-iirc/archon/internal/vectorstore"
)

// embedTarget is the common shape embedItems needs from a Chunk or a
// CodeExample to build an embedding request and, on success, a VectorDocument.
type embedTarget struct {
	id       string
	sourceID string
	url      string
	text     string
	metadata map[string]any
}

func chunkEmbedItems(chunks []*model.Chunk) []embedTarget {
	items := make([]embedTarget, len(chunks))
	for i, c := range chunks {
		items[i] = embedTarget{
			id: c.ID, sourceID: c.SourceID, url: c.URL, text: c.Content,
			metadata: mergeMetadata(c.Metadata, map[string]any{"chunk_number": c.ChunkNumber}),
		}
	}
	return items
}

func codeEmbedItems(examples []*model.CodeExample) []embedTarget {
	items := make([]embedTarget, len(examples))
	for i, ex := range examples {
		items[i] = embedTarget{
			id: ex.ID, sourceID: ex.SourceID, url: ex.URL, text: ex.Content,
			metadata: mergeMetadata(ex.Metadata, map[string]any{"language": ex.Language}),
		}
	}
	return items
}

func mergeMetadata(base map[string]any, extra map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// embedItems batch-embeds items against job.EmbeddingBatchSize, retrying a
// batch once on transport error and tolerating per-item failures per
// spec.md §4.6, returning VectorDocuments ready for Store.Upsert.
func (p *Pipeline) embedItems(ctx context.Context, job Job, items []embedTarget) ([]vectorstore.VectorDocument, int) {
	var docs []vectorstore.VectorDocument
	failures := 0

	for start := 0; start < len(items); start += job.EmbeddingBatchSize {
		end := start + job.EmbeddingBatchSize
		if end > len(items) {
			end = len(items)
		}
		batch := items[start:end]

		texts := make([]string, len(batch))
		for i, item := range batch {
			texts[i] = item.text
		}

		resp, err := p.deps.Embedder.EmbedBatch(ctx, texts)
		if err != nil {
			resp, err = p.deps.Embedder.EmbedBatch(ctx, texts)
			if err != nil {
				slog.Warn("embedding batch failed after retry", slog.String("error", err.Error()))
				failures += len(batch)
				continue
			}
		}

		for _, res := range resp.Results {
			if res.Err != nil {
				failures++
				continue
			}
			item := batch[res.Index]
			docs = append(docs, vectorstore.VectorDocument{
				ID:       item.id,
				SourceID: item.sourceID,
				URL:      item.url,
				Content:  item.text,
				Metadata: item.metadata,
				Embedding: model.Embedding{
					Vector:    res.Embedding,
					Model:     resp.Model,
					Dimension: res.Dimension,
				},
			})
		}
	}

	return docs, failures
}

func extractCode(markdown string, minLength int) []codeextract.Example {
	return codeextract.Extract(markdown, minLength)
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}
