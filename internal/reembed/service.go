package reembed

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/archon-iirc/archon/internal/apperr"
	"github.com/archon-iirc/archon/internal/embedding"
	"github.com/archon-iirc/archon/internal/model"
)

// Service runs the §4.11 re-embed protocol. Only one run may be active at a
// time per spec.md §9's Open Question resolution: a second concurrent Start
// is rejected with a Conflict error rather than queued or interleaved.
type Service struct {
	deps Dependencies

	mu     sync.Mutex
	active bool
}

// New builds a Service, validating that every required dependency is present.
func New(deps Dependencies) (*Service, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	return &Service{deps: deps}, nil
}

// Start walks every chunk in collection, batch-re-embeds it with the
// currently configured provider, and rewrites its dimension column.
func (s *Service) Start(ctx context.Context, collection string) (Result, error) {
	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return Result{}, apperr.Conflict("a re-embed job is already running", nil)
	}
	s.active = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.active = false
		s.mu.Unlock()
	}()

	progressID := uuid.NewString()
	jobCtx, cancel := context.WithCancel(ctx)
	s.deps.Tracker.Start(progressID, model.OpReEmbed, map[string]any{"collection": collection}, cancel)

	result := Result{ProgressID: progressID, EmbeddingModel: s.deps.Embedder.ModelName()}

	afterID := ""
	for {
		if !checkpoint(s.deps.Tracker, progressID) {
			s.deps.Tracker.Update(progressID, model.StatusCancelled, clampPercent(result.ChunksProcessed), "cancelled during re-embed", nil)
			return result, apperr.Cancelled("re-embed job cancelled", nil)
		}

		rows, err := s.deps.Store.PageForReEmbed(jobCtx, collection, afterID, PageSize)
		if err != nil {
			s.deps.Tracker.Error(progressID, err.Error())
			return result, err
		}
		if len(rows) == 0 {
			break
		}

		texts := make([]string, len(rows))
		for i, row := range rows {
			texts[i] = row.Content
		}

		resp, err := s.deps.Embedder.EmbedBatch(jobCtx, texts)
		if err != nil {
			slog.Warn("re-embed batch failed", slog.String("collection", collection), slog.String("error", err.Error()))
			result.ChunksFailed += len(rows)
		} else {
			for _, res := range resp.Results {
				if res.Err != nil {
					result.ChunksFailed++
					continue
				}
				row := rows[res.Index]
				dim := embedding.RouteDimension(int(res.Dimension))
				emb := model.Embedding{Vector: res.Embedding, Model: resp.Model, Dimension: dim}
				if err := s.deps.Store.WriteReEmbedded(jobCtx, collection, row.ID, emb); err != nil {
					slog.Warn("re-embed write failed", slog.String("id", row.ID), slog.String("error", err.Error()))
					result.ChunksFailed++
					continue
				}
				result.ChunksProcessed++
			}
		}

		afterID = rows[len(rows)-1].ID
		s.deps.Tracker.Update(progressID, model.StatusEmbedding, clampPercent(15+result.ChunksProcessed), "re-embedding chunks", map[string]any{
			"chunks_processed": result.ChunksProcessed,
			"chunks_failed":    result.ChunksFailed,
		})

		if len(rows) < PageSize {
			break
		}
	}

	s.deps.Tracker.Complete(progressID, map[string]any{
		"chunks_processed": result.ChunksProcessed,
		"chunks_failed":    result.ChunksFailed,
		"embedding_model":  result.EmbeddingModel,
	})
	return result, nil
}

// Stop cancels the run registered under progressID. It has no effect on
// which job (if any) is currently holding the single-active-job slot beyond
// what the cancelled run's own defer releases.
func (s *Service) Stop(progressID string) bool {
	return s.deps.Tracker.Stop(progressID)
}

// Active reports whether a re-embed job is currently running.
func (s *Service) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}
