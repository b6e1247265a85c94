package httpapi

import (
	"context"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/archon-iirc/archon/internal/apperr"
	"github.com/archon-iirc/archon/internal/reembed"
)

// reembedStats tracks the outcome of the most recently started re-embed run,
// since Service.Start only returns its Result once the whole walk finishes.
type reembedStats struct {
	mu   sync.Mutex
	last reembed.Result
	err  error
}

func (rs *reembedStats) record(result reembed.Result, err error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.last = result
	rs.err = err
}

func (rs *reembedStats) snapshot() (reembed.Result, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.last, rs.err
}

type reembedRequest struct {
	Collection string `json:"collection" validate:"required"`
}

func (s *Server) handleReembedStart(w http.ResponseWriter, r *http.Request) {
	var req reembedRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", err.Error())
		return
	}
	if s.reembedSvc.Active() {
		writeAppError(w, apperr.Conflict("a re-embed job is already running", nil))
		return
	}

	go func() {
		result, err := s.reembedSvc.Start(context.Background(), req.Collection)
		s.reembedStats.record(result, err)
	}()

	writeJSON(w, http.StatusAccepted, map[string]any{"status": "starting"})
}

func (s *Server) handleReembedStop(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "progressID")
	s.reembedSvc.Stop(id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReembedStats(w http.ResponseWriter, r *http.Request) {
	result, err := s.reembedStats.snapshot()
	body := map[string]any{
		"active":           s.reembedSvc.Active(),
		"last_progress_id": result.ProgressID,
		"chunks_processed": result.ChunksProcessed,
		"chunks_failed":    result.ChunksFailed,
		"embedding_model":  result.EmbeddingModel,
	}
	if err != nil {
		body["last_error"] = err.Error()
	}
	writeJSON(w, http.StatusOK, body)
}
