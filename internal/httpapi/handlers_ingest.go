package httpapi

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/archon-iirc/archon/internal/crawler"
	"github.com/archon-iirc/archon/internal/docproc"
	"github.com/archon-iirc/archon/internal/ingest"
	"github.com/archon-iirc/archon/internal/vectorstore"
)

var validate = validator.New()

type crawlRequest struct {
	SourceID string `json:"source_id" validate:"required"`
	URL      string `json:"url" validate:"required,url"`
	MaxDepth int    `json:"max_depth"`
}

// handleCrawl starts a crawl job asynchronously, returning its progress id
// immediately so the client can poll /api/crawl-progress/{id}.
func (s *Server) handleCrawl(w http.ResponseWriter, r *http.Request) {
	var req crawlRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", err.Error())
		return
	}

	progressID := uuid.NewString()
	collection := "docs"
	if err := s.ensureCollections(r.Context(), collection); err != nil {
		writeAppError(w, err)
		return
	}

	job := ingest.Job{
		ProgressID: progressID,
		SourceID:   req.SourceID,
		Seed:       req.URL,
		Collection: collection,
		CrawlOptions: crawler.Options{
			MaxDepth: req.MaxDepth,
		},
	}

	go func() {
		_, _ = s.pipeline.Run(context.Background(), job)
	}()

	writeJSON(w, http.StatusAccepted, map[string]any{"progress_id": progressID, "status": "starting"})
}

// handleUpload processes a pre-fetched document set synchronously-launched,
// asynchronously-completed, mirroring handleCrawl's shape.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "invalid multipart form")
		return
	}
	sourceID := r.FormValue("source_id")
	if sourceID == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION", "source_id is required")
		return
	}

	var docs []docproc.RawDocument
	for _, fh := range r.MultipartForm.File["files"] {
		f, err := fh.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION", "could not read uploaded file")
			return
		}
		content := make([]byte, fh.Size)
		if _, err := f.Read(content); err != nil {
			_ = f.Close()
			continue
		}
		_ = f.Close()
		docs = append(docs, docproc.RawDocument{Filename: fh.Filename, Content: content, Format: docproc.FormatMarkdown})
	}
	if len(docs) == 0 {
		writeError(w, http.StatusBadRequest, "VALIDATION", "no files uploaded")
		return
	}

	progressID := uuid.NewString()
	collection := "docs"
	if err := s.ensureCollections(r.Context(), collection); err != nil {
		writeAppError(w, err)
		return
	}

	job := ingest.UploadJob{
		Job: ingest.Job{
			ProgressID: progressID,
			SourceID:   sourceID,
			Collection: collection,
		},
		Documents: docs,
	}

	go func() {
		_, _ = s.pipeline.RunUpload(context.Background(), job)
	}()

	writeJSON(w, http.StatusAccepted, map[string]any{"progress_id": progressID, "status": "starting"})
}

func (s *Server) handleProgressGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "progressID")
	rec, ok := s.tracker.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "unknown progress id")
		return
	}
	w.Header().Set("ETag", string(rec.Status)+"-"+strconv.Itoa(rec.Progress))
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleProgressStop(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "progressID")
	s.tracker.Stop(id)
	w.WriteHeader(http.StatusNoContent)
}

// ensureCollections creates both the chunk collection and its paired
// code-example collection before a job writes to either.
func (s *Server) ensureCollections(ctx context.Context, collection string) error {
	dim := s.embedder.Dimensions()
	if err := s.store.CreateCollection(ctx, collection, dim, vectorstore.MetricCosine); err != nil {
		return err
	}
	return s.store.CreateCollection(ctx, ingest.CodeCollection(collection), dim, vectorstore.MetricCosine)
}
