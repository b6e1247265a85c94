package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/archon-iirc/archon/internal/model"
)

const pageTruncationNotice = "\n\n[... content truncated, use GET /api/pages/{id} for the full page ...]"

func (s *Server) truncate(p *model.Page) *model.Page {
	if p == nil || len(p.FullContent) <= s.maxPageChars {
		return p
	}
	clone := *p
	clone.FullContent = p.FullContent[:s.maxPageChars] + pageTruncationNotice
	return &clone
}

func (s *Server) handleListPages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sourceID := q.Get("source_id")
	limit := 50
	offset := 0
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	pages, err := s.pages.ListPages(r.Context(), sourceID, limit, offset)
	if err != nil {
		writeAppError(w, err)
		return
	}
	for i, p := range pages {
		pages[i] = s.truncate(p)
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "pages": pages, "count": len(pages)})
}

func (s *Server) handleGetPage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	page, err := s.pages.GetPage(r.Context(), id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "page": page})
}

func (s *Server) handleGetPageByURL(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sourceID := q.Get("source_id")
	url := q.Get("url")
	if sourceID == "" || url == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION", "source_id and url are both required")
		return
	}
	page, err := s.pages.GetPageByURL(r.Context(), sourceID, url)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "page": s.truncate(page)})
}
