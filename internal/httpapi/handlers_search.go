package httpapi

import (
	"net/http"

	"github.com/archon-iirc/archon/internal/search"
)

type searchRequest struct {
	Query      string `json:"query" validate:"required"`
	Source     string `json:"source"`
	MatchCount int    `json:"match_count"`
	ReturnMode string `json:"return_mode"`
	Hybrid     bool   `json:"hybrid"`
	Rerank     bool   `json:"rerank"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", "invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION", err.Error())
		return
	}

	opts := search.Options{
		MatchCount:   req.MatchCount,
		SourceFilter: req.Source,
		ReturnMode:   search.ReturnMode(req.ReturnMode),
		UseHybrid:    req.Hybrid,
		UseReranking: req.Rerank,
	}.Normalize()

	collection := "docs"
	resp, err := s.engine.Query(r.Context(), collection, req.Query, opts)
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":     resp.Success,
		"results":     resp.Results,
		"search_mode": resp.SearchMode,
		"total_found": resp.TotalFound,
	})
}
