package toolbridge

import (
	"context"
	"encoding/json"
	"time"

	"github.com/archon-iirc/archon/internal/apperr"
	"github.com/archon-iirc/archon/internal/ingest"
	"github.com/archon-iirc/archon/internal/search"
	"github.com/archon-iirc/archon/internal/vectorstore"
)

// DefaultCollection is the chunk collection perform_rag_query searches when
// a request does not otherwise scope itself. It matches the collection name
// internal/httpapi's search and ingest handlers default to.
const DefaultCollection = "docs"

// Bridge dispatches spec.md §4.12's fixed tool vocabulary over JSON-RPC.
// One Bridge serves every session; SessionManager is the only per-call
// mutable state it owns.
type Bridge struct {
	engine   *search.Engine
	pages    vectorstore.PageStore
	sessions *SessionManager
}

// New builds a Bridge. sessionTimeoutSeconds <= 0 falls back to
// DefaultSessionTimeout.
func New(engine *search.Engine, pages vectorstore.PageStore, sessionTimeoutSeconds int) *Bridge {
	timeout := DefaultSessionTimeout
	if sessionTimeoutSeconds > 0 {
		timeout = time.Duration(sessionTimeoutSeconds) * time.Second
	}
	return &Bridge{
		engine:   engine,
		pages:    pages,
		sessions: NewSessionManager(timeout),
	}
}

// Sessions exposes the Bridge's SessionManager for callers (handleRPC) that
// need to resolve a session before dispatching.
func (b *Bridge) Sessions() *SessionManager { return b.sessions }

// Dispatch resolves the session for sessionID/clientID, then routes method
// to its tool implementation. The returned *RPCError is already a
// vendor-neutral JSON-RPC error; callers must not wrap tool errors further.
func (b *Bridge) Dispatch(ctx context.Context, sessionID, clientID, method string, params json.RawMessage) (any, string, *RPCError) {
	session := b.sessions.Resolve(sessionID, clientID)

	var (
		result any
		err    error
	)
	switch method {
	case "perform_rag_query":
		result, err = b.performRAGQuery(ctx, params)
	case "search_code_examples":
		result, err = b.searchCodeExamples(ctx, params)
	case "get_available_sources":
		result, err = b.getAvailableSources(ctx)
	case "manage_project":
		result, err = manageStub("manage_project", params)
	case "manage_document":
		result, err = manageStub("manage_document", params)
	case "manage_task":
		result, err = manageStub("manage_task", params)
	default:
		return nil, session.ID, MethodNotFoundError(method)
	}
	if err != nil {
		return nil, session.ID, MapError(err)
	}
	return result, session.ID, nil
}

type ragQueryParams struct {
	Query      string `json:"query"`
	Source     string `json:"source"`
	MatchCount int    `json:"match_count"`
}

// performRAGQuery implements spec.md §4.12's perform_rag_query: a
// chunks-mode wrapper over §4.10's hybrid search engine.
func (b *Bridge) performRAGQuery(ctx context.Context, raw json.RawMessage) (any, error) {
	var p ragQueryParams
	if err := unmarshalParams(raw, &p); err != nil {
		return nil, err
	}
	if p.Query == "" {
		return nil, apperr.Validation("query is required", nil)
	}

	opts := search.Options{
		MatchCount:   p.MatchCount,
		SourceFilter: p.Source,
		ReturnMode:   search.ReturnModeChunks,
	}.Normalize()

	resp, err := b.engine.Query(ctx, DefaultCollection, p.Query, opts)
	if err != nil {
		return nil, err
	}
	return responseEnvelope(resp), nil
}

type codeExampleParams struct {
	Query      string `json:"query"`
	SourceID   string `json:"source_id"`
	MatchCount int    `json:"match_count"`
}

// searchCodeExamples implements spec.md §4.12's search_code_examples: §4.10
// run against the paired code-example collection rather than prose chunks.
func (b *Bridge) searchCodeExamples(ctx context.Context, raw json.RawMessage) (any, error) {
	var p codeExampleParams
	if err := unmarshalParams(raw, &p); err != nil {
		return nil, err
	}
	if p.Query == "" {
		return nil, apperr.Validation("query is required", nil)
	}

	opts := search.Options{
		MatchCount:   p.MatchCount,
		SourceFilter: p.SourceID,
		ReturnMode:   search.ReturnModeChunks,
	}.Normalize()

	resp, err := b.engine.Query(ctx, ingest.CodeCollection(DefaultCollection), p.Query, opts)
	if err != nil {
		return nil, err
	}
	return responseEnvelope(resp), nil
}

// sourceSummary is get_available_sources' per-source payload shape.
type sourceSummary struct {
	SourceID       string `json:"source_id"`
	Title          string `json:"title"`
	Summary        string `json:"summary"`
	TotalWordCount int    `json:"total_word_count"`
}

func (b *Bridge) getAvailableSources(ctx context.Context) (any, error) {
	sources, err := b.pages.ListSources(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]sourceSummary, 0, len(sources))
	for _, s := range sources {
		out = append(out, sourceSummary{
			SourceID:       s.SourceID,
			Title:          s.Title,
			Summary:        s.Summary,
			TotalWordCount: s.TotalWordCount,
		})
	}
	return map[string]any{"success": true, "sources": out, "total_found": len(out)}, nil
}

// manageStub implements manage_project/manage_document/manage_task per
// spec.md §4.12: these are thin CRUD surfaces over external collaborators
// that are explicitly out of scope for this core. The contract is only
// "accept arbitrary keyword parameters, return JSON" — there is no project,
// document, or task store behind this bridge to actually mutate.
func manageStub(tool string, raw json.RawMessage) (any, error) {
	var params map[string]any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &params); err != nil {
			return nil, apperr.Validation("params must be a JSON object", err)
		}
	}
	action, _ := params["action"].(string)
	if action == "" {
		return nil, apperr.Validation("action is required", nil)
	}
	return map[string]any{
		"success": true,
		"tool":    tool,
		"action":  action,
		"params":  params,
	}, nil
}

func unmarshalParams(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return apperr.Validation("invalid params", err)
	}
	return nil
}

// responseEnvelope mirrors the HTTP search endpoint's JSON shape so callers
// get the same {success, results, search_mode, total_found} regardless of
// which surface they used.
func responseEnvelope(resp search.Response) map[string]any {
	return map[string]any{
		"success":     resp.Success,
		"results":     resp.Results,
		"search_mode": resp.SearchMode,
		"total_found": resp.TotalFound,
	}
}
