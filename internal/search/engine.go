package search

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/archon-iirc/archon/internal/apperr"
	"github.com/archon-iirc/archon/internal/embedding"
	"github.com/archon-iirc/archon/internal/metrics"
	"github.com/archon-iirc/archon/internal/model"
	"github.com/archon-iirc/archon/internal/vectorstore"
)

// Engine implements spec.md §4.10: embed query, vector search, optional
// keyword union, optional rerank, chunk/page shaping, deterministic
// tie-break. One Engine instance serves both the chunk collection and the
// code-example collection — callers pass the target collection name.
type Engine struct {
	store     vectorstore.Store
	embedder  embedding.Provider
	keyword   KeywordIndex // nil disables hybrid mode regardless of opts.UseHybrid
	reranker  Reranker     // nil disables reranking regardless of opts.UseReranking
	pages     PageFetcher
	maxPageChars int
	queryMetrics *metrics.QueryMetrics
}

type EngineOption func(*Engine)

func WithKeywordIndex(k KeywordIndex) EngineOption { return func(e *Engine) { e.keyword = k } }
func WithReranker(r Reranker) EngineOption         { return func(e *Engine) { e.reranker = r } }
func WithPageFetcher(p PageFetcher) EngineOption   { return func(e *Engine) { e.pages = p } }
func WithMaxPageChars(n int) EngineOption          { return func(e *Engine) { e.maxPageChars = n } }

// WithQueryMetrics enables per-query telemetry recording (query type,
// latency bucket, zero-result tracking) against m.
func WithQueryMetrics(m *metrics.QueryMetrics) EngineOption {
	return func(e *Engine) { e.queryMetrics = m }
}

func NewEngine(store vectorstore.Store, embedder embedding.Provider, opts ...EngineOption) *Engine {
	e := &Engine{store: store, embedder: embedder, reranker: &NoOpReranker{}, maxPageChars: DefaultMaxPageChars}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Query runs the full hybrid pipeline against collection and returns either
// chunk or page results per opts.ReturnMode.
func (e *Engine) Query(ctx context.Context, collection, query string, opts Options) (Response, error) {
	if query == "" {
		return Response{}, apperr.Validation("query must not be empty", nil)
	}
	opts = opts.Normalize()
	started := time.Now()

	embedded, err := e.embedder.EmbedBatch(ctx, []string{query})
	if err != nil {
		return Response{}, apperr.Wrap(apperr.KindOf(err), err)
	}
	if len(embedded.Results) == 0 || embedded.Results[0].Err != nil {
		return Response{}, apperr.ProviderTransient("failed to embed query", nil)
	}
	queryVector := embedded.Results[0].Embedding

	filter := vectorstore.FilterCriteria{}
	if opts.SourceFilter != "" {
		filter["source_id"] = opts.SourceFilter
	}

	poolSize := opts.poolSize()
	hits, err := e.store.Search(ctx, collection, queryVector, poolSize, filter, 0)
	if err != nil {
		return Response{}, apperr.Wrap(apperr.KindOf(err), err)
	}

	results := make([]*ChunkResult, 0, len(hits))
	for _, h := range hits {
		results = append(results, &ChunkResult{
			Chunk:           chunkFromSearchResult(h),
			SimilarityScore: h.SimilarityScore,
		})
	}

	if opts.UseHybrid && e.keyword != nil {
		keywordIDs, err := e.keyword.Search(ctx, query, opts.SourceFilter, poolSize)
		if err != nil {
			return Response{}, apperr.Wrap(apperr.KindOf(err), err)
		}
		results = fuseHybrid(results, keywordIDs)
	}

	if opts.UseReranking && e.reranker != nil {
		if err := e.applyRerank(ctx, query, results); err != nil {
			return Response{}, err
		}
	}

	sortDeterministic(results)
	if len(results) > opts.MatchCount {
		results = results[:opts.MatchCount]
	}

	if opts.ReturnMode == ReturnModePages {
		pages, err := e.groupByPage(ctx, results)
		if err != nil {
			return Response{}, err
		}
		e.recordQuery(query, opts, started, len(pages))
		return Response{Success: true, Results: pages, SearchMode: ReturnModePages, TotalFound: len(pages)}, nil
	}

	e.recordQuery(query, opts, started, len(results))
	return Response{Success: true, Results: results, SearchMode: ReturnModeChunks, TotalFound: len(results)}, nil
}

// recordQuery reports a completed query to the optional QueryMetrics
// collector. A nil collector (the default) makes this a no-op.
func (e *Engine) recordQuery(query string, opts Options, started time.Time, resultCount int) {
	if e.queryMetrics == nil {
		return
	}
	queryType := metrics.QueryTypeSemantic
	if opts.UseHybrid && e.keyword != nil {
		queryType = metrics.QueryTypeMixed
	}
	e.queryMetrics.Record(metrics.QueryEvent{
		Query:       query,
		QueryType:   queryType,
		SourceID:    opts.SourceFilter,
		ResultCount: resultCount,
		Latency:     time.Since(started),
		Timestamp:   started,
	})
}

func (e *Engine) applyRerank(ctx context.Context, query string, results []*ChunkResult) error {
	if len(results) == 0 {
		return nil
	}
	docs := make([]string, len(results))
	for i, r := range results {
		docs[i] = r.Chunk.Content
	}
	reranked, err := e.reranker.Rerank(ctx, query, docs, 0)
	if err != nil {
		return apperr.ProviderTransient("reranking failed", err)
	}
	for _, rr := range reranked {
		if rr.Index < 0 || rr.Index >= len(results) {
			continue
		}
		score := rr.Score
		results[rr.Index].RerankScore = &score
	}
	return nil
}

func (e *Engine) groupByPage(ctx context.Context, results []*ChunkResult) ([]*PageResult, error) {
	type pageEntry struct {
		page  *model.Page
		score float64
	}
	best := map[string]*pageEntry{}
	order := []string{}

	for _, r := range results {
		pageID := r.Chunk.PageID
		score := r.SimilarityScore
		if r.RerankScore != nil {
			score = *r.RerankScore
		}
		if entry, ok := best[pageID]; ok {
			if score > entry.score {
				entry.score = score
			}
			continue
		}
		page, err := e.fetchPage(ctx, pageID)
		if err != nil {
			return nil, err
		}
		best[pageID] = &pageEntry{page: page, score: score}
		order = append(order, pageID)
	}

	out := make([]*PageResult, 0, len(order))
	for _, pageID := range order {
		entry := best[pageID]
		pr := &PageResult{Page: entry.page, SimilarityScore: entry.score}
		if len(pr.Page.FullContent) > e.maxPageChars {
			placeholder := *pr.Page
			placeholder.FullContent = fmt.Sprintf("[content truncated: %d characters, request the page directly for full content]", len(pr.Page.FullContent))
			pr.Page = &placeholder
			pr.Truncated = true
		}
		out = append(out, pr)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].SimilarityScore > out[j].SimilarityScore })
	return out, nil
}

func (e *Engine) fetchPage(ctx context.Context, pageID string) (*model.Page, error) {
	if e.pages == nil {
		return nil, apperr.Internal("pages mode requested but no page fetcher configured", nil)
	}
	page, err := e.pages.GetPage(ctx, pageID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindOf(err), err)
	}
	return page, nil
}

func chunkFromSearchResult(h vectorstore.SearchResult) *model.Chunk {
	return &model.Chunk{
		ID:          h.ID,
		SourceID:    h.SourceID,
		URL:         h.URL,
		Content:     h.Content,
		Metadata:    h.Metadata,
		ChunkNumber: h.ChunkNumber,
		PageID:      pageIDFromMetadata(h.Metadata),
	}
}

func pageIDFromMetadata(meta map[string]any) string {
	if meta == nil {
		return ""
	}
	if v, ok := meta["page_id"].(string); ok {
		return v
	}
	return ""
}
