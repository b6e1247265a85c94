// Package search implements the hybrid vector-plus-keyword retrieval
// engine: embed the query, search the vector store, optionally union a
// keyword leg and rerank, then shape results as chunks or pages.
package search

import (
	"context"
	"time"

	"github.com/archon-iirc/archon/internal/model"
)

const (
	DefaultMatchCount = 10
	MaxMatchCount     = 50

	rerankPoolMultiplier  = 3
	plainPoolMultiplier   = 1
	DefaultMaxPageChars   = 20000
	defaultSearchTimeout  = 10 * time.Second
)

// ReturnMode selects whether Query returns chunk payloads or page-grouped results.
type ReturnMode string

const (
	ReturnModeChunks ReturnMode = "chunks"
	ReturnModePages  ReturnMode = "pages"
)

// Options configures one Query call.
type Options struct {
	MatchCount     int
	SourceFilter   string
	ReturnMode     ReturnMode
	UseHybrid      bool
	UseReranking   bool
}

// Normalize clamps MatchCount to [1, MaxMatchCount] and defaults ReturnMode.
func (o Options) Normalize() Options {
	if o.MatchCount <= 0 {
		o.MatchCount = DefaultMatchCount
	}
	if o.MatchCount > MaxMatchCount {
		o.MatchCount = MaxMatchCount
	}
	if o.ReturnMode == "" {
		o.ReturnMode = ReturnModeChunks
	}
	return o
}

func (o Options) poolSize() int {
	if o.UseReranking {
		return o.MatchCount * rerankPoolMultiplier
	}
	return o.MatchCount * plainPoolMultiplier
}

// ChunkResult is one scored chunk.
type ChunkResult struct {
	Chunk          *model.Chunk
	SimilarityScore float64
	RerankScore     *float64
	KeywordRank     int
}

// PageResult groups a page with the best chunk score that matched it.
type PageResult struct {
	Page            *model.Page
	SimilarityScore float64
	RerankScore     *float64
	Truncated       bool
}

// Response is the shape returned to both the HTTP API and the ToolBridge.
type Response struct {
	Success    bool
	Results    any // []ChunkResult or []PageResult depending on SearchMode
	SearchMode ReturnMode
	TotalFound int
}

// PageFetcher resolves pages referenced by chunk results in pages mode.
type PageFetcher interface {
	GetPage(ctx context.Context, pageID string) (*model.Page, error)
}

// KeywordIndex is the lexical leg of hybrid search.
type KeywordIndex interface {
	Index(ctx context.Context, chunks []*model.Chunk) error
	Delete(ctx context.Context, chunkIDs []string) error
	// Search returns chunk ids in decreasing relevance order, optionally
	// restricted to sourceFilter.
	Search(ctx context.Context, query, sourceFilter string, limit int) ([]string, error)
}
