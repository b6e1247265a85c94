// Package ingest orchestrates one crawl-or-upload job end to end: Crawler
// (or a pre-fetched upload) -> DocumentProcessor -> Page storage -> Chunker
// -> optional LLM contextual prefix -> CodeExtractor -> EmbeddingProvider ->
// VectorStore, publishing progress and honoring cancellation throughout.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/archon-iirc/archon/internal/chunk"
	"github.com/archon-iirc/archon/internal/crawler"
	"github.com/archon-iirc/archon/internal/docproc"
	"github.com/archon-iirc/archon/internal/embedding"
	"github.com/archon-iirc/archon/internal/llm"
	"github.com/archon-iirc/archon/internal/progress"
	"github.com/archon-iirc/archon/internal/search"
	"github.com/archon-iirc/archon/internal/vectorstore"
)

// Job describes one ingest request: a crawl seed or a pre-fetched upload.
type Job struct {
	// ProgressID, if set, is used instead of generating a fresh one. This
	// lets a caller (the HTTP API) allocate the id up front, return it to
	// the client, and run the job asynchronously in a goroutine.
	ProgressID string

	SourceID   string
	Seed       string
	Collection string

	CrawlOptions crawler.Options

	// GenerateContext enables the optional per-chunk LLM contextual prefix
	// (spec.md §4.8 step 5). Off by default: it is one extra LLM call per
	// chunk and most deployments run without a configured LLMProvider.
	GenerateContext bool

	// MinCodeLength gates CodeExtractor's minimum body length.
	MinCodeLength int

	// ChunkSize bounds the Chunker's target chunk size in characters.
	ChunkSize int

	EmbeddingBatchSize int
}

// UploadJob describes a pre-fetched upload: the files are already in hand,
// so there is no Crawler stage.
type UploadJob struct {
	Job
	Documents []docproc.RawDocument
}

func (j Job) normalize() Job {
	if j.ChunkSize <= 0 {
		j.ChunkSize = chunk.DefaultChunkSize
	}
	if j.MinCodeLength <= 0 {
		j.MinCodeLength = 10
	}
	if j.EmbeddingBatchSize <= 0 {
		j.EmbeddingBatchSize = embedding.DefaultBatchSize
	}
	j.EmbeddingBatchSize = embedding.ClampBatchSize(j.EmbeddingBatchSize)
	return j
}

// Dependencies are the injected collaborators a Pipeline needs. Required
// fields are validated in New; optional ones fall back to no-op behavior.
type Dependencies struct {
	Tracker   *progress.Tracker
	Store     vectorstore.Store
	Pages     vectorstore.PageStore
	Embedder  embedding.Provider
	Processor *docproc.Processor
	Chunker   chunk.Chunker
	Keyword   search.KeywordIndex // optional

	// ContextGen is optional; a nil ContextGen skips step 5
	// and step 9's AI summary degrades to the templated fallback.
	ContextGen *llm.ContextGenerator

	// Crawl defaults to crawler.Crawl; overridable so tests can feed
	// Pipeline.Run a fixed sequence of FetchResults without a real server.
	Crawl func(ctx context.Context, seed string, opts crawler.Options) (<-chan crawler.FetchResult, error)
}

// Result summarizes one completed ingest job.
type Result struct {
	ProgressID     string
	PagesIngested  int
	ChunksIndexed  int
	CodeExamples   int
	EmbedFailures  int
	Duration       time.Duration
}

func (d Dependencies) validate() error {
	if d.Tracker == nil {
		return fmt.Errorf("ingest: progress tracker is required")
	}
	if d.Store == nil {
		return fmt.Errorf("ingest: vector store is required")
	}
	if d.Pages == nil {
		return fmt.Errorf("ingest: page store is required")
	}
	if d.Embedder == nil {
		return fmt.Errorf("ingest: embedding provider is required")
	}
	if d.Processor == nil {
		return fmt.Errorf("ingest: document processor is required")
	}
	if d.Chunker == nil {
		return fmt.Errorf("ingest: chunker is required")
	}
	return nil
}

// checkpoint reports whether id is still active, used between every batch
// per spec.md §4.1's cancellation protocol.
func checkpoint(tracker *progress.Tracker, id string) bool {
	return tracker.IsActive(id)
}
