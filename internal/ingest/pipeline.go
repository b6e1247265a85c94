package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/archon-iirc/archon/internal/apperr"
	"github.com/archon-iirc/archon/internal/crawler"
	"github.com/archon-iirc/archon/internal/docproc"
	"github.com/archon-iirc/archon/internal/model"
	"github.com/archon-iirc/archon/internal/telemetry"
)

// Pipeline runs the 9-step ingest orchestration of spec.md §4.8.
type Pipeline struct {
	deps Dependencies
}

// New builds a Pipeline, validating that every required dependency is present.
func New(deps Dependencies) (*Pipeline, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if deps.Crawl == nil {
		deps.Crawl = crawler.Crawl
	}
	return &Pipeline{deps: deps}, nil
}

// allocateProgressID returns preset if the caller pre-allocated one (so it
// could hand the id back to an HTTP client before the job finishes), or a
// fresh one otherwise.
func allocateProgressID(preset string) string {
	if preset != "" {
		return preset
	}
	return uuid.NewString()
}

// Run executes one ingest job to completion, publishing progress throughout
// and honoring cancellation at every batch boundary.
func (p *Pipeline) Run(ctx context.Context, job Job) (Result, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "ingest.run")
	defer span.End()

	job = job.normalize()
	start := time.Now()

	progressID := allocateProgressID(job.ProgressID)
	span.SetAttributes(attribute.String("source_id", job.SourceID), attribute.String("progress_id", progressID))
	jobCtx, cancel := context.WithCancel(ctx)
	p.deps.Tracker.Start(progressID, model.OpCrawl, map[string]any{"source_id": job.SourceID}, cancel)

	result := Result{ProgressID: progressID}

	if err := p.deps.Pages.EnsureSource(jobCtx, job.SourceID); err != nil {
		p.fail(progressID, err)
		return result, err
	}

	fetchCh, err := p.deps.Crawl(jobCtx, job.Seed, job.CrawlOptions)
	if err != nil {
		p.fail(progressID, err)
		return result, err
	}
	p.deps.Tracker.Update(progressID, model.StatusFetching, 5, "crawl started", nil)

	var pages []*model.Page
	fetched := 0
	for fr := range fetchCh {
		if !checkpoint(p.deps.Tracker, progressID) {
			p.deps.Tracker.Update(progressID, model.StatusCancelled, 5, "cancelled during crawl", nil)
			return result, apperr.Cancelled("ingest job cancelled during crawl", nil)
		}
		if fr.Err != nil {
			slog.Warn("crawl fetch failed", slog.String("url", fr.URL), slog.String("error", fr.Err.Error()))
			continue
		}

		fetched++
		newPages, err := p.documentToPages(jobCtx, job, fr)
		if err != nil {
			slog.Warn("document processing failed", slog.String("url", fr.URL), slog.String("error", err.Error()))
			continue
		}
		pages = append(pages, newPages...)

		p.deps.Tracker.Update(progressID, model.StatusFetching, clampProgress(5+fetched), "fetched "+fr.URL, map[string]any{"pages_fetched": fetched})
	}

	return p.finishFromPages(jobCtx, progressID, job, start, pages, result)
}

// RunUpload processes pre-fetched documents (spec.md's upload entry point),
// skipping the Crawler stage but sharing every downstream step with Run.
func (p *Pipeline) RunUpload(ctx context.Context, job UploadJob) (Result, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "ingest.run_upload")
	defer span.End()

	base := job.Job.normalize()
	start := time.Now()

	progressID := allocateProgressID(base.ProgressID)
	span.SetAttributes(attribute.String("source_id", base.SourceID), attribute.String("progress_id", progressID), attribute.Int("document_count", len(job.Documents)))
	jobCtx, cancel := context.WithCancel(ctx)
	p.deps.Tracker.Start(progressID, model.OpUpload, map[string]any{"source_id": base.SourceID}, cancel)

	result := Result{ProgressID: progressID}

	if err := p.deps.Pages.EnsureSource(jobCtx, base.SourceID); err != nil {
		p.fail(progressID, err)
		return result, err
	}

	p.deps.Tracker.Update(progressID, model.StatusProcessing, 10, "processing uploaded documents", nil)

	var pages []*model.Page
	for _, doc := range job.Documents {
		markdown, err := p.deps.Processor.Process(jobCtx, doc)
		if err != nil {
			slog.Warn("upload processing failed", slog.String("filename", doc.Filename), slog.String("error", err.Error()))
			continue
		}
		url := doc.URL
		if url == "" {
			url = doc.Filename
		}
		pages = append(pages, &model.Page{
			ID:          uuid.NewString(),
			SourceID:    base.SourceID,
			URL:         url,
			FullContent: markdown,
			WordCount:   wordCount(markdown),
			CharCount:   len(markdown),
			Metadata:    map[string]any{"filename": doc.Filename},
		})
	}

	return p.finishFromPages(jobCtx, progressID, base, start, pages, result)
}

// finishFromPages runs the shared tail of the pipeline once a Job's pages
// are in hand, whether they came from the Crawler or an upload.
func (p *Pipeline) finishFromPages(ctx context.Context, progressID string, job Job, start time.Time, pages []*model.Page, result Result) (Result, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "ingest.finish_from_pages")
	defer span.End()
	span.SetAttributes(attribute.Int("pages", len(pages)))

	p.deps.Tracker.Update(progressID, model.StatusProcessing, 30, "storing pages", nil)
	for _, page := range pages {
		if err := p.deps.Pages.UpsertPage(ctx, page); err != nil {
			slog.Warn("failed to store page", slog.String("url", page.URL), slog.String("error", err.Error()))
			continue
		}
		result.PagesIngested++
	}

	if !checkpoint(p.deps.Tracker, progressID) {
		p.deps.Tracker.Update(progressID, model.StatusCancelled, 30, "cancelled before chunking", nil)
		return result, apperr.Cancelled("ingest job cancelled before chunking", nil)
	}

	allChunks, allCode, err := p.chunkAndExtract(ctx, job, pages)
	if err != nil {
		p.fail(progressID, err)
		return result, err
	}
	result.ChunksIndexed = len(allChunks)
	result.CodeExamples = len(allCode)

	p.deps.Tracker.Update(progressID, model.StatusEmbedding, 50, fmt.Sprintf("embedding %d chunks", len(allChunks)), nil)

	if job.GenerateContext && p.deps.ContextGen != nil {
		p.applyContextualPrefixes(ctx, allChunks, pages)
	}

	failures, err := p.embedAndStore(ctx, progressID, job, allChunks, allCode)
	if err != nil {
		p.fail(progressID, err)
		return result, err
	}
	result.EmbedFailures = failures

	if !checkpoint(p.deps.Tracker, progressID) {
		p.deps.Tracker.Update(progressID, model.StatusCancelled, 90, "cancelled before summary", nil)
		return result, apperr.Cancelled("ingest job cancelled before summary", nil)
	}

	p.deps.Tracker.Update(progressID, model.StatusStoring, 95, "generating source summary", nil)
	p.generateSourceSummary(ctx, job, pages)

	result.Duration = time.Since(start)
	p.deps.Tracker.Complete(progressID, map[string]any{
		"pages":          result.PagesIngested,
		"chunks":         result.ChunksIndexed,
		"code_examples":  result.CodeExamples,
		"embed_failures": result.EmbedFailures,
	})
	return result, nil
}

func (p *Pipeline) fail(progressID string, err error) {
	p.deps.Tracker.Error(progressID, err.Error())
}

func clampProgress(n int) int {
	if n > 29 {
		return 29
	}
	return n
}

// documentToPages runs DocumentProcessor on one fetched document, splitting
// an llms-full.txt body into its constituent sections per spec.md §4.3.
func (p *Pipeline) documentToPages(ctx context.Context, job Job, fr crawler.FetchResult) ([]*model.Page, error) {
	if fr.IsLLMsFull {
		sections := docproc.SplitLLMsFullSections(fr.URL, fr.Markdown)
		pages := make([]*model.Page, 0, len(sections))
		for _, sec := range sections {
			pages = append(pages, &model.Page{
				ID:           uuid.NewString(),
				SourceID:     job.SourceID,
				URL:          sec.URL,
				SectionTitle: sec.SectionTitle,
				SectionOrder: sec.SectionOrder,
				FullContent:  sec.Content,
				WordCount:    sec.WordCount,
				CharCount:    len(sec.Content),
				Metadata:     map[string]any{"crawl_type": "llms_full"},
			})
		}
		return pages, nil
	}

	markdown, err := p.deps.Processor.Process(ctx, docproc.RawDocument{
		URL:     fr.URL,
		Format:  docproc.FormatMarkdown,
		Content: []byte(fr.Markdown),
	})
	if err != nil {
		return nil, err
	}

	return []*model.Page{{
		ID:          uuid.NewString(),
		SourceID:    job.SourceID,
		URL:         fr.URL,
		FullContent: markdown,
		WordCount:   wordCount(markdown),
		CharCount:   len(markdown),
		Metadata:    map[string]any{"title": fr.Title},
	}}, nil
}

func (p *Pipeline) chunkAndExtract(ctx context.Context, job Job, pages []*model.Page) ([]*model.Chunk, []*model.CodeExample, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "ingest.chunk_and_extract")
	defer span.End()

	var allChunks []*model.Chunk
	var allCode []*model.CodeExample

	for _, page := range pages {
		chunks, err := p.deps.Chunker.ChunkPage(ctx, page, job.ChunkSize)
		if err != nil {
			slog.Warn("chunking failed", slog.String("page_id", page.ID), slog.String("error", err.Error()))
			continue
		}
		allChunks = append(allChunks, chunks...)

		if err := p.deps.Pages.UpdatePageChunkCount(ctx, page.ID, len(chunks)); err != nil {
			slog.Warn("failed to record chunk count", slog.String("page_id", page.ID), slog.String("error", err.Error()))
		}

		for _, ex := range extractCode(page.FullContent, job.MinCodeLength) {
			allCode = append(allCode, &model.CodeExample{
				ID:            uuid.NewString(),
				SourceID:      job.SourceID,
				URL:           page.URL,
				Content:       ex.Code,
				Language:      ex.Language,
				ContextBefore: ex.ContextBefore,
				ContextAfter:  ex.ContextAfter,
			})
		}
	}
	span.SetAttributes(attribute.Int("chunks", len(allChunks)), attribute.Int("code_examples", len(allCode)))
	return allChunks, allCode, nil
}

func (p *Pipeline) applyContextualPrefixes(ctx context.Context, chunks []*model.Chunk, pages []*model.Page) {
	pageByID := make(map[string]*model.Page, len(pages))
	for _, page := range pages {
		pageByID[page.ID] = page
	}
	for _, c := range chunks {
		page, ok := pageByID[c.PageID]
		if !ok {
			continue
		}
		prefix := p.deps.ContextGen.GenerateChunkContext(ctx, c, page.FullContent)
		if prefix != "" {
			c.Content = prefix + "\n\n" + c.Content
		}
	}
}

// embedAndStore batch-embeds chunks and code examples and upserts them into
// the vector store, tolerating per-item failures per spec.md §4.6.
func (p *Pipeline) embedAndStore(ctx context.Context, progressID string, job Job, chunks []*model.Chunk, code []*model.CodeExample) (int, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "ingest.embed_and_store")
	defer span.End()
	span.SetAttributes(attribute.Int("chunks", len(chunks)), attribute.Int("code_examples", len(code)))

	failures := 0

	chunkDocs, chunkFailures := p.embedItems(ctx, job, chunkEmbedItems(chunks))
	failures += chunkFailures

	codeDocs, codeFailures := p.embedItems(ctx, job, codeEmbedItems(code))
	failures += codeFailures

	if !checkpoint(p.deps.Tracker, progressID) {
		return failures, apperr.Cancelled("ingest job cancelled before upsert", nil)
	}

	p.deps.Tracker.Update(progressID, model.StatusStoring, 80, "upserting vectors", nil)

	if len(chunkDocs) > 0 {
		if _, err := p.deps.Store.Upsert(ctx, job.Collection, chunkDocs, job.EmbeddingBatchSize); err != nil {
			return failures, err
		}
	}
	if len(codeDocs) > 0 {
		if _, err := p.deps.Store.Upsert(ctx, codeCollection(job.Collection), codeDocs, job.EmbeddingBatchSize); err != nil {
			return failures, err
		}
	}

	if p.deps.Keyword != nil && len(chunks) > 0 {
		if err := p.deps.Keyword.Index(ctx, chunks); err != nil {
			slog.Warn("keyword index update failed", slog.String("error", err.Error()))
		}
	}

	return failures, nil
}

func codeCollection(collection string) string { return CodeCollection(collection) }

// CodeCollection names the code-example collection that backs collection.
// Callers wiring a new Source must create both collections via
// Store.CreateCollection before the first Run/RunUpload.
func CodeCollection(collection string) string { return collection + "_code" }

func (p *Pipeline) generateSourceSummary(ctx context.Context, job Job, pages []*model.Page) {
	ctx, span := telemetry.Tracer().Start(ctx, "ingest.generate_source_summary")
	defer span.End()

	var title string
	var sample string
	for _, page := range pages {
		if title == "" {
			if t, ok := page.Metadata["title"].(string); ok && t != "" {
				title = t
			}
		}
		if len(sample) < 1000 {
			sample += page.FullContent
		}
	}

	var summary string
	if p.deps.ContextGen != nil {
		summary = p.deps.ContextGen.GenerateSourceSummary(ctx, job.SourceID, title, len(pages), sample)
	} else {
		summary = fmt.Sprintf("Documentation from %s — %d pages crawled", job.SourceID, len(pages))
	}

	if err := p.deps.Pages.UpdateSourceSummary(ctx, job.SourceID, title, summary, wordCount(sample)); err != nil {
		slog.Warn("failed to store source summary", slog.String("source_id", job.SourceID), slog.String("error", err.Error()))
	}
}
