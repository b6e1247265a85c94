package ingest

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archon-iirc/archon/internal/chunk"
	"github.com/archon-iirc/archon/internal/crawler"
	"github.com/archon-iirc/archon/internal/docproc"
	"github.com/archon-iirc/archon/internal/embedding"
	"github.com/archon-iirc/archon/internal/model"
	"github.com/archon-iirc/archon/internal/progress"
	"github.com/archon-iirc/archon/internal/vectorstore"
)

// fakeStore is a minimal vectorstore.Store recording every Upsert call.
type fakeStore struct {
	mu       sync.Mutex
	upserted map[string][]vectorstore.VectorDocument
}

func newFakeStore() *fakeStore {
	return &fakeStore{upserted: make(map[string][]vectorstore.VectorDocument)}
}

func (f *fakeStore) Connect(ctx context.Context) error { return nil }
func (f *fakeStore) Disconnect() error                 { return nil }
func (f *fakeStore) CreateCollection(ctx context.Context, name string, vectorSize int, metric vectorstore.DistanceMetric) error {
	return nil
}
func (f *fakeStore) Upsert(ctx context.Context, collection string, docs []vectorstore.VectorDocument, batchSize int) (vectorstore.UpsertResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserted[collection] = append(f.upserted[collection], docs...)
	result := vectorstore.UpsertResult{}
	for _, d := range docs {
		result.Succeeded = append(result.Succeeded, d.ID)
	}
	return result, nil
}
func (f *fakeStore) Search(ctx context.Context, collection string, queryEmbedding []float32, matchCount int, filter vectorstore.FilterCriteria, similarityThreshold float64) ([]vectorstore.SearchResult, error) {
	return nil, nil
}
func (f *fakeStore) Delete(ctx context.Context, collection string, filter vectorstore.FilterCriteria, batchSize int) (int, error) {
	return 0, nil
}
func (f *fakeStore) UpdateMetadata(ctx context.Context, collection, id string, metadata map[string]any) error {
	return nil
}
func (f *fakeStore) GetCollectionInfo(ctx context.Context, name string) (vectorstore.CollectionInfo, error) {
	return vectorstore.CollectionInfo{}, nil
}
func (f *fakeStore) ListCollections(ctx context.Context) ([]string, error) { return nil, nil }
func (f *fakeStore) HealthCheck(ctx context.Context) (vectorstore.HealthStatus, error) {
	return vectorstore.HealthStatus{}, nil
}

// fakePageStore is a minimal in-memory vectorstore.PageStore.
type fakePageStore struct {
	mu      sync.Mutex
	pages   map[string]*model.Page
	sources map[string]*model.Source
}

func newFakePageStore() *fakePageStore {
	return &fakePageStore{pages: make(map[string]*model.Page), sources: make(map[string]*model.Source)}
}

func (f *fakePageStore) EnsureSource(ctx context.Context, sourceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sources[sourceID]; !ok {
		f.sources[sourceID] = &model.Source{SourceID: sourceID}
	}
	return nil
}

func (f *fakePageStore) UpsertPage(ctx context.Context, page *model.Page) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *page
	f.pages[page.ID] = &cp
	return nil
}

func (f *fakePageStore) UpdatePageChunkCount(ctx context.Context, pageID string, count int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.pages[pageID]; ok {
		p.ChunkCount = count
	}
	return nil
}

func (f *fakePageStore) GetPage(ctx context.Context, pageID string) (*model.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pages[pageID]
	if !ok {
		return nil, assert.AnError
	}
	return p, nil
}

func (f *fakePageStore) GetPageByURL(ctx context.Context, sourceID, url string) (*model.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.pages {
		if p.SourceID == sourceID && p.URL == url {
			return p, nil
		}
	}
	return nil, assert.AnError
}

func (f *fakePageStore) UpdateSourceSummary(ctx context.Context, sourceID, title, summary string, wordCount int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	src, ok := f.sources[sourceID]
	if !ok {
		return assert.AnError
	}
	src.Title = title
	src.Summary = summary
	src.TotalWordCount = wordCount
	return nil
}

func (f *fakePageStore) DeleteSource(ctx context.Context, sourceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sources, sourceID)
	for id, p := range f.pages {
		if p.SourceID == sourceID {
			delete(f.pages, id)
		}
	}
	return nil
}

func (f *fakePageStore) ListPages(ctx context.Context, sourceID string, limit, offset int) ([]*model.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Page
	for _, p := range f.pages {
		if sourceID == "" || p.SourceID == sourceID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePageStore) ListSources(ctx context.Context) ([]*model.Source, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Source
	for _, s := range f.sources {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakePageStore) TotalChunkCount(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, p := range f.pages {
		total += p.ChunkCount
	}
	return total, nil
}

// fakeEmbedder embeds every text to a fixed-width vector; PerCall failures
// allow exercising the partial-failure tolerance path.
type fakeEmbedder struct {
	dim       int
	failIndex map[int]bool // fails the i-th text of every batch, by index within batch
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) (embedding.BatchResponse, error) {
	resp := embedding.BatchResponse{Model: "fake-model"}
	for i := range texts {
		if f.failIndex != nil && f.failIndex[i] {
			resp.Results = append(resp.Results, embedding.Result{Index: i, Err: assert.AnError})
			continue
		}
		vec := make([]float32, f.dim)
		vec[0] = 1
		resp.Results = append(resp.Results, embedding.Result{Index: i, Embedding: vec, Dimension: model.EmbeddingDimension(f.dim)})
	}
	return resp, nil
}

func (f *fakeEmbedder) Dimensions() int                    { return f.dim }
func (f *fakeEmbedder) ModelName() string                  { return "fake-model" }
func (f *fakeEmbedder) Available(ctx context.Context) bool { return true }
func (f *fakeEmbedder) Close() error                       { return nil }

func testDeps(t *testing.T) (Dependencies, *fakeStore, *fakePageStore) {
	t.Helper()
	store := newFakeStore()
	pages := newFakePageStore()
	return Dependencies{
		Tracker:   progress.New(),
		Store:     store,
		Pages:     pages,
		Embedder:  &fakeEmbedder{dim: 768},
		Processor: docproc.New(),
		Chunker:   chunk.NewMarkdownChunker(),
	}, store, pages
}

func fixedCrawl(results ...crawler.FetchResult) func(context.Context, string, crawler.Options) (<-chan crawler.FetchResult, error) {
	return func(ctx context.Context, seed string, opts crawler.Options) (<-chan crawler.FetchResult, error) {
		ch := make(chan crawler.FetchResult, len(results))
		for _, r := range results {
			ch <- r
		}
		close(ch)
		return ch, nil
	}
}

func TestPipeline_Run_HappyPath(t *testing.T) {
	deps, store, pages := testDeps(t)
	deps.Crawl = fixedCrawl(crawler.FetchResult{
		URL:      "https://example.com/docs",
		Markdown: "# Title\n\nSome content with enough words to form a chunk body for testing purposes here.\n\n```go\nfunc main() {\n\tprintln(\"hello world this is long enough to count as code\")\n}\n```\n",
		Title:    "Example Docs",
	})

	p, err := New(deps)
	require.NoError(t, err)

	result, err := p.Run(context.Background(), Job{SourceID: "src-1", Seed: "https://example.com/docs", Collection: "docs"})
	require.NoError(t, err)

	assert.Equal(t, 1, result.PagesIngested)
	assert.Greater(t, result.ChunksIndexed, 0)
	assert.Equal(t, 0, result.EmbedFailures)
	assert.NotEmpty(t, store.upserted["docs"])

	rec, ok := deps.Tracker.Get(result.ProgressID)
	require.True(t, ok)
	assert.Equal(t, model.StatusCompleted, rec.Status)

	assert.Len(t, pages.sources, 1)
}

// TestCheckpoint_ReflectsTrackerStop exercises the exact call checkpoint()
// makes at every batch boundary: once Stop removes a job from the active
// registry, checkpoint must report it as no longer active.
func TestCheckpoint_ReflectsTrackerStop(t *testing.T) {
	tracker := progress.New()
	defer tracker.Close()
	_, cancel := context.WithCancel(context.Background())
	tracker.Start("job-1", model.OpCrawl, nil, cancel)

	assert.True(t, checkpoint(tracker, "job-1"))
	tracker.Stop("job-1")
	assert.False(t, checkpoint(tracker, "job-1"))
}

// TestPipeline_Run_CompletesWhenCrawlYieldsNothing: with zero pages
// produced, finishFromPages still runs its full tail and reaches
// StatusCompleted with zero counts, since nothing ever made the job inactive.
func TestPipeline_Run_CompletesWhenCrawlYieldsNothing(t *testing.T) {
	deps, _, _ := testDeps(t)
	deps.Crawl = fixedCrawl()

	p, err := New(deps)
	require.NoError(t, err)

	result, err := p.Run(context.Background(), Job{SourceID: "src-3", Seed: "https://example.com/a", Collection: "docs"})
	require.NoError(t, err)
	assert.Equal(t, 0, result.PagesIngested)
	assert.Equal(t, 0, result.ChunksIndexed)

	rec, ok := deps.Tracker.Get(result.ProgressID)
	require.True(t, ok)
	assert.Equal(t, model.StatusCompleted, rec.Status)
}

func TestPipeline_Run_ToleratesPartialEmbedFailures(t *testing.T) {
	deps, store, _ := testDeps(t)
	deps.Embedder = &fakeEmbedder{dim: 768, failIndex: map[int]bool{0: true}}
	deps.Crawl = fixedCrawl(crawler.FetchResult{
		URL:      "https://example.com/a",
		Markdown: "# Title\n\nFirst paragraph with plenty of words to build a chunk for the test.\n\nSecond paragraph also has plenty of words to build another chunk for the test.\n",
	})

	p, err := New(deps)
	require.NoError(t, err)

	result, err := p.Run(context.Background(), Job{SourceID: "src-4", Seed: "https://example.com/a", Collection: "docs", ChunkSize: 40})
	require.NoError(t, err)
	assert.Greater(t, result.EmbedFailures, 0)
	_ = store
}

func TestPipeline_RunUpload_HappyPath(t *testing.T) {
	deps, store, pages := testDeps(t)
	p, err := New(deps)
	require.NoError(t, err)

	job := UploadJob{
		Job: Job{SourceID: "src-5", Collection: "docs"},
		Documents: []docproc.RawDocument{
			{Filename: "notes.md", Format: docproc.FormatMarkdown, Content: []byte("# Notes\n\nBody text long enough to tokenize into a chunk for the upload test.\n")},
		},
	}

	result, err := p.RunUpload(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, 1, result.PagesIngested)
	assert.NotEmpty(t, store.upserted["docs"])
	assert.Len(t, pages.pages, 1)
}

func TestNew_RequiresEveryDependency(t *testing.T) {
	base, _, _ := testDeps(t)

	cases := []struct {
		name   string
		modify func(d *Dependencies)
	}{
		{"tracker", func(d *Dependencies) { d.Tracker = nil }},
		{"store", func(d *Dependencies) { d.Store = nil }},
		{"pages", func(d *Dependencies) { d.Pages = nil }},
		{"embedder", func(d *Dependencies) { d.Embedder = nil }},
		{"processor", func(d *Dependencies) { d.Processor = nil }},
		{"chunker", func(d *Dependencies) { d.Chunker = nil }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := base
			tc.modify(&d)
			_, err := New(d)
			assert.Error(t, err)
		})
	}
}

func TestNew_DefaultsCrawlToPackageFunction(t *testing.T) {
	base, _, _ := testDeps(t)
	p, err := New(base)
	require.NoError(t, err)
	assert.NotNil(t, p.deps.Crawl)
}
