package reembed

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archon-iirc/archon/internal/apperr"
	"github.com/archon-iirc/archon/internal/embedding"
	"github.com/archon-iirc/archon/internal/model"
	"github.com/archon-iirc/archon/internal/progress"
	"github.com/archon-iirc/archon/internal/vectorstore"
)

type fakeReEmbedStore struct {
	mu      sync.Mutex
	pages   [][]vectorstore.ReEmbedRow
	call    int
	written map[string]model.Embedding
}

func (f *fakeReEmbedStore) PageForReEmbed(ctx context.Context, collection, afterID string, pageSize int) ([]vectorstore.ReEmbedRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.call >= len(f.pages) {
		return nil, nil
	}
	page := f.pages[f.call]
	f.call++
	return page, nil
}

func (f *fakeReEmbedStore) WriteReEmbedded(ctx context.Context, collection, id string, emb model.Embedding) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.written == nil {
		f.written = make(map[string]model.Embedding)
	}
	f.written[id] = emb
	return nil
}

type fakeProvider struct {
	dim       int
	failIndex map[int]bool
}

func (f *fakeProvider) EmbedBatch(ctx context.Context, texts []string) (embedding.BatchResponse, error) {
	resp := embedding.BatchResponse{Model: "new-model"}
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

func (f *fakeProvider) Dimensions() int                    { return f.dim }
func (f *fakeProvider) ModelName() string                  { return "new-model" }
func (f *fakeProvider) Available(ctx context.Context) bool { return true }
func (f *fakeProvider) Close() error                       { return nil }

func TestService_Start_WalksAllPagesAndRewritesEmbeddings(t *testing.T) {
	store := &fakeReEmbedStore{pages: [][]vectorstore.ReEmbedRow{
		{{ID: "c1", Content: "hello"}, {ID: "c2", Content: "world"}},
	}}
	tracker := progress.New()
	defer tracker.Close()

	svc, err := New(Dependencies{Tracker: tracker, Store: store, Embedder: &fakeProvider{dim: 1024}})
	require.NoError(t, err)

	result, err := svc.Start(context.Background(), "docs")
	require.NoError(t, err)
	assert.Equal(t, 2, result.ChunksProcessed)
	assert.Equal(t, 0, result.ChunksFailed)
	assert.Equal(t, "new-model", result.EmbeddingModel)

	assert.Len(t, store.written, 2)
	assert.Equal(t, model.Dim1024, store.written["c1"].Dimension)

	rec, ok := tracker.Get(result.ProgressID)
	require.True(t, ok)
	assert.Equal(t, model.StatusCompleted, rec.Status)
}

func TestService_Start_CountsPerItemFailures(t *testing.T) {
	store := &fakeReEmbedStore{pages: [][]vectorstore.ReEmbedRow{
		{{ID: "c1", Content: "hello"}, {ID: "c2", Content: "world"}},
	}}
	tracker := progress.New()
	defer tracker.Close()

	svc, err := New(Dependencies{Tracker: tracker, Store: store, Embedder: &fakeProvider{dim: 1024, failIndex: map[int]bool{0: true}}})
	require.NoError(t, err)

	result, err := svc.Start(context.Background(), "docs")
	require.NoError(t, err)
	assert.Equal(t, 1, result.ChunksProcessed)
	assert.Equal(t, 1, result.ChunksFailed)
}

func TestService_Start_RejectsSecondConcurrentRun(t *testing.T) {
	store := &fakeReEmbedStore{pages: [][]vectorstore.ReEmbedRow{
		{{ID: "c1", Content: "hello"}},
	}}
	tracker := progress.New()
	defer tracker.Close()

	svc, err := New(Dependencies{Tracker: tracker, Store: store, Embedder: &fakeProvider{dim: 1024}})
	require.NoError(t, err)

	svc.mu.Lock()
	svc.active = true
	svc.mu.Unlock()

	_, err = svc.Start(context.Background(), "docs")
	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestService_Start_EmptyCollectionCompletesImmediately(t *testing.T) {
	store := &fakeReEmbedStore{}
	tracker := progress.New()
	defer tracker.Close()

	svc, err := New(Dependencies{Tracker: tracker, Store: store, Embedder: &fakeProvider{dim: 1024}})
	require.NoError(t, err)

	result, err := svc.Start(context.Background(), "empty")
	require.NoError(t, err)
	assert.Equal(t, 0, result.ChunksProcessed)

	rec, ok := tracker.Get(result.ProgressID)
	require.True(t, ok)
	assert.Equal(t, model.StatusCompleted, rec.Status)
}

func TestNew_RequiresEveryDependency(t *testing.T) {
	tracker := progress.New()
	defer tracker.Close()
	store := &fakeReEmbedStore{}
	provider := &fakeProvider{dim: 768}

	_, err := New(Dependencies{Store: store, Embedder: provider})
	assert.Error(t, err)

	_, err = New(Dependencies{Tracker: tracker, Embedder: provider})
	assert.Error(t, err)

	_, err = New(Dependencies{Tracker: tracker, Store: store})
	assert.Error(t, err)
}
