package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archon-iirc/archon/internal/embedding"
	"github.com/archon-iirc/archon/internal/model"
	"github.com/archon-iirc/archon/internal/vectorstore"
)

type fakeEmbedder struct{ vector []float32 }

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) (embedding.BatchResponse, error) {
	results := make([]embedding.Result, len(texts))
	for i := range texts {
		results[i] = embedding.Result{Index: i, Embedding: f.vector, Dimension: model.Dim768}
	}
	return embedding.BatchResponse{Results: results, Model: "fake"}, nil
}
func (f *fakeEmbedder) Dimensions() int                    { return len(f.vector) }
func (f *fakeEmbedder) ModelName() string                  { return "fake" }
func (f *fakeEmbedder) Available(ctx context.Context) bool { return true }
func (f *fakeEmbedder) Close() error                       { return nil }

type fakeStore struct {
	hits []vectorstore.SearchResult
}

func (s *fakeStore) Connect(ctx context.Context) error    { return nil }
func (s *fakeStore) Disconnect() error                     { return nil }
func (s *fakeStore) CreateCollection(ctx context.Context, name string, vectorSize int, metric vectorstore.DistanceMetric) error {
	return nil
}
func (s *fakeStore) Upsert(ctx context.Context, collection string, docs []vectorstore.VectorDocument, batchSize int) (vectorstore.UpsertResult, error) {
	return vectorstore.UpsertResult{}, nil
}
func (s *fakeStore) Search(ctx context.Context, collection string, queryEmbedding []float32, matchCount int, filter vectorstore.FilterCriteria, similarityThreshold float64) ([]vectorstore.SearchResult, error) {
	if matchCount < len(s.hits) {
		return s.hits[:matchCount], nil
	}
	return s.hits, nil
}
func (s *fakeStore) Delete(ctx context.Context, collection string, filter vectorstore.FilterCriteria, batchSize int) (int, error) {
	return 0, nil
}
func (s *fakeStore) UpdateMetadata(ctx context.Context, collection, id string, metadata map[string]any) error {
	return nil
}
func (s *fakeStore) GetCollectionInfo(ctx context.Context, name string) (vectorstore.CollectionInfo, error) {
	return vectorstore.CollectionInfo{}, nil
}
func (s *fakeStore) ListCollections(ctx context.Context) ([]string, error) { return nil, nil }
func (s *fakeStore) HealthCheck(ctx context.Context) (vectorstore.HealthStatus, error) {
	return vectorstore.HealthStatus{}, nil
}

func TestEngine_Query_ChunksModeReturnsOrderedResults(t *testing.T) {
	store := &fakeStore{hits: []vectorstore.SearchResult{
		{ID: "a", Content: "alpha", SimilarityScore: 0.5, ChunkNumber: 0},
		{ID: "b", Content: "beta", SimilarityScore: 0.9, ChunkNumber: 1},
	}}
	engine := NewEngine(store, &fakeEmbedder{vector: make([]float32, 768)})

	resp, err := engine.Query(context.Background(), "chunks", "docker", Options{MatchCount: 10})
	require.NoError(t, err)
	results, ok := resp.Results.([]*ChunkResult)
	require.True(t, ok)
	require.Len(t, results, 2)
	assert.Equal(t, "b", results[0].Chunk.ID)
	assert.Equal(t, ReturnModeChunks, resp.SearchMode)
}

func TestEngine_Query_RejectsEmptyQuery(t *testing.T) {
	engine := NewEngine(&fakeStore{}, &fakeEmbedder{vector: make([]float32, 768)})
	_, err := engine.Query(context.Background(), "chunks", "", Options{})
	require.Error(t, err)
}

func TestEngine_Query_ClampsMatchCountToMax(t *testing.T) {
	hits := make([]vectorstore.SearchResult, MaxMatchCount+10)
	for i := range hits {
		hits[i] = vectorstore.SearchResult{ID: string(rune('a' + i%26)), SimilarityScore: float64(i)}
	}
	store := &fakeStore{hits: hits}
	engine := NewEngine(store, &fakeEmbedder{vector: make([]float32, 768)})

	resp, err := engine.Query(context.Background(), "chunks", "q", Options{MatchCount: 1000})
	require.NoError(t, err)
	results := resp.Results.([]*ChunkResult)
	assert.LessOrEqual(t, len(results), MaxMatchCount)
}
