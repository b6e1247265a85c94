package toolbridge

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archon-iirc/archon/internal/embedding"
	"github.com/archon-iirc/archon/internal/model"
	"github.com/archon-iirc/archon/internal/search"
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

type fakeStore struct{ hits []vectorstore.SearchResult }

func (s *fakeStore) Connect(ctx context.Context) error { return nil }
func (s *fakeStore) Disconnect() error                 { return nil }
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

type fakePages struct {
	sources []*model.Source
}

func (p *fakePages) EnsureSource(ctx context.Context, sourceID string) error { return nil }
func (p *fakePages) UpsertPage(ctx context.Context, page *model.Page) error  { return nil }
func (p *fakePages) UpdatePageChunkCount(ctx context.Context, pageID string, count int) error {
	return nil
}
func (p *fakePages) GetPage(ctx context.Context, pageID string) (*model.Page, error) { return nil, nil }
func (p *fakePages) GetPageByURL(ctx context.Context, sourceID, url string) (*model.Page, error) {
	return nil, nil
}
func (p *fakePages) UpdateSourceSummary(ctx context.Context, sourceID, title, summary string, wordCount int) error {
	return nil
}
func (p *fakePages) DeleteSource(ctx context.Context, sourceID string) error { return nil }
func (p *fakePages) ListPages(ctx context.Context, sourceID string, limit, offset int) ([]*model.Page, error) {
	return nil, nil
}
func (p *fakePages) ListSources(ctx context.Context) ([]*model.Source, error) { return p.sources, nil }
func (p *fakePages) TotalChunkCount(ctx context.Context) (int, error)         { return 0, nil }

func newTestBridge(hits []vectorstore.SearchResult, sources []*model.Source) *Bridge {
	engine := search.NewEngine(&fakeStore{hits: hits}, &fakeEmbedder{vector: []float32{0.1, 0.2, 0.3}})
	return New(engine, &fakePages{sources: sources}, 0)
}

func TestDispatch_PerformRAGQuery(t *testing.T) {
	b := newTestBridge([]vectorstore.SearchResult{
		{ID: "c1", SourceID: "src-1", URL: "https://example.com/a", Content: "hello world", SimilarityScore: 0.9},
	}, nil)

	params, _ := json.Marshal(map[string]any{"query": "hello"})
	result, sessionID, rpcErr := b.Dispatch(context.Background(), "", "client-a", "perform_rag_query", params)
	require.Nil(t, rpcErr)
	require.NotEmpty(t, sessionID)

	body, ok := result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, 1, body["total_found"])
}

func TestDispatch_PerformRAGQuery_RejectsEmptyQuery(t *testing.T) {
	b := newTestBridge(nil, nil)
	params, _ := json.Marshal(map[string]any{"query": ""})
	_, _, rpcErr := b.Dispatch(context.Background(), "", "client-a", "perform_rag_query", params)
	require.NotNil(t, rpcErr)
	assert.Equal(t, CodeInvalidParams, rpcErr.Code)
}

func TestDispatch_SearchCodeExamples(t *testing.T) {
	b := newTestBridge([]vectorstore.SearchResult{
		{ID: "c1", SourceID: "src-1", Content: "func main() {}", SimilarityScore: 0.5},
	}, nil)
	params, _ := json.Marshal(map[string]any{"query": "main"})
	result, _, rpcErr := b.Dispatch(context.Background(), "", "client-a", "search_code_examples", params)
	require.Nil(t, rpcErr)
	body := result.(map[string]any)
	assert.Equal(t, 1, body["total_found"])
}

func TestDispatch_GetAvailableSources(t *testing.T) {
	b := newTestBridge(nil, []*model.Source{
		{SourceID: "src-1", Title: "Docs", Summary: "summary", TotalWordCount: 42},
	})
	result, _, rpcErr := b.Dispatch(context.Background(), "", "client-a", "get_available_sources", nil)
	require.Nil(t, rpcErr)
	body := result.(map[string]any)
	sources := body["sources"].([]sourceSummary)
	require.Len(t, sources, 1)
	assert.Equal(t, "src-1", sources[0].SourceID)
}

func TestDispatch_ManageProject_AcceptsArbitraryParams(t *testing.T) {
	b := newTestBridge(nil, nil)
	params, _ := json.Marshal(map[string]any{"action": "create", "title": "My Project"})
	result, _, rpcErr := b.Dispatch(context.Background(), "", "client-a", "manage_project", params)
	require.Nil(t, rpcErr)
	body := result.(map[string]any)
	assert.Equal(t, "create", body["action"])
	assert.Equal(t, "manage_project", body["tool"])
}

func TestDispatch_ManageDocument_RequiresAction(t *testing.T) {
	b := newTestBridge(nil, nil)
	params, _ := json.Marshal(map[string]any{"project_id": "p1"})
	_, _, rpcErr := b.Dispatch(context.Background(), "", "client-a", "manage_document", params)
	require.NotNil(t, rpcErr)
	assert.Equal(t, CodeInvalidParams, rpcErr.Code)
}

func TestDispatch_UnknownMethod(t *testing.T) {
	b := newTestBridge(nil, nil)
	_, _, rpcErr := b.Dispatch(context.Background(), "", "client-a", "delete_everything", nil)
	require.NotNil(t, rpcErr)
	assert.Equal(t, CodeMethodNotFound, rpcErr.Code)
}

func TestDispatch_ReusesSessionAndTracksActivity(t *testing.T) {
	b := newTestBridge(nil, nil)
	params, _ := json.Marshal(map[string]any{"action": "list"})

	_, sessionID, rpcErr := b.Dispatch(context.Background(), "", "client-a", "manage_task", params)
	require.Nil(t, rpcErr)

	_, sessionID2, rpcErr := b.Dispatch(context.Background(), sessionID, "client-a", "manage_task", params)
	require.Nil(t, rpcErr)
	assert.Equal(t, sessionID, sessionID2)

	session, ok := b.sessions.sessions[sessionID]
	require.True(t, ok)
	assert.Equal(t, 2, session.ToolsCalled)
}

func TestSessionManager_ExpiresIdleSessions(t *testing.T) {
	m := NewSessionManager(time.Millisecond)
	s := m.Resolve("", "client-a")
	time.Sleep(5 * time.Millisecond)

	s2 := m.Resolve(s.ID, "client-a")
	assert.NotEqual(t, s.ID, s2.ID, "expired session must be replaced with a fresh one")
}

func TestSessionManager_SweepRemovesExpiredEntries(t *testing.T) {
	m := NewSessionManager(time.Millisecond)
	m.Resolve("", "client-a")
	m.Resolve("", "client-b")
	time.Sleep(5 * time.Millisecond)

	assert.Equal(t, 0, m.Count())
}
