package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/coder/hnsw"

	"github.com/archon-iirc/archon/internal/apperr"
	"github.com/archon-iirc/archon/internal/model"
)

// hnswCollection holds one named collection's graph plus its upserted row
// metadata, keyed by the string document id. coder/hnsw works over uint64
// keys internally, so an id map bridges the two.
type hnswCollection struct {
	graph  *hnsw.Graph[uint64]
	metric DistanceMetric
	width  int

	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64
	rows    map[string]VectorDocument
}

// HNSWStore is a pure-vector-database Store backed by coder/hnsw, one graph
// per collection. It satisfies the same Store interface as the SQLite
// columnar implementation so SearchEngine and IngestPipeline never branch on
// which one is configured.
type HNSWStore struct {
	mu          sync.RWMutex
	collections map[string]*hnswCollection
	connected   bool
}

// NewHNSWStore creates an empty, unconnected pure-vector store.
func NewHNSWStore() *HNSWStore {
	return &HNSWStore{collections: make(map[string]*hnswCollection)}
}

var _ Store = (*HNSWStore)(nil)

func (s *HNSWStore) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = true
	return nil
}

func (s *HNSWStore) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	return nil
}

func newGraph(metric DistanceMetric) *hnsw.Graph[uint64] {
	g := hnsw.NewGraph[uint64]()
	switch metric {
	case MetricEuclidean:
		g.Distance = hnsw.EuclideanDistance
	default:
		g.Distance = hnsw.CosineDistance
	}
	g.M = 16
	g.EfSearch = 64
	g.Ml = 0.25
	return g
}

func (s *HNSWStore) CreateCollection(ctx context.Context, name string, vectorSize int, metric DistanceMetric) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.collections[name]; exists {
		return nil // idempotent
	}
	s.collections[name] = &hnswCollection{
		graph:  newGraph(metric),
		metric: metric,
		width:  vectorSize,
		idMap:  make(map[string]uint64),
		keyMap: make(map[uint64]string),
		rows:   make(map[string]VectorDocument),
	}
	return nil
}

func (s *HNSWStore) collection(name string) (*hnswCollection, error) {
	c, ok := s.collections[name]
	if !ok {
		return nil, apperr.NotFound(fmt.Sprintf("collection %q does not exist", name), nil)
	}
	return c, nil
}

// Upsert validates and inserts each document, keyed by document ID (callers
// derive that ID from (url, chunk_number) so re-crawls are idempotent).
// Lazy deletion is used on replace: coder/hnsw has a known issue deleting
// the last node in a graph, so a replaced id's old key is simply orphaned
// rather than physically removed.
func (s *HNSWStore) Upsert(ctx context.Context, collection string, docs []VectorDocument, batchSize int) (UpsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.collection(collection)
	if err != nil {
		return UpsertResult{}, err
	}

	result := UpsertResult{Failed: make(map[string]error)}
	for _, doc := range docs {
		if doc.URL == "" || doc.Content == "" {
			result.Failed[doc.ID] = apperr.Validation("document requires both url and content", nil)
			continue
		}
		vec := doc.Embedding.Vector
		if err := ValidateEmbedding(vec, c.width); err != nil {
			result.Failed[doc.ID] = err
			continue
		}

		if existingKey, exists := c.idMap[doc.ID]; exists {
			delete(c.keyMap, existingKey)
			delete(c.idMap, doc.ID)
		}

		key := c.nextKey
		c.nextKey++

		stored := make([]float32, len(vec))
		copy(stored, vec)
		if c.metric == MetricCosine {
			normalizeInPlace(stored)
		}

		c.graph.Add(hnsw.MakeNode(key, stored))
		c.idMap[doc.ID] = key
		c.keyMap[key] = doc.ID
		c.rows[doc.ID] = doc
		result.Succeeded = append(result.Succeeded, doc.ID)
	}
	return result, nil
}

func (s *HNSWStore) Search(ctx context.Context, collection string, queryEmbedding []float32, matchCount int, filter FilterCriteria, similarityThreshold float64) ([]SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, err := s.collection(collection)
	if err != nil {
		return nil, err
	}
	if err := ValidateEmbedding(queryEmbedding, c.width); err != nil {
		return nil, err
	}
	if c.graph.Len() == 0 {
		return nil, nil
	}

	query := make([]float32, len(queryEmbedding))
	copy(query, queryEmbedding)
	if c.metric == MetricCosine {
		normalizeInPlace(query)
	}

	wantSource, hasSourceFilter := sourceFilterValue(filter)

	candidates := matchCount * 3
	nodes := c.graph.Search(query, candidates)

	results := make([]SearchResult, 0, len(nodes))
	for _, node := range nodes {
		id, ok := c.keyMap[node.Key]
		if !ok {
			continue
		}
		row, ok := c.rows[id]
		if !ok {
			continue
		}
		if hasSourceFilter && row.SourceID != wantSource {
			continue
		}

		distance := c.graph.Distance(query, node.Value)
		score := float64(distanceToScore(distance, c.metric))
		if score < similarityThreshold {
			continue
		}

		chunkNumber, _ := row.Metadata["chunk_number"].(int)
		results = append(results, SearchResult{
			ID:              id,
			SourceID:        row.SourceID,
			URL:             row.URL,
			Content:         row.Content,
			Metadata:        row.Metadata,
			SimilarityScore: score,
			ChunkNumber:     chunkNumber,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].SimilarityScore != results[j].SimilarityScore {
			return results[i].SimilarityScore > results[j].SimilarityScore
		}
		if results[i].ChunkNumber != results[j].ChunkNumber {
			return results[i].ChunkNumber < results[j].ChunkNumber
		}
		return results[i].ID < results[j].ID
	})
	if len(results) > matchCount {
		results = results[:matchCount]
	}
	return results, nil
}

func sourceFilterValue(filter FilterCriteria) (string, bool) {
	if v, ok := filter["source_id"]; ok {
		if s, ok := v.(string); ok {
			return s, true
		}
	}
	if v, ok := filter["source"]; ok {
		if s, ok := v.(string); ok {
			return s, true
		}
	}
	return "", false
}

func (s *HNSWStore) Delete(ctx context.Context, collection string, filter FilterCriteria, batchSize int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.collection(collection)
	if err != nil {
		return 0, err
	}

	wantSource, hasSourceFilter := sourceFilterValue(filter)
	deleted := 0
	for id, row := range c.rows {
		if hasSourceFilter && row.SourceID != wantSource {
			continue
		}
		if key, ok := c.idMap[id]; ok {
			delete(c.keyMap, key)
			delete(c.idMap, id)
		}
		delete(c.rows, id)
		deleted++
	}
	return deleted, nil
}

func (s *HNSWStore) UpdateMetadata(ctx context.Context, collection, id string, metadata map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.collection(collection)
	if err != nil {
		return err
	}
	row, ok := c.rows[id]
	if !ok {
		return apperr.NotFound(fmt.Sprintf("document %q not found", id), nil)
	}
	row.Metadata = metadata
	c.rows[id] = row
	return nil
}

func (s *HNSWStore) GetCollectionInfo(ctx context.Context, name string) (CollectionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, err := s.collection(name)
	if err != nil {
		return CollectionInfo{}, err
	}
	return CollectionInfo{
		Name:           name,
		VectorSize:     c.width,
		DistanceMetric: c.metric,
		Count:          len(c.idMap),
	}, nil
}

func (s *HNSWStore) ListCollections(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *HNSWStore) HealthCheck(ctx context.Context) (HealthStatus, error) {
	names, _ := s.ListCollections(ctx)
	status := "ok"
	if !s.connected {
		status = "disconnected"
	}
	return HealthStatus{
		Connected:        s.connected,
		CollectionsCount: len(names),
		Collections:      names,
		Status:           status,
	}, nil
}

func normalizeInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}

func distanceToScore(distance float32, metric DistanceMetric) float32 {
	switch metric {
	case MetricEuclidean:
		return 1.0 / (1.0 + distance)
	default:
		return 1.0 - distance/2.0
	}
}

// dimensionColumns lists the supported columnar widths in ascending order,
// used by the SQLite store to build one column per width.
var dimensionColumns = []model.EmbeddingDimension{model.Dim768, model.Dim1024, model.Dim1536, model.Dim3072}
