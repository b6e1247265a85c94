// Package vectorstore defines the provider-agnostic interface over a
// columnar vector database with per-dimension columns, plus the SQLite
// columnar implementation and a pure-vector HNSW implementation that both
// satisfy it.
package vectorstore

import (
	"context"
	"fmt"

	"github.com/archon-iirc/archon/internal/model"
)

// DistanceMetric selects the similarity function a collection is built with.
type DistanceMetric string

const (
	MetricCosine    DistanceMetric = "cosine"
	MetricEuclidean DistanceMetric = "euclidean"
	MetricDot       DistanceMetric = "dot"
)

// VectorDocument is one row to upsert: an embeddable entity (Chunk or
// CodeExample) plus the vector computed for it.
type VectorDocument struct {
	ID        string
	SourceID  string
	URL       string
	Content   string
	Metadata  map[string]any
	Embedding model.Embedding
}

// SearchResult is one similarity hit, already carrying enough of the source
// row for SearchEngine to assemble a response without a second round trip.
type SearchResult struct {
	ID              string
	SourceID        string
	URL             string
	Content         string
	Metadata        map[string]any
	SimilarityScore float64
	ChunkNumber     int
}

// UpsertResult reports per-item outcomes for a batched upsert so a caller
// can continue past partial failures (KindPartialBatchFailure).
type UpsertResult struct {
	Succeeded []string
	Failed    map[string]error
}

// CollectionInfo summarizes one collection for operator/debug endpoints.
type CollectionInfo struct {
	Name           string
	VectorSize     int
	DistanceMetric DistanceMetric
	Count          int
}

// HealthStatus is the /health contract's {connected, collections_count, collections, status} shape.
type HealthStatus struct {
	Connected        bool
	CollectionsCount int
	Collections      []string
	Status           string
}

// FilterCriteria is a conjunction of exact-match or in-list filters, e.g.
// {"source_id": "docs-foo"} or {"source_id": []string{"a", "b"}}.
type FilterCriteria map[string]any

// Store is the provider-agnostic vector store contract. Both the SQLite
// columnar store and the HNSW store implement it identically so
// SearchEngine and IngestPipeline never branch on backend.
type Store interface {
	Connect(ctx context.Context) error
	Disconnect() error

	CreateCollection(ctx context.Context, name string, vectorSize int, metric DistanceMetric) error

	// Upsert is keyed by (url, chunk_number) so re-crawls of the same
	// document are idempotent. Embeddings must be non-empty, exactly
	// vectorSize wide, and not all-zero.
	Upsert(ctx context.Context, collection string, docs []VectorDocument, batchSize int) (UpsertResult, error)

	// Search restricts candidates to the dimension column matching
	// queryEmbedding's width and, when filter carries "source" or
	// "source_id", to that source. Results are ordered by descending
	// similarity, ties broken by chunk_number then id.
	Search(ctx context.Context, collection string, queryEmbedding []float32, matchCount int, filter FilterCriteria, similarityThreshold float64) ([]SearchResult, error)

	Delete(ctx context.Context, collection string, filter FilterCriteria, batchSize int) (int, error)

	UpdateMetadata(ctx context.Context, collection, id string, metadata map[string]any) error

	GetCollectionInfo(ctx context.Context, name string) (CollectionInfo, error)
	ListCollections(ctx context.Context) ([]string, error)

	HealthCheck(ctx context.Context) (HealthStatus, error)
}

// ReEmbedStore is the narrow slice of Store that ReEmbedService walks: one
// stable-order page of rows at a time, plus a per-row rewrite of the
// embedding columns. SQLiteStore implements this directly against its
// columnar layout; an HNSW-backed Store has no per-row dimension columns
// to migrate and is not expected to implement it.
type ReEmbedStore interface {
	PageForReEmbed(ctx context.Context, collection, afterID string, pageSize int) ([]ReEmbedRow, error)
	WriteReEmbedded(ctx context.Context, collection, id string, emb model.Embedding) error
}

// ErrDimensionMismatch is returned when a query or upsert vector's width
// does not match the embedding_dimension recorded for the target row/column.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}

// ValidateEmbedding enforces the input-validation rule shared by every
// Store implementation: non-empty, exactly width-wide, not all-zero.
func ValidateEmbedding(vec []float32, width int) error {
	if len(vec) != width {
		return ErrDimensionMismatch{Expected: width, Got: len(vec)}
	}
	allZero := true
	for _, v := range vec {
		if v != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		return fmt.Errorf("embedding vector is all-zero")
	}
	return nil
}

// ColumnForDimension maps an embedding width to its storage column name in
// the columnar schema.
func ColumnForDimension(d model.EmbeddingDimension) string {
	return fmt.Sprintf("embedding_%d", int(d))
}
