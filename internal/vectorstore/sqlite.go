package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/archon-iirc/archon/internal/apperr"
	"github.com/archon-iirc/archon/internal/model"
)

// SQLiteStore is the default-deployment Store: a single columnar table per
// collection with one nullable BLOB column per supported embedding width.
// Every row self-describes its populated width via embedding_dimension, so
// ReEmbedService can leave a mix of widths behind a cancelled run.
type SQLiteStore struct {
	db *sqlx.DB

	mu          sync.Mutex
	collections map[string]bool
	pagesReady  bool
}

// NewSQLiteStore opens (creating if absent) the SQLite database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, apperr.Store("failed to open sqlite vector store", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite is not safe for concurrent writers
	return &SQLiteStore{db: db, collections: make(map[string]bool)}, nil
}

var _ Store = (*SQLiteStore)(nil)

func (s *SQLiteStore) Connect(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Disconnect() error {
	return s.db.Close()
}

// RawDB exposes the underlying *sql.DB so collaborators that need their own
// tables in the same database file (metrics.SQLiteMetricsStore) can share the
// connection rather than opening a second one.
func (s *SQLiteStore) RawDB() *sql.DB {
	return s.db.DB
}

func tableName(collection string) string {
	return "vs_" + collection
}

func (s *SQLiteStore) CreateCollection(ctx context.Context, name string, vectorSize int, metric DistanceMetric) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.collections[name] {
		return nil
	}

	var cols []string
	for _, d := range dimensionColumns {
		cols = append(cols, fmt.Sprintf("embedding_%d BLOB", int(d)))
	}

	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY,
		source_id TEXT NOT NULL,
		url TEXT NOT NULL,
		chunk_number INTEGER NOT NULL DEFAULT 0,
		content TEXT NOT NULL,
		metadata TEXT,
		embedding_model TEXT,
		embedding_dimension INTEGER,
		%s,
		UNIQUE(url, chunk_number)
	)`, tableName(name), strings.Join(cols, ",\n\t\t"))

	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return apperr.Store("failed to create collection table", err)
	}
	idxStmt := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_source ON %s(source_id)`, tableName(name), tableName(name))
	if _, err := s.db.ExecContext(ctx, idxStmt); err != nil {
		return apperr.Store("failed to create source index", err)
	}

	s.collections[name] = true
	return nil
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		bits := math.Float32bits(f)
		buf[i*4] = byte(bits)
		buf[i*4+1] = byte(bits >> 8)
		buf[i*4+2] = byte(bits >> 16)
		buf[i*4+3] = byte(bits >> 24)
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		bits := uint32(buf[i*4]) | uint32(buf[i*4+1])<<8 | uint32(buf[i*4+2])<<16 | uint32(buf[i*4+3])<<24
		v[i] = math.Float32frombits(bits)
	}
	return v
}

// Upsert writes each document's vector into the single embedding column
// matching its declared dimension, NULLing the other three columns so the
// "exactly one embedding column is non-null" invariant holds even when a
// row is later re-embedded at a different width.
func (s *SQLiteStore) Upsert(ctx context.Context, collection string, docs []VectorDocument, batchSize int) (UpsertResult, error) {
	if !s.collections[collection] {
		return UpsertResult{}, apperr.NotFound(fmt.Sprintf("collection %q does not exist", collection), nil)
	}

	result := UpsertResult{Failed: make(map[string]error)}
	table := tableName(collection)

	for start := 0; start < len(docs); start += batchSize {
		end := start + batchSize
		if end > len(docs) {
			end = len(docs)
		}
		batch := docs[start:end]

		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return result, apperr.Store("failed to begin upsert transaction", err)
		}

		for _, doc := range batch {
			if doc.URL == "" || doc.Content == "" {
				result.Failed[doc.ID] = apperr.Validation("document requires both url and content", nil)
				continue
			}
			dim := doc.Embedding.Dimension
			if !model.ValidDimension(dim) {
				result.Failed[doc.ID] = apperr.Validation(fmt.Sprintf("unsupported embedding dimension %d", dim), nil)
				continue
			}
			if err := ValidateEmbedding(doc.Embedding.Vector, int(dim)); err != nil {
				result.Failed[doc.ID] = err
				continue
			}

			metaJSON, _ := json.Marshal(doc.Metadata)
			chunkNumber, _ := doc.Metadata["chunk_number"].(int)

			assignments := make(map[string]any, len(dimensionColumns)+1)
			for _, d := range dimensionColumns {
				col := ColumnForDimension(d)
				if d == dim {
					assignments[col] = encodeVector(doc.Embedding.Vector)
				} else {
					assignments[col] = nil
				}
			}

			query := fmt.Sprintf(`INSERT INTO %s
				(id, source_id, url, chunk_number, content, metadata, embedding_model, embedding_dimension,
				 embedding_768, embedding_1024, embedding_1536, embedding_3072)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(url, chunk_number) DO UPDATE SET
					content=excluded.content, metadata=excluded.metadata,
					embedding_model=excluded.embedding_model, embedding_dimension=excluded.embedding_dimension,
					embedding_768=excluded.embedding_768, embedding_1024=excluded.embedding_1024,
					embedding_1536=excluded.embedding_1536, embedding_3072=excluded.embedding_3072`, table)

			_, err := tx.ExecContext(ctx, query,
				doc.ID, doc.SourceID, doc.URL, chunkNumber, doc.Content, string(metaJSON),
				doc.Embedding.Model, int(dim),
				assignments["embedding_768"], assignments["embedding_1024"],
				assignments["embedding_1536"], assignments["embedding_3072"])
			if err != nil {
				result.Failed[doc.ID] = apperr.Store("upsert failed", err)
				continue
			}
			result.Succeeded = append(result.Succeeded, doc.ID)
		}

		if err := tx.Commit(); err != nil {
			return result, apperr.Store("failed to commit upsert batch", err)
		}
	}

	return result, nil
}

func (s *SQLiteStore) Search(ctx context.Context, collection string, queryEmbedding []float32, matchCount int, filter FilterCriteria, similarityThreshold float64) ([]SearchResult, error) {
	if !s.collections[collection] {
		return nil, apperr.NotFound(fmt.Sprintf("collection %q does not exist", collection), nil)
	}

	dim := model.EmbeddingDimension(len(queryEmbedding))
	if !model.ValidDimension(dim) {
		return nil, ErrDimensionMismatch{Got: len(queryEmbedding)}
	}
	col := ColumnForDimension(dim)
	table := tableName(collection)

	query := fmt.Sprintf(`SELECT id, source_id, url, chunk_number, content, metadata, %s AS vec
		FROM %s WHERE %s IS NOT NULL`, col, table, col)
	args := []any{}
	if src, ok := sourceFilterValue(filter); ok {
		query += " AND source_id = ?"
		args = append(args, src)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Store("search query failed", err)
	}
	defer rows.Close()

	normQuery := make([]float32, len(queryEmbedding))
	copy(normQuery, queryEmbedding)
	normalizeInPlace(normQuery)

	var results []SearchResult
	for rows.Next() {
		var id, sourceID, url, content string
		var chunkNumber int
		var metaJSON sql.NullString
		var vecBytes []byte
		if err := rows.Scan(&id, &sourceID, &url, &chunkNumber, &content, &metaJSON, &vecBytes); err != nil {
			return nil, apperr.Store("search row scan failed", err)
		}
		vec := decodeVector(vecBytes)
		normVec := make([]float32, len(vec))
		copy(normVec, vec)
		normalizeInPlace(normVec)

		score := cosineSimilarity(normQuery, normVec)
		if float64(score) < similarityThreshold {
			continue
		}

		var meta map[string]any
		if metaJSON.Valid {
			_ = json.Unmarshal([]byte(metaJSON.String), &meta)
		}

		results = append(results, SearchResult{
			ID: id, SourceID: sourceID, URL: url, Content: content,
			Metadata: meta, SimilarityScore: float64(score), ChunkNumber: chunkNumber,
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

func cosineSimilarity(a, b []float32) float32 {
	var dot float64
	for i := range a {
		if i >= len(b) {
			break
		}
		dot += float64(a[i]) * float64(b[i])
	}
	// a and b are already unit-normalized, so dot product is the cosine similarity.
	return float32(dot)
}

func (s *SQLiteStore) Delete(ctx context.Context, collection string, filter FilterCriteria, batchSize int) (int, error) {
	if !s.collections[collection] {
		return 0, apperr.NotFound(fmt.Sprintf("collection %q does not exist", collection), nil)
	}
	table := tableName(collection)

	query := fmt.Sprintf("DELETE FROM %s WHERE 1=1", table)
	args := []any{}
	for field, val := range filter {
		switch v := val.(type) {
		case []string:
			placeholders := make([]string, len(v))
			for i, item := range v {
				placeholders[i] = "?"
				args = append(args, item)
			}
			query += fmt.Sprintf(" AND %s IN (%s)", field, strings.Join(placeholders, ","))
		default:
			query += fmt.Sprintf(" AND %s = ?", field)
			args = append(args, v)
		}
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, apperr.Store("delete failed", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *SQLiteStore) UpdateMetadata(ctx context.Context, collection, id string, metadata map[string]any) error {
	if !s.collections[collection] {
		return apperr.NotFound(fmt.Sprintf("collection %q does not exist", collection), nil)
	}
	metaJSON, _ := json.Marshal(metadata)
	query := fmt.Sprintf("UPDATE %s SET metadata = ? WHERE id = ?", tableName(collection))
	res, err := s.db.ExecContext(ctx, query, string(metaJSON), id)
	if err != nil {
		return apperr.Store("update metadata failed", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.NotFound(fmt.Sprintf("document %q not found", id), nil)
	}
	return nil
}

func (s *SQLiteStore) GetCollectionInfo(ctx context.Context, name string) (CollectionInfo, error) {
	if !s.collections[name] {
		return CollectionInfo{}, apperr.NotFound(fmt.Sprintf("collection %q does not exist", name), nil)
	}
	var count int
	if err := s.db.GetContext(ctx, &count, fmt.Sprintf("SELECT COUNT(*) FROM %s", tableName(name))); err != nil {
		return CollectionInfo{}, apperr.Store("collection info query failed", err)
	}
	return CollectionInfo{Name: name, Count: count}, nil
}

func (s *SQLiteStore) ListCollections(ctx context.Context) ([]string, error) {
	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *SQLiteStore) HealthCheck(ctx context.Context) (HealthStatus, error) {
	names, _ := s.ListCollections(ctx)
	status := "ok"
	connected := s.db.PingContext(ctx) == nil
	if !connected {
		status = "disconnected"
	}
	return HealthStatus{Connected: connected, CollectionsCount: len(names), Collections: names, Status: status}, nil
}

var _ ReEmbedStore = (*SQLiteStore)(nil)

// ReEmbedRow is the stable-order page shape ReEmbedService walks.
type ReEmbedRow struct {
	ID       string
	Content  string
	Metadata map[string]any
}

// PageForReEmbed fetches up to pageSize chunk rows after afterID in stable
// (id) order, used by ReEmbedService's 100-row pagination.
func (s *SQLiteStore) PageForReEmbed(ctx context.Context, collection, afterID string, pageSize int) ([]ReEmbedRow, error) {
	table := tableName(collection)
	query := fmt.Sprintf("SELECT id, content, metadata FROM %s WHERE id > ? ORDER BY id ASC LIMIT ?", table)
	rows, err := s.db.QueryContext(ctx, query, afterID, pageSize)
	if err != nil {
		return nil, apperr.Store("re-embed page query failed", err)
	}
	defer rows.Close()

	var out []ReEmbedRow
	for rows.Next() {
		var id, content string
		var metaJSON sql.NullString
		if err := rows.Scan(&id, &content, &metaJSON); err != nil {
			return nil, apperr.Store("re-embed row scan failed", err)
		}
		var meta map[string]any
		if metaJSON.Valid {
			_ = json.Unmarshal([]byte(metaJSON.String), &meta)
		}
		out = append(out, ReEmbedRow{ID: id, Content: content, Metadata: meta})
	}
	return out, nil
}

// WriteReEmbedded rewrites row id's embedding into the new dimension's
// column and NULLs the other three, atomically per row.
func (s *SQLiteStore) WriteReEmbedded(ctx context.Context, collection, id string, emb model.Embedding) error {
	table := tableName(collection)
	assignments := make(map[string]any, len(dimensionColumns))
	for _, d := range dimensionColumns {
		if d == emb.Dimension {
			assignments[ColumnForDimension(d)] = encodeVector(emb.Vector)
		} else {
			assignments[ColumnForDimension(d)] = nil
		}
	}
	query := fmt.Sprintf(`UPDATE %s SET embedding_model=?, embedding_dimension=?,
		embedding_768=?, embedding_1024=?, embedding_1536=?, embedding_3072=? WHERE id=?`, table)
	_, err := s.db.ExecContext(ctx, query, emb.Model, int(emb.Dimension),
		assignments["embedding_768"], assignments["embedding_1024"],
		assignments["embedding_1536"], assignments["embedding_3072"], id)
	if err != nil {
		return apperr.Store("re-embed write failed", err)
	}
	return nil
}
