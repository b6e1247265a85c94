package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/archon-iirc/archon/internal/apperr"
	"github.com/archon-iirc/archon/internal/model"
)

// PageStore holds Source and Page rows independent of any one collection's
// embedding columns, since HNSWStore's pure-vector index has no home for
// them. SQLiteStore is always the page/source backend regardless of which
// Store handles a collection's vectors.
type PageStore interface {
	EnsureSource(ctx context.Context, sourceID string) error
	UpsertPage(ctx context.Context, page *model.Page) error
	UpdatePageChunkCount(ctx context.Context, pageID string, count int) error
	GetPage(ctx context.Context, pageID string) (*model.Page, error)
	GetPageByURL(ctx context.Context, sourceID, url string) (*model.Page, error)
	UpdateSourceSummary(ctx context.Context, sourceID, title, summary string, wordCount int) error
	DeleteSource(ctx context.Context, sourceID string) error
	ListPages(ctx context.Context, sourceID string, limit, offset int) ([]*model.Page, error)
	ListSources(ctx context.Context) ([]*model.Source, error)
	// TotalChunkCount sums chunk_count across every page, letting a
	// consistency check compare it against the paired Store collection's
	// point count without walking every page individually.
	TotalChunkCount(ctx context.Context) (int, error)
}

var _ PageStore = (*SQLiteStore)(nil)

const pagesSchema = `
CREATE TABLE IF NOT EXISTS sources (
	source_id TEXT PRIMARY KEY,
	title TEXT,
	summary TEXT,
	total_word_count INTEGER NOT NULL DEFAULT 0,
	metadata TEXT,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS pages (
	id TEXT PRIMARY KEY,
	source_id TEXT NOT NULL,
	url TEXT NOT NULL,
	section_title TEXT,
	section_order INTEGER NOT NULL DEFAULT 0,
	full_content TEXT NOT NULL,
	word_count INTEGER NOT NULL DEFAULT 0,
	char_count INTEGER NOT NULL DEFAULT 0,
	chunk_count INTEGER NOT NULL DEFAULT 0,
	metadata TEXT,
	created_at TIMESTAMP NOT NULL,
	UNIQUE(source_id, url)
);
CREATE INDEX IF NOT EXISTS idx_pages_source ON pages(source_id);
`

// ensurePagesSchema is called lazily so callers that never touch Page
// storage (pure HNSW deployments) never pay for it.
func (s *SQLiteStore) ensurePagesSchema(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pagesReady {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, pagesSchema); err != nil {
		return apperr.Store("failed to create pages schema", err)
	}
	s.pagesReady = true
	return nil
}

// EnsureSource inserts a Source row on first ingest of any page resolving
// to sourceID; a second call is a no-op.
func (s *SQLiteStore) EnsureSource(ctx context.Context, sourceID string) error {
	if err := s.ensurePagesSchema(ctx); err != nil {
		return err
	}
	now := time.Now()
	_, err := s.db.ExecContext(ctx, `INSERT INTO sources (source_id, title, summary, total_word_count, metadata, created_at, updated_at)
		VALUES (?, '', '', 0, '{}', ?, ?)
		ON CONFLICT(source_id) DO NOTHING`, sourceID, now, now)
	if err != nil {
		return apperr.Store("failed to ensure source", err)
	}
	return nil
}

// UpsertPage inserts or replaces a page keyed by (source_id, url), per
// spec.md §3's Page uniqueness invariant. Pages are written before
// chunking so chunks can reference a stable page_id.
func (s *SQLiteStore) UpsertPage(ctx context.Context, page *model.Page) error {
	if err := s.ensurePagesSchema(ctx); err != nil {
		return err
	}
	metaJSON, _ := json.Marshal(page.Metadata)
	if page.CreatedAt.IsZero() {
		page.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO pages
		(id, source_id, url, section_title, section_order, full_content, word_count, char_count, chunk_count, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_id, url) DO UPDATE SET
			section_title=excluded.section_title, section_order=excluded.section_order,
			full_content=excluded.full_content, word_count=excluded.word_count,
			char_count=excluded.char_count, metadata=excluded.metadata`,
		page.ID, page.SourceID, page.URL, page.SectionTitle, page.SectionOrder,
		page.FullContent, page.WordCount, page.CharCount, page.ChunkCount, string(metaJSON), page.CreatedAt)
	if err != nil {
		return apperr.Store("failed to upsert page", err)
	}
	return nil
}

// UpdatePageChunkCount patches in the chunk count once chunking completes.
func (s *SQLiteStore) UpdatePageChunkCount(ctx context.Context, pageID string, count int) error {
	if err := s.ensurePagesSchema(ctx); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `UPDATE pages SET chunk_count = ? WHERE id = ?`, count, pageID)
	if err != nil {
		return apperr.Store("failed to update chunk count", err)
	}
	return nil
}

func (s *SQLiteStore) GetPage(ctx context.Context, pageID string) (*model.Page, error) {
	if err := s.ensurePagesSchema(ctx); err != nil {
		return nil, err
	}
	return s.scanPage(ctx, `SELECT id, source_id, url, section_title, section_order, full_content,
		word_count, char_count, chunk_count, metadata, created_at FROM pages WHERE id = ?`, pageID)
}

func (s *SQLiteStore) GetPageByURL(ctx context.Context, sourceID, url string) (*model.Page, error) {
	if err := s.ensurePagesSchema(ctx); err != nil {
		return nil, err
	}
	return s.scanPage(ctx, `SELECT id, source_id, url, section_title, section_order, full_content,
		word_count, char_count, chunk_count, metadata, created_at FROM pages WHERE source_id = ? AND url = ?`, sourceID, url)
}

func (s *SQLiteStore) scanPage(ctx context.Context, query string, args ...any) (*model.Page, error) {
	row := s.db.QueryRowContext(ctx, query, args...)
	var p model.Page
	var metaJSON sql.NullString
	err := row.Scan(&p.ID, &p.SourceID, &p.URL, &p.SectionTitle, &p.SectionOrder, &p.FullContent,
		&p.WordCount, &p.CharCount, &p.ChunkCount, &metaJSON, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound(fmt.Sprintf("page %q not found", args[len(args)-1]), nil)
	}
	if err != nil {
		return nil, apperr.Store("failed to read page", err)
	}
	if metaJSON.Valid {
		_ = json.Unmarshal([]byte(metaJSON.String), &p.Metadata)
	}
	return &p, nil
}

// UpdateSourceSummary records the AI-generated summary and title once the
// first batch of chunks for a source is stored.
func (s *SQLiteStore) UpdateSourceSummary(ctx context.Context, sourceID, title, summary string, wordCount int) error {
	if err := s.ensurePagesSchema(ctx); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `UPDATE sources SET title = ?, summary = ?,
		total_word_count = total_word_count + ?, updated_at = ? WHERE source_id = ?`,
		title, summary, wordCount, time.Now(), sourceID)
	if err != nil {
		return apperr.Store("failed to update source summary", err)
	}
	return nil
}

// ListPages returns pages for sourceID (or every source if sourceID is
// empty) ordered by creation time, bounded by limit/offset for pagination.
func (s *SQLiteStore) ListPages(ctx context.Context, sourceID string, limit, offset int) ([]*model.Page, error) {
	if err := s.ensurePagesSchema(ctx); err != nil {
		return nil, err
	}
	query := `SELECT id, source_id, url, section_title, section_order, full_content,
		word_count, char_count, chunk_count, metadata, created_at FROM pages`
	args := []any{}
	if sourceID != "" {
		query += ` WHERE source_id = ?`
		args = append(args, sourceID)
	}
	query += ` ORDER BY created_at LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Store("failed to list pages", err)
	}
	defer rows.Close()

	var pages []*model.Page
	for rows.Next() {
		var p model.Page
		var metaJSON sql.NullString
		if err := rows.Scan(&p.ID, &p.SourceID, &p.URL, &p.SectionTitle, &p.SectionOrder, &p.FullContent,
			&p.WordCount, &p.CharCount, &p.ChunkCount, &metaJSON, &p.CreatedAt); err != nil {
			return nil, apperr.Store("failed to scan page", err)
		}
		if metaJSON.Valid {
			_ = json.Unmarshal([]byte(metaJSON.String), &p.Metadata)
		}
		pages = append(pages, &p)
	}
	return pages, rows.Err()
}

// ListSources returns every registered source, most recently updated first.
func (s *SQLiteStore) ListSources(ctx context.Context) ([]*model.Source, error) {
	if err := s.ensurePagesSchema(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT source_id, title, summary, total_word_count, metadata, created_at, updated_at
		FROM sources ORDER BY updated_at DESC`)
	if err != nil {
		return nil, apperr.Store("failed to list sources", err)
	}
	defer rows.Close()

	var sources []*model.Source
	for rows.Next() {
		var src model.Source
		var metaJSON sql.NullString
		if err := rows.Scan(&src.SourceID, &src.Title, &src.Summary, &src.TotalWordCount, &metaJSON, &src.CreatedAt, &src.UpdatedAt); err != nil {
			return nil, apperr.Store("failed to scan source", err)
		}
		if metaJSON.Valid {
			_ = json.Unmarshal([]byte(metaJSON.String), &src.Metadata)
		}
		sources = append(sources, &src)
	}
	return sources, rows.Err()
}

// TotalChunkCount sums the chunk_count column across every page.
func (s *SQLiteStore) TotalChunkCount(ctx context.Context) (int, error) {
	if err := s.ensurePagesSchema(ctx); err != nil {
		return 0, err
	}
	var total sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT SUM(chunk_count) FROM pages`).Scan(&total); err != nil {
		return 0, apperr.Store("failed to sum chunk counts", err)
	}
	return int(total.Int64), nil
}

// DeleteSource cascades to pages; chunk/code-example rows live in the
// per-collection vector tables and are removed separately via Store.Delete.
func (s *SQLiteStore) DeleteSource(ctx context.Context, sourceID string) error {
	if err := s.ensurePagesSchema(ctx); err != nil {
		return err
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return apperr.Store("failed to begin source deletion", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM pages WHERE source_id = ?`, sourceID); err != nil {
		_ = tx.Rollback()
		return apperr.Store("failed to delete pages", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sources WHERE source_id = ?`, sourceID); err != nil {
		_ = tx.Rollback()
		return apperr.Store("failed to delete source", err)
	}
	if err := tx.Commit(); err != nil {
		return apperr.Store("failed to commit source deletion", err)
	}
	return nil
}
