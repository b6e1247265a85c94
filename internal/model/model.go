// Package model defines the entities shared across every ingestion,
// indexing and retrieval component: Source, Page, Chunk, CodeExample,
// OperationProgress and ToolSession.
package model

import "time"

// EmbeddingDimension is one of the four supported vector widths. A row
// populates exactly one embedding column of this width.
type EmbeddingDimension int

const (
	Dim768  EmbeddingDimension = 768
	Dim1024 EmbeddingDimension = 1024
	Dim1536 EmbeddingDimension = 1536
	Dim3072 EmbeddingDimension = 3072
)

// ValidDimension reports whether d is one of the four supported widths.
func ValidDimension(d EmbeddingDimension) bool {
	switch d {
	case Dim768, Dim1024, Dim1536, Dim3072:
		return true
	default:
		return false
	}
}

// KnowledgeType classifies a source for retrieval filtering.
type KnowledgeType string

const (
	KnowledgeDocumentation KnowledgeType = "documentation"
	KnowledgeTechnical     KnowledgeType = "technical"
)

// Source is the top-level corpus unit: a crawled site, an uploaded document
// set, or an llms-full digest. Deleting a Source cascades to every Page,
// Chunk and CodeExample it owns.
type Source struct {
	SourceID        string         `json:"source_id" db:"source_id"`
	Title           string         `json:"title" db:"title"`
	Summary         string         `json:"summary" db:"summary"`
	TotalWordCount  int            `json:"total_word_count" db:"total_word_count"`
	Metadata        map[string]any `json:"metadata" db:"metadata"`
	CreatedAt       time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at" db:"updated_at"`
}

// Page is one fetched document within a Source: a crawled URL, an uploaded
// file, or one synthetic section split out of an llms-full digest.
type Page struct {
	ID            string         `json:"id" db:"id"`
	SourceID      string         `json:"source_id" db:"source_id"`
	URL           string         `json:"url" db:"url"`
	SectionTitle  string         `json:"section_title,omitempty" db:"section_title"`
	SectionOrder  int            `json:"section_order,omitempty" db:"section_order"`
	FullContent   string         `json:"full_content" db:"full_content"`
	WordCount     int            `json:"word_count" db:"word_count"`
	CharCount     int            `json:"char_count" db:"char_count"`
	ChunkCount    int            `json:"chunk_count" db:"chunk_count"`
	Metadata      map[string]any `json:"metadata" db:"metadata"`
	CreatedAt     time.Time      `json:"created_at" db:"created_at"`
}

// Embedding holds a vector alongside the metadata needed to route it to the
// right columnar store column and validate it against the row's dimension.
type Embedding struct {
	Vector    []float32          `json:"-"`
	Model     string             `json:"embedding_model"`
	Dimension EmbeddingDimension `json:"embedding_dimension"`
}

// Chunk is one embeddable unit of prose text produced by the Chunker.
type Chunk struct {
	ID          string         `json:"id" db:"id"`
	SourceID    string         `json:"source_id" db:"source_id"`
	PageID      string         `json:"page_id" db:"page_id"`
	URL         string         `json:"url" db:"url"`
	ChunkNumber int            `json:"chunk_number" db:"chunk_number"`
	Content     string         `json:"content" db:"content"`
	Metadata    map[string]any `json:"metadata" db:"metadata"`
	Embedding   *Embedding     `json:"embedding,omitempty"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
}

// CodeExample is a fenced code block lifted out of prose by the CodeExtractor.
type CodeExample struct {
	ID            string         `json:"id" db:"id"`
	SourceID      string         `json:"source_id" db:"source_id"`
	URL           string         `json:"url" db:"url"`
	Content       string         `json:"content" db:"content"`
	Language      string         `json:"language" db:"language"`
	ContextBefore string         `json:"context_before" db:"context_before"`
	ContextAfter  string         `json:"context_after" db:"context_after"`
	Summary       string         `json:"summary,omitempty" db:"summary"`
	Metadata      map[string]any `json:"metadata" db:"metadata"`
	Embedding     *Embedding     `json:"embedding,omitempty"`
	CreatedAt     time.Time      `json:"created_at" db:"created_at"`
}

// OperationType names the kind of long-running operation a progress record tracks.
type OperationType string

const (
	OpCrawl          OperationType = "crawl"
	OpUpload         OperationType = "upload"
	OpReEmbed        OperationType = "re_embed"
	OpCodeExtraction OperationType = "code_extraction"
)

// OperationStatus is a terminal or in-flight state of an OperationProgress record.
type OperationStatus string

const (
	StatusStarting   OperationStatus = "starting"
	StatusFetching   OperationStatus = "fetching"
	StatusProcessing OperationStatus = "processing"
	StatusEmbedding  OperationStatus = "embedding"
	StatusStoring    OperationStatus = "storing"
	StatusCompleted  OperationStatus = "completed"
	StatusCancelled  OperationStatus = "cancelled"
	StatusError      OperationStatus = "error"
)

// Terminal reports whether s is a final state after which no further
// updates (other than garbage collection) are permitted.
func (s OperationStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusError:
		return true
	default:
		return false
	}
}

// OperationProgress is a pollable, monotonically advancing snapshot of one
// long-running ingest, upload or re-embed job.
type OperationProgress struct {
	ProgressID  string         `json:"progress_id"`
	Type        OperationType  `json:"type"`
	Status      OperationStatus `json:"status"`
	Progress    int            `json:"progress"`
	Log         string         `json:"log,omitempty"`
	Payload     map[string]any `json:"payload,omitempty"`
	StartedAt   time.Time      `json:"started_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// ToolSession tracks one agent-tool-bridge client connection.
type ToolSession struct {
	ID            string    `json:"id"`
	ClientID      string    `json:"client_id"`
	ConnectedAt   time.Time `json:"connected_at"`
	LastActivity  time.Time `json:"last_activity"`
	ToolsCalled   int       `json:"tools_called"`
}

// Expired reports whether the session's last activity is older than timeout.
func (s *ToolSession) Expired(timeout time.Duration, now time.Time) bool {
	return now.Sub(s.LastActivity) > timeout
}
