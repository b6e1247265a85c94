package search

import (
	"context"
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/archon-iirc/archon/internal/apperr"
	"github.com/archon-iirc/archon/internal/model"
)

// BleveIndex is the keyword leg of hybrid search, backing spec.md §4.10
// step 3. One index instance is shared by the chunk and code-example
// collections via distinct index names.
type BleveIndex struct {
	idx bleve.Index
}

type indexedChunk struct {
	SourceID string `json:"source_id"`
	Content  string `json:"content"`
}

// NewBleveIndex opens or creates an in-memory bleve index. Archon keeps the
// keyword index ephemeral and rebuildable from VectorStore content rather
// than persisting it separately, since it is a relevance-boost signal, not
// the system of record.
func NewBleveIndex() (*BleveIndex, error) {
	mapping := bleve.NewIndexMapping()
	idx, err := bleve.NewMemOnly(mapping)
	if err != nil {
		return nil, apperr.Internal("failed to create keyword index", err)
	}
	return &BleveIndex{idx: idx}, nil
}

var _ KeywordIndex = (*BleveIndex)(nil)

func (b *BleveIndex) Index(ctx context.Context, chunks []*model.Chunk) error {
	batch := b.idx.NewBatch()
	for _, c := range chunks {
		if err := batch.Index(c.ID, indexedChunk{SourceID: c.SourceID, Content: c.Content}); err != nil {
			return apperr.Internal("failed to stage chunk for keyword index", err)
		}
	}
	if err := b.idx.Batch(batch); err != nil {
		return apperr.Internal("failed to commit keyword index batch", err)
	}
	return nil
}

func (b *BleveIndex) Delete(ctx context.Context, chunkIDs []string) error {
	batch := b.idx.NewBatch()
	for _, id := range chunkIDs {
		batch.Delete(id)
	}
	if err := b.idx.Batch(batch); err != nil {
		return apperr.Internal("failed to delete from keyword index", err)
	}
	return nil
}

func (b *BleveIndex) Search(ctx context.Context, q, sourceFilter string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = DefaultMatchCount
	}

	matchQuery := bleve.NewMatchQuery(q)
	matchQuery.SetField("content")

	var finalQuery query.Query = matchQuery
	if sourceFilter != "" {
		sourceQuery := bleve.NewTermQuery(sourceFilter)
		sourceQuery.SetField("source_id")
		finalQuery = bleve.NewConjunctionQuery(matchQuery, sourceQuery)
	}

	req := bleve.NewSearchRequestOptions(finalQuery, limit, 0, false)
	result, err := b.idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, apperr.Internal(fmt.Sprintf("keyword search failed for %q", q), err)
	}

	ids := make([]string, 0, len(result.Hits))
	for _, hit := range result.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}

func (b *BleveIndex) Close() error { return b.idx.Close() }
