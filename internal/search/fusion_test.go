package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archon-iirc/archon/internal/model"
)

func chunkResult(id string, chunkNumber int, score float64) *ChunkResult {
	return &ChunkResult{Chunk: &model.Chunk{ID: id, ChunkNumber: chunkNumber}, SimilarityScore: score}
}

func TestFuseHybrid_BoostsChunksPresentInBothLists(t *testing.T) {
	vector := []*ChunkResult{
		chunkResult("a", 0, 0.9),
		chunkResult("b", 1, 0.8),
		chunkResult("c", 2, 0.7),
	}
	fused := fuseHybrid(vector, []string{"c", "a"})

	require.Len(t, fused, 3)
	// "a" appears in both lists (vector rank 1, keyword rank 2) so it should
	// outrank "c" (vector rank 3, keyword rank 1) and "b" (vector only).
	assert.Equal(t, "a", fused[0].Chunk.ID)
	ids := []string{fused[0].Chunk.ID, fused[1].Chunk.ID, fused[2].Chunk.ID}
	assert.Contains(t, ids, "b")
}

func TestFuseHybrid_NoKeywordMatchesPreservesVectorOrder(t *testing.T) {
	vector := []*ChunkResult{chunkResult("a", 0, 0.9), chunkResult("b", 1, 0.5)}
	fused := fuseHybrid(vector, nil)
	require.Len(t, fused, 2)
	assert.Equal(t, "a", fused[0].Chunk.ID)
}

func TestSortDeterministic_TiesBrokenByChunkNumberThenID(t *testing.T) {
	results := []*ChunkResult{
		chunkResult("z", 2, 0.5),
		chunkResult("a", 1, 0.5),
		chunkResult("m", 1, 0.5),
	}
	sortDeterministic(results)
	assert.Equal(t, []string{"a", "m", "z"}, []string{results[0].Chunk.ID, results[1].Chunk.ID, results[2].Chunk.ID})
}

func TestSortDeterministic_PrefersRerankScoreOverSimilarity(t *testing.T) {
	low := chunkResult("low", 0, 0.9)
	high := chunkResult("high", 0, 0.1)
	rerankLow := 0.1
	rerankHigh := 0.9
	low.RerankScore = &rerankLow
	high.RerankScore = &rerankHigh

	results := []*ChunkResult{low, high}
	sortDeterministic(results)
	assert.Equal(t, "high", results[0].Chunk.ID)
}
