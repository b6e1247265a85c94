package search

import "sort"

// rrfConstant is the reciprocal-rank-fusion k, matching the teacher's
// default.
const rrfConstant = 60

// fuseResult is the intermediate scored record produced by fuse, keyed by
// chunk id so the vector and keyword legs can be merged before rerank.
type fuseResult struct {
	chunk       *ChunkResult
	vectorScore float64
	vectorRank  int
	keywordRank int
}

// fuseHybrid re-scores vector candidates by reciprocal-rank fusion: each
// chunk's SimilarityScore becomes 1/(60+vectorRank), plus 1/(60+keywordRank)
// when it also appears in the keyword leg. Ids that appear only in the
// keyword leg are not added.
func fuseHybrid(vector []*ChunkResult, keywordIDs []string) []*ChunkResult {
	keywordRank := make(map[string]int, len(keywordIDs))
	for i, id := range keywordIDs {
		keywordRank[id] = i + 1
	}

	fused := make([]*fuseResult, 0, len(vector))
	for i, c := range vector {
		fr := &fuseResult{chunk: c, vectorScore: c.SimilarityScore, vectorRank: i + 1}
		if rank, ok := keywordRank[c.Chunk.ID]; ok {
			fr.keywordRank = rank
		}
		fused = append(fused, fr)
	}

	for _, fr := range fused {
		boost := rrfTerm(fr.vectorRank)
		if fr.keywordRank > 0 {
			boost += rrfTerm(fr.keywordRank)
		}
		fr.chunk.SimilarityScore = boost
		fr.chunk.KeywordRank = fr.keywordRank
	}

	sort.SliceStable(fused, func(i, j int) bool {
		return fused[i].chunk.SimilarityScore > fused[j].chunk.SimilarityScore
	})

	out := make([]*ChunkResult, len(fused))
	for i, fr := range fused {
		out[i] = fr.chunk
	}
	return out
}

func rrfTerm(rank int) float64 {
	return 1.0 / float64(rrfConstant+rank)
}

// sortDeterministic applies the tie-break spec.md §5 requires: score desc,
// chunk_number asc, id asc.
func sortDeterministic(results []*ChunkResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		scoreA, scoreB := a.SimilarityScore, b.SimilarityScore
		if a.RerankScore != nil {
			scoreA = *a.RerankScore
		}
		if b.RerankScore != nil {
			scoreB = *b.RerankScore
		}
		if scoreA != scoreB {
			return scoreA > scoreB
		}
		if a.Chunk.ChunkNumber != b.Chunk.ChunkNumber {
			return a.Chunk.ChunkNumber < b.Chunk.ChunkNumber
		}
		return a.Chunk.ID < b.Chunk.ID
	})
}
