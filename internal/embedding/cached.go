package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/archon-iirc/archon/internal/model"
)

// DefaultCacheSize bounds the query-embedding cache at roughly 3MB for 768-dim vectors.
const DefaultCacheSize = 1000

type cacheEntry struct {
	vector    []float32
	dimension model.EmbeddingDimension
}

// CachedProvider wraps a Provider with an LRU cache keyed by
// sha256(text || model), so repeated search queries skip the outbound call.
type CachedProvider struct {
	inner Provider
	cache *lru.Cache[string, cacheEntry]
}

func NewCachedProvider(inner Provider, cacheSize int) *CachedProvider {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, _ := lru.New[string, cacheEntry](cacheSize)
	return &CachedProvider{inner: inner, cache: cache}
}

func (c *CachedProvider) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text + "\x00" + c.inner.ModelName()))
	return hex.EncodeToString(sum[:])
}

// EmbedBatch serves cached entries directly and only calls the inner
// provider for the texts that missed.
func (c *CachedProvider) EmbedBatch(ctx context.Context, texts []string) (BatchResponse, error) {
	if len(texts) == 0 {
		return BatchResponse{Model: c.inner.ModelName()}, nil
	}

	results := make([]Result, len(texts))
	var missIdx []int
	var missTexts []string

	for i, text := range texts {
		if entry, ok := c.cache.Get(c.cacheKey(text)); ok {
			results[i] = Result{Index: i, Embedding: entry.vector, Dimension: entry.dimension}
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}

	if len(missTexts) == 0 {
		return BatchResponse{Results: results, Model: c.inner.ModelName()}, nil
	}

	resp, err := c.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return BatchResponse{}, err
	}

	for _, res := range resp.Results {
		missPos := res.Index // index into missTexts, as returned by the inner provider
		origIdx := missIdx[missPos]
		res.Index = origIdx
		results[origIdx] = res
		if res.Err == nil {
			c.cache.Add(c.cacheKey(missTexts[missPos]), cacheEntry{vector: res.Embedding, dimension: res.Dimension})
		}
	}

	return BatchResponse{Results: results, Model: c.inner.ModelName()}, nil
}

func (c *CachedProvider) Dimensions() int         { return c.inner.Dimensions() }
func (c *CachedProvider) ModelName() string       { return c.inner.ModelName() }
func (c *CachedProvider) Available(ctx context.Context) bool { return c.inner.Available(ctx) }
func (c *CachedProvider) Close() error            { return c.inner.Close() }
func (c *CachedProvider) Inner() Provider         { return c.inner }
