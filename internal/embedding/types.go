// Package embedding implements the pluggable batch-embedding client
// contract: canonical request/response shapes, per-item partial failure
// reporting, dimension discovery and routing, and an LRU query cache.
package embedding

import (
	"context"
	"time"

	"github.com/archon-iirc/archon/internal/model"
)

const (
	// MinBatchSize and MaxBatchSize bound EMBEDDING_BATCH_SIZE per configuration.
	MinBatchSize = 20
	MaxBatchSize = 200

	// DefaultBatchSize is used when configuration omits EMBEDDING_BATCH_SIZE.
	DefaultBatchSize = 100

	// DefaultTimeout bounds a single outbound provider call.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxRetries is the number of full-batch retries on transport error.
	DefaultMaxRetries = 1
)

// FallbackDimension is the column a provider's reported dimension routes to
// when it does not match one of the four supported widths.
const FallbackDimension = model.Dim1536

// Result is one item's outcome from a batch embed call.
type Result struct {
	Index     int
	Embedding []float32
	Dimension model.EmbeddingDimension
	Err       error
}

// BatchResponse is the canonical EmbeddingProvider response: a parallel list
// of per-index results. The provider never raises on partial failure —
// callers range over Results and separate successes from failures.
type BatchResponse struct {
	Results []Result
	Model   string
}

// Succeeded and Failed partition a BatchResponse's results for callers that
// just need the two groups.
func (r BatchResponse) Succeeded() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Err == nil {
			out = append(out, res)
		}
	}
	return out
}

func (r BatchResponse) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Err != nil {
			out = append(out, res)
		}
	}
	return out
}

// Provider is a pluggable batch-embedding client.
type Provider interface {
	// EmbedBatch embeds texts and never raises on a partial failure: a
	// failed item is represented in the response's Results, not returned
	// as a top-level error. A top-level error means the whole call could
	// not be attempted (e.g. transport failure before any response).
	EmbedBatch(ctx context.Context, texts []string) (BatchResponse, error)

	// Dimensions returns the embedding width this provider's current model produces.
	Dimensions() int

	// ModelName returns the active model identifier.
	ModelName() string

	Available(ctx context.Context) bool
	Close() error
}

// RouteDimension maps a provider-reported width to its storage column,
// defaulting unsupported widths to FallbackDimension per the write-path contract.
func RouteDimension(reported int) model.EmbeddingDimension {
	d := model.EmbeddingDimension(reported)
	if model.ValidDimension(d) {
		return d
	}
	return FallbackDimension
}

// ClampBatchSize enforces the [20, 200] configuration bound.
func ClampBatchSize(n int) int {
	if n < MinBatchSize {
		return MinBatchSize
	}
	if n > MaxBatchSize {
		return MaxBatchSize
	}
	return n
}
