// Package doctor runs startup system-health diagnostics: disk space, memory,
// write permissions, file descriptor limits, plus liveness checks against the
// configured EmbeddingProvider and VectorStore.
package doctor

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/archon-iirc/archon/internal/embedding"
	"github.com/archon-iirc/archon/internal/vectorstore"
)

// CheckStatus is the outcome of a single diagnostic check.
type CheckStatus int

const (
	StatusPass CheckStatus = iota
	StatusWarn
	StatusFail
)

func (s CheckStatus) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// MarshalJSON renders the status as its name rather than its underlying int.
func (s CheckStatus) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// CheckResult holds the outcome of one check.
type CheckResult struct {
	Name     string      `json:"name"`
	Status   CheckStatus `json:"status"`
	Message  string      `json:"message"`
	Details  string      `json:"details,omitempty"`
	Required bool        `json:"required"`
}

// IsCritical reports whether a required check failed.
func (r CheckResult) IsCritical() bool {
	return r.Required && r.Status == StatusFail
}

// Checker runs startup diagnostics. The VectorStore and Embedder checks are
// optional: a nil dependency is skipped rather than reported as a failure,
// since a Checker can run before those collaborators are constructed.
type Checker struct {
	output     io.Writer
	verbose    bool
	store      vectorstore.Store
	embedder   embedding.Provider
	pages      vectorstore.PageStore
	collection string
}

type Option func(*Checker)

func WithOutput(w io.Writer) Option { return func(c *Checker) { c.output = w } }
func WithVerbose(v bool) Option     { return func(c *Checker) { c.verbose = v } }
func WithVectorStore(s vectorstore.Store) Option {
	return func(c *Checker) { c.store = s }
}
func WithEmbeddingProvider(p embedding.Provider) Option {
	return func(c *Checker) { c.embedder = p }
}

// WithPageStore enables CheckIndexConsistency against collection (the
// chunk collection name, e.g. "docs").
func WithPageStore(p vectorstore.PageStore, collection string) Option {
	return func(c *Checker) { c.pages = p; c.collection = collection }
}

func New(opts ...Option) *Checker {
	c := &Checker{output: os.Stdout}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunAll runs every applicable check against dataDir (where the SQLite store
// and logs live) and returns their results in a stable order.
func (c *Checker) RunAll(ctx context.Context, dataDir string) []CheckResult {
	results := []CheckResult{
		c.CheckDiskSpace(dataDir),
		c.CheckMemory(),
		c.CheckWritePermissions(dataDir),
		c.CheckFileDescriptors(),
	}
	if c.store != nil {
		results = append(results, c.CheckVectorStore(ctx))
	}
	if c.embedder != nil {
		results = append(results, c.CheckEmbeddingProvider(ctx))
	}
	if c.pages != nil && c.store != nil {
		results = append(results, c.CheckIndexConsistency(ctx))
	}
	return results
}

// HasCriticalFailures reports whether any required check failed.
func (c *Checker) HasCriticalFailures(results []CheckResult) bool {
	for _, r := range results {
		if r.IsCritical() {
			return true
		}
	}
	return false
}

// SummaryStatus reduces a result set to one of "failed", "ready_with_warnings", "ready".
func (c *Checker) SummaryStatus(results []CheckResult) string {
	hasWarnings := false
	for _, r := range results {
		if r.IsCritical() {
			return "failed"
		}
		if r.Status == StatusWarn || (r.Status == StatusFail && !r.Required) {
			hasWarnings = true
		}
	}
	if hasWarnings {
		return "ready_with_warnings"
	}
	return "ready"
}

// PrintResults writes a human-readable report to the Checker's output writer.
func (c *Checker) PrintResults(results []CheckResult) {
	_, _ = fmt.Fprintln(c.output, "Archon System Check")
	_, _ = fmt.Fprintln(c.output, "===================")
	_, _ = fmt.Fprintln(c.output)

	for _, r := range results {
		_, _ = fmt.Fprintf(c.output, "[%s] %s: %s\n", r.Status, r.Name, r.Message)
		if c.verbose && r.Details != "" {
			_, _ = fmt.Fprintf(c.output, "      %s\n", r.Details)
		}
	}

	_, _ = fmt.Fprintln(c.output)
	_, _ = fmt.Fprintf(c.output, "Status: %s\n", strings.ToUpper(c.SummaryStatus(results)))
}

// CheckWritePermissions verifies dataDir is writable.
func (c *Checker) CheckWritePermissions(dataDir string) CheckResult {
	result := CheckResult{Name: "write_permissions", Required: true}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot create data directory: %v", err)
		return result
	}
	testFile := filepath.Join(dataDir, ".archon-doctor-test")
	f, err := os.Create(testFile)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("permission denied: %v", err)
		return result
	}
	_ = f.Close()
	_ = os.Remove(testFile)
	result.Status = StatusPass
	result.Message = "OK"
	return result
}

// CheckVectorStore pings the configured Store's health endpoint.
func (c *Checker) CheckVectorStore(ctx context.Context) CheckResult {
	result := CheckResult{Name: "vector_store", Required: true}
	health, err := c.store.HealthCheck(ctx)
	if err != nil || !health.Connected {
		result.Status = StatusFail
		if err != nil {
			result.Message = fmt.Sprintf("health check failed: %v", err)
		} else {
			result.Message = "store reports disconnected"
		}
		return result
	}
	result.Status = StatusPass
	result.Message = fmt.Sprintf("connected, %d collections", health.CollectionsCount)
	return result
}

// CheckIndexConsistency compares the chunk counts recorded against every
// page with the vector count actually stored in the chunk collection. It
// only checks totals, not individual IDs, so it stays cheap enough to run on
// every startup.
func (c *Checker) CheckIndexConsistency(ctx context.Context) CheckResult {
	result := CheckResult{Name: "index_consistency", Required: false}

	pageTotal, err := c.pages.TotalChunkCount(ctx)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("failed to read page chunk counts: %v", err)
		return result
	}
	info, err := c.store.GetCollectionInfo(ctx, c.collection)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("failed to read collection %q: %v", c.collection, err)
		return result
	}

	if pageTotal != info.Count {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("page chunk count %d does not match collection %q count %d", pageTotal, c.collection, info.Count)
		return result
	}
	result.Status = StatusPass
	result.Message = fmt.Sprintf("%d chunks consistent with collection %q", pageTotal, c.collection)
	return result
}

// CheckEmbeddingProvider confirms the configured provider is reachable.
// Non-critical: ingestion can still run and simply fail per-item if the
// provider is actually down, so this is a warning, not a startup blocker.
func (c *Checker) CheckEmbeddingProvider(ctx context.Context) CheckResult {
	result := CheckResult{Name: "embedding_provider", Required: false}
	if !c.embedder.Available(ctx) {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("provider %q is not reachable", c.embedder.ModelName())
		return result
	}
	result.Status = StatusPass
	result.Message = fmt.Sprintf("provider %q reachable, dimension %d", c.embedder.ModelName(), c.embedder.Dimensions())
	return result
}
