package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// HTTPRerankerConfig configures a cross-encoder reranker reached over HTTP,
// matching the request/response shape exposed by common local rerank
// servers (e.g. a text-embeddings-inference or Ollama-fronted reranker).
type HTTPRerankerConfig struct {
	Endpoint        string
	Model           string
	Timeout         time.Duration
	SkipHealthCheck bool
}

func DefaultHTTPRerankerConfig() HTTPRerankerConfig {
	return HTTPRerankerConfig{
		Endpoint: "http://localhost:9659",
		Model:    "reranker-small",
		Timeout:  30 * time.Second,
	}
}

// HTTPReranker implements Reranker against an external cross-encoder
// service, per spec.md §4.10 step 4.
type HTTPReranker struct {
	client   *http.Client
	config   HTTPRerankerConfig
	mu       sync.RWMutex
	closed   bool
	endpoint string
}

var _ Reranker = (*HTTPReranker)(nil)

func NewHTTPReranker(ctx context.Context, cfg HTTPRerankerConfig) (*HTTPReranker, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultHTTPRerankerConfig().Endpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultHTTPRerankerConfig().Model
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultHTTPRerankerConfig().Timeout
	}

	r := &HTTPReranker{
		client:   &http.Client{Timeout: cfg.Timeout},
		config:   cfg,
		endpoint: cfg.Endpoint,
	}

	if !cfg.SkipHealthCheck {
		checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := r.healthCheck(checkCtx); err != nil {
			return nil, fmt.Errorf("reranker health check failed: %w", err)
		}
	}

	return r, nil
}

func (r *HTTPReranker) healthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.endpoint+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach reranker: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("reranker unhealthy (status %d): %s", resp.StatusCode, string(body))
	}
	return nil
}

type rerankRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	Model     string   `json:"model,omitempty"`
	TopK      int      `json:"top_k,omitempty"`
}

type rerankResponse struct {
	Results []struct {
		Index int     `json:"index"`
		Score float64 `json:"score"`
	} `json:"results"`
}

func (r *HTTPReranker) Rerank(ctx context.Context, query string, documents []string, topK int) ([]RerankResult, error) {
	r.mu.RLock()
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("reranker is closed")
	}
	if len(documents) == 0 {
		return []RerankResult{}, nil
	}

	body, err := json.Marshal(rerankRequest{Query: query, Documents: documents, Model: r.config.Model, TopK: topK})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("rerank failed (status %d): %s", resp.StatusCode, string(respBody))
	}

	var parsed rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode rerank response: %w", err)
	}

	results := make([]RerankResult, len(parsed.Results))
	for i, res := range parsed.Results {
		doc := ""
		if res.Index >= 0 && res.Index < len(documents) {
			doc = documents[res.Index]
		}
		results[i] = RerankResult{Index: res.Index, Score: res.Score, Document: doc}
	}

	slog.Debug("reranked candidates", slog.Int("count", len(documents)), slog.String("endpoint", r.endpoint))
	return results, nil
}

func (r *HTTPReranker) Available(ctx context.Context) bool {
	r.mu.RLock()
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		return false
	}
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return r.healthCheck(checkCtx) == nil
}

func (r *HTTPReranker) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	if transport, ok := r.client.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
	return nil
}
