package embedding

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// LangChainProvider adapts a langchaingo embeddings.Embedder (Ollama or any
// OpenAI-compatible endpoint) to the Provider contract. langchaingo embeds
// one document at a time under the hood for most backends, so EmbedBatch
// reports a per-index failure rather than aborting the whole batch when one
// text in the middle errors.
type LangChainProvider struct {
	embedder embeddings.Embedder
	model    string
}

// NewOllamaProvider builds a Provider backed by an Ollama embedding model.
func NewOllamaProvider(host, model string) (*LangChainProvider, error) {
	if model == "" {
		model = "nomic-embed-text"
	}
	opts := []ollama.Option{ollama.WithModel(model)}
	if host != "" {
		opts = append(opts, ollama.WithServerURL(host))
	}
	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("ollama embedding client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("ollama embedder: %w", err)
	}
	return &LangChainProvider{embedder: embedder, model: model}, nil
}

// NewOpenAIProvider builds a Provider backed by an OpenAI-compatible
// embeddings endpoint (OpenAI itself, or any server speaking its API).
func NewOpenAIProvider(apiKey, model string) (*LangChainProvider, error) {
	if model == "" {
		model = "text-embedding-3-small"
	}
	llm, err := openai.New(openai.WithToken(apiKey), openai.WithEmbeddingModel(model))
	if err != nil {
		return nil, fmt.Errorf("openai embedding client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("openai embedder: %w", err)
	}
	return &LangChainProvider{embedder: embedder, model: model}, nil
}

func (p *LangChainProvider) EmbedBatch(ctx context.Context, texts []string) (BatchResponse, error) {
	resp := BatchResponse{Model: p.model}
	for i, text := range texts {
		vectors, err := p.embedder.EmbedDocuments(ctx, []string{text})
		if err != nil {
			resp.Results = append(resp.Results, Result{Index: i, Err: err})
			continue
		}
		dim := RouteDimension(len(vectors[0]))
		resp.Results = append(resp.Results, Result{Index: i, Embedding: vectors[0], Dimension: dim})
	}
	return resp, nil
}

// Dimensions probes the configured model with a throwaway embed call, since
// langchaingo does not expose a model's output width without calling it.
func (p *LangChainProvider) Dimensions() int {
	vectors, err := p.embedder.EmbedDocuments(context.Background(), []string{"dimension probe"})
	if err != nil || len(vectors) == 0 {
		return int(FallbackDimension)
	}
	return len(vectors[0])
}

func (p *LangChainProvider) ModelName() string { return p.model }

func (p *LangChainProvider) Available(ctx context.Context) bool {
	_, err := p.embedder.EmbedDocuments(ctx, []string{"availability probe"})
	return err == nil
}

func (p *LangChainProvider) Close() error { return nil }

// New builds a Provider from configuration, per spec.md's EMBEDDING_PROVIDER
// setting.
func New(provider, host, apiKey, modelName string) (Provider, error) {
	switch provider {
	case "ollama":
		return NewOllamaProvider(host, modelName)
	case "openai":
		return NewOpenAIProvider(apiKey, modelName)
	case "static":
		return NewStaticProvider(), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", provider)
	}
}
