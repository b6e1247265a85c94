// Package llm implements the pluggable chat-completion client used for
// contextual-chunk enrichment and source summarisation. Adapters translate
// one canonical request shape to each vendor's native API.
package llm

import (
	"context"
)

// Message is one turn in a canonical chat request.
type Message struct {
	Role    string // "user" or "assistant"
	Content string
}

// Request is the canonical chat-completion request every adapter accepts.
type Request struct {
	System      string
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// Response is the canonical chat-completion reply every adapter returns.
type Response struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
}

// Provider is a chat-completion client.
type Provider interface {
	Complete(ctx context.Context, req Request) (Response, error)
	Name() string
}

// Config names one provider's connection details, looked up from persisted
// credentials at call time. Absence of credentials is a user-visible error
// for that operation only — the ingest pipeline's fallback templated
// summary path does not depend on this being populated.
type Config struct {
	Provider            string
	BaseURL             string
	AuthMethod          string
	APIKey              string
	DefaultChatModel    string
	DefaultEmbedModel   string
	Region              string // for Bedrock
}

// SelectionTable maps a provider name to its connection defaults, mirroring
// the persisted-credentials lookup the spec describes: {provider_name ->
// {base_url, auth_method, default_chat_model, default_embedding_model}}.
var SelectionTable = map[string]Config{
	"anthropic": {
		Provider:          "anthropic",
		AuthMethod:        "api_key",
		DefaultChatModel:  "claude-3-5-haiku-latest",
		DefaultEmbedModel: "",
	},
	"bedrock": {
		Provider:          "bedrock",
		AuthMethod:        "aws_sigv4",
		DefaultChatModel:  "anthropic.claude-3-haiku-20240307-v1:0",
		DefaultEmbedModel: "amazon.titan-embed-text-v2:0",
	},
	"ollama": {
		Provider:          "ollama",
		BaseURL:           "http://localhost:11434",
		AuthMethod:        "none",
		DefaultChatModel:  "qwen3:0.6b",
		DefaultEmbedModel: "nomic-embed-text",
	},
}

// New builds the Provider for cfg.Provider, erroring if the name is unknown.
func New(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "anthropic":
		return NewAnthropicProvider(cfg)
	case "bedrock":
		return NewBedrockProvider(cfg)
	case "ollama":
		return NewOllamaProvider(cfg)
	default:
		return nil, UnknownProviderError(cfg.Provider)
	}
}
