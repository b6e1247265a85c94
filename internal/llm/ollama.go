package llm

import (
	"context"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/archon-iirc/archon/internal/apperr"
)

// OllamaProvider adapts the canonical Request/Response to a local Ollama
// instance via langchaingo's generic llms.Model interface.
type OllamaProvider struct {
	model *ollama.LLM
	name  string
}

func NewOllamaProvider(cfg Config) (*OllamaProvider, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = SelectionTable["ollama"].BaseURL
	}
	model := cfg.DefaultChatModel
	if model == "" {
		model = SelectionTable["ollama"].DefaultChatModel
	}

	llm, err := ollama.New(ollama.WithServerURL(baseURL), ollama.WithModel(model))
	if err != nil {
		return nil, apperr.ProviderTransient("failed to construct ollama client", err)
	}
	return &OllamaProvider{model: llm, name: model}, nil
}

func (p *OllamaProvider) Name() string { return "ollama" }

func (p *OllamaProvider) Complete(ctx context.Context, req Request) (Response, error) {
	var messages []llms.MessageContent
	if req.System != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, req.System))
	}
	for _, m := range req.Messages {
		role := llms.ChatMessageTypeHuman
		if m.Role == "assistant" {
			role = llms.ChatMessageTypeAI
		}
		messages = append(messages, llms.TextParts(role, m.Content))
	}

	opts := []llms.CallOption{}
	if req.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(req.MaxTokens))
	}
	if req.Temperature > 0 {
		opts = append(opts, llms.WithTemperature(req.Temperature))
	}

	resp, err := p.model.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return Response{}, classifyOllamaError(err)
	}
	if len(resp.Choices) == 0 {
		return Response{}, apperr.ProviderTransient("ollama returned no choices", nil)
	}

	choice := resp.Choices[0]
	return Response{
		Content:          choice.Content,
		PromptTokens:     intFromGenerationInfo(choice.GenerationInfo, "PromptTokens"),
		CompletionTokens: intFromGenerationInfo(choice.GenerationInfo, "CompletionTokens"),
	}, nil
}

// intFromGenerationInfo reads a token count out of Ollama's generation-info
// map. Ollama does not always populate these, so a missing or mistyped key
// degrades to 0 rather than panicking.
func intFromGenerationInfo(info map[string]any, key string) int {
	v, ok := info[key].(int)
	if !ok {
		return 0
	}
	return v
}

func classifyOllamaError(err error) error {
	msg := apperr.Redact(err.Error())
	switch {
	case isAuthError(msg):
		return apperr.ProviderAuth("ollama authentication failed", err)
	case isRateLimitError(msg):
		return apperr.RateLimited("ollama rate limited the request", 0, err)
	default:
		return apperr.ProviderTransient("ollama request failed, is the server reachable", err)
	}
}
