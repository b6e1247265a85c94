package llm

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/archon-iirc/archon/internal/apperr"
)

// AnthropicProvider adapts the canonical Request/Response to the Anthropic
// messages API.
type AnthropicProvider struct {
	client anthropic.Client
	model  string
}

func NewAnthropicProvider(cfg Config) (*AnthropicProvider, error) {
	if cfg.APIKey == "" {
		return nil, apperr.ProviderAuth("anthropic provider selected but no API key configured", nil)
	}
	model := cfg.DefaultChatModel
	if model == "" {
		model = SelectionTable["anthropic"].DefaultChatModel
	}
	client := anthropic.NewClient(option.WithAPIKey(cfg.APIKey))
	return &AnthropicProvider{client: client, model: model}, nil
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

func (p *AnthropicProvider) Complete(ctx context.Context, req Request) (Response, error) {
	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == "assistant" {
			messages = append(messages, anthropic.NewAssistantMessage(block))
		} else {
			messages = append(messages, anthropic.NewUserMessage(block))
		}
	}

	maxTokens := int64(req.MaxTokens)
	if maxTokens == 0 {
		maxTokens = 512
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: maxTokens,
		Messages:  messages,
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return Response{}, classifyAnthropicError(err)
	}

	var content string
	for _, block := range msg.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}

	return Response{
		Content:          content,
		PromptTokens:     int(msg.Usage.InputTokens),
		CompletionTokens: int(msg.Usage.OutputTokens),
	}, nil
}

// classifyAnthropicError maps a raw SDK error into Archon's vendor-neutral
// error kinds so the caller's retry logic does not need to know the SDK's
// own error types.
func classifyAnthropicError(err error) error {
	msg := apperr.Redact(err.Error())
	switch {
	case isAuthError(msg):
		return apperr.ProviderAuth("anthropic authentication failed", err)
	case isRateLimitError(msg):
		return apperr.RateLimited("anthropic rate limit exceeded", 0, err)
	default:
		return apperr.ProviderTransient("anthropic request failed", err)
	}
}
