package llm

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/archon-iirc/archon/internal/apperr"
)

// BedrockProvider adapts the canonical Request/Response to Bedrock's
// Anthropic-on-Bedrock InvokeModel wire format.
type BedrockProvider struct {
	client *bedrockruntime.Client
	model  string
}

func NewBedrockProvider(cfg Config) (*BedrockProvider, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		return nil, apperr.ProviderAuth("failed to load AWS credentials for bedrock", err)
	}
	model := cfg.DefaultChatModel
	if model == "" {
		model = SelectionTable["bedrock"].DefaultChatModel
	}
	return &BedrockProvider{client: bedrockruntime.NewFromConfig(awsCfg), model: model}, nil
}

func (p *BedrockProvider) Name() string { return "bedrock" }

type bedrockAnthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type bedrockAnthropicRequest struct {
	AnthropicVersion string                    `json:"anthropic_version"`
	System           string                    `json:"system,omitempty"`
	Messages         []bedrockAnthropicMessage `json:"messages"`
	MaxTokens        int                       `json:"max_tokens"`
	Temperature      float64                   `json:"temperature,omitempty"`
}

type bedrockAnthropicContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type bedrockAnthropicResponse struct {
	Content []bedrockAnthropicContentBlock `json:"content"`
	Usage   struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (p *BedrockProvider) Complete(ctx context.Context, req Request) (Response, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 512
	}

	messages := make([]bedrockAnthropicMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := m.Role
		if role != "assistant" {
			role = "user"
		}
		messages = append(messages, bedrockAnthropicMessage{Role: role, Content: m.Content})
	}

	body, err := json.Marshal(bedrockAnthropicRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		System:           req.System,
		Messages:         messages,
		MaxTokens:        maxTokens,
		Temperature:      req.Temperature,
	})
	if err != nil {
		return Response{}, apperr.Internal("failed to marshal bedrock request", err)
	}

	out, err := p.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(p.model),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return Response{}, classifyBedrockError(err)
	}

	var parsed bedrockAnthropicResponse
	if err := json.Unmarshal(out.Body, &parsed); err != nil {
		return Response{}, apperr.ProviderTransient("failed to parse bedrock response", err)
	}

	var content string
	for _, block := range parsed.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}

	return Response{
		Content:          content,
		PromptTokens:     parsed.Usage.InputTokens,
		CompletionTokens: parsed.Usage.OutputTokens,
	}, nil
}

func classifyBedrockError(err error) error {
	msg := apperr.Redact(err.Error())
	switch {
	case isAuthError(msg):
		return apperr.ProviderAuth("bedrock authentication failed", err)
	case isRateLimitError(msg):
		return apperr.RateLimited("bedrock throttled the request", 0, err)
	default:
		return apperr.ProviderTransient("bedrock request failed", err)
	}
}
