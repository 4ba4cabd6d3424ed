package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Known OpenAI model pricing (per token, USD)
var openaiPricing = map[string]struct {
	promptPrice     float64
	completionPrice float64
}{
	"gpt-4o":        {2.50 / 1_000_000, 10.0 / 1_000_000},
	"gpt-4o-mini":   {0.15 / 1_000_000, 0.60 / 1_000_000},
	"gpt-4.1":       {2.0 / 1_000_000, 8.0 / 1_000_000},
	"gpt-4.1-mini":  {0.40 / 1_000_000, 1.60 / 1_000_000},
	"gpt-4-turbo":   {10.0 / 1_000_000, 30.0 / 1_000_000},
	"gpt-3.5-turbo": {0.50 / 1_000_000, 1.50 / 1_000_000},
}

// OpenAIProvider implements Provider for direct OpenAI API access.
type OpenAIProvider struct {
	client openai.Client
	model  string
}

// NewOpenAIProvider creates a new OpenAI provider.
func NewOpenAIProvider(cfg ProviderConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.MaxRetries > 0 {
		opts = append(opts, option.WithMaxRetries(cfg.MaxRetries))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	model := cfg.Model
	if model == "" {
		model = string(openai.ChatModelGPT4o)
	}

	return &OpenAIProvider{
		client: openai.NewClient(opts...),
		model:  model,
	}, nil
}

// chatParams builds chat completion params shared by OpenAI-compatible providers.
func chatParams(model string, req Request) openai.ChatCompletionNewParams {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			messages = append(messages, openai.SystemMessage(msg.Content))
		case RoleUser:
			messages = append(messages, openai.UserMessage(msg.Content))
		case RoleAssistant:
			messages = append(messages, openai.AssistantMessage(msg.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(model),
		Messages:    messages,
		MaxTokens:   openai.Int(int64(defaultMaxTokens(req.MaxTokens))),
		Temperature: openai.Float(req.Temperature),
	}

	if req.JSONSchema != nil {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   schemaName(req),
					Schema: req.JSONSchema,
					Strict: openai.Bool(req.StrictMode),
				},
			},
		}
	}
	return params
}

// Execute sends a completion request to OpenAI.
func (p *OpenAIProvider) Execute(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	resp, err := p.client.Chat.Completions.New(ctx, chatParams(p.model, req))
	if err != nil {
		return nil, fmt.Errorf("OpenAI API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	usage := Usage{
		InputTokens:  int(resp.Usage.PromptTokens),
		OutputTokens: int(resp.Usage.CompletionTokens),
	}

	return &Response{
		Content:      resp.Choices[0].Message.Content,
		FinishReason: string(resp.Choices[0].FinishReason),
		Usage:        usage,
		Model:        resp.Model,
		Cost:         p.EstimateCost(p.model, usage.InputTokens, usage.OutputTokens),
		Duration:     time.Since(start),
	}, nil
}

// Name returns the provider identifier.
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Model returns the configured model name.
func (p *OpenAIProvider) Model() string {
	return p.model
}

// EstimateCost calculates cost based on known OpenAI pricing.
func (p *OpenAIProvider) EstimateCost(modelID string, inputTokens, outputTokens int) float64 {
	if pricing, ok := openaiPricing[modelID]; ok {
		return float64(inputTokens)*pricing.promptPrice + float64(outputTokens)*pricing.completionPrice
	}

	// Longest prefix wins for versioned models ("gpt-4o-mini-2024-07-18").
	best := ""
	for id := range openaiPricing {
		if strings.HasPrefix(modelID, id) && len(id) > len(best) {
			best = id
		}
	}
	if best != "" {
		pricing := openaiPricing[best]
		return float64(inputTokens)*pricing.promptPrice + float64(outputTokens)*pricing.completionPrice
	}

	return float64(inputTokens)*(0.15/1_000_000) + float64(outputTokens)*(0.60/1_000_000)
}

var (
	_ Provider      = (*OpenAIProvider)(nil)
	_ CostEstimator = (*OpenAIProvider)(nil)
)
