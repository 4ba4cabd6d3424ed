package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Known Anthropic model pricing (per token, USD)
var anthropicPricing = map[string]struct {
	promptPrice     float64
	completionPrice float64
}{
	"claude-opus-4-20250514":     {15.0 / 1_000_000, 75.0 / 1_000_000},
	"claude-sonnet-4-20250514":   {3.0 / 1_000_000, 15.0 / 1_000_000},
	"claude-3-5-sonnet-20241022": {3.0 / 1_000_000, 15.0 / 1_000_000},
	"claude-3-5-haiku-20241022":  {0.80 / 1_000_000, 4.0 / 1_000_000},
}

// AnthropicProvider implements Provider and CostEstimator.
// Structured output is obtained by forcing a single tool call whose input
// schema is the requested JSON Schema.
type AnthropicProvider struct {
	client anthropic.Client
	model  string
}

// NewAnthropicProvider creates a new Anthropic provider.
func NewAnthropicProvider(cfg ProviderConfig) (*AnthropicProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key required")
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
		model = string(anthropic.ModelClaudeSonnet4_20250514)
	}

	return &AnthropicProvider{
		client: anthropic.NewClient(opts...),
		model:  model,
	}, nil
}

// Execute sends a completion request to Anthropic.
func (p *AnthropicProvider) Execute(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	var systemPrompt string

	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			systemPrompt = msg.Content
		case RoleUser:
			messages = append(messages, anthropic.NewUserMessage(
				anthropic.NewTextBlock(msg.Content),
			))
		case RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(
				anthropic.NewTextBlock(msg.Content),
			))
		}
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(p.model),
		MaxTokens:   int64(defaultMaxTokens(req.MaxTokens)),
		Messages:    messages,
		Temperature: anthropic.Float(req.Temperature),
	}

	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: systemPrompt},
		}
	}

	if req.JSONSchema != nil {
		name := schemaName(req)
		properties, _ := req.JSONSchema["properties"].(map[string]any)

		params.Tools = []anthropic.ToolUnionParam{
			{
				OfTool: &anthropic.ToolParam{
					Name:        name,
					Description: anthropic.String("Record the classified page features"),
					InputSchema: anthropic.ToolInputSchemaParam{
						Type:       "object",
						Properties: properties,
						Required:   requiredFields(req.JSONSchema),
					},
				},
			},
		}
		params.ToolChoice = anthropic.ToolChoiceParamOfTool(name)
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic API error: %w", err)
	}

	// With a forced tool call the tool input is the result; text blocks are
	// only used when no schema was requested.
	var content string
	for _, block := range resp.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			if content == "" {
				content = b.Text
			}
		case anthropic.ToolUseBlock:
			jsonBytes, err := json.Marshal(b.Input)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal tool input: %w", err)
			}
			content = string(jsonBytes)
		}
	}

	usage := Usage{
		InputTokens:  int(resp.Usage.InputTokens),
		OutputTokens: int(resp.Usage.OutputTokens),
	}

	return &Response{
		Content:      content,
		FinishReason: string(resp.StopReason),
		Usage:        usage,
		Model:        string(resp.Model),
		Cost:         p.EstimateCost(p.model, usage.InputTokens, usage.OutputTokens),
		Duration:     time.Since(start),
	}, nil
}

// Name returns the provider identifier.
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// Model returns the configured model name.
func (p *AnthropicProvider) Model() string {
	return p.model
}

// EstimateCost calculates cost based on known Anthropic pricing.
func (p *AnthropicProvider) EstimateCost(modelID string, inputTokens, outputTokens int) float64 {
	if pricing, ok := anthropicPricing[modelID]; ok {
		return float64(inputTokens)*pricing.promptPrice + float64(outputTokens)*pricing.completionPrice
	}
	// Sonnet pricing for unknown models
	return float64(inputTokens)*(3.0/1_000_000) + float64(outputTokens)*(15.0/1_000_000)
}

// requiredFields reads the top-level "required" list, which may hold either
// []string (generated) or []any (decoded from JSON).
func requiredFields(js map[string]any) []string {
	switch r := js["required"].(type) {
	case []string:
		return r
	case []any:
		out := make([]string, 0, len(r))
		for _, v := range r {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

var (
	_ Provider      = (*AnthropicProvider)(nil)
	_ CostEstimator = (*AnthropicProvider)(nil)
)
