package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const openRouterBaseURL = "https://openrouter.ai/api/v1"

// Generation stats may lag the completion by a moment.
var generationCostDelays = []time.Duration{200 * time.Millisecond, 500 * time.Millisecond, time.Second}

// OpenRouterProvider talks to OpenRouter through its OpenAI-compatible API.
// With the default "openrouter/auto" model the routed model is reported in
// Response.Model.
type OpenRouterProvider struct {
	client openai.Client
	model  string
}

// NewOpenRouterProvider creates a new OpenRouter provider.
func NewOpenRouterProvider(cfg ProviderConfig) (*OpenRouterProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenRouter API key required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = openRouterBaseURL
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(baseURL),
	}
	if cfg.HTTPReferer != "" {
		opts = append(opts, option.WithHeader("HTTP-Referer", cfg.HTTPReferer))
	}
	if cfg.AppTitle != "" {
		opts = append(opts, option.WithHeader("X-Title", cfg.AppTitle))
	}
	if cfg.MaxRetries > 0 {
		opts = append(opts, option.WithMaxRetries(cfg.MaxRetries))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModels["openrouter"]
	}

	return &OpenRouterProvider{
		client: openai.NewClient(opts...),
		model:  model,
	}, nil
}

// Execute sends a completion request to OpenRouter.
func (p *OpenRouterProvider) Execute(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	resp, err := p.client.Chat.Completions.New(ctx, chatParams(p.model, req))
	if err != nil {
		return nil, fmt.Errorf("OpenRouter API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	return &Response{
		Content:      resp.Choices[0].Message.Content,
		FinishReason: string(resp.Choices[0].FinishReason),
		Usage: Usage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
		},
		Model:        resp.Model,
		GenerationID: resp.ID,
		Duration:     time.Since(start),
	}, nil
}

// GetGenerationCost fetches the billed cost of a generation from
// /generation. A 404 means the stats are not ready yet and is retried.
func (p *OpenRouterProvider) GetGenerationCost(ctx context.Context, generationID string) (float64, error) {
	if generationID == "" {
		return 0, fmt.Errorf("generation ID required")
	}

	var lastErr error
	for attempt := 0; attempt <= len(generationCostDelays); attempt++ {
		if attempt > 0 {
			t := time.NewTimer(generationCostDelays[attempt-1])
			select {
			case <-ctx.Done():
				t.Stop()
				return 0, ctx.Err()
			case <-t.C:
			}
		}

		var result struct {
			Data struct {
				TotalCost float64 `json:"total_cost"`
			} `json:"data"`
		}
		err := p.client.Get(ctx, "generation", nil, &result,
			option.WithQuery("id", generationID),
			option.WithMaxRetries(0))
		if err == nil {
			return result.Data.TotalCost, nil
		}
		lastErr = fmt.Errorf("OpenRouter generation lookup: %w", err)
		if StatusCode(err) != http.StatusNotFound {
			return 0, lastErr
		}
	}
	return 0, lastErr
}

// Name returns the provider identifier.
func (p *OpenRouterProvider) Name() string {
	return "openrouter"
}

// Model returns the configured model name.
func (p *OpenRouterProvider) Model() string {
	return p.model
}

var (
	_ Provider    = (*OpenRouterProvider)(nil)
	_ CostTracker = (*OpenRouterProvider)(nil)
)
