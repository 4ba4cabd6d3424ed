package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

// Known Gemini model pricing (per token, USD)
var geminiPricing = map[string]struct {
	promptPrice     float64
	completionPrice float64
}{
	"gemini-2.5-flash": {0.30 / 1_000_000, 2.50 / 1_000_000},
	"gemini-2.5-pro":   {1.25 / 1_000_000, 10.0 / 1_000_000},
	"gemini-2.0-flash": {0.10 / 1_000_000, 0.40 / 1_000_000},
}

// GeminiProvider implements Provider using the Gemini API.
type GeminiProvider struct {
	client *genai.Client
	model  string
}

// NewGeminiProvider creates a new Gemini provider.
func NewGeminiProvider(cfg ProviderConfig) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key required")
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions.BaseURL = cfg.BaseURL
	}

	client, err := genai.NewClient(context.Background(), cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModels["gemini"]
	}

	return &GeminiProvider{client: client, model: model}, nil
}

// buildGeminiRequest maps a Request onto Gemini contents and config.
// Assistant turns use the "model" role.
func buildGeminiRequest(req Request) ([]*genai.Content, *genai.GenerateContentConfig) {
	temp := float32(req.Temperature)
	config := &genai.GenerateContentConfig{
		Temperature:     &temp,
		MaxOutputTokens: int32(defaultMaxTokens(req.MaxTokens)),
	}

	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			config.SystemInstruction = &genai.Content{
				Parts: []*genai.Part{{Text: msg.Content}},
			}
		case RoleUser:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		}
	}

	if req.JSONSchema != nil {
		config.ResponseMIMEType = "application/json"
		config.ResponseJsonSchema = req.JSONSchema
	}
	return contents, config
}

// Execute sends a completion request to Gemini.
func (p *GeminiProvider) Execute(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	contents, config := buildGeminiRequest(req)
	result, err := p.client.Models.GenerateContent(ctx, p.model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("gemini API error: %w", err)
	}
	if result == nil {
		return nil, fmt.Errorf("gemini returned nil result")
	}

	var usage Usage
	if result.UsageMetadata != nil {
		usage.InputTokens = int(result.UsageMetadata.PromptTokenCount)
		usage.OutputTokens = int(result.UsageMetadata.CandidatesTokenCount)
	}

	var finish string
	if len(result.Candidates) > 0 {
		finish = strings.ToLower(string(result.Candidates[0].FinishReason))
	}

	model := result.ModelVersion
	if model == "" {
		model = p.model
	}

	return &Response{
		Content:      result.Text(),
		FinishReason: finish,
		Usage:        usage,
		Model:        model,
		Cost:         p.EstimateCost(p.model, usage.InputTokens, usage.OutputTokens),
		Duration:     time.Since(start),
	}, nil
}

// Name returns the provider identifier.
func (p *GeminiProvider) Name() string {
	return "gemini"
}

// Model returns the configured model name.
func (p *GeminiProvider) Model() string {
	return p.model
}

// EstimateCost calculates cost based on known Gemini pricing.
func (p *GeminiProvider) EstimateCost(modelID string, inputTokens, outputTokens int) float64 {
	pricing, ok := geminiPricing[modelID]
	if !ok {
		pricing = geminiPricing["gemini-2.5-flash"]
	}
	return float64(inputTokens)*pricing.promptPrice + float64(outputTokens)*pricing.completionPrice
}

var (
	_ Provider      = (*GeminiProvider)(nil)
	_ CostEstimator = (*GeminiProvider)(nil)
)
