package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// HeliconeCloudBaseURL is the default Helicone cloud gateway URL.
const HeliconeCloudBaseURL = "https://ai-gateway.helicone.ai"

// HeliconeProvider sends requests through a Helicone gateway. The cloud
// gateway holds the upstream keys itself; a self-hosted gateway (any other
// BaseURL) forwards the caller's TargetAPIKey to TargetProvider.
type HeliconeProvider struct {
	client     openai.Client
	model      string
	selfHosted bool
}

// NewHeliconeProvider creates a new Helicone provider.
func NewHeliconeProvider(cfg ProviderConfig) (*HeliconeProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("helicone API key required")
	}

	base := strings.TrimSuffix(cfg.BaseURL, "/")
	if base == "" {
		base = HeliconeCloudBaseURL
	}
	selfHosted := base != HeliconeCloudBaseURL

	var opts []option.RequestOption
	if selfHosted {
		if cfg.TargetAPIKey == "" {
			return nil, fmt.Errorf("helicone self-hosted mode requires a target provider API key")
		}
		target := cfg.TargetProvider
		if target == "" {
			target = "oai"
		}
		opts = append(opts,
			option.WithBaseURL(fmt.Sprintf("%s/v1/gateway/%s/v1", base, target)),
			option.WithAPIKey(cfg.TargetAPIKey),
			option.WithHeader("Helicone-Auth", "Bearer "+cfg.APIKey),
		)
	} else {
		opts = append(opts,
			option.WithBaseURL(base+"/v1"),
			option.WithAPIKey(cfg.APIKey),
		)
	}
	if cfg.MaxRetries > 0 {
		opts = append(opts, option.WithMaxRetries(cfg.MaxRetries))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModels["helicone"]
	}

	return &HeliconeProvider{
		client:     openai.NewClient(opts...),
		model:      model,
		selfHosted: selfHosted,
	}, nil
}

// Execute sends a completion request through the gateway.
func (p *HeliconeProvider) Execute(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	resp, err := p.client.Chat.Completions.New(ctx, chatParams(p.model, req))
	if err != nil {
		return nil, fmt.Errorf("helicone API error: %w", err)
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

// Name returns the provider identifier.
func (p *HeliconeProvider) Name() string {
	return "helicone"
}

// Model returns the configured model name.
func (p *HeliconeProvider) Model() string {
	return p.model
}

// SelfHosted reports whether requests go to a self-hosted gateway.
func (p *HeliconeProvider) SelfHosted() bool {
	return p.selfHosted
}

var _ Provider = (*HeliconeProvider)(nil)
