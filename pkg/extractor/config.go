package extractor

import (
	"strings"
	"unicode/utf8"

	"github.com/amitmahapatrav5/genai-sop-generator/pkg/llm"
)

// LLMConfig holds shared configuration for LLM-based extractors.
type LLMConfig struct {
	// Model overrides the default model for this provider.
	Model string

	// APIKey for the provider. If empty, checks environment variable.
	APIKey string

	// BaseURL for custom API endpoints.
	BaseURL string

	// Temperature for LLM responses (default: 0.1).
	Temperature float64

	// MaxTokens for LLM responses (default: 16384).
	MaxTokens int

	// MaxRetries bounds the validate-retry loop: MaxRetries+1 attempts in total
	// (default: 2).
	MaxRetries int

	// StrictMode enables strict JSON schema validation in the API request.
	// Only supported by OpenAI models and some OpenRouter models.
	StrictMode bool

	// HTTPReferer sets the HTTP-Referer header for OpenRouter attribution.
	HTTPReferer string

	// AppTitle sets the X-Title header for OpenRouter attribution.
	AppTitle string

	// TargetProvider and TargetAPIKey route a self-hosted Helicone gateway.
	TargetProvider string
	TargetAPIKey   string

	// Observer is called after every provider call (success or failure).
	Observer llm.LLMObserver
}

// DefaultLLMConfig returns sensible defaults for LLM extraction.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Temperature: 0.1,
		MaxTokens:   16384,
		MaxRetries:  2,
	}
}

// ExtractorOption configures an LLMExtractor.
type ExtractorOption func(*LLMConfig)

// WithMaxRetries sets the maximum number of retries.
func WithMaxRetries(n int) ExtractorOption {
	return func(c *LLMConfig) { c.MaxRetries = n }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) ExtractorOption {
	return func(c *LLMConfig) { c.Temperature = t }
}

// WithMaxTokens sets the maximum output tokens.
func WithMaxTokens(n int) ExtractorOption {
	return func(c *LLMConfig) { c.MaxTokens = n }
}

// WithStrictMode enables strict JSON schema validation.
func WithStrictMode(strict bool) ExtractorOption {
	return func(c *LLMConfig) { c.StrictMode = strict }
}

// WithObserver sets the LLM observer for observability.
func WithObserver(obs llm.LLMObserver) ExtractorOption {
	return func(c *LLMConfig) { c.Observer = obs }
}

// WithConfig replaces the whole configuration. A zero MaxTokens keeps the
// default; Temperature is taken as given, so 0 means greedy decoding.
func WithConfig(cfg LLMConfig) ExtractorOption {
	return func(c *LLMConfig) {
		def := *c
		*c = cfg
		if c.MaxTokens == 0 {
			c.MaxTokens = def.MaxTokens
		}
		if c.MaxRetries < 0 {
			c.MaxRetries = 0
		}
	}
}

// SystemPrompt is the system message sent on every attempt.
const SystemPrompt = `You are a UI feature analyzer that returns structured data.

Respond with a single JSON object matching the requested structure and nothing else.
Do not wrap the object in markdown, add commentary, or rename fields.
Every list field must be present; use [] when there is nothing to report.`

// TruncateContent limits content size to avoid token limits.
// maxLen of 0 means no limit. The cut never splits a UTF-8 sequence.
func TruncateContent(content string, maxLen int) string {
	if maxLen <= 0 || len(content) <= maxLen {
		return content
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}
	return content[:cut] + "\n\n[Content truncated due to length...]"
}

// StripMarkdownCodeBlock removes markdown code block wrappers from JSON responses.
// Some models wrap their JSON output in ```json ... ``` blocks.
func StripMarkdownCodeBlock(s string) string {
	s = strings.TrimSpace(s)

	switch {
	case strings.HasPrefix(s, "```json"):
		s = strings.TrimPrefix(s, "```json")
	case strings.HasPrefix(s, "```"):
		s = strings.TrimPrefix(s, "```")
	default:
		return s
	}

	s = strings.TrimSuffix(s, "```")

	return strings.TrimSpace(s)
}
