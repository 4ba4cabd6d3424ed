// Package llm provides a unified interface for the LLM backends that act as
// the classification oracle.
package llm

import (
	"context"
	"time"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a chat message.
type Message struct {
	Role    Role
	Content string
}

// Request represents a completion request to the LLM.
type Request struct {
	Messages    []Message
	MaxTokens   int
	Temperature float64
	JSONSchema  map[string]any // For structured output
	SchemaName  string         // Tool / response format name, e.g. "Features"
	StrictMode  bool           // Use strict JSON schema validation (only for supported models)
}

// Usage tracks token consumption.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Response represents the result of an LLM execution.
type Response struct {
	Content      string
	FinishReason string
	Usage        Usage
	Model        string  // Actual model used (may differ from requested for auto-routing)
	Cost         float64 // Estimated cost in USD (0 if unknown or free)
	GenerationID string  // Provider's generation ID, used for cost lookup
	Duration     time.Duration
}

// Provider is the core interface that all LLM backends must implement.
// Implementations must be safe for concurrent use.
type Provider interface {
	// Execute sends a completion request and returns the response.
	Execute(ctx context.Context, req Request) (*Response, error)

	// Name returns the provider identifier (e.g., "ollama", "anthropic").
	Name() string

	// Model returns the configured model name.
	Model() string
}

// CostEstimator is an optional interface for providers that can estimate
// costs based on token counts without making an API call.
type CostEstimator interface {
	EstimateCost(modelID string, inputTokens, outputTokens int) float64
}

// CostTracker is an optional interface for providers that can report the
// actual cost of a completed generation, keyed by Response.GenerationID.
type CostTracker interface {
	GetGenerationCost(ctx context.Context, generationID string) (float64, error)
}

// ProviderConfig holds common configuration for providers.
type ProviderConfig struct {
	APIKey     string
	BaseURL    string // For custom endpoints, OpenRouter or Ollama cloud
	Model      string
	MaxRetries int // Transport-level retries performed by the SDK client
	Timeout    time.Duration
	// HTTPReferer and AppTitle for OpenRouter attribution
	HTTPReferer string
	AppTitle    string
	// TargetProvider and TargetAPIKey route a self-hosted Helicone gateway
	// to an upstream provider ("oai", "anthropic", ...).
	TargetProvider string
	TargetAPIKey   string
}

// DefaultProviderConfig returns sensible defaults.
func DefaultProviderConfig() ProviderConfig {
	return ProviderConfig{
		MaxRetries: 2,
		Timeout:    180 * time.Second,
	}
}

func defaultMaxTokens(n int) int {
	if n == 0 {
		return 4096
	}
	return n
}

// schemaName falls back to a generic tool name.
func schemaName(req Request) string {
	if req.SchemaName != "" {
		return req.SchemaName
	}
	return "extraction_result"
}
