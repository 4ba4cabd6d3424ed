// Package extractor implements the classification oracle: a bounded
// call-coerce-validate-retry loop around an LLM provider.
package extractor

import (
	"context"
	"errors"
	"time"

	"github.com/amitmahapatrav5/genai-sop-generator/pkg/schema"
)

var (
	// ErrRetriesExhausted is returned when every attempt produced a reply
	// that failed coercion or validation.
	ErrRetriesExhausted = errors.New("retries exhausted without a valid result")

	// ErrProviderUnavailable wraps transport, auth and quota failures.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrNoExtractorAvailable is returned when no extractors in the fallback chain are available.
	ErrNoExtractorAvailable = errors.New("no extractor available")
)

// Extractor turns an instruction into a value that satisfies a schema.
type Extractor interface {
	// Extract sends the instruction and returns a validated result.
	// A nil error always comes with a Data value that passed validation.
	Extract(ctx context.Context, instruction string, s schema.Schema) (*Result, error)

	// Name returns the extractor identifier.
	Name() string

	// Available returns true if the extractor is properly configured
	// (e.g., has required API keys or services available).
	Available() bool
}

// Result holds the extraction output.
type Result struct {
	// Data is the value produced by Schema.Unmarshal.
	Data any

	// Raw is the reply of the successful attempt, after coercion.
	Raw string

	// Errors holds the validation errors of the last failed attempt.
	Errors []schema.ValidationError

	// Usage is summed across attempts.
	Usage Usage

	// Model is the actual model used (may differ from requested for auto-routing).
	Model string

	Provider string

	// RetryCount is the number of attempts after the first.
	RetryCount int

	// Duration is the total time spent extracting.
	Duration time.Duration

	// Cost is the estimated cost in USD, summed across attempts.
	Cost float64

	FinishReason string
}

// Usage tracks token consumption for LLM-based extractors.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}
