package extractor

import (
	"context"
	"fmt"
	"strings"

	"github.com/amitmahapatrav5/genai-sop-generator/internal/logger"
	"github.com/amitmahapatrav5/genai-sop-generator/pkg/schema"
)

// FallbackExtractor tries each extractor in order until one succeeds.
// This is used for provider failover (e.g., try Ollama cloud, fall back to OpenRouter).
type FallbackExtractor struct {
	extractors []Extractor
}

// NewFallback creates a fallback chain from the given extractors.
// Extractors are tried in order. Only available extractors are used.
func NewFallback(extractors ...Extractor) *FallbackExtractor {
	return &FallbackExtractor{
		extractors: extractors,
	}
}

// Extract tries each available extractor in order until one succeeds.
// Context cancellation stops the chain immediately.
func (f *FallbackExtractor) Extract(ctx context.Context, instruction string, s schema.Schema) (*Result, error) {
	var lastErr error
	var tried []string

	for _, ext := range f.extractors {
		if !ext.Available() {
			continue
		}

		tried = append(tried, ext.Name())
		result, err := ext.Extract(ctx, instruction, s)
		if err == nil {
			return result, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		logger.DebugContext(ctx, "fallback extractor failed, trying next", "extractor", ext.Name(), "error", err)
		lastErr = err
	}

	if len(tried) == 0 {
		return nil, ErrNoExtractorAvailable
	}

	return nil, fmt.Errorf("all extractors failed (tried: %s): %w", strings.Join(tried, ", "), lastErr)
}

// Name returns the fallback chain name.
func (f *FallbackExtractor) Name() string {
	var names []string
	for _, ext := range f.extractors {
		names = append(names, ext.Name())
	}
	return "fallback(" + strings.Join(names, "->") + ")"
}

// Available returns true if at least one extractor is available.
func (f *FallbackExtractor) Available() bool {
	for _, ext := range f.extractors {
		if ext.Available() {
			return true
		}
	}
	return false
}

// Extractors returns the chain members in order.
func (f *FallbackExtractor) Extractors() []Extractor {
	return f.extractors
}
