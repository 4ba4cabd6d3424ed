package extractor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/amitmahapatrav5/genai-sop-generator/internal/logger"
	"github.com/amitmahapatrav5/genai-sop-generator/pkg/llm"
	"github.com/amitmahapatrav5/genai-sop-generator/pkg/schema"
)

// LLMExtractor is the reference oracle. It wraps one llm.Provider.
type LLMExtractor struct {
	provider  llm.Provider
	config    LLMConfig
	name      string
	available bool

	// rateLimitBackoff is the base wait after a rate-limited call.
	rateLimitBackoff time.Duration
}

// NewLLM creates an extractor backed by provider.
func NewLLM(provider llm.Provider, opts ...ExtractorOption) *LLMExtractor {
	config := DefaultLLMConfig()
	for _, opt := range opts {
		opt(&config)
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}

	return &LLMExtractor{
		provider:         provider,
		config:           config,
		name:             provider.Name(),
		available:        true,
		rateLimitBackoff: time.Second,
	}
}

// NewForProvider builds the named provider from cfg and wraps it.
// The API key falls back to the provider's environment variable. A provider
// that needs a key and has none is returned unavailable rather than failing,
// so it can sit in a fallback chain.
func NewForProvider(name string, cfg LLMConfig) (*LLMExtractor, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = llm.APIKeyFromEnv(name)
	}

	if apiKey == "" && name != "ollama" {
		if !llm.IsRegistered(name) {
			return nil, fmt.Errorf("unknown provider: %s", name)
		}
		return &LLMExtractor{name: name, config: cfg}, nil
	}

	pcfg := llm.DefaultProviderConfig()
	pcfg.APIKey = apiKey
	pcfg.BaseURL = cfg.BaseURL
	pcfg.Model = cfg.Model
	pcfg.HTTPReferer = cfg.HTTPReferer
	pcfg.AppTitle = cfg.AppTitle
	pcfg.TargetProvider = cfg.TargetProvider
	pcfg.TargetAPIKey = cfg.TargetAPIKey

	provider, err := llm.NewProvider(name, pcfg)
	if err != nil {
		return nil, err
	}
	return NewLLM(provider, WithConfig(cfg)), nil
}

// Name returns the extractor name.
func (e *LLMExtractor) Name() string {
	return e.name
}

// Available returns true when the underlying provider was configured.
func (e *LLMExtractor) Available() bool {
	return e.available && e.provider != nil
}

// Provider returns the wrapped provider, or nil when unavailable.
func (e *LLMExtractor) Provider() llm.Provider {
	return e.provider
}

// Extract runs the bounded call, coerce, validate loop. Attempts are
// sequential. An invalid reply is replayed to the model together with its
// errors; the instruction itself is never changed.
func (e *LLMExtractor) Extract(ctx context.Context, instruction string, s schema.Schema) (*Result, error) {
	if !e.Available() {
		return nil, fmt.Errorf("%w: %s is not configured", ErrProviderUnavailable, e.name)
	}

	jsonSchema, err := s.ToJSONSchema()
	if err != nil {
		return nil, fmt.Errorf("failed to generate JSON schema: %w", err)
	}

	logger.DebugContext(ctx, "extractor starting",
		"extractor", e.name,
		"schema", s.Name,
		"instruction_size", len(instruction),
		"max_retries", e.config.MaxRetries)

	base := []llm.Message{
		{Role: llm.RoleSystem, Content: SystemPrompt},
		{Role: llm.RoleUser, Content: instruction},
	}
	messages := base

	result := &Result{Provider: e.name}
	start := time.Now()
	var lastErr error

	for attempt := 0; attempt <= e.config.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			result.Duration = time.Since(start)
			return result, err
		}
		result.RetryCount = attempt

		resp, err := e.call(ctx, messages, jsonSchema, s.Name, len(instruction), attempt)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				result.Duration = time.Since(start)
				return result, ctxErr
			}
			if llm.IsRateLimited(err) && attempt < e.config.MaxRetries {
				logger.DebugContext(ctx, "extractor rate limited, will retry", "attempt", attempt+1, "error", err)
				if err := e.backoff(ctx, attempt); err != nil {
					result.Duration = time.Since(start)
					return result, err
				}
				continue
			}
			result.Duration = time.Since(start)
			logger.DebugContext(ctx, "extractor provider failed", "attempt", attempt+1, "error", err)
			return result, fmt.Errorf("%w: %s: %w", ErrProviderUnavailable, e.name, err)
		}

		result.Usage.InputTokens += resp.Usage.InputTokens
		result.Usage.OutputTokens += resp.Usage.OutputTokens
		result.Cost += resp.Cost
		result.Model = resp.Model
		result.FinishReason = resp.FinishReason

		data, raw, verrs := parseReply(resp.Content, s)
		if len(verrs) == 0 {
			result.Data = data
			result.Raw = raw
			result.Errors = nil
			result.Duration = time.Since(start)
			logger.DebugContext(ctx, "extractor success",
				"total_attempts", attempt+1,
				"total_input_tokens", result.Usage.InputTokens,
				"total_output_tokens", result.Usage.OutputTokens,
				"duration", result.Duration,
				"model", result.Model)
			return result, nil
		}

		verr := &validationError{errors: verrs}
		result.Errors = verrs
		lastErr = verr
		logger.DebugContext(ctx, "extractor reply rejected", "attempt", attempt+1, "errors", len(verrs), "finish_reason", resp.FinishReason)

		// Only the latest rejected exchange is replayed.
		messages = append(append([]llm.Message{}, base...),
			llm.Message{Role: llm.RoleAssistant, Content: nonEmpty(resp.Content)},
			llm.Message{Role: llm.RoleUser, Content: feedback(verr)},
		)
	}

	result.Duration = time.Since(start)
	logger.DebugContext(ctx, "extractor failed", "attempts", e.config.MaxRetries+1, "error", lastErr)
	return result, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, e.config.MaxRetries+1, lastErr)
}

// call executes one provider request and notifies the observer.
func (e *LLMExtractor) call(ctx context.Context, messages []llm.Message, jsonSchema map[string]any, name string, size, attempt int) (*llm.Response, error) {
	logger.DebugContext(ctx, "extractor calling LLM",
		"provider", e.provider.Name(),
		"model", e.provider.Model(),
		"attempt", attempt+1,
		"messages", len(messages))

	startedAt := time.Now()
	resp, err := e.provider.Execute(ctx, llm.Request{
		Messages:    messages,
		MaxTokens:   e.config.MaxTokens,
		Temperature: e.config.Temperature,
		JSONSchema:  jsonSchema,
		SchemaName:  name,
		StrictMode:  e.config.StrictMode,
	})
	duration := time.Since(startedAt)

	if err == nil && resp.GenerationID != "" {
		if ct, ok := e.provider.(llm.CostTracker); ok {
			cost, cerr := ct.GetGenerationCost(ctx, resp.GenerationID)
			if cerr != nil {
				logger.DebugContext(ctx, "generation cost lookup failed",
					"provider", e.provider.Name(), "generation_id", resp.GenerationID, "error", cerr)
			} else {
				resp.Cost = cost
			}
		}
	}

	if e.config.Observer != nil {
		event := llm.LLMCallEvent{
			Provider:  e.name,
			Model:     e.provider.Model(),
			Error:     err,
			Duration:  duration,
			Attempt:   attempt,
			StartedAt: startedAt,
			Request: llm.LLMCallRequest{
				Messages:         messages,
				MaxTokens:        e.config.MaxTokens,
				Temperature:      e.config.Temperature,
				StrictMode:       e.config.StrictMode,
				InputContentSize: size,
			},
		}
		if resp != nil {
			event.Model = resp.Model
			event.Response = &llm.LLMCallResponse{
				Content:      resp.Content,
				InputTokens:  resp.Usage.InputTokens,
				OutputTokens: resp.Usage.OutputTokens,
				FinishReason: resp.FinishReason,
				Cost:         resp.Cost,
			}
		}
		e.config.Observer.OnLLMCall(ctx, event)
	}

	return resp, err
}

func (e *LLMExtractor) backoff(ctx context.Context, attempt int) error {
	if e.rateLimitBackoff <= 0 {
		return nil
	}
	t := time.NewTimer(e.rateLimitBackoff * time.Duration(1<<attempt))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// parseReply coerces and validates one reply. A nil error list means data
// satisfies s both as a raw document and as a decoded value.
func parseReply(content string, s schema.Schema) (any, string, []schema.ValidationError) {
	raw, err := Coerce(content, s)
	if err != nil {
		return nil, "", []schema.ValidationError{{Field: "(root)", Message: err.Error()}}
	}
	if errs := s.ValidateJSON([]byte(raw)); len(errs) > 0 {
		return nil, raw, errs
	}
	data, err := s.Unmarshal([]byte(raw))
	if err != nil {
		return nil, raw, []schema.ValidationError{{Field: "(root)", Message: err.Error()}}
	}
	if errs := s.Validate(data); len(errs) > 0 {
		return nil, raw, errs
	}
	return data, raw, nil
}

// validationError wraps validation errors for retry context.
type validationError struct {
	errors []schema.ValidationError
}

func (e *validationError) Error() string {
	var sb strings.Builder
	for i, err := range e.errors {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("- Field \"")
		sb.WriteString(err.Field)
		sb.WriteString("\": ")
		sb.WriteString(err.Message)
	}
	return sb.String()
}

func feedback(err error) string {
	var sb strings.Builder
	sb.WriteString("## Previous Attempt Errors\n")
	sb.WriteString("Your previous reply could not be accepted:\n")
	sb.WriteString(err.Error())
	sb.WriteString("\n\nReturn the complete, corrected structure as a single JSON object.")
	return sb.String()
}

func nonEmpty(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(empty reply)"
	}
	return s
}
