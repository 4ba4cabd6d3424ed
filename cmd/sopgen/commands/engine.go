package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/amitmahapatrav5/genai-sop-generator/internal/logger"
	"github.com/amitmahapatrav5/genai-sop-generator/pkg/fetcher"
	"github.com/amitmahapatrav5/genai-sop-generator/pkg/llm"
	"github.com/amitmahapatrav5/genai-sop-generator/pkg/sopgen"
)

// parseSize reads a human size such as "100KB" or "1MiB". Empty or "0"
// means unlimited and yields zero.
func parseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	return int64(n), nil
}

// engineOptions turns flags, env and config file into sopgen options.
func (c *cli) engineOptions() ([]sopgen.Option, error) {
	v := c.v

	maxContent, err := parseSize(v.GetString("max_content_size"))
	if err != nil {
		return nil, fmt.Errorf("max-content-size: %w", err)
	}
	mode, err := fetcher.ParseMode(v.GetString("fetch_mode"))
	if err != nil {
		return nil, err
	}

	// Provider-specific settings from the config file:
	//   providers:
	//     openrouter:
	//       model: anthropic/claude-sonnet-4
	providers := make(map[string]sopgen.ProviderSettings)
	if err := v.UnmarshalKey("providers", &providers); err != nil {
		return nil, fmt.Errorf("providers: %w", err)
	}

	opts := []sopgen.Option{
		sopgen.WithProvider(v.GetString("provider")),
		sopgen.WithModel(v.GetString("model")),
		sopgen.WithAPIKey(v.GetString("api_key")),
		sopgen.WithBaseURL(v.GetString("base_url")),
		sopgen.WithTemperature(v.GetFloat64("temperature")),
		sopgen.WithMaxTokens(v.GetInt("max_tokens")),
		sopgen.WithMaxRetries(v.GetInt("max_retries")),
		sopgen.WithMaxContentSize(int(maxContent)),
		sopgen.WithCleaner(v.GetString("cleaner")),
		sopgen.WithStrictDisjoint(v.GetBool("strict_disjoint")),
		sopgen.WithRateLimit(v.GetFloat64("rate_limit"), v.GetInt("rate_burst")),
		sopgen.WithFetchMode(mode),
		sopgen.WithTimeout(v.GetDuration("timeout")),
		sopgen.WithUserAgent(v.GetString("user_agent")),
		sopgen.WithObserver(llm.ObserverFunc(logCall)),
	}
	if order := v.GetStringSlice("fallback_order"); len(order) > 0 {
		opts = append(opts, sopgen.WithFallbackOrder(order...))
	}
	for name, ps := range providers {
		opts = append(opts, sopgen.WithProviderSettings(strings.ToLower(name), ps))
	}
	return opts, nil
}

func (c *cli) newEngine() (*sopgen.Sopgen, error) {
	opts, err := c.engineOptions()
	if err != nil {
		return nil, err
	}
	s, err := sopgen.New(opts...)
	if err != nil {
		return nil, err
	}
	logger.Debug("engine ready", "extractors", s.Provider())
	return s, nil
}

// logCall reports every model call at debug level.
func logCall(ctx context.Context, ev llm.LLMCallEvent) {
	args := []any{
		"provider", ev.Provider,
		"model", ev.Model,
		"attempt", ev.Attempt,
		"duration", ev.Duration,
		"input_size", humanize.Bytes(uint64(ev.Request.InputContentSize)),
	}
	if ev.Response != nil {
		args = append(args,
			"input_tokens", ev.Response.InputTokens,
			"output_tokens", ev.Response.OutputTokens,
			"finish_reason", ev.Response.FinishReason)
	}
	if ev.Error != nil {
		args = append(args, "error", ev.Error)
	}
	logger.DebugContext(ctx, "llm call", args...)
}
