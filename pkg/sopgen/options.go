// Package sopgen is the library entry point: it fetches or accepts page
// markup, cleans it and classifies it into actions and information.
package sopgen

import (
	"time"

	"github.com/amitmahapatrav5/genai-sop-generator/pkg/extractor"
	"github.com/amitmahapatrav5/genai-sop-generator/pkg/fetcher"
	"github.com/amitmahapatrav5/genai-sop-generator/pkg/llm"
)

// DefaultFallbackOrder is tried after the preferred provider.
var DefaultFallbackOrder = []string{"ollama", "openrouter", "anthropic", "openai", "gemini", "helicone"}

// DefaultMaxContentSize is the cleaned content size above which input is
// truncated before classification.
const DefaultMaxContentSize = 100_000

// ProviderSettings overrides the shared LLM settings for one provider.
// Zero values inherit the shared setting; Temperature inherits when unset.
type ProviderSettings struct {
	Model       string   `mapstructure:"model" yaml:"model"`
	APIKey      string   `mapstructure:"api_key" yaml:"api_key"`
	BaseURL     string   `mapstructure:"base_url" yaml:"base_url"`
	Temperature *float64 `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int      `mapstructure:"max_tokens" yaml:"max_tokens"`

	// Self-hosted Helicone gateway routing.
	TargetProvider string `mapstructure:"target_provider" yaml:"target_provider"`
	TargetAPIKey   string `mapstructure:"target_api_key" yaml:"target_api_key"`
}

// Config holds all sopgen configuration.
type Config struct {
	// LLM settings. Provider is the preferred provider; empty means the
	// first one with a key in the environment.
	Provider      string
	Model         string
	APIKey        string
	BaseURL       string
	FallbackOrder []string
	Providers     map[string]ProviderSettings

	Temperature float64
	MaxTokens   int
	MaxRetries  int
	Observer    llm.LLMObserver

	// Content settings
	MaxContentSize int
	Cleaner        string

	// Fetch settings
	FetchMode fetcher.Mode
	UserAgent string
	Timeout   time.Duration

	// Classification settings
	StrictDisjoint bool

	// RateLimit caps oracle calls per second across all callers; zero
	// disables limiting.
	RateLimit float64
	RateBurst int

	// Injected collaborators, mainly for tests.
	Extractor extractor.Extractor
	Fetcher   fetcher.Fetcher
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	llmDefaults := extractor.DefaultLLMConfig()
	return Config{
		FallbackOrder:  append([]string(nil), DefaultFallbackOrder...),
		Temperature:    llmDefaults.Temperature,
		MaxTokens:      llmDefaults.MaxTokens,
		MaxRetries:     llmDefaults.MaxRetries,
		MaxContentSize: DefaultMaxContentSize,
		Cleaner:        "visible",
		FetchMode:      fetcher.ModeStatic,
		Timeout:        30 * time.Second,
		RateBurst:      1,
	}
}

// Option configures sopgen.
type Option func(*Config)

// WithProvider sets the preferred LLM provider.
func WithProvider(provider string) Option {
	return func(c *Config) { c.Provider = provider }
}

// WithModel sets the model for the preferred provider.
func WithModel(model string) Option {
	return func(c *Config) { c.Model = model }
}

// WithAPIKey sets the API key for the preferred provider.
func WithAPIKey(key string) Option {
	return func(c *Config) { c.APIKey = key }
}

// WithBaseURL sets a custom API base URL for the preferred provider.
func WithBaseURL(url string) Option {
	return func(c *Config) { c.BaseURL = url }
}

// WithFallbackOrder sets the providers tried after the preferred one.
func WithFallbackOrder(providers ...string) Option {
	return func(c *Config) { c.FallbackOrder = providers }
}

// WithProviderSettings sets per-provider overrides.
func WithProviderSettings(name string, s ProviderSettings) Option {
	return func(c *Config) {
		if c.Providers == nil {
			c.Providers = make(map[string]ProviderSettings)
		}
		c.Providers[name] = s
	}
}

// WithTemperature sets the LLM temperature.
func WithTemperature(t float64) Option {
	return func(c *Config) { c.Temperature = t }
}

// WithMaxTokens sets the maximum output tokens.
func WithMaxTokens(n int) Option {
	return func(c *Config) { c.MaxTokens = n }
}

// WithMaxRetries sets how many times an invalid reply is retried.
func WithMaxRetries(n int) Option {
	return func(c *Config) { c.MaxRetries = n }
}

// WithMaxContentSize sets the truncation threshold in bytes; zero disables it.
func WithMaxContentSize(n int) Option {
	return func(c *Config) { c.MaxContentSize = n }
}

// WithCleaner sets the cleaner chain, e.g. "visible" or "visible,markdown".
func WithCleaner(spec string) Option {
	return func(c *Config) { c.Cleaner = spec }
}

// WithFetchMode sets the fetch mode (static, dynamic, auto).
func WithFetchMode(mode fetcher.Mode) Option {
	return func(c *Config) { c.FetchMode = mode }
}

// WithUserAgent sets the HTTP user agent.
func WithUserAgent(ua string) Option {
	return func(c *Config) { c.UserAgent = ua }
}

// WithTimeout sets the fetch timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// WithStrictDisjoint rejects results whose info repeats action content.
func WithStrictDisjoint(strict bool) Option {
	return func(c *Config) { c.StrictDisjoint = strict }
}

// WithRateLimit limits oracle calls to rps per second with the given burst.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Config) {
		c.RateLimit = rps
		c.RateBurst = burst
	}
}

// WithObserver sets the LLM call observer.
func WithObserver(obs llm.LLMObserver) Option {
	return func(c *Config) { c.Observer = obs }
}

// WithExtractor replaces the provider chain.
func WithExtractor(e extractor.Extractor) Option {
	return func(c *Config) { c.Extractor = e }
}

// WithFetcher replaces the fetcher built from FetchMode.
func WithFetcher(f fetcher.Fetcher) Option {
	return func(c *Config) { c.Fetcher = f }
}
