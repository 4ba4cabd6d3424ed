package llm

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
)

// ProviderFactory creates providers from config.
type ProviderFactory func(cfg ProviderConfig) (Provider, error)

// DefaultModels maps provider names to their default models.
var DefaultModels = map[string]string{
	"anthropic":  "claude-sonnet-4-20250514",
	"openai":     "gpt-4o",
	"openrouter": "openrouter/auto",
	"ollama":     ollamaLocalModel,
	"gemini":     "gemini-2.5-flash",
	"helicone":   "gpt-4o-mini",
}

var (
	registryMu sync.RWMutex
	registry   = map[string]ProviderFactory{}
)

func init() {
	RegisterProvider("anthropic", func(cfg ProviderConfig) (Provider, error) {
		return NewAnthropicProvider(cfg)
	})
	RegisterProvider("openai", func(cfg ProviderConfig) (Provider, error) {
		return NewOpenAIProvider(cfg)
	})
	RegisterProvider("openrouter", func(cfg ProviderConfig) (Provider, error) {
		return NewOpenRouterProvider(cfg)
	})
	RegisterProvider("ollama", func(cfg ProviderConfig) (Provider, error) {
		return NewOllamaProvider(cfg)
	})
	RegisterProvider("gemini", func(cfg ProviderConfig) (Provider, error) {
		return NewGeminiProvider(cfg)
	})
	RegisterProvider("helicone", func(cfg ProviderConfig) (Provider, error) {
		return NewHeliconeProvider(cfg)
	})
}

// NewProvider creates a provider by name.
func NewProvider(name string, cfg ProviderConfig) (Provider, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s (available: %s)", name, strings.Join(AvailableProviders(), ", "))
	}
	return factory(cfg)
}

// RegisterProvider adds a custom provider factory.
func RegisterProvider(name string, factory ProviderFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// AvailableProviders returns the sorted list of registered providers.
func AvailableProviders() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	providers := make([]string, 0, len(registry))
	for name := range registry {
		providers = append(providers, name)
	}
	sort.Strings(providers)
	return providers
}

// IsRegistered returns true if a provider is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[name]
	return ok
}

// providerEnvKeys maps provider names to their API key environment variables,
// in detection priority order.
var providerEnvKeys = []struct {
	provider string
	env      string
}{
	{"ollama", "OLLAMA_API_KEY"},
	{"openrouter", "OPENROUTER_API_KEY"},
	{"anthropic", "ANTHROPIC_API_KEY"},
	{"openai", "OPENAI_API_KEY"},
	{"gemini", "GEMINI_API_KEY"},
	{"helicone", "HELICONE_API_KEY"},
}

// DetectProvider auto-detects the provider based on available API keys.
// Ollama cloud comes first; a local Ollama (no key) is the fallback.
func DetectProvider() (provider string, apiKey string) {
	for _, p := range providerEnvKeys {
		if key := os.Getenv(p.env); key != "" {
			return p.provider, key
		}
	}
	return "ollama", ""
}

// APIKeyFromEnv returns the API key configured in the environment for provider.
func APIKeyFromEnv(provider string) string {
	if env := EnvKey(provider); env != "" {
		return os.Getenv(env)
	}
	return ""
}

// EnvKey returns the environment variable holding provider's API key.
func EnvKey(provider string) string {
	for _, p := range providerEnvKeys {
		if p.provider == provider {
			return p.env
		}
	}
	return ""
}

// HasAPIKey checks if an API key environment variable is set for the given provider.
func HasAPIKey(provider string) bool {
	return APIKeyFromEnv(provider) != ""
}

// GetDefaultModel returns the default model for a provider.
func GetDefaultModel(provider string) string {
	return DefaultModels[provider]
}
