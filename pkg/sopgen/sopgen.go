package sopgen

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/amitmahapatrav5/genai-sop-generator/internal/logger"
	"github.com/amitmahapatrav5/genai-sop-generator/pkg/classify"
	"github.com/amitmahapatrav5/genai-sop-generator/pkg/cleaner"
	"github.com/amitmahapatrav5/genai-sop-generator/pkg/extractor"
	"github.com/amitmahapatrav5/genai-sop-generator/pkg/fetcher"
	"github.com/amitmahapatrav5/genai-sop-generator/pkg/llm"
)

// PageResult is the outcome for one URL.
type PageResult struct {
	URL           string
	Title         string
	FetchedAt     time.Time
	FetchDuration time.Duration
	// Content is the cleaned, truncated text that was classified.
	Content string
	Result  *classify.Result
	Error   error
}

// Sopgen fetches, cleans and classifies pages.
type Sopgen struct {
	config     Config
	cleaner    cleaner.Cleaner
	fetcher    fetcher.Fetcher
	extractor  extractor.Extractor
	classifier *classify.Classifier
}

// New creates a new Sopgen instance.
func New(opts ...Option) (*Sopgen, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	cl, err := cleaner.New(cfg.Cleaner)
	if err != nil {
		return nil, err
	}

	ext := cfg.Extractor
	if ext == nil {
		ext, err = buildChain(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create extractor: %w", err)
		}
	}
	if cfg.RateLimit > 0 {
		ext = extractor.NewRateLimited(ext, cfg.RateLimit, cfg.RateBurst)
	}

	c, err := classify.New(ext, classify.WithStrictDisjoint(cfg.StrictDisjoint))
	if err != nil {
		return nil, err
	}

	f := cfg.Fetcher
	if f == nil {
		f, err = fetcher.New(cfg.FetchMode, fetcher.Config{
			UserAgent: cfg.UserAgent,
			Timeout:   cfg.Timeout,
		})
		if err != nil {
			return nil, err
		}
	}

	logger.Debug("sopgen configured",
		"extractor", ext.Name(),
		"cleaner", cl.Name(),
		"fetch_mode", f.Mode(),
		"max_content_size", cfg.MaxContentSize)

	return &Sopgen{
		config:     cfg,
		cleaner:    cl,
		fetcher:    f,
		extractor:  ext,
		classifier: c,
	}, nil
}

// buildChain creates the provider chain: the preferred provider, then the
// fallback order. Providers without a key are left out; local ollama needs
// none and is always included when listed. An explicitly chosen provider
// without a key is an error.
func buildChain(cfg Config) (extractor.Extractor, error) {
	explicit := strings.ToLower(strings.TrimSpace(cfg.Provider))
	preferred := explicit
	if preferred == "" {
		preferred, _ = llm.DetectProvider()
	}

	seen := make(map[string]bool)
	var chain []extractor.Extractor
	for _, name := range append([]string{preferred}, cfg.FallbackOrder...) {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		ext, err := extractor.NewForProvider(name, llmConfigFor(cfg, name, name == preferred))
		if err != nil {
			return nil, err
		}
		if !ext.Available() {
			if name == explicit {
				return nil, fmt.Errorf("%w: %s has no API key (set %s or --api-key)",
					extractor.ErrProviderUnavailable, name, llm.EnvKey(name))
			}
			logger.Debug("provider skipped, no API key", "provider", name, "env", llm.EnvKey(name))
			continue
		}
		chain = append(chain, ext)
	}

	if len(chain) == 1 {
		return chain[0], nil
	}
	return extractor.NewFallback(chain...), nil
}

// llmConfigFor layers per-provider settings over the shared ones. The
// top-level model, key and base URL apply to the preferred provider only.
func llmConfigFor(cfg Config, name string, preferred bool) extractor.LLMConfig {
	c := extractor.DefaultLLMConfig()
	c.Temperature = cfg.Temperature
	c.MaxTokens = cfg.MaxTokens
	c.MaxRetries = cfg.MaxRetries
	c.Observer = cfg.Observer
	c.AppTitle = "sopgen"

	if preferred {
		c.Model = cfg.Model
		c.APIKey = cfg.APIKey
		c.BaseURL = cfg.BaseURL
	}

	if p, ok := cfg.Providers[name]; ok {
		if p.Model != "" {
			c.Model = p.Model
		}
		if p.APIKey != "" {
			c.APIKey = p.APIKey
		}
		if p.BaseURL != "" {
			c.BaseURL = p.BaseURL
		}
		if p.Temperature != nil {
			c.Temperature = *p.Temperature
		}
		if p.MaxTokens != 0 {
			c.MaxTokens = p.MaxTokens
		}
		c.TargetProvider = p.TargetProvider
		c.TargetAPIKey = p.TargetAPIKey
	}
	return c
}

// Prepare cleans markup and truncates it to the configured size. It returns
// exactly what ExtractHTML sends to the classifier.
func (s *Sopgen) Prepare(html string) (string, error) {
	cleaned, err := s.cleaner.Clean(html)
	if err != nil {
		return "", fmt.Errorf("clean failed: %w", err)
	}
	if s.config.MaxContentSize > 0 && len(cleaned) > s.config.MaxContentSize {
		logger.Debug("content truncated", "size", len(cleaned), "max", s.config.MaxContentSize)
		cleaned = extractor.TruncateContent(cleaned, s.config.MaxContentSize)
	}
	return cleaned, nil
}

// ExtractHTML cleans html and classifies it.
func (s *Sopgen) ExtractHTML(ctx context.Context, html string) (*classify.Result, error) {
	_, res, err := s.ExtractHTMLContent(ctx, html)
	return res, err
}

// ExtractHTMLContent is ExtractHTML that also returns the cleaned, truncated
// content the classifier saw. The content is returned even when
// classification fails.
func (s *Sopgen) ExtractHTMLContent(ctx context.Context, html string) (string, *classify.Result, error) {
	if strings.TrimSpace(html) == "" {
		return "", nil, fmt.Errorf("%w: content is empty", classify.ErrInvalidInput)
	}

	content, err := s.Prepare(html)
	if err != nil {
		return "", nil, err
	}
	logger.DebugContext(ctx, "content cleaned",
		"cleaner", s.cleaner.Name(),
		"input_size", len(html),
		"output_size", len(content))

	res, err := s.classifier.Classify(ctx, content)
	return content, res, err
}

// ExtractURL fetches a page and classifies it.
func (s *Sopgen) ExtractURL(ctx context.Context, url string) (*PageResult, error) {
	fetchStart := time.Now()
	page, err := s.fetcher.Fetch(ctx, url)
	fetchDuration := time.Since(fetchStart)
	if err != nil {
		return nil, fmt.Errorf("fetch failed: %w", err)
	}

	content, res, err := s.ExtractHTMLContent(ctx, page.HTML)
	if err != nil {
		return nil, err
	}

	return &PageResult{
		URL:           url,
		Title:         page.Title,
		FetchedAt:     page.FetchedAt,
		FetchDuration: fetchDuration,
		Content:       content,
		Result:        res,
	}, nil
}

// ExtractMany classifies urls with at most concurrency pages in flight.
// Every URL yields exactly one PageResult; the channel is closed when all
// are done.
func (s *Sopgen) ExtractMany(ctx context.Context, urls []string, concurrency int) <-chan PageResult {
	if concurrency < 1 {
		concurrency = 1
	}

	results := make(chan PageResult, len(urls))

	var g errgroup.Group
	g.SetLimit(concurrency)

	go func() {
		defer close(results)
		for _, u := range urls {
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					results <- PageResult{URL: u, Error: err}
					return nil
				}
				pr, err := s.ExtractURL(ctx, u)
				if err != nil {
					results <- PageResult{URL: u, Error: err}
					return nil
				}
				results <- *pr
				return nil
			})
		}
		_ = g.Wait()
	}()

	return results
}

// Classifier returns the underlying classifier.
func (s *Sopgen) Classifier() *classify.Classifier {
	return s.classifier
}

// Provider returns the extractor chain name.
func (s *Sopgen) Provider() string {
	return s.extractor.Name()
}

// Close releases all resources.
func (s *Sopgen) Close() error {
	if s.fetcher != nil {
		return s.fetcher.Close()
	}
	return nil
}
