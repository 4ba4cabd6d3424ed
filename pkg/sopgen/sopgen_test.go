package sopgen

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amitmahapatrav5/genai-sop-generator/pkg/classify"
	"github.com/amitmahapatrav5/genai-sop-generator/pkg/cleaner"
	"github.com/amitmahapatrav5/genai-sop-generator/pkg/extractor"
	"github.com/amitmahapatrav5/genai-sop-generator/pkg/fetcher"
	"github.com/amitmahapatrav5/genai-sop-generator/pkg/llm"
)

const loginReply = `{"actions":[{"description":"Sign in to the dashboard","process":"enter email, then click 'Sign In'"}],"info":[{"description":"Total Views is $3,456K."}]}`

const loginPage = `<html><head><title>Login</title><script>track()</script></head>
<body><form><input type="email" name="email"><button>Sign In</button></form>
<div>Total Views $3,456K</div></body></html>`

// recordingProvider answers every call with reply and keeps the instruction
// sent on each call.
type recordingProvider struct {
	mu           sync.Mutex
	reply        string
	instructions []string
}

func (p *recordingProvider) Execute(_ context.Context, req llm.Request) (*llm.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range req.Messages {
		if m.Role == llm.RoleUser {
			p.instructions = append(p.instructions, m.Content)
			break
		}
	}
	return &llm.Response{Content: p.reply, Model: "fake-1", Usage: llm.Usage{InputTokens: 10, OutputTokens: 5}}, nil
}

func (p *recordingProvider) Name() string  { return "fake" }
func (p *recordingProvider) Model() string { return "fake-1" }

func (p *recordingProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.instructions)
}

func (p *recordingProvider) lastInstruction() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.instructions) == 0 {
		return ""
	}
	return p.instructions[len(p.instructions)-1]
}

func newTestSopgen(t *testing.T, opts ...Option) (*Sopgen, *recordingProvider) {
	t.Helper()
	p := &recordingProvider{reply: loginReply}
	opts = append([]Option{WithExtractor(extractor.NewLLM(p))}, opts...)
	s, err := New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, p
}

func pageServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(loginPage))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestExtractHTML(t *testing.T) {
	t.Parallel()

	s, p := newTestSopgen(t)
	res, err := s.ExtractHTML(context.Background(), loginPage)
	require.NoError(t, err)

	require.Len(t, res.Features.Actions, 1)
	require.Len(t, res.Features.Info, 1)
	assert.Equal(t, "Sign in to the dashboard", res.Features.Actions[0].Description)
	assert.Equal(t, "fake", res.Provider)
	assert.Len(t, res.ContentHash, 16)

	instruction := p.lastInstruction()
	assert.NotContains(t, instruction, "track()", "scripts are cleaned before classification")
	assert.Contains(t, instruction, "<button>Sign In</button>")
}

func TestExtractHTMLContent(t *testing.T) {
	t.Parallel()

	s, p := newTestSopgen(t)
	content, res, err := s.ExtractHTMLContent(context.Background(), loginPage)
	require.NoError(t, err)
	require.NotNil(t, res)

	want, err := s.Prepare(loginPage)
	require.NoError(t, err)
	assert.Equal(t, want, content)
	assert.NotContains(t, content, "track()")
	assert.Contains(t, p.lastInstruction(), content)
	assert.Equal(t, classify.ContentHash(content), res.ContentHash)
}

func TestExtractHTML_Empty(t *testing.T) {
	t.Parallel()

	s, p := newTestSopgen(t)
	for _, in := range []string{"", "  \n\t"} {
		_, err := s.ExtractHTML(context.Background(), in)
		assert.ErrorIs(t, err, classify.ErrInvalidInput)
	}
	assert.Zero(t, p.calls())
}

func TestExtractHTML_OnlyHiddenContent(t *testing.T) {
	t.Parallel()

	s, p := newTestSopgen(t)
	_, err := s.ExtractHTML(context.Background(), `<script>x()</script><div hidden>secret</div>`)
	assert.ErrorIs(t, err, classify.ErrInvalidInput)
	assert.Zero(t, p.calls())
}

func TestExtractHTML_Truncates(t *testing.T) {
	t.Parallel()

	s, p := newTestSopgen(t, WithCleaner("noop"), WithMaxContentSize(40))
	_, err := s.ExtractHTML(context.Background(), strings.Repeat("<p>row</p>", 50))
	require.NoError(t, err)

	instruction := p.lastInstruction()
	assert.Contains(t, instruction, "[Content truncated due to length...]")
	assert.NotContains(t, instruction, strings.Repeat("<p>row</p>", 5))
}

func TestPrepare(t *testing.T) {
	t.Parallel()

	s, _ := newTestSopgen(t, WithCleaner("visible"), WithMaxContentSize(0))
	out, err := s.Prepare(loginPage)
	require.NoError(t, err)
	assert.NotContains(t, out, "<title>")
	assert.Contains(t, out, "Total Views $3,456K")
}

func TestExtractURL(t *testing.T) {
	t.Parallel()

	srv := pageServer(t)
	s, _ := newTestSopgen(t, WithFetchMode(fetcher.ModeStatic))

	pr, err := s.ExtractURL(context.Background(), srv.URL+"/login")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/login", pr.URL)
	assert.Equal(t, "Login", pr.Title)
	assert.False(t, pr.FetchedAt.IsZero())
	assert.NotContains(t, pr.Content, "track()")
	require.NotNil(t, pr.Result)
	assert.Len(t, pr.Result.Features.Actions, 1)
}

func TestExtractURL_FetchError(t *testing.T) {
	t.Parallel()

	srv := pageServer(t)
	s, p := newTestSopgen(t)

	_, err := s.ExtractURL(context.Background(), srv.URL+"/missing")
	assert.ErrorIs(t, err, fetcher.ErrStatus)
	assert.Zero(t, p.calls())
}

func TestExtractMany(t *testing.T) {
	t.Parallel()

	srv := pageServer(t)
	s, p := newTestSopgen(t)

	urls := []string{srv.URL + "/a", srv.URL + "/missing", srv.URL + "/b", srv.URL + "/c"}
	var ok, failed int
	seen := make(map[string]bool)
	for pr := range s.ExtractMany(context.Background(), urls, 2) {
		seen[pr.URL] = true
		if pr.Error != nil {
			failed++
			assert.ErrorIs(t, pr.Error, fetcher.ErrStatus)
			continue
		}
		ok++
	}

	assert.Equal(t, 3, ok)
	assert.Equal(t, 1, failed)
	assert.Len(t, seen, len(urls))
	assert.Equal(t, 3, p.calls())
}

func TestExtractMany_Cancelled(t *testing.T) {
	t.Parallel()

	s, p := newTestSopgen(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var n int
	for pr := range s.ExtractMany(ctx, []string{"http://127.0.0.1:1/a", "http://127.0.0.1:1/b"}, 0) {
		n++
		assert.ErrorIs(t, pr.Error, context.Canceled)
	}
	assert.Equal(t, 2, n)
	assert.Zero(t, p.calls())
}

func TestNew_UnknownCleaner(t *testing.T) {
	t.Parallel()

	_, err := New(WithExtractor(extractor.NewLLM(&recordingProvider{})), WithCleaner("readability"))
	assert.ErrorIs(t, err, cleaner.ErrUnknownCleaner)
}

func TestNew_UnsupportedFetchMode(t *testing.T) {
	t.Parallel()

	_, err := New(WithExtractor(extractor.NewLLM(&recordingProvider{})), WithFetchMode("curl"))
	assert.ErrorIs(t, err, fetcher.ErrUnsupportedMode)
}

func TestNew_RateLimitWraps(t *testing.T) {
	t.Parallel()

	s, _ := newTestSopgen(t, WithRateLimit(100, 2))
	_, ok := s.extractor.(*extractor.RateLimitedExtractor)
	assert.True(t, ok, "extractor should be rate limited, got %T", s.extractor)

	_, err := s.ExtractHTML(context.Background(), loginPage)
	assert.NoError(t, err)
}

func TestNew_StrictDisjoint(t *testing.T) {
	t.Parallel()

	p := &recordingProvider{reply: `{"actions":[{"description":"Sign in","process":"click 'Sign In'"}],"info":[{"description":"The Sign In button is blue."}]}`}
	s, err := New(WithExtractor(extractor.NewLLM(p, extractor.WithMaxRetries(1))), WithStrictDisjoint(true))
	require.NoError(t, err)

	_, err = s.ExtractHTML(context.Background(), loginPage)
	assert.ErrorIs(t, err, classify.ErrExtractionFailed)
	assert.Equal(t, 2, p.calls())
}

// clearProviderEnv removes every provider key from the environment.
func clearProviderEnv(t *testing.T) {
	t.Helper()
	for _, name := range llm.AvailableProviders() {
		if env := llm.EnvKey(name); env != "" {
			t.Setenv(env, "")
		}
	}
}

func TestBuildChain_LocalOllamaOnly(t *testing.T) {
	clearProviderEnv(t)

	ext, err := buildChain(DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, "ollama", ext.Name())
	assert.True(t, ext.Available())
}

func TestBuildChain_PreferredFirst(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv(llm.EnvKey("openai"), "sk-test")

	cfg := DefaultConfig()
	cfg.Provider = "anthropic"
	cfg.APIKey = "ak-test"

	ext, err := buildChain(cfg)
	require.NoError(t, err)
	assert.Equal(t, "fallback(anthropic->ollama->openai)", ext.Name())
}

func TestBuildChain_SkipsDuplicatesAndBlanks(t *testing.T) {
	clearProviderEnv(t)

	cfg := DefaultConfig()
	cfg.Provider = "ollama"
	cfg.FallbackOrder = []string{"", "OLLAMA", " ollama "}

	ext, err := buildChain(cfg)
	require.NoError(t, err)
	assert.Equal(t, "ollama", ext.Name())
}

func TestBuildChain_ExplicitProviderWithoutKey(t *testing.T) {
	clearProviderEnv(t)

	cfg := DefaultConfig()
	cfg.Provider = "Anthropic"

	_, err := buildChain(cfg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, extractor.ErrProviderUnavailable))
	assert.Contains(t, err.Error(), "ANTHROPIC_API_KEY")

	_, err = New(WithProvider("openai"))
	assert.ErrorIs(t, err, extractor.ErrProviderUnavailable)
}

func TestBuildChain_FallbackWithoutKeySkipped(t *testing.T) {
	clearProviderEnv(t)

	cfg := DefaultConfig()
	cfg.FallbackOrder = []string{"anthropic", "openai", "ollama"}

	ext, err := buildChain(cfg)
	require.NoError(t, err)
	assert.Equal(t, "ollama", ext.Name())
}

func TestBuildChain_UnknownProvider(t *testing.T) {
	clearProviderEnv(t)

	cfg := DefaultConfig()
	cfg.Provider = "mistral"
	_, err := buildChain(cfg)
	assert.Error(t, err)
}

func TestLLMConfigFor(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Model = "top-model"
	cfg.APIKey = "top-key"
	cfg.Temperature = 0.3
	cfg.Providers = map[string]ProviderSettings{
		"openai": {Model: "gpt-4o-mini", MaxTokens: 2048},
	}

	preferred := llmConfigFor(cfg, "anthropic", true)
	assert.Equal(t, "top-model", preferred.Model)
	assert.Equal(t, "top-key", preferred.APIKey)
	assert.InDelta(t, 0.3, preferred.Temperature, 1e-9)

	fallback := llmConfigFor(cfg, "openai", false)
	assert.Equal(t, "gpt-4o-mini", fallback.Model)
	assert.Empty(t, fallback.APIKey)
	assert.Equal(t, 2048, fallback.MaxTokens)
	assert.InDelta(t, 0.3, fallback.Temperature, 1e-9)
}

func TestLLMConfigFor_ZeroTemperature(t *testing.T) {
	t.Parallel()

	zero := 0.0
	cfg := DefaultConfig()
	cfg.Temperature = 0.5
	cfg.Providers = map[string]ProviderSettings{
		"openai": {Temperature: &zero},
	}

	assert.Zero(t, llmConfigFor(cfg, "openai", false).Temperature)
	assert.InDelta(t, 0.5, llmConfigFor(cfg, "anthropic", false).Temperature, 1e-9)

	cfg = DefaultConfig()
	WithTemperature(0)(&cfg)
	assert.Zero(t, llmConfigFor(cfg, "ollama", true).Temperature)
}
