package extractor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/amitmahapatrav5/genai-sop-generator/pkg/features"
	"github.com/amitmahapatrav5/genai-sop-generator/pkg/llm"
	"github.com/amitmahapatrav5/genai-sop-generator/pkg/schema"
)

type item struct {
	Description string `json:"description" validate:"required"`
}

type doc struct {
	Items []item `json:"items" validate:"required,dive"`
	Notes []item `json:"notes" validate:"required,dive"`
}

func testSchema(t *testing.T, opts ...schema.SchemaOption) schema.Schema {
	t.Helper()
	s, err := schema.NewSchema[doc](opts...)
	if err != nil {
		t.Fatalf("NewSchema failed: %v", err)
	}
	return s
}

// scriptedProvider returns replies (or errors) in order and records requests.
type scriptedProvider struct {
	mu       sync.Mutex
	replies  []string
	errs     []error
	requests []llm.Request
}

func (p *scriptedProvider) Execute(_ context.Context, req llm.Request) (*llm.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := len(p.requests)
	p.requests = append(p.requests, req)
	if i < len(p.errs) && p.errs[i] != nil {
		return nil, p.errs[i]
	}
	reply := ""
	if i < len(p.replies) {
		reply = p.replies[i]
	}
	return &llm.Response{
		Content: reply,
		Model:   "fake-1",
		Usage:   llm.Usage{InputTokens: 10, OutputTokens: 5},
		Cost:    0.01,
	}, nil
}

func (p *scriptedProvider) Name() string  { return "fake" }
func (p *scriptedProvider) Model() string { return "fake-1" }

func (p *scriptedProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

const validDoc = `{"items":[{"description":"Sign in"}],"notes":[]}`

func TestLLMExtractor_FirstAttemptValid(t *testing.T) {
	p := &scriptedProvider{replies: []string{validDoc}}
	e := NewLLM(p)

	res, err := e.Extract(context.Background(), "classify this", testSchema(t))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	d, ok := res.Data.(*doc)
	if !ok {
		t.Fatalf("expected *doc, got %T", res.Data)
	}
	if len(d.Items) != 1 || d.Items[0].Description != "Sign in" {
		t.Errorf("unexpected data: %+v", d)
	}
	if res.RetryCount != 0 {
		t.Errorf("RetryCount = %d, want 0", res.RetryCount)
	}
	if p.calls() != 1 {
		t.Errorf("provider calls = %d, want 1", p.calls())
	}

	req := p.requests[0]
	if len(req.Messages) != 2 || req.Messages[0].Role != llm.RoleSystem || req.Messages[1].Content != "classify this" {
		t.Errorf("unexpected messages: %+v", req.Messages)
	}
	if req.SchemaName != "doc" {
		t.Errorf("SchemaName = %q, want doc", req.SchemaName)
	}
	if req.JSONSchema == nil {
		t.Error("expected JSON schema on request")
	}
}

func TestParseReply_BlankFieldsRejected(t *testing.T) {
	s, err := schema.NewSchema[features.Features]()
	if err != nil {
		t.Fatalf("NewSchema failed: %v", err)
	}

	tests := []struct {
		name  string
		reply string
	}{
		{"blank action", `{"actions":[{"description":"   ","process":"  "}],"info":[]}`},
		{"blank process", `{"actions":[{"description":"Sign in","process":"\t"}],"info":[]}`},
		{"blank info", `{"actions":[],"info":[{"description":" "}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, _, errs := parseReply(tt.reply, s)
			if len(errs) == 0 {
				t.Fatalf("expected validation errors, got data %+v", data)
			}
			if data != nil {
				t.Errorf("expected no data on failure, got %+v", data)
			}
		})
	}

	data, _, errs := parseReply(`{"actions":[{"description":"Sign in","process":"click 'Sign In'"}],"info":[{"description":"Total Views is 3."}]}`, s)
	if len(errs) != 0 || data == nil {
		t.Fatalf("valid reply rejected: %v", errs)
	}
}

func TestLLMExtractor_BlankReplyRetried(t *testing.T) {
	s, err := schema.NewSchema[features.Features]()
	if err != nil {
		t.Fatalf("NewSchema failed: %v", err)
	}
	p := &scriptedProvider{replies: []string{
		`{"actions":[{"description":" ","process":" "}],"info":[]}`,
		`{"actions":[{"description":"Sign in","process":"click 'Sign In'"}],"info":[]}`,
	}}
	e := NewLLM(p, WithConfig(LLMConfig{MaxRetries: 1}))

	res, err := e.Extract(context.Background(), "classify this", s)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if p.calls() != 2 {
		t.Errorf("calls = %d, want 2", p.calls())
	}
	f := res.Data.(*features.Features)
	if f.Actions[0].Description != "Sign in" {
		t.Errorf("got %+v", f.Actions)
	}
}

func TestWithConfig_ZeroTemperatureKept(t *testing.T) {
	p := &scriptedProvider{replies: []string{validDoc}}
	e := NewLLM(p, WithConfig(LLMConfig{Temperature: 0, MaxRetries: 1}))

	if _, err := e.Extract(context.Background(), "classify this", testSchema(t)); err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if got := p.requests[0].Temperature; got != 0 {
		t.Errorf("Temperature = %v, want 0", got)
	}
	if got := p.requests[0].MaxTokens; got != DefaultLLMConfig().MaxTokens {
		t.Errorf("MaxTokens = %d, want default", got)
	}
}

// billedProvider reports a generation ID and looks up its billed cost.
type billedProvider struct {
	scriptedProvider
	cost      float64
	lookupErr error
	lookedUp  []string
}

func (p *billedProvider) Execute(ctx context.Context, req llm.Request) (*llm.Response, error) {
	resp, err := p.scriptedProvider.Execute(ctx, req)
	if resp != nil {
		resp.GenerationID = "gen-1"
	}
	return resp, err
}

func (p *billedProvider) GetGenerationCost(_ context.Context, id string) (float64, error) {
	p.lookedUp = append(p.lookedUp, id)
	return p.cost, p.lookupErr
}

func TestLLMExtractor_BilledCostReplacesEstimate(t *testing.T) {
	p := &billedProvider{scriptedProvider: scriptedProvider{replies: []string{validDoc}}, cost: 0.5}
	e := NewLLM(p)

	res, err := e.Extract(context.Background(), "classify this", testSchema(t))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if res.Cost != 0.5 {
		t.Errorf("Cost = %v, want billed 0.5", res.Cost)
	}
	if len(p.lookedUp) != 1 || p.lookedUp[0] != "gen-1" {
		t.Errorf("lookups = %v", p.lookedUp)
	}
}

func TestLLMExtractor_FailedCostLookupKeepsEstimate(t *testing.T) {
	p := &billedProvider{
		scriptedProvider: scriptedProvider{replies: []string{validDoc}},
		lookupErr:        errors.New("not ready"),
	}
	e := NewLLM(p)

	res, err := e.Extract(context.Background(), "classify this", testSchema(t))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if res.Cost != 0.01 {
		t.Errorf("Cost = %v, want estimate 0.01", res.Cost)
	}
}

func TestLLMExtractor_RetriesWithFeedback(t *testing.T) {
	p := &scriptedProvider{replies: []string{
		`{"items":[{"description":""}],"notes":[]}`,
		validDoc,
	}}
	e := NewLLM(p)

	res, err := e.Extract(context.Background(), "classify this", testSchema(t))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if res.RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1", res.RetryCount)
	}
	if res.Usage.InputTokens != 20 || res.Usage.OutputTokens != 10 {
		t.Errorf("usage not summed: %+v", res.Usage)
	}
	if res.Cost < 0.019 || res.Cost > 0.021 {
		t.Errorf("cost not summed: %v", res.Cost)
	}

	retry := p.requests[1].Messages
	if len(retry) != 4 {
		t.Fatalf("retry should carry 4 messages, got %d", len(retry))
	}
	if retry[1].Content != "classify this" {
		t.Error("instruction must not change between attempts")
	}
	if retry[2].Role != llm.RoleAssistant {
		t.Errorf("rejected reply should be an assistant turn, got %s", retry[2].Role)
	}
	if !strings.Contains(retry[3].Content, "Previous Attempt Errors") || !strings.Contains(retry[3].Content, "items[0].description") {
		t.Errorf("feedback missing errors:\n%s", retry[3].Content)
	}
}

func TestLLMExtractor_RetriesExhausted(t *testing.T) {
	p := &scriptedProvider{replies: []string{"nope", `{"items":null,"notes":[]}`, `{"items":[]}`}}
	e := NewLLM(p, WithMaxRetries(2))

	res, err := e.Extract(context.Background(), "x", testSchema(t))
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Fatalf("expected ErrRetriesExhausted, got %v", err)
	}
	if p.calls() != 3 {
		t.Errorf("provider calls = %d, want 3", p.calls())
	}
	if res == nil || res.Data != nil {
		t.Errorf("failed result must not carry data: %+v", res)
	}
	if len(res.Errors) == 0 {
		t.Error("expected last validation errors on result")
	}
}

func TestLLMExtractor_ZeroRetries(t *testing.T) {
	p := &scriptedProvider{replies: []string{"nope", validDoc}}
	e := NewLLM(p, WithMaxRetries(0))

	_, err := e.Extract(context.Background(), "x", testSchema(t))
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Fatalf("expected ErrRetriesExhausted, got %v", err)
	}
	if p.calls() != 1 {
		t.Errorf("provider calls = %d, want 1", p.calls())
	}
}

func TestLLMExtractor_ProviderErrorNotRetried(t *testing.T) {
	p := &scriptedProvider{errs: []error{errors.New("connection refused")}}
	e := NewLLM(p)

	_, err := e.Extract(context.Background(), "x", testSchema(t))
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
	if p.calls() != 1 {
		t.Errorf("provider calls = %d, want 1", p.calls())
	}
}

func TestLLMExtractor_RateLimitUsesRetrySlot(t *testing.T) {
	rl := &llm.StatusError{Provider: "fake", StatusCode: 429}
	p := &scriptedProvider{errs: []error{rl}, replies: []string{"", validDoc}}
	e := NewLLM(p)
	e.rateLimitBackoff = 0

	res, err := e.Extract(context.Background(), "x", testSchema(t))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if res.RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1", res.RetryCount)
	}
	// A rate-limited call is retried with the unchanged conversation.
	if len(p.requests[1].Messages) != 2 {
		t.Errorf("expected original conversation on retry, got %d messages", len(p.requests[1].Messages))
	}
}

func TestLLMExtractor_RateLimitOnLastAttempt(t *testing.T) {
	rl := &llm.StatusError{Provider: "fake", StatusCode: 429}
	p := &scriptedProvider{errs: []error{rl, rl, rl}}
	e := NewLLM(p)
	e.rateLimitBackoff = 0

	_, err := e.Extract(context.Background(), "x", testSchema(t))
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
	if p.calls() != 3 {
		t.Errorf("provider calls = %d, want 3", p.calls())
	}
}

func TestLLMExtractor_ContextCancelled(t *testing.T) {
	p := &scriptedProvider{replies: []string{validDoc}}
	e := NewLLM(p)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Extract(ctx, "x", testSchema(t))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if errors.Is(err, ErrProviderUnavailable) {
		t.Error("context errors must not be reported as provider failures")
	}
	if p.calls() != 0 {
		t.Errorf("provider calls = %d, want 0", p.calls())
	}
}

func TestLLMExtractor_SchemaChecksFeedRetry(t *testing.T) {
	noDupes := func(data any) []schema.ValidationError {
		d := data.(*doc)
		if len(d.Notes) > 0 {
			return []schema.ValidationError{{Field: "notes", Message: "must be empty"}}
		}
		return nil
	}
	p := &scriptedProvider{replies: []string{
		`{"items":[],"notes":[{"description":"x"}]}`,
		validDoc,
	}}
	e := NewLLM(p)

	res, err := e.Extract(context.Background(), "x", testSchema(t, schema.WithCheck(noDupes)))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if res.RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1", res.RetryCount)
	}
	if !strings.Contains(p.requests[1].Messages[3].Content, "must be empty") {
		t.Error("check error should be fed back to the model")
	}
}

func TestLLMExtractor_ObserverNotified(t *testing.T) {
	var events []llm.LLMCallEvent
	obs := llm.ObserverFunc(func(_ context.Context, ev llm.LLMCallEvent) {
		events = append(events, ev)
	})
	p := &scriptedProvider{replies: []string{"nope", validDoc}}
	e := NewLLM(p, WithObserver(obs))

	if _, err := e.Extract(context.Background(), "x", testSchema(t)); err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("observer events = %d, want 2", len(events))
	}
	if events[1].Attempt != 1 || events[1].Response == nil {
		t.Errorf("unexpected second event: %+v", events[1])
	}
}

func TestNewForProvider_MissingKeyIsUnavailable(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")

	e, err := NewForProvider("anthropic", DefaultLLMConfig())
	if err != nil {
		t.Fatalf("NewForProvider failed: %v", err)
	}
	if e.Available() {
		t.Error("extractor without key should be unavailable")
	}
	if _, err := e.Extract(context.Background(), "x", testSchema(t)); !errors.Is(err, ErrProviderUnavailable) {
		t.Errorf("expected ErrProviderUnavailable, got %v", err)
	}

	if _, err := NewForProvider("nope", DefaultLLMConfig()); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestNewForProvider_LocalOllamaAlwaysAvailable(t *testing.T) {
	t.Setenv("OLLAMA_API_KEY", "")

	e, err := NewForProvider("ollama", DefaultLLMConfig())
	if err != nil {
		t.Fatalf("NewForProvider failed: %v", err)
	}
	if !e.Available() {
		t.Error("local ollama should be available")
	}
	if e.Provider().Model() != "llama3.2" {
		t.Errorf("model = %s, want llama3.2", e.Provider().Model())
	}
}

type stubExtractor struct {
	name      string
	available bool
	err       error
	calls     int
}

func (s *stubExtractor) Extract(context.Context, string, schema.Schema) (*Result, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &Result{Provider: s.name}, nil
}
func (s *stubExtractor) Name() string    { return s.name }
func (s *stubExtractor) Available() bool { return s.available }

func TestFallback(t *testing.T) {
	down := &stubExtractor{name: "a", available: true, err: ErrProviderUnavailable}
	off := &stubExtractor{name: "b"}
	up := &stubExtractor{name: "c", available: true}

	f := NewFallback(down, off, up)
	res, err := f.Extract(context.Background(), "x", schema.Schema{})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if res.Provider != "c" {
		t.Errorf("Provider = %s, want c", res.Provider)
	}
	if off.calls != 0 {
		t.Error("unavailable extractor should be skipped")
	}
	if f.Name() != "fallback(a->b->c)" {
		t.Errorf("Name = %s", f.Name())
	}
	if !f.Available() {
		t.Error("chain with an available member should be available")
	}
}

func TestFallback_AllFailedKeepsCause(t *testing.T) {
	f := NewFallback(&stubExtractor{name: "a", available: true, err: ErrRetriesExhausted})
	_, err := f.Extract(context.Background(), "x", schema.Schema{})
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Errorf("expected cause to survive wrapping, got %v", err)
	}
}

func TestFallback_NoneAvailable(t *testing.T) {
	f := NewFallback(&stubExtractor{name: "a"})
	if _, err := f.Extract(context.Background(), "x", schema.Schema{}); !errors.Is(err, ErrNoExtractorAvailable) {
		t.Errorf("expected ErrNoExtractorAvailable, got %v", err)
	}
	if f.Available() {
		t.Error("chain without available members should be unavailable")
	}
}

func TestRateLimited(t *testing.T) {
	inner := &stubExtractor{name: "a", available: true}
	r := NewRateLimited(inner, 1, 1)

	if _, err := r.Extract(context.Background(), "x", schema.Schema{}); err != nil {
		t.Fatalf("first call should pass: %v", err)
	}

	// The bucket is empty and the deadline is shorter than the refill time.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := r.Extract(ctx, "x", schema.Schema{})
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("inner calls = %d, want 1", inner.calls)
	}
	if r.Name() != "a" || !r.Available() {
		t.Error("rate limiter should expose inner name and availability")
	}
}
