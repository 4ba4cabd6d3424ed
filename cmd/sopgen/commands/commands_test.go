package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amitmahapatrav5/genai-sop-generator/internal/output"
	"github.com/amitmahapatrav5/genai-sop-generator/internal/version"
	"github.com/amitmahapatrav5/genai-sop-generator/pkg/classify"
)

const loginPage = `<html><body><form><input type="email"><button>Sign In</button></form><p>Total Views $3,456K</p></body></html>`

const loginReply = `{"actions":[{"description":"Sign in","process":"enter email, then click 'Sign In'"}],"info":[{"description":"Total Views is $3,456K."}]}`

// fakeOllama answers /api/chat with reply, echoing the requested model.
func fakeOllama(t *testing.T, reply string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var req struct {
			Model string `json:"model"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		resp := map[string]any{
			"model":             req.Model,
			"message":           map[string]string{"role": "assistant", "content": reply},
			"done":              true,
			"done_reason":       "stop",
			"prompt_eval_count": 10,
			"eval_count":        5,
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

// isolate keeps the host's keys and config file out of the run.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	for _, env := range []string{"OLLAMA_API_KEY", "OPENROUTER_API_KEY", "ANTHROPIC_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY", "HELICONE_API_KEY"} {
		t.Setenv(env, "")
	}
}

func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writePage(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"", 0, false},
		{"0", 0, false},
		{"100KB", 100_000, false},
		{"1MiB", 1 << 20, false},
		{" 512 ", 512, false},
		{"lots", 0, true},
	}
	for _, tt := range tests {
		got, err := parseSize(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestFailureMessage(t *testing.T) {
	assert.Equal(t, noResultMessage, failureMessage(fmt.Errorf("%w: retries exhausted", classify.ErrExtractionFailed)))
	assert.Equal(t, assert.AnError.Error(), failureMessage(assert.AnError))
}

func TestExtract_File(t *testing.T) {
	isolate(t)
	srv, _ := fakeOllama(t, loginReply)
	page := writePage(t, "login.html", loginPage)

	stdout, _, err := run(t, "", "extract", page, "-p", "ollama", "--base-url", srv.URL, "--include-metadata", "-q")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &got), stdout)
	assert.Len(t, got["actions"], 1)
	assert.Len(t, got["info"], 1)
	meta, ok := got["_metadata"].(map[string]any)
	require.True(t, ok, stdout)
	assert.Equal(t, page, meta["source"])
	assert.Equal(t, "ollama", meta["provider"])
}

func TestExtract_BareFeatures(t *testing.T) {
	isolate(t)
	srv, _ := fakeOllama(t, loginReply)
	page := writePage(t, "login.html", loginPage)

	stdout, _, err := run(t, "", "extract", page, "-p", "ollama", "--base-url", srv.URL, "-q")
	require.NoError(t, err)
	assert.JSONEq(t, loginReply, stdout)
}

func TestExtract_StdinText(t *testing.T) {
	isolate(t)
	srv, _ := fakeOllama(t, loginReply)

	stdout, _, err := run(t, loginPage, "extract", "-", "-p", "ollama", "--base-url", srv.URL, "--format", "text", "-q")
	require.NoError(t, err)
	assert.Contains(t, stdout, "== stdin ==")
	assert.Contains(t, stdout, "\nAction\n")
	assert.Contains(t, stdout, "1. Sign in\n   Process: enter email, then click 'Sign In'")
	assert.Contains(t, stdout, "\nInformation\n")
	assert.Contains(t, stdout, "- Total Views is $3,456K.")
}

func TestExtract_InvalidReplyFails(t *testing.T) {
	isolate(t)
	srv, calls := fakeOllama(t, `{"actions":null}`)
	page := writePage(t, "login.html", loginPage)

	stdout, stderr, err := run(t, "", "extract", page, "-p", "ollama", "--base-url", srv.URL, "--max-retries", "1", "-q")
	require.Error(t, err)
	assert.Empty(t, strings.TrimSpace(stdout))
	assert.Contains(t, stderr, noResultMessage)
	assert.EqualValues(t, 2, calls.Load())
}

func TestExtract_EmptyFile(t *testing.T) {
	isolate(t)
	srv, calls := fakeOllama(t, loginReply)
	page := writePage(t, "empty.html", "   ")

	_, stderr, err := run(t, "", "extract", page, "-p", "ollama", "--base-url", srv.URL, "-q")
	require.Error(t, err)
	assert.Contains(t, stderr, "invalid input")
	assert.Zero(t, calls.Load())
}

func TestExtract_TrainingData(t *testing.T) {
	isolate(t)
	srv, _ := fakeOllama(t, loginReply)
	page := writePage(t, "login.html", loginPage)
	trainPath := filepath.Join(t.TempDir(), "train.jsonl")

	_, _, err := run(t, "", "extract", page, "-p", "ollama", "--base-url", srv.URL, "--save-training-data", trainPath, "-q")
	require.NoError(t, err)

	data, err := os.ReadFile(trainPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var ex output.TrainingExample
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &ex))
	assert.Equal(t, page, ex.Source)
	assert.Contains(t, ex.Input, "<button>Sign In</button>")
	require.NotNil(t, ex.Output)
	assert.Len(t, ex.Output.Actions, 1)
}

func TestExtract_ConfigFileProviderSettings(t *testing.T) {
	isolate(t)
	srv, _ := fakeOllama(t, loginReply)
	page := writePage(t, "login.html", loginPage)

	cfg := filepath.Join(t.TempDir(), "sopgen.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte(`
provider: ollama
fallback_order: [ollama]
quiet: true
providers:
  ollama:
    base_url: `+srv.URL+`
    model: tiny-model
`), 0o644))

	stdout, _, err := run(t, "", "extract", page, "--config", cfg, "--include-metadata", "--format", "jsonl")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(stdout)), &got), stdout)
	meta := got["_metadata"].(map[string]any)
	assert.Equal(t, "tiny-model", meta["model"])
}

func TestExtract_EnvOverrides(t *testing.T) {
	isolate(t)
	srv, _ := fakeOllama(t, loginReply)
	page := writePage(t, "login.html", loginPage)
	t.Setenv("SOPGEN_PROVIDER", "ollama")
	t.Setenv("SOPGEN_BASE_URL", srv.URL)
	t.Setenv("SOPGEN_MODEL", "env-model")

	stdout, _, err := run(t, "", "extract", page, "--include-metadata", "-q")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &got), stdout)
	assert.Equal(t, "env-model", got["_metadata"].(map[string]any)["model"])
}

func TestExtract_UnsupportedFormat(t *testing.T) {
	isolate(t)
	page := writePage(t, "login.html", loginPage)

	_, _, err := run(t, "", "extract", page, "--format", "xml", "-q")
	assert.ErrorIs(t, err, output.ErrUnsupportedFormat)
}

func TestExtract_MissingConfigFile(t *testing.T) {
	isolate(t)

	_, _, err := run(t, "", "extract", "x.html", "--config", filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestSchemaCmd(t *testing.T) {
	isolate(t)

	stdout, _, err := run(t, "", "schema")
	require.NoError(t, err)
	assert.Contains(t, stdout, `"actions"`)
	assert.Contains(t, stdout, "## Output Structure")

	stdout, _, err = run(t, "", "schema", "--json")
	require.NoError(t, err)
	var js map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &js))
	assert.ElementsMatch(t, []any{"actions", "info"}, js["required"])
}

func TestVersionCmd(t *testing.T) {
	isolate(t)

	stdout, _, err := run(t, "", "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, version.String()+"\n", stdout)
}

func TestWatchCmd_RequiresDir(t *testing.T) {
	isolate(t)

	_, _, err := run(t, "", "watch")
	assert.Error(t, err)
}
