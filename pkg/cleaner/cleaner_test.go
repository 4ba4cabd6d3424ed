package cleaner

import (
	"errors"
	"strings"
	"testing"
)

// --- NoopCleaner Tests ---

func TestNoopCleaner_Clean(t *testing.T) {
	c := NewNoop()

	tests := []struct {
		name  string
		input string
	}{
		{"empty_string", ""},
		{"plain_text", "Hello, World!"},
		{"html_content", "<html><body><h1>Title</h1></body></html>"},
		{"whitespace", "  \n\t  "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Clean(tt.input)
			if err != nil {
				t.Errorf("Clean() error = %v, want nil", err)
			}
			if got != tt.input {
				t.Errorf("Clean() = %q, want %q", got, tt.input)
			}
		})
	}
}

// --- VisibleCleaner Tests ---

const dashboardPage = `<!DOCTYPE html>
<html>
<head><title>Dashboard</title><style>.x{color:red}</style><script>track()</script></head>
<body>
  <!-- build 1234 -->
  <nav aria-hidden="true">skip links</nav>
  <div hidden>Hidden banner</div>
  <div style="display: none">Invisible promo</div>
  <div style="color: blue">Total Views $3,456K</div>
  <form>
    <input type="hidden" name="csrf" value="tok">
    <label>Email <input type="email" name="email"></label>
    <button type="submit">Sign In</button>
  </form>
  <noscript>Enable JavaScript</noscript>
</body>
</html>`

func TestVisibleCleaner_RemovesNonRendered(t *testing.T) {
	got, err := NewVisible().Clean(dashboardPage)
	if err != nil {
		t.Fatalf("Clean() error = %v", err)
	}

	for _, gone := range []string{"track()", "color:red", "build 1234", "skip links", "Hidden banner", "Invisible promo", "csrf", "Enable JavaScript", "<title>"} {
		if strings.Contains(got, gone) {
			t.Errorf("expected %q to be removed, got:\n%s", gone, got)
		}
	}
	for _, kept := range []string{"Total Views $3,456K", `type="email"`, "Sign In", "<label>"} {
		if !strings.Contains(got, kept) {
			t.Errorf("expected %q to be kept, got:\n%s", kept, got)
		}
	}
}

func TestVisibleCleaner_Fragment(t *testing.T) {
	got, err := NewVisible().Clean(`<p>Hello</p><script>x()</script>`)
	if err != nil {
		t.Fatalf("Clean() error = %v", err)
	}
	if got != "<p>Hello</p>" {
		t.Errorf("Clean() = %q, want %q", got, "<p>Hello</p>")
	}
}

func TestVisibleCleaner_Empty(t *testing.T) {
	got, err := NewVisible().Clean("   ")
	if err != nil || got != "" {
		t.Errorf("Clean() = %q, %v; want empty, nil", got, err)
	}
}

// --- ChainCleaner Tests ---

func TestChainCleaner_Empty(t *testing.T) {
	c := NewChain()

	input := "unchanged content"
	got, err := c.Clean(input)
	if err != nil {
		t.Fatalf("Clean() error = %v", err)
	}
	if got != input {
		t.Errorf("Clean() = %q, want %q", got, input)
	}
}

type upperCleaner struct{}

func (upperCleaner) Clean(s string) (string, error) { return strings.ToUpper(s), nil }
func (upperCleaner) Name() string                   { return "upper" }

type failingCleaner struct{}

var errBoom = errors.New("boom")

func (failingCleaner) Clean(string) (string, error) { return "", errBoom }
func (failingCleaner) Name() string                 { return "failing" }

func TestChainCleaner_Order(t *testing.T) {
	c := NewChain(NewVisible(), upperCleaner{})

	got, err := c.Clean("<p>hi</p><script>x</script>")
	if err != nil {
		t.Fatalf("Clean() error = %v", err)
	}
	if got != "<P>HI</P>" {
		t.Errorf("Clean() = %q", got)
	}
	if c.Name() != "chain(visible->upper)" {
		t.Errorf("Name() = %q", c.Name())
	}
}

func TestChainCleaner_StopsOnError(t *testing.T) {
	c := NewChain(failingCleaner{}, upperCleaner{})

	_, err := c.Clean("x")
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected wrapped errBoom, got %v", err)
	}
	if !strings.Contains(err.Error(), "failing cleaner") {
		t.Errorf("error should name the cleaner: %v", err)
	}
}

// --- New Tests ---

func TestNew(t *testing.T) {
	tests := []struct {
		spec string
		want string
	}{
		{"", "visible"},
		{"noop", "noop"},
		{"visible", "visible"},
		{"markdown", "markdown"},
		{"visible, markdown", "chain(visible->markdown)"},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			c, err := New(tt.spec)
			if err != nil {
				t.Fatalf("New(%q) error = %v", tt.spec, err)
			}
			if c.Name() != tt.want {
				t.Errorf("New(%q).Name() = %q, want %q", tt.spec, c.Name(), tt.want)
			}
		})
	}
}

func TestNew_Unknown(t *testing.T) {
	_, err := New("visible,trafilatura")
	if !errors.Is(err, ErrUnknownCleaner) {
		t.Errorf("expected ErrUnknownCleaner, got %v", err)
	}
}
