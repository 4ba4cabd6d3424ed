package extractor

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestCoerce(t *testing.T) {
	s := testSchema(t)

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain", `{"items":[],"notes":[]}`, `{"items":[],"notes":[]}`},
		{"fenced", "```json\n{\"items\":[],\"notes\":[]}\n```", `{"items":[],"notes":[]}`},
		{"prose around", "Here you go:\n{\"items\":[],\"notes\":[]}\nHope that helps.", `{"items":[],"notes":[]}`},
		{"tool wrapper", `{"doc":{"items":[],"notes":[]}}`, `{"items":[],"notes":[]}`},
		{"responses", `{"responses":[{"items":[],"notes":[]}]}`, `{"items":[],"notes":[]}`},
		{"one element array", `[{"items":[],"notes":[]}]`, `{"items":[],"notes":[]}`},
		{"string arguments", `{"name":"doc","arguments":"{\"items\":[],\"notes\":[]}"}`, `{"items":[],"notes":[]}`},
		{"object arguments", `{"name":"doc","arguments":{"items":[],"notes":[]}}`, `{"items":[],"notes":[]}`},
		{"alias", `{"items":[],"notes_":[{"description":"x"}]}`, `{"items":[],"notes":[{"description":"x"}]}`},
		{"alias does not override", `{"items":[],"notes":[],"notes_":[{"description":"x"}]}`, `{"items":[],"notes":[],"notes_":[{"description":"x"}]}`},
		{"nested wrappers", "```\n{\"responses\":[{\"doc\":{\"items\":[],\"notes_\":[]}}]}\n```", `{"items":[],"notes":[]}`},
		{"partial object kept", `{"items":[]}`, `{"items":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Coerce(tt.raw, s)
			if err != nil {
				t.Fatalf("Coerce failed: %v", err)
			}
			if !jsonEqual(t, got, tt.want) {
				t.Errorf("Coerce() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestCoerce_Errors(t *testing.T) {
	s := testSchema(t)

	for name, raw := range map[string]string{
		"empty":          "   ",
		"no json":        "I could not find any features.",
		"broken json":    `{"items":[`,
		"many elements":  `[{"items":[]},{"items":[]}]`,
		"scalar":         `"items"`,
		"empty response": `{"responses":[]}`,
	} {
		t.Run(name, func(t *testing.T) {
			if got, err := Coerce(raw, s); err == nil {
				t.Errorf("expected error, got %s", got)
			}
		})
	}
}

func TestStripMarkdownCodeBlock(t *testing.T) {
	tests := map[string]string{
		"```json\n{}\n```": "{}",
		"```\n{}\n```":     "{}",
		"  {}  ":           "{}",
		"{\"a\":\"```\"}":  "{\"a\":\"```\"}",
	}
	for in, want := range tests {
		if got := StripMarkdownCodeBlock(in); got != want {
			t.Errorf("StripMarkdownCodeBlock(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTruncateContent(t *testing.T) {
	if got := TruncateContent("abcdef", 0); got != "abcdef" {
		t.Errorf("no limit should keep content, got %q", got)
	}
	if got := TruncateContent("abcdef", 3); got != "abc\n\n[Content truncated due to length...]" {
		t.Errorf("unexpected truncation: %q", got)
	}

	got := TruncateContent("Total Views €3,456K", 14)
	if !utf8.ValidString(got) {
		t.Errorf("truncation split a rune: %q", got)
	}
	if !strings.HasPrefix(got, "Total Views \n\n[Content truncated") {
		t.Errorf("expected cut before the euro sign, got %q", got)
	}
	if got := TruncateContent("Total Views €3,456K", 15); !strings.HasPrefix(got, "Total Views €\n\n") {
		t.Errorf("expected the whole euro sign kept, got %q", got)
	}
}

func jsonEqual(t *testing.T, a, b string) bool {
	t.Helper()
	var av, bv any
	if err := json.Unmarshal([]byte(a), &av); err != nil {
		t.Fatalf("invalid JSON %s: %v", a, err)
	}
	if err := json.Unmarshal([]byte(b), &bv); err != nil {
		t.Fatalf("invalid JSON %s: %v", b, err)
	}
	return reflect.DeepEqual(av, bv)
}
