package extractor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/amitmahapatrav5/genai-sop-generator/pkg/schema"
)

// maxUnwrapDepth bounds how many wrapper layers Coerce peels off.
const maxUnwrapDepth = 4

var errNoJSON = errors.New("reply does not contain a JSON object")

// Coerce normalizes a raw model reply into a JSON object shaped like s.
// It strips markdown fences and surrounding prose, then peels off the
// wrappers tool-calling models tend to add:
//
//	[{...}]                           one-element array
//	{"responses":[{...}]}             batched tool responses
//	{"name":"Features","arguments":"{...}"}
//	{"Features":{...}}                single-key tool wrapper
//
// Finally a field written with a trailing underscore ("info_") is renamed to
// the schema field it aliases. Coerce never invents data; anything it cannot
// make sense of is returned as an error for retry feedback.
func Coerce(raw string, s schema.Schema) (string, error) {
	out, err := extractJSON(raw)
	if err != nil {
		return "", err
	}

	fields := fieldNames(s)

	for depth := 0; depth < maxUnwrapDepth; depth++ {
		next, changed, err := unwrapOnce(out, fields)
		if err != nil {
			return "", err
		}
		if !changed {
			break
		}
		out = next
	}

	if !gjson.Parse(out).IsObject() {
		return "", fmt.Errorf("expected a JSON object, got %s", describe(gjson.Parse(out)))
	}

	return renameAliases(out, fields)
}

// extractJSON strips fences and cuts the reply to its outermost JSON value.
func extractJSON(raw string) (string, error) {
	s := StripMarkdownCodeBlock(raw)
	if s == "" {
		return "", errors.New("reply is empty")
	}
	if gjson.Valid(s) {
		return s, nil
	}

	start := strings.IndexAny(s, "{[")
	end := strings.LastIndexAny(s, "}]")
	if start < 0 || end <= start {
		return "", errNoJSON
	}
	s = s[start : end+1]
	if !gjson.Valid(s) {
		return "", fmt.Errorf("reply is not valid JSON: %s", truncateForError(s))
	}
	return s, nil
}

// unwrapOnce removes one wrapper layer, if any.
func unwrapOnce(doc string, fields map[string]bool) (string, bool, error) {
	r := gjson.Parse(doc)

	if r.IsArray() {
		items := r.Array()
		if len(items) != 1 {
			return "", false, fmt.Errorf("expected a JSON object, got an array of %d elements", len(items))
		}
		return items[0].Raw, true, nil
	}
	if !r.IsObject() {
		return "", false, fmt.Errorf("expected a JSON object, got %s", describe(r))
	}

	if !fields["responses"] {
		if resp := r.Get("responses"); resp.IsArray() {
			items := resp.Array()
			if len(items) == 0 {
				return "", false, errors.New("tool reply contains no responses")
			}
			return items[0].Raw, true, nil
		}
	}

	if !fields["arguments"] {
		args := r.Get("arguments")
		switch {
		case args.Type == gjson.String && gjson.Valid(args.Str):
			return args.Str, true, nil
		case args.IsObject():
			return args.Raw, true, nil
		}
	}

	// {"Features": {...}}: a single key that is not itself a schema field.
	var keys []string
	var only gjson.Result
	r.ForEach(func(k, v gjson.Result) bool {
		keys = append(keys, k.String())
		only = v
		return true
	})
	if len(keys) == 1 && !fields[keys[0]] && !fields[strings.TrimSuffix(keys[0], "_")] && only.IsObject() {
		return only.Raw, true, nil
	}

	return doc, false, nil
}

// renameAliases rewrites "<field>_" keys to "<field>" when the schema has that
// field and the reply does not already carry it.
func renameAliases(doc string, fields map[string]bool) (string, error) {
	r := gjson.Parse(doc)

	type alias struct{ from, to, raw string }
	var aliases []alias
	r.ForEach(func(k, v gjson.Result) bool {
		key := k.String()
		if !strings.HasSuffix(key, "_") || strings.ContainsAny(key, ".*?|#@\\") {
			return true
		}
		base := strings.TrimRight(key, "_")
		if fields[base] && !r.Get(base).Exists() {
			aliases = append(aliases, alias{from: key, to: base, raw: v.Raw})
		}
		return true
	})

	var err error
	for _, a := range aliases {
		if doc, err = sjson.SetRaw(doc, a.to, a.raw); err != nil {
			return "", fmt.Errorf("rename %s: %w", a.from, err)
		}
		if doc, err = sjson.Delete(doc, a.from); err != nil {
			return "", fmt.Errorf("rename %s: %w", a.from, err)
		}
	}
	return doc, nil
}

func fieldNames(s schema.Schema) map[string]bool {
	m := make(map[string]bool, len(s.Fields))
	for _, f := range s.Fields {
		m[f.Name] = true
	}
	return m
}

func describe(r gjson.Result) string {
	switch r.Type {
	case gjson.String:
		return "a string"
	case gjson.Number:
		return "a number"
	case gjson.True, gjson.False:
		return "a boolean"
	case gjson.Null:
		return "null"
	}
	if r.IsArray() {
		return "an array"
	}
	return "an unknown value"
}

// truncateForError truncates content for error messages.
func truncateForError(s string) string {
	if len(s) <= 200 {
		return s
	}
	return s[:200] + "..."
}
