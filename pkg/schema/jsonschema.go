package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ToJSONSchema converts the schema to JSON Schema format for LLM structured output.
func (s Schema) ToJSONSchema() (map[string]any, error) {
	properties := make(map[string]any)
	required := make([]string, 0)

	for _, field := range s.Fields {
		properties[field.Name] = fieldToJSONSchema(field)
		if field.Required {
			required = append(required, field.Name)
		}
	}

	schema := map[string]any{
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": false, // Required for strict mode (OpenAI)
	}

	if len(required) > 0 {
		schema["required"] = required
	}

	if s.Description != "" {
		schema["description"] = s.Description
	}

	return schema, nil
}

// nonBlankPattern rejects strings made only of whitespace.
const nonBlankPattern = `\S`

// fieldToJSONSchema converts a Field to JSON Schema format.
func fieldToJSONSchema(f Field) map[string]any {
	schema := map[string]any{
		"type": string(f.Type),
	}

	if f.Description != "" {
		schema["description"] = f.Description
	}

	if len(f.Examples) > 0 {
		schema["examples"] = f.Examples
	}

	if f.NonEmpty() {
		schema["minLength"] = 1
		schema["pattern"] = nonBlankPattern
	}

	if f.Type == TypeArray && f.Items != nil {
		schema["items"] = fieldToJSONSchema(*f.Items)
	}

	if f.Type == TypeObject && len(f.Properties) > 0 {
		props := make(map[string]any)
		req := make([]string, 0)
		for _, p := range f.Properties {
			props[p.Name] = fieldToJSONSchema(p)
			if p.Required {
				req = append(req, p.Name)
			}
		}
		schema["properties"] = props
		schema["additionalProperties"] = false
		if len(req) > 0 {
			schema["required"] = req
		}
	}

	return schema
}

const compiledResource = "schema.json"

// compileJSONSchema compiles the generated JSON Schema for ValidateJSON.
func compileJSONSchema(s Schema) (*jsonschema.Schema, error) {
	doc, err := s.ToJSONSchema()
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(compiledResource, bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	compiled, err := compiler.Compile(compiledResource)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return compiled, nil
}

// ValidateJSON validates a raw JSON document against the compiled JSON Schema.
// Unlike Validate it sees the document before decoding, so a missing or null
// list is reported instead of being decoded into a zero value.
func (s Schema) ValidateJSON(data []byte) []ValidationError {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return []ValidationError{{Field: "(root)", Message: "invalid JSON: " + err.Error()}}
	}
	if s.compiled == nil {
		return nil
	}

	err := s.compiled.Validate(v)
	if err == nil {
		return nil
	}

	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []ValidationError{{Field: "(root)", Message: err.Error()}}
	}

	var errs []ValidationError
	for _, leaf := range leafCauses(ve) {
		errs = append(errs, ValidationError{
			Field:   instancePath(leaf.InstanceLocation),
			Message: leaf.Message,
		})
	}
	sort.SliceStable(errs, func(i, j int) bool { return errs[i].Field < errs[j].Field })
	return errs
}

// leafCauses flattens the validation error tree to its most specific causes.
func leafCauses(ve *jsonschema.ValidationError) []*jsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*jsonschema.ValidationError{ve}
	}
	var out []*jsonschema.ValidationError
	for _, c := range ve.Causes {
		out = append(out, leafCauses(c)...)
	}
	return out
}

// instancePath turns a JSON pointer such as "/actions/0/process" into
// "actions[0].process".
func instancePath(ptr string) string {
	ptr = strings.TrimPrefix(ptr, "/")
	if ptr == "" {
		return "(root)"
	}
	var sb strings.Builder
	for i, part := range strings.Split(ptr, "/") {
		if isIndex(part) {
			sb.WriteString("[" + part + "]")
			continue
		}
		if i > 0 {
			sb.WriteString(".")
		}
		sb.WriteString(part)
	}
	return sb.String()
}

func isIndex(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ToPromptDescription generates a human-readable description for the LLM prompt.
func (s Schema) ToPromptDescription() string {
	var sb strings.Builder

	sb.WriteString("## Output Structure: ")
	sb.WriteString(s.Name)
	sb.WriteString("\n")
	if s.Description != "" {
		sb.WriteString(s.Description)
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	for _, field := range s.Fields {
		writeFieldDescription(&sb, field, 0)
	}

	return sb.String()
}

// writeFieldDescription writes a field description to the string builder.
func writeFieldDescription(sb *strings.Builder, f Field, indent int) {
	prefix := strings.Repeat("  ", indent)

	sb.WriteString(prefix)
	sb.WriteString("- ")
	sb.WriteString(f.Name)
	sb.WriteString(" (")
	sb.WriteString(string(f.Type))
	if f.Required {
		sb.WriteString(", required")
	}
	sb.WriteString(")")

	if f.Description != "" {
		sb.WriteString(": ")
		sb.WriteString(f.Description)
	}
	sb.WriteString("\n")

	if f.Type == TypeArray && f.Items != nil && f.Items.Type == TypeObject {
		sb.WriteString(prefix)
		sb.WriteString("  Each item:\n")
		for _, prop := range f.Items.Properties {
			writeFieldDescription(sb, prop, indent+2)
		}
	}

	if f.Type == TypeObject && len(f.Properties) > 0 {
		for _, prop := range f.Properties {
			writeFieldDescription(sb, prop, indent+1)
		}
	}
}
