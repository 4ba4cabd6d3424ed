// Package schema provides structured result schema definitions for LLM extraction.
package schema

// FieldType represents the type of a schema field.
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeNumber  FieldType = "number"
	TypeInteger FieldType = "integer"
	TypeBoolean FieldType = "boolean"
	TypeArray   FieldType = "array"
	TypeObject  FieldType = "object"
)

// Field represents a single field in the schema.
type Field struct {
	Name        string    `json:"name,omitempty" yaml:"name,omitempty"`
	Type        FieldType `json:"type" yaml:"type"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Required    bool      `json:"required,omitempty" yaml:"required,omitempty"`
	Items       *Field    `json:"items,omitempty" yaml:"items,omitempty"`           // For array types
	Properties  []Field   `json:"properties,omitempty" yaml:"properties,omitempty"` // For object types
	Validators  []string  `json:"validators,omitempty" yaml:"validators,omitempty"` // validate tag entries
	Examples    []string  `json:"examples,omitempty" yaml:"examples,omitempty"`
}

// NonEmpty reports whether a string field must carry at least one
// non-whitespace character.
func (f Field) NonEmpty() bool {
	if f.Type != TypeString {
		return false
	}
	for _, v := range f.Validators {
		if v == "required" || v == "notblank" {
			return true
		}
	}
	return false
}

// ValidationError represents a validation failure.
type ValidationError struct {
	Field   string
	Message string
	Value   any
}

func (e ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
