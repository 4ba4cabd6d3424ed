package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Check is an additional semantic rule run by Validate after struct validation.
// It receives the value produced by Unmarshal.
type Check func(data any) []ValidationError

// Schema defines the structure a result must satisfy.
type Schema struct {
	Name        string  `json:"name" yaml:"name"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty"`
	Fields      []Field `json:"fields" yaml:"fields"`

	target   reflect.Type // Original struct type for unmarshaling
	validate *validator.Validate
	compiled *jsonschema.Schema
	checks   []Check
}

// SchemaOption configures schema creation.
type SchemaOption func(*schemaBuilder)

type schemaBuilder struct {
	description string
	checks      []Check
}

// WithDescription sets the schema description.
func WithDescription(desc string) SchemaOption {
	return func(b *schemaBuilder) {
		b.description = desc
	}
}

// WithCheck adds a semantic check run after struct validation.
func WithCheck(c Check) SchemaOption {
	return func(b *schemaBuilder) {
		b.checks = append(b.checks, c)
	}
}

// NewSchema creates a Schema from a struct type using reflection.
// The JSON Schema used by ValidateJSON is compiled once here.
func NewSchema[T any](opts ...SchemaOption) (Schema, error) {
	var zero T
	t := reflect.TypeOf(zero)
	if t == nil {
		return Schema{}, fmt.Errorf("schema must be created from a struct type, got interface")
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return Schema{}, fmt.Errorf("schema must be created from a struct type, got %v", t.Kind())
	}

	builder := &schemaBuilder{}
	for _, opt := range opts {
		opt(builder)
	}

	fields, err := extractFields(t)
	if err != nil {
		return Schema{}, err
	}

	// Report JSON names so validation feedback matches what the model emits.
	v := validator.New()
	v.RegisterTagNameFunc(getJSONName)
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		return Schema{}, fmt.Errorf("register notblank: %w", err)
	}

	s := Schema{
		Name:        t.Name(),
		Description: builder.description,
		Fields:      fields,
		target:      t,
		validate:    v,
		checks:      builder.checks,
	}

	compiled, err := compileJSONSchema(s)
	if err != nil {
		return Schema{}, err
	}
	s.compiled = compiled

	return s, nil
}

// extractFields recursively extracts field definitions from a struct type.
func extractFields(t reflect.Type) ([]Field, error) {
	fields := make([]Field, 0, t.NumField())

	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() || sf.Tag.Get("json") == "-" {
			continue
		}

		field := Field{
			Name:        getJSONName(sf),
			Description: sf.Tag.Get("description"),
			Required:    !hasOmitempty(sf),
			Validators:  parseValidators(sf.Tag.Get("validate")),
		}

		if examples := sf.Tag.Get("examples"); examples != "" {
			field.Examples = strings.Split(examples, ",")
		}

		fieldType := sf.Type
		if fieldType.Kind() == reflect.Ptr {
			fieldType = fieldType.Elem()
			field.Required = false
		}

		typed, err := extractFieldFromType(fieldType)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", sf.Name, err)
		}
		field.Type = typed.Type
		field.Items = typed.Items
		field.Properties = typed.Properties

		fields = append(fields, field)
	}

	return fields, nil
}

// extractFieldFromType extracts a Field definition from a reflect.Type.
func extractFieldFromType(t reflect.Type) (Field, error) {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	field := Field{}

	switch t.Kind() {
	case reflect.String:
		field.Type = TypeString
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		field.Type = TypeInteger
	case reflect.Float32, reflect.Float64:
		field.Type = TypeNumber
	case reflect.Bool:
		field.Type = TypeBoolean
	case reflect.Slice:
		field.Type = TypeArray
		itemField, err := extractFieldFromType(t.Elem())
		if err != nil {
			return Field{}, err
		}
		field.Items = &itemField
	case reflect.Struct:
		field.Type = TypeObject
		props, err := extractFields(t)
		if err != nil {
			return Field{}, err
		}
		field.Properties = props
	case reflect.Map:
		field.Type = TypeObject
	default:
		return Field{}, fmt.Errorf("unsupported type: %v", t.Kind())
	}

	return field, nil
}

// getJSONName returns the JSON field name from struct tags.
func getJSONName(sf reflect.StructField) string {
	tag := sf.Tag.Get("json")
	if tag == "" {
		return sf.Name
	}
	parts := strings.Split(tag, ",")
	if parts[0] != "" {
		return parts[0]
	}
	return sf.Name
}

// hasOmitempty checks if the json tag contains omitempty.
func hasOmitempty(sf reflect.StructField) bool {
	return strings.Contains(sf.Tag.Get("json"), "omitempty")
}

// parseValidators extracts validator tags.
func parseValidators(tag string) []string {
	if tag == "" {
		return nil
	}
	return strings.Split(tag, ",")
}

// Unmarshal parses JSON into a new value of the target struct type.
// The returned value is a pointer to the struct.
func (s Schema) Unmarshal(data []byte) (any, error) {
	if s.target == nil {
		return nil, fmt.Errorf("schema %q has no target type", s.Name)
	}

	v := reflect.New(s.target).Interface()
	if err := json.Unmarshal(data, v); err != nil {
		return nil, fmt.Errorf("failed to unmarshal: %w", err)
	}
	return v, nil
}

// Validate checks the data against struct validation rules and then runs
// any registered checks.
func (s Schema) Validate(data any) []ValidationError {
	if s.validate == nil || data == nil {
		return nil
	}

	v := reflect.ValueOf(data)
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return []ValidationError{{Field: s.Name, Message: "is required"}}
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil
	}

	var errs []ValidationError
	if err := s.validate.Struct(data); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return []ValidationError{{Field: s.Name, Message: err.Error()}}
		}
		for _, e := range fieldErrs {
			errs = append(errs, ValidationError{
				Field:   fieldPath(e),
				Message: formatValidationError(e),
				Value:   e.Value(),
			})
		}
		// Semantic checks assume a structurally valid value.
		return errs
	}

	for _, check := range s.checks {
		errs = append(errs, check(data)...)
	}
	return errs
}

// fieldPath drops the root struct name from the validator namespace,
// so "Features.actions[0].process" becomes "actions[0].process".
func fieldPath(e validator.FieldError) string {
	ns := e.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return e.Field()
}

// formatValidationError creates a human-readable error message.
func formatValidationError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "notblank":
		return "must not be blank"
	case "min":
		return fmt.Sprintf("must be at least %s", e.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", e.Param())
	default:
		return fmt.Sprintf("failed validation '%s'", e.Tag())
	}
}
