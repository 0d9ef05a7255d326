package ai

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Schema is a compiled JSON schema for model output.
type Schema struct {
	name   string
	schema *gojsonschema.Schema
}

// FieldError describes one schema violation.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError lists every violation found in a document.
type ValidationError struct {
	Schema string
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Field, fe.Message))
	}
	return fmt.Sprintf("%s validation failed: %s", e.Schema, strings.Join(parts, "; "))
}

// NewSchema compiles a JSON schema document.
func NewSchema(name, document string) (*Schema, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(document))
	if err != nil {
		return nil, fmt.Errorf("compile %s schema: %w", name, err)
	}
	return &Schema{name: name, schema: s}, nil
}

// MustSchema is NewSchema for package-level schemas.
func MustSchema(name, document string) *Schema {
	s, err := NewSchema(name, document)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Schema) Name() string { return s.name }

// Validate checks a raw JSON document.
func (s *Schema) Validate(doc []byte) error {
	res, err := s.schema.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("%s: invalid json: %w", s.name, err)
	}
	if res.Valid() {
		return nil
	}

	ve := &ValidationError{Schema: s.name}
	for _, re := range res.Errors() {
		ve.Errors = append(ve.Errors, FieldError{Field: re.Field(), Message: re.Description()})
	}
	return ve
}
