package completion

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Schema is a compiled JSON schema used to check completion answers.
type Schema struct {
	compiled *jsonschema.Schema
	doc      map[string]any
}

func CompileSchema(schema map[string]any) (*Schema, error) {
	b, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to encode schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("failed to load schema: %w", err)
	}
	compiled, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	return &Schema{compiled: compiled, doc: schema}, nil
}

// MustCompileSchema is CompileSchema for package-level schemas known at build time.
func MustCompileSchema(schema map[string]any) *Schema {
	s, err := CompileSchema(schema)
	if err != nil {
		panic(err)
	}
	return s
}

// Hint returns the schema document, as sent to providers in Request.Schema.
func (s *Schema) Hint() map[string]any {
	return s.doc
}

// Validate checks an already decoded document (as produced by json.Unmarshal into any).
func (s *Schema) Validate(doc any) error {
	if err := s.compiled.Validate(doc); err != nil {
		return fmt.Errorf("does not match schema: %w", err)
	}
	return nil
}

// ValidateJSON decodes raw and validates it.
func (s *Schema) ValidateJSON(raw json.RawMessage) error {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("failed to decode JSON for validation: %w", err)
	}
	return s.Validate(doc)
}
