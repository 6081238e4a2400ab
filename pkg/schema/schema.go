// Package schema validates document content against the JSON Schema carried
// by the referenced form template document.
package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var (
	ErrInvalidSchema  = errors.New("template payload is not a valid JSON schema")
	ErrInvalidContent = errors.New("document content is not valid JSON")
	ErrViolation      = errors.New("document content violates the template schema")
)

// Validate checks JSON content against the template's JSON Schema payload.
func Validate(schemaBytes, content []byte) error {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("template.json", bytes.NewReader(schemaBytes)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}
	s, err := compiler.Compile("template.json")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}

	var instance any
	if err := json.Unmarshal(content, &instance); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidContent, err)
	}
	if err := s.Validate(instance); err != nil {
		return fmt.Errorf("%w: %v", ErrViolation, err)
	}
	return nil
}
