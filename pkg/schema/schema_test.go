package schema

import (
	"errors"
	"testing"
)

const templateSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["title", "summary"],
	"properties": {
		"title": {"type": "string", "minLength": 1},
		"summary": {"type": "string"},
		"budget": {"type": "integer", "minimum": 0}
	}
}`

func TestValidateAccepts(t *testing.T) {
	content := []byte(`{"title":"Fund the archive","summary":"long term storage","budget":5000}`)
	if err := Validate([]byte(templateSchema), content); err != nil {
		t.Fatalf("valid content rejected: %v", err)
	}
}

func TestValidateMissingRequired(t *testing.T) {
	content := []byte(`{"title":"no summary"}`)
	err := Validate([]byte(templateSchema), content)
	if !errors.Is(err, ErrViolation) {
		t.Fatalf("expected schema violation, got %v", err)
	}
}

func TestValidateWrongType(t *testing.T) {
	content := []byte(`{"title":"x","summary":"y","budget":-3}`)
	if err := Validate([]byte(templateSchema), content); !errors.Is(err, ErrViolation) {
		t.Fatalf("expected schema violation, got %v", err)
	}
}

func TestValidateBadSchema(t *testing.T) {
	err := Validate([]byte(`{"type": 12}`), []byte(`{}`))
	if !errors.Is(err, ErrInvalidSchema) {
		t.Fatalf("expected invalid schema, got %v", err)
	}
}

func TestValidateBadContent(t *testing.T) {
	err := Validate([]byte(templateSchema), []byte(`{broken`))
	if !errors.Is(err, ErrInvalidContent) {
		t.Fatalf("expected invalid content, got %v", err)
	}
}
