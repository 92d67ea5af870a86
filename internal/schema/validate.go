package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrInvalidSchema is returned for schemas that fail structural validation.
var ErrInvalidSchema = errors.New("invalid schema")

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

// documentJSONSchema describes the accepted schema document as a JSON-Schema map.
func documentJSONSchema() map[string]any {
	nonNegInt := map[string]any{"type": "integer", "minimum": 0}
	posInt := map[string]any{"type": "integer", "minimum": 1}

	region := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"page":   posInt,
			"x":      nonNegInt,
			"y":      nonNegInt,
			"width":  posInt,
			"height": posInt,
		},
		"required": []string{"x", "y", "width", "height"},
	}
	template := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"referenceText": map[string]any{"type": "string", "minLength": 1},
			"offsetX":       map[string]any{"type": "integer"},
			"offsetY":       map[string]any{"type": "integer"},
			"width":         nonNegInt,
			"height":        nonNegInt,
		},
		"required": []string{"referenceText"},
	}
	field := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"name":     map[string]any{"type": "string", "minLength": 1},
			"regex":    map[string]any{"type": "string"},
			"region":   region,
			"template": template,
			"value":    map[string]any{"type": "string"},
		},
		"required": []string{"name"},
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"name":        map[string]any{"type": "string"},
			"description": map[string]any{"type": "string"},
			"fields":      map[string]any{"type": "array", "items": field},
		},
		"required": []string{"fields"},
	}
}

func documentValidator() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		b, err := json.Marshal(documentJSONSchema())
		if err != nil {
			compileErr = fmt.Errorf("marshal schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
			compileErr = fmt.Errorf("add schema: %w", err)
			return
		}
		compiled, compileErr = compiler.Compile("schema.json")
	})
	return compiled, compileErr
}

// validateDocument checks a decoded JSON value against documentJSONSchema.
func validateDocument(v any) error {
	s, err := documentValidator()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}
	return nil
}

// Validate checks field names are present and unique, geometry is sane and
// every regex compiles.
func (s *Schema) Validate() error {
	seen := make(map[string]struct{}, len(s.Fields))
	for i, f := range s.Fields {
		if f.Name == "" {
			return fmt.Errorf("%w: field %d has no name", ErrInvalidSchema, i)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("%w: duplicate field name %q", ErrInvalidSchema, f.Name)
		}
		seen[f.Name] = struct{}{}

		if f.Regex != "" {
			if _, err := CompilePattern(f.Regex); err != nil {
				return fmt.Errorf("field %q: %w", f.Name, err)
			}
		}
		if r := f.Region; r != nil {
			if r.Page < 0 || r.X < 0 || r.Y < 0 || r.Width <= 0 || r.Height <= 0 {
				return fmt.Errorf("%w: field %q: region %+v", ErrInvalidSchema, f.Name, *r)
			}
		}
		if t := f.Template; t != nil {
			if t.ReferenceText == "" || t.Width < 0 || t.Height < 0 {
				return fmt.Errorf("%w: field %q: template %+v", ErrInvalidSchema, f.Name, *t)
			}
		}
	}
	return nil
}

// CompilePattern compiles a field regex for case-insensitive matching.
func CompilePattern(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidPattern, pattern, err)
	}
	return re, nil
}
