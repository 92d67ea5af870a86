// Package schema defines extraction schemas: an ordered list of fields, each
// resolved by regex, page region or anchor template.
package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidPattern is returned when a field regex does not compile.
var ErrInvalidPattern = errors.New("invalid field pattern")

// Schema is an ordered set of fields to extract from a document.
type Schema struct {
	Name        string  `json:"name,omitempty" yaml:"name,omitempty"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty"`
	Fields      []Field `json:"fields" yaml:"fields"`
}

// Field is one named value. At most one of Regex, Region and Template is
// expected; see Mode for the precedence applied when several are set.
// Value is a sample used at authoring time to derive Regex.
type Field struct {
	Name     string    `json:"name" yaml:"name"`
	Regex    string    `json:"regex,omitempty" yaml:"regex,omitempty"`
	Region   *Region   `json:"region,omitempty" yaml:"region,omitempty"`
	Template *Template `json:"template,omitempty" yaml:"template,omitempty"`
	Value    string    `json:"value,omitempty" yaml:"value,omitempty"`
}

// Region is a rectangle on a rendered page. Page is 1-based; 0 means page 1.
type Region struct {
	Page   int `json:"page,omitempty" yaml:"page,omitempty"`
	X      int `json:"x" yaml:"x"`
	Y      int `json:"y" yaml:"y"`
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// PageIndex returns the 0-based page index.
func (r Region) PageIndex() int {
	if r.Page <= 0 {
		return 0
	}
	return r.Page - 1
}

// Template locates ReferenceText and reads the rectangle at the given offset
// from the anchor's top-left corner. Zero Width/Height take defaults.
type Template struct {
	ReferenceText string `json:"referenceText" yaml:"referenceText"`
	OffsetX       int    `json:"offsetX,omitempty" yaml:"offsetX,omitempty"`
	OffsetY       int    `json:"offsetY,omitempty" yaml:"offsetY,omitempty"`
	Width         int    `json:"width,omitempty" yaml:"width,omitempty"`
	Height        int    `json:"height,omitempty" yaml:"height,omitempty"`
}

// Mode is the extraction strategy of a field.
type Mode int

const (
	ModeFullPage Mode = iota
	ModeRegex
	ModeRegion
	ModeTemplate
)

func (m Mode) String() string {
	switch m {
	case ModeRegex:
		return "regex"
	case ModeRegion:
		return "region"
	case ModeTemplate:
		return "template"
	case ModeFullPage:
		return "full_page"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Mode applies the fixed precedence region > template > regex > full page.
func (f Field) Mode() Mode {
	switch {
	case f.Region != nil:
		return ModeRegion
	case f.Template != nil:
		return ModeTemplate
	case f.Regex != "":
		return ModeRegex
	default:
		return ModeFullPage
	}
}

// Ambiguous reports whether more than one mode is populated.
func (f Field) Ambiguous() bool {
	n := 0
	if f.Region != nil {
		n++
	}
	if f.Template != nil {
		n++
	}
	if f.Regex != "" {
		n++
	}
	return n > 1
}

// FieldNames returns field names in schema order.
func (s *Schema) FieldNames() []string {
	names := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		names = append(names, f.Name)
	}
	return names
}

// Parse decodes a JSON or YAML schema and validates it.
func Parse(data []byte) (*Schema, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty schema", ErrInvalidSchema)
	}
	if trimmed[0] == '{' {
		return parseJSON(trimmed)
	}
	return parseYAML(trimmed)
}

// Load reads a schema file. .json is decoded as JSON, .yaml/.yml as YAML,
// anything else is sniffed.
func Load(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema %s: %w", path, err)
	}
	var s *Schema
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		s, err = parseJSON(data)
	case ".yaml", ".yml":
		s, err = parseYAML(data)
	default:
		s, err = Parse(data)
	}
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", path, err)
	}
	return s, nil
}

func parseJSON(data []byte) (*Schema, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: decode json: %v", ErrInvalidSchema, err)
	}
	if err := validateDocument(raw); err != nil {
		return nil, err
	}
	var s Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: decode json: %v", ErrInvalidSchema, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func parseYAML(data []byte) (*Schema, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: decode yaml: %v", ErrInvalidSchema, err)
	}
	// round-trip through JSON so the validator sees plain JSON values
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: yaml is not json compatible: %v", ErrInvalidSchema, err)
	}
	return parseJSON(b)
}
