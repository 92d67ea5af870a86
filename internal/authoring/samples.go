package authoring

import (
	"log/slog"

	"github.com/joseph-ayodele/docfields/internal/schema"
)

// ResolveSamples turns sample-value fields into regex fields. A field that has
// a Value but no regex, region or template gets a regex inferred from the
// value's context in ocrText, or the escaped value itself when the context
// cannot be found. The returned schema is a copy and is validated.
func ResolveSamples(s *schema.Schema, ocrText string, logger *slog.Logger) (*schema.Schema, error) {
	if logger == nil {
		logger = slog.Default()
	}
	out := *s
	out.Fields = make([]schema.Field, len(s.Fields))
	for i, f := range s.Fields {
		if f.Value != "" && f.Mode() == schema.ModeFullPage {
			pattern, ok := InferRegex(ocrText, f.Value, 0)
			if !ok {
				pattern = LiteralRegex(f.Value)
			}
			logger.Debug("authoring.sample.resolved", "field", f.Name, "from_context", ok, "regex", pattern)
			f = schema.Field{Name: f.Name, Regex: pattern}
		}
		out.Fields[i] = f
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return &out, nil
}
