package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/joseph-ayodele/docfields/constants"
	"github.com/joseph-ayodele/docfields/internal/schema"
)

// Regex returns the first case-insensitive match across pages, using the
// first capture group when the pattern has one. When no page matches, the
// longest literal of the pattern is searched fuzzily in the recognized text.
func (e *Extractor) Regex(ctx context.Context, pages []string, pattern string) (string, bool, error) {
	re, err := schema.CompilePattern(pattern)
	if err != nil {
		return "", false, err
	}

	texts := make([]string, 0, len(pages))
	for i, page := range pages {
		res, err := e.RecognizePage(ctx, page)
		if err != nil {
			return "", false, fmt.Errorf("page %d: %w", i+1, err)
		}
		if m := re.FindStringSubmatch(res.Text); m != nil {
			v := m[0]
			if re.NumSubexp() > 0 {
				v = m[1]
			}
			e.logger.Debug("extract.regex.matched", "page", i+1)
			return strings.TrimSpace(v), true, nil
		}
		texts = append(texts, res.Text)
	}

	target := LiteralTarget(pattern)
	if target == "" {
		return "", false, nil
	}
	for i, text := range texts {
		if v, ok := FindSimilarText(text, target, constants.FuzzyTextSimilarity); ok {
			e.logger.Info("extract.regex.fuzzy_match", "page", i+1, "target", target, "value", v)
			return v, true, nil
		}
	}
	return "", false, nil
}
