package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/joseph-ayodele/docfields/internal/ocr"
)

// FullPage returns the normalized text of every page, separated by a blank line.
func (e *Extractor) FullPage(ctx context.Context, pages []string) (string, bool, error) {
	if len(pages) == 0 {
		return "", false, nil
	}
	texts := make([]string, 0, len(pages))
	for i, page := range pages {
		res, err := e.RecognizePage(ctx, page)
		if err != nil {
			return "", false, fmt.Errorf("page %d: %w", i+1, err)
		}
		texts = append(texts, ocr.Normalize(res.Text))
	}
	return strings.Join(texts, "\n\n"), true, nil
}
