package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/joseph-ayodele/docfields/internal/imageproc"
	"github.com/joseph-ayodele/docfields/internal/schema"
)

// Region recognizes the rectangle r on its page. A page past the end of the
// document is a missing value, not an error.
func (e *Extractor) Region(ctx context.Context, pages []string, r schema.Region) (string, bool, error) {
	idx := r.PageIndex()
	if idx >= len(pages) {
		e.logger.Debug("extract.region.page_out_of_range", "page", idx+1, "pages", len(pages))
		return "", false, nil
	}
	text, err := e.recognizeCrop(ctx, pages[idx], imageproc.Rect{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height})
	if err != nil {
		return "", false, fmt.Errorf("page %d: %w", idx+1, err)
	}
	return strings.TrimSpace(text), true, nil
}
