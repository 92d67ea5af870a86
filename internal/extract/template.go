package extract

import (
	"context"
	"strings"

	"github.com/joseph-ayodele/docfields/constants"
	"github.com/joseph-ayodele/docfields/internal/imageproc"
	"github.com/joseph-ayodele/docfields/internal/schema"
	"github.com/joseph-ayodele/docfields/internal/wordindex"
)

// Template finds t.ReferenceText and reads the rectangle at the configured
// offset from it. The first page with the anchor wins. Page failures are
// logged and skipped. If the anchor is on no page the value is "" (found);
// if every page failed the value is missing.
func (e *Extractor) Template(ctx context.Context, pages []string, t schema.Template) (string, bool, error) {
	completed := 0
	for i, page := range pages {
		v, anchored, err := e.templatePage(ctx, page, t)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", false, ctxErr
			}
			e.logger.Warn("extract.template.page_failed", "page", i+1, "err", err)
			continue
		}
		completed++
		if anchored {
			return v, true, nil
		}
	}
	if completed == 0 && len(pages) > 0 {
		return "", false, nil
	}
	e.logger.Warn("extract.template.anchor_not_found", "reference_text", t.ReferenceText, "pages", len(pages))
	return "", true, nil
}

func (e *Extractor) templatePage(ctx context.Context, page string, t schema.Template) (string, bool, error) {
	res, err := e.RecognizePage(ctx, page)
	if err != nil {
		return "", false, err
	}
	m, ok := wordindex.Locate(res.Words, t.ReferenceText)
	if !ok {
		return "", false, nil
	}

	r := imageproc.Rect{
		X:      max(0, m.BBox.X0+t.OffsetX),
		Y:      max(0, m.BBox.Y0+t.OffsetY),
		Width:  t.Width,
		Height: t.Height,
	}
	if r.Width == 0 {
		r.Width = constants.TemplateDefaultWidth
	}
	if r.Height == 0 {
		r.Height = constants.TemplateDefaultHeight
	}
	e.logger.Debug("extract.template.anchor_found",
		"reference_text", t.ReferenceText,
		"tier", m.Tier.String(),
		"x", r.X, "y", r.Y, "width", r.Width, "height", r.Height,
	)

	text, err := e.recognizeCrop(ctx, page, r)
	if err != nil {
		return "", false, err
	}
	return strings.TrimSpace(text), true, nil
}
