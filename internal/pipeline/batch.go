package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docfields/internal/ocr"
	"github.com/joseph-ayodele/docfields/internal/schema"
)

// PageResult holds the fields found on a single page.
type PageResult struct {
	Page   int // 1-based
	Fields map[string]string
}

// ExtractPages evaluates the schema against each page on its own, producing
// one row per page. Region fields read the current page whatever page they
// name. Document status is not touched.
func (p *Processor) ExtractPages(ctx context.Context, pages []string, s *schema.Schema) ([]PageResult, error) {
	if s == nil {
		return nil, errSchemaRequired()
	}
	fields := make([]schema.Field, len(s.Fields))
	for i, f := range s.Fields {
		if f.Region != nil {
			r := *f.Region
			r.Page = 1
			f.Region = &r
		}
		fields[i] = f
	}

	out := make([]PageResult, 0, len(pages))
	for i, page := range pages {
		values, err := p.evaluate(ctx, []string{page}, fields)
		if err != nil {
			p.Logger.Error("processor.page.failed", "page", i+1, "err", err)
			return nil, fmt.Errorf("page %d: %w", i+1, err)
		}
		out = append(out, PageResult{Page: i + 1, Fields: values})
	}
	return out, nil
}

// BatchItem is one document of a batch run.
type BatchItem struct {
	DocumentID uuid.UUID
	Path       string
}

// BatchResult is the outcome of one batch item; Err is set when its run failed.
type BatchResult struct {
	Item   BatchItem
	Result Result
	Err    error
}

// ExtractBatch runs ExtractFile for each item in order. A failed item does
// not stop the batch.
func (p *Processor) ExtractBatch(ctx context.Context, items []BatchItem, s *schema.Schema) []BatchResult {
	out := make([]BatchResult, 0, len(items))
	failed := 0
	for _, it := range items {
		if err := ctx.Err(); err != nil {
			out = append(out, BatchResult{Item: it, Err: err})
			failed++
			continue
		}
		res, err := p.ExtractFile(ctx, it.DocumentID, it.Path, s)
		if err != nil {
			failed++
		}
		out = append(out, BatchResult{Item: it, Result: res, Err: err})
	}
	p.Logger.Info("processor.batch.done", "documents", len(items), "failed", failed)
	return out
}

// TextResult is the plain text of a document.
type TextResult struct {
	Text       string
	Pages      []string
	PageCount  int
	Confidence float32
}

// ReadText recognizes every page of path. Pages that fail OCR are skipped;
// the call fails only when no page could be read.
func (p *Processor) ReadText(ctx context.Context, path string) (TextResult, error) {
	pages, err := p.Raster.Rasterize(ctx, path)
	if err != nil {
		return TextResult{}, fmt.Errorf("rasterize %s: %w", path, err)
	}
	defer func() {
		if cerr := pages.Close(); cerr != nil {
			p.Logger.Warn("processor.pages.cleanup_failed", "path", path, "err", cerr)
		}
	}()

	res := TextResult{PageCount: pages.Len()}
	var (
		confSum float32
		lastErr error
	)
	for i, page := range pages.Paths {
		r, err := p.Extractor.RecognizePage(ctx, page)
		if err != nil {
			if ctx.Err() != nil {
				return TextResult{}, ctx.Err()
			}
			p.Logger.Warn("processor.text.page_failed", "path", path, "page", i+1, "err", err)
			lastErr = err
			continue
		}
		res.Pages = append(res.Pages, ocr.Normalize(r.Text))
		confSum += r.Confidence
	}
	if len(res.Pages) == 0 && lastErr != nil {
		return TextResult{}, fmt.Errorf("read %s: %w", path, lastErr)
	}
	if len(res.Pages) > 0 {
		res.Confidence = confSum / float32(len(res.Pages))
	}
	res.Text = strings.Join(res.Pages, "\n\n")
	return res, nil
}
