// Package extract resolves schema fields against the page images of one
// document. Each strategy returns (value, found, err): a missing value is not
// an error, err is reserved for OCR and image failures.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/joseph-ayodele/docfields/internal/common"
	"github.com/joseph-ayodele/docfields/internal/imageproc"
	"github.com/joseph-ayodele/docfields/internal/metrics"
	"github.com/joseph-ayodele/docfields/internal/ocr"
	"github.com/joseph-ayodele/docfields/internal/schema"
)

var (
	// ErrRegionOutOfBounds is returned when a region lies outside its page.
	ErrRegionOutOfBounds = errors.New("region outside page")
	// ErrInvalidPattern aliases the schema sentinel for callers of this package.
	ErrInvalidPattern = schema.ErrInvalidPattern
	// ErrUnknownMode is returned for a field mode with no strategy.
	ErrUnknownMode = errors.New("unknown extraction mode")
)

// Extractor runs the field strategies. Pages are processed sequentially.
type Extractor struct {
	engine  OCREngine
	images  ImageProcessor
	opts    ocr.Options
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewExtractor(engine OCREngine, images ImageProcessor, opts ocr.Options, logger *slog.Logger, m *metrics.Metrics) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{engine: engine, images: images, opts: opts.WithDefaults(), logger: logger, metrics: m}
}

// Field dispatches to the strategy selected by f.Mode().
func (e *Extractor) Field(ctx context.Context, pages []string, f schema.Field) (string, bool, error) {
	mode := f.Mode()
	if f.Ambiguous() {
		e.logger.Warn("extract.field.ambiguous",
			"document_id", common.DocumentIDFromContext(ctx),
			"field", f.Name,
			"mode", mode.String(),
		)
	}

	var (
		value string
		found bool
		err   error
	)
	switch mode {
	case schema.ModeRegion:
		value, found, err = e.Region(ctx, pages, *f.Region)
	case schema.ModeTemplate:
		value, found, err = e.Template(ctx, pages, *f.Template)
	case schema.ModeRegex:
		value, found, err = e.Regex(ctx, pages, f.Regex)
	case schema.ModeFullPage:
		value, found, err = e.FullPage(ctx, pages)
	default:
		err = fmt.Errorf("%w: %s", ErrUnknownMode, mode)
	}

	switch {
	case err != nil:
		e.metrics.RecordField(mode.String(), metrics.OutcomeError)
		return "", false, fmt.Errorf("field %q (%s): %w", f.Name, mode, err)
	case found:
		e.metrics.RecordField(mode.String(), metrics.OutcomeFound)
	default:
		e.metrics.RecordField(mode.String(), metrics.OutcomeMissing)
	}
	e.logger.Debug("extract.field.done",
		"document_id", common.DocumentIDFromContext(ctx),
		"field", f.Name,
		"mode", mode.String(),
		"found", found,
	)
	return value, found, nil
}

// RecognizePage preprocesses and recognizes one page. Word boxes are mapped
// back to the coordinates of the page image itself.
func (e *Extractor) RecognizePage(ctx context.Context, page string) (ocr.Result, error) {
	pre, err := e.images.Preprocess(ctx, page)
	if err != nil {
		return ocr.Result{}, fmt.Errorf("preprocess: %w", err)
	}
	defer closeImage(e.logger, pre)

	res, err := e.engine.Recognize(ctx, pre.Path, scaledOptions(e.opts, pre.ScaleY))
	if err != nil {
		return ocr.Result{}, fmt.Errorf("ocr: %w", err)
	}
	for i := range res.Words {
		res.Words[i].BBox = res.Words[i].BBox.Unscale(pre.ScaleX, pre.ScaleY)
	}
	return res, nil
}

// recognizeCrop cuts r from page and recognizes it without preprocessing.
func (e *Extractor) recognizeCrop(ctx context.Context, page string, r imageproc.Rect) (string, error) {
	crop, err := e.images.Crop(ctx, page, r)
	if err != nil {
		if errors.Is(err, imageproc.ErrEmptyCrop) {
			return "", fmt.Errorf("%w: %w", ErrRegionOutOfBounds, err)
		}
		return "", fmt.Errorf("crop: %w", err)
	}
	defer closeImage(e.logger, crop)

	res, err := e.engine.Recognize(ctx, crop.Path, e.opts)
	if err != nil {
		return "", fmt.Errorf("ocr: %w", err)
	}
	return res.Text, nil
}

// scaledOptions raises the DPI hint to match an image enlarged by scale.
func scaledOptions(opts ocr.Options, scale float64) ocr.Options {
	if opts.DPI > 0 && scale > 1 {
		opts.DPI = int(math.Round(float64(opts.DPI) * scale))
	}
	return opts
}

func closeImage(logger *slog.Logger, img *imageproc.Image) {
	if err := img.Close(); err != nil {
		logger.Warn("extract.temp_image.remove_failed", "path", img.Path, "err", err)
	}
}
