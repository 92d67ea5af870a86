//go:build cgo && ocr

package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/otiai10/gosseract/v2"
)

// GosseractEngine runs tesseract in-process through libtesseract.
type GosseractEngine struct {
	clientFactory func() *gosseract.Client
	logger        *slog.Logger
}

// NewGosseractEngine constructs an in-process engine.
func NewGosseractEngine(logger *slog.Logger) (*GosseractEngine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	return &GosseractEngine{clientFactory: gosseract.NewClient, logger: logger}, nil
}

func (e *GosseractEngine) Recognize(ctx context.Context, imagePath string, opts Options) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	start := time.Now()
	opts = opts.WithDefaults()

	c := e.clientFactory()
	defer c.Close()

	if opts.TessdataDir != "" {
		if err := c.SetTessdataPrefix(opts.TessdataDir); err != nil {
			return Result{}, fmt.Errorf("set tessdata prefix: %w", err)
		}
	}
	if err := c.SetLanguage(strings.Split(opts.Lang, "+")...); err != nil {
		return Result{}, fmt.Errorf("set languages: %w", err)
	}
	if err := c.SetPageSegMode(gosseract.PageSegMode(opts.PSM)); err != nil {
		return Result{}, fmt.Errorf("set psm: %w", err)
	}
	if opts.DPI > 0 {
		if err := c.SetVariable(gosseract.SettableVariable("user_defined_dpi"), strconv.Itoa(opts.DPI)); err != nil {
			return Result{}, fmt.Errorf("set dpi: %w", err)
		}
	}
	if opts.Whitelist != "" {
		if err := c.SetWhitelist(opts.Whitelist); err != nil {
			return Result{}, fmt.Errorf("set whitelist: %w", err)
		}
	}
	if err := c.SetImage(imagePath); err != nil {
		return Result{}, fmt.Errorf("set image %s: %w", imagePath, err)
	}

	text, err := c.Text()
	if err != nil {
		return Result{}, fmt.Errorf("recognize %s: %w", imagePath, err)
	}
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return Result{}, fmt.Errorf("word boxes %s: %w", imagePath, err)
	}

	words := make([]Word, 0, len(boxes))
	for _, b := range boxes {
		w := strings.TrimSpace(b.Word)
		if w == "" {
			continue
		}
		conf := b.Confidence / 100.0
		if conf < 0 {
			conf = 0
		}
		words = append(words, Word{
			Text:       w,
			Confidence: float32(conf),
			BBox:       BBox{X0: b.Box.Min.X, Y0: b.Box.Min.Y, X1: b.Box.Max.X, Y1: b.Box.Max.Y},
		})
	}

	res := Result{Text: text, Words: words, Confidence: meanConfidence(words)}
	e.logger.Debug("gosseract recognized image",
		"path", imagePath,
		"words", len(words),
		"confidence", res.Confidence,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}
