// Package ocr turns page images into text and word-level bounding boxes.
package ocr

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/docfields/constants"
	"github.com/joseph-ayodele/docfields/internal/runner"
)

// Engine names accepted by NewEngine.
const (
	EngineTesseract = "tesseract"
	EngineGosseract = "gosseract"
)

// BBox is an axis-aligned pixel rectangle from the top-left {X0,Y0} to the
// bottom-right {X1,Y1} on a page image.
type BBox struct {
	X0 int `json:"x0"`
	Y0 int `json:"y0"`
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
}

func (b BBox) Width() int  { return b.X1 - b.X0 }
func (b BBox) Height() int { return b.Y1 - b.Y0 }

// Unscale maps a box found on a resized image back to the source image.
func (b BBox) Unscale(sx, sy float64) BBox {
	if sx <= 0 || sy <= 0 || (sx == 1 && sy == 1) {
		return b
	}
	return BBox{
		X0: int(float64(b.X0) / sx),
		Y0: int(float64(b.Y0) / sy),
		X1: int(float64(b.X1) / sx),
		Y1: int(float64(b.Y1) / sy),
	}
}

// Word is one recognized token. Confidence is in 0..1.
type Word struct {
	Text       string  `json:"text"`
	Confidence float32 `json:"confidence"`
	BBox       BBox    `json:"bbox"`
}

// Result is the output of one recognition call.
type Result struct {
	Text       string
	Words      []Word
	Confidence float32 // mean word confidence, 0 when no words
}

// Options are passed through to the engine unchanged.
type Options struct {
	Lang        string // default "eng"
	DPI         int    // resolution hint, 0 = engine default
	PSM         int    // page segmentation mode, e.g. 6 for a uniform block
	OEM         int    // 1 = LSTM; leave 0 to use default
	Whitelist   string // optional character set
	TessdataDir string
}

// WithDefaults fills unset fields.
func (o Options) WithDefaults() Options {
	if o.Lang == "" {
		o.Lang = constants.DefaultLang
	}
	if o.PSM <= 0 {
		o.PSM = constants.DefaultPSM
	}
	return o
}

// Engine recognizes a single image file.
type Engine interface {
	Recognize(ctx context.Context, imagePath string, opts Options) (Result, error)
}

// NewEngine selects an engine by name. An empty kind means the tesseract CLI.
func NewEngine(kind, tesseractBin string, r runner.Runner, logger *slog.Logger) (Engine, error) {
	switch kind {
	case "", EngineTesseract:
		return NewTesseractEngine(tesseractBin, r, logger), nil
	case EngineGosseract:
		e, err := NewGosseractEngine(logger)
		if err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown ocr engine %q", kind)
	}
}

func meanConfidence(words []Word) float32 {
	if len(words) == 0 {
		return 0
	}
	var sum float32
	for _, w := range words {
		sum += w.Confidence
	}
	return sum / float32(len(words))
}
