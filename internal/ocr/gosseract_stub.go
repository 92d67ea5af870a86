//go:build !cgo || !ocr

package ocr

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/docfields/internal/common"
)

// GosseractEngine is a stub for builds without cgo or the "ocr" tag.
type GosseractEngine struct{}

// NewGosseractEngine reports that the in-process engine was not compiled in.
func NewGosseractEngine(_ *slog.Logger) (*GosseractEngine, error) {
	return nil, fmt.Errorf("gosseract: built without tesseract support (need cgo and -tags ocr): %w", common.ErrOCRUnavailable)
}

func (e *GosseractEngine) Recognize(context.Context, string, Options) (Result, error) {
	return Result{}, fmt.Errorf("gosseract: %w", common.ErrOCRUnavailable)
}
