package extract

import (
	"context"

	"github.com/joseph-ayodele/docfields/internal/imageproc"
	"github.com/joseph-ayodele/docfields/internal/ocr"
)

// OCREngine recognizes text and word boxes in one image file.
type OCREngine interface {
	Recognize(ctx context.Context, imagePath string, opts ocr.Options) (ocr.Result, error)
}

// ImageProcessor produces scoped temporary images. Callers Close them.
type ImageProcessor interface {
	Preprocess(ctx context.Context, path string) (*imageproc.Image, error)
	Crop(ctx context.Context, path string, r imageproc.Rect) (*imageproc.Image, error)
}
