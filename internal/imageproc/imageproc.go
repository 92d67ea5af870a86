// Package imageproc prepares page images for recognition: preprocessing,
// cropping and thumbnails. Every produced image is a temporary PNG owned by
// the returned *Image and removed by Close.
package imageproc

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"sync"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // register webp decoder

	"github.com/joseph-ayodele/docfields/constants"
)

// ErrEmptyCrop is returned when a crop rectangle does not overlap the image.
var ErrEmptyCrop = errors.New("crop rectangle outside image")

// Rect is a pixel rectangle with its top-left corner at X,Y.
type Rect struct {
	X      int
	Y      int
	Width  int
	Height int
}

func (r Rect) image() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Image is a scoped image file. ScaleX/ScaleY record how much the pixels were
// enlarged relative to the source (1 when untouched).
type Image struct {
	Path   string
	Width  int
	Height int
	ScaleX float64
	ScaleY float64

	owned bool
	once  sync.Once
	err   error
}

// Close removes the file when it is owned. Safe to call more than once.
func (i *Image) Close() error {
	if i == nil || !i.owned {
		return nil
	}
	i.once.Do(func() {
		if err := os.Remove(i.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			i.err = err
		}
	})
	return i.err
}

// Config controls preprocessing. Zero values take the defaults.
type Config struct {
	Threshold int // 0..255, pixels >= threshold become white
	RefWidth  int
	RefHeight int
	Upscale   int
	WorkDir   string // temp dir root, "" = os.TempDir()
}

// Processor implements the preprocessing and crop primitives.
type Processor struct {
	cfg    Config
	logger *slog.Logger
}

func NewProcessor(cfg Config, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = constants.DefaultThreshold
	}
	if cfg.RefWidth <= 0 {
		cfg.RefWidth = constants.ReferenceWidth
	}
	if cfg.RefHeight <= 0 {
		cfg.RefHeight = constants.ReferenceHeight
	}
	if cfg.Upscale <= 0 {
		cfg.Upscale = constants.DefaultUpscale
	}
	return &Processor{cfg: cfg, logger: logger}
}

// Preprocess runs grayscale, contrast stretch, sharpen, binarize and upscale.
func (p *Processor) Preprocess(ctx context.Context, path string) (*Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	src, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image %s: %w", path, err)
	}
	b := src.Bounds()

	img := imaging.Grayscale(src)
	img = stretchContrast(img, 0.01, 0.99)
	img = imaging.Sharpen(img, 1.0)
	img = binarize(img, p.cfg.Threshold)

	sx, sy := 1.0, 1.0
	if w, h := upscaleSize(b.Dx(), b.Dy(), p.cfg.Upscale*p.cfg.RefWidth, p.cfg.Upscale*p.cfg.RefHeight); w != b.Dx() || h != b.Dy() {
		img = imaging.Resize(img, w, h, imaging.Lanczos)
		sx = float64(w) / float64(b.Dx())
		sy = float64(h) / float64(b.Dy())
	}

	out, err := p.write(img, "pre")
	if err != nil {
		return nil, err
	}
	out.ScaleX, out.ScaleY = sx, sy
	p.logger.Debug("image preprocessed",
		"path", path,
		"src_width", b.Dx(),
		"src_height", b.Dy(),
		"width", out.Width,
		"height", out.Height,
	)
	return out, nil
}

// Crop cuts r out of the image at path, clipped to the image bounds.
func (p *Processor) Crop(ctx context.Context, path string, r Rect) (*Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	src, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image %s: %w", path, err)
	}
	rect := r.image().Intersect(src.Bounds())
	if rect.Empty() {
		return nil, fmt.Errorf("%w: %+v on %dx%d", ErrEmptyCrop, r, src.Bounds().Dx(), src.Bounds().Dy())
	}
	return p.write(imaging.Crop(src, rect), "crop")
}

// Thumbnail writes a PNG that fits inside size x size.
func (p *Processor) Thumbnail(ctx context.Context, path, out string, size int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if size <= 0 {
		size = 200
	}
	src, err := imaging.Open(path)
	if err != nil {
		return fmt.Errorf("open image %s: %w", path, err)
	}
	thumb := imaging.Fit(src, size, size, imaging.Lanczos)
	if err := imaging.Save(thumb, out); err != nil {
		return fmt.Errorf("save thumbnail %s: %w", out, err)
	}
	return nil
}

// upscaleSize enlarges w x h by one uniform factor until both sides reach
// tw x th. Sides never shrink and the aspect ratio is kept.
func upscaleSize(w, h, tw, th int) (int, int) {
	if w <= 0 || h <= 0 || (w >= tw && h >= th) {
		return w, h
	}
	// width drives when tw/w >= th/h
	if tw*h >= th*w {
		return tw, (h*tw + w - 1) / w
	}
	return (w*th + h - 1) / h, th
}

func (p *Processor) write(img image.Image, kind string) (*Image, error) {
	f, err := os.CreateTemp(p.cfg.WorkDir, "docfields-"+kind+"-*.png")
	if err != nil {
		return nil, fmt.Errorf("create temp image: %w", err)
	}
	name := f.Name()
	if err := imaging.Encode(f, img, imaging.PNG); err != nil {
		_ = f.Close()
		_ = os.Remove(name)
		return nil, fmt.Errorf("encode %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(name)
		return nil, fmt.Errorf("close %s: %w", name, err)
	}
	b := img.Bounds()
	return &Image{Path: name, Width: b.Dx(), Height: b.Dy(), ScaleX: 1, ScaleY: 1, owned: true}, nil
}
