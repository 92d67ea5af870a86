// Package raster turns an input document into an ordered list of page images.
package raster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/joseph-ayodele/docfields/constants"
	"github.com/joseph-ayodele/docfields/internal/runner"
)

// ErrUnsupportedFormat is returned for inputs that are neither PDF nor image.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// Config for Rasterizer. Zero values take the defaults.
type Config struct {
	Pdftoppm string // binary name or absolute path; if empty -> "pdftoppm"
	DPI      int    // default 300
	Width    int    // target page width in pixels, default 1654
	Height   int    // target page height in pixels, default 2339
	MaxPages int    // 0 = no limit
	WorkDir  string // temp dir root, "" = os.TempDir()
}

// Pages are the rendered page images of one document, in page order.
type Pages struct {
	Paths []string

	dir  string
	once sync.Once
	err  error
}

// Len returns the number of pages.
func (p *Pages) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Paths)
}

// Close removes rendered pages. Input images passed through are left alone.
func (p *Pages) Close() error {
	if p == nil || p.dir == "" {
		return nil
	}
	p.once.Do(func() { p.err = os.RemoveAll(p.dir) })
	return p.err
}

// NewPages wraps existing image files without taking ownership.
func NewPages(paths ...string) *Pages {
	return &Pages{Paths: paths}
}

// Rasterizer renders PDFs through pdftoppm and passes images through.
type Rasterizer struct {
	cfg       Config
	runner    runner.Runner
	logger    *slog.Logger
	pageCount func(path string) (int, error)
}

func NewRasterizer(cfg Config, r runner.Runner, logger *slog.Logger) *Rasterizer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = constants.DefaultDPI
	}
	if cfg.Width <= 0 {
		cfg.Width = constants.ReferenceWidth
	}
	if cfg.Height <= 0 {
		cfg.Height = constants.ReferenceHeight
	}
	if r == nil {
		r = runner.NewExecRunner(logger)
	}
	return &Rasterizer{cfg: cfg, runner: r, logger: logger, pageCount: api.PageCountFile}
}

// Rasterize picks a strategy based on file extension.
func (r *Rasterizer) Rasterize(ctx context.Context, path string) (*Pages, error) {
	ext := constants.NormalizeExt(filepath.Ext(path))
	switch constants.MapExtToFormat(ext) {
	case constants.PDF:
		return r.renderPDF(ctx, path)
	case constants.IMAGE:
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}
		return NewPages(path), nil
	default:
		r.logger.Error("unsupported document extension", "path", path, "extension", ext)
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

func (r *Rasterizer) renderPDF(ctx context.Context, path string) (*Pages, error) {
	start := time.Now()
	count, err := r.pageCount(path)
	if err != nil {
		return nil, fmt.Errorf("read pdf %s: %w", path, err)
	}
	if count == 0 {
		return nil, fmt.Errorf("pdf %s has no pages", path)
	}
	if r.cfg.MaxPages > 0 && count > r.cfg.MaxPages {
		r.logger.Warn("pdf page limit applied", "path", path, "pages", count, "max_pages", r.cfg.MaxPages)
		count = r.cfg.MaxPages
	}

	dir, err := os.MkdirTemp(r.cfg.WorkDir, "docfields-pages-*")
	if err != nil {
		return nil, fmt.Errorf("create page dir: %w", err)
	}
	pages := &Pages{dir: dir}

	prefix := filepath.Join(dir, "page")
	// pdftoppm -r 300 -scale-to-x W -scale-to-y H -l N -png <in.pdf> <tmp/page>
	_, errb, err := r.runner.Run(ctx, r.cfg.Pdftoppm,
		"-r", strconv.Itoa(r.cfg.DPI),
		"-scale-to-x", strconv.Itoa(r.cfg.Width),
		"-scale-to-y", strconv.Itoa(r.cfg.Height),
		"-l", strconv.Itoa(count),
		"-png", path, prefix,
	)
	if err != nil {
		_ = pages.Close()
		return nil, fmt.Errorf("pdftoppm %s: %w: %s", path, err, runner.Truncate(strings.TrimSpace(string(errb)), 512))
	}

	// collect generated pngs (page-1.png, page-2.png or zero-padded page-01.png, ...)
	matches, _ := filepath.Glob(prefix + "-*.png")
	sortByPageNumber(matches)
	if len(matches) == 0 {
		_ = pages.Close()
		return nil, fmt.Errorf("pdftoppm produced no images for %s", path)
	}
	if len(matches) > count {
		matches = matches[:count]
	}
	pages.Paths = matches

	r.logger.Debug("pdf rasterized",
		"path", path,
		"pages", len(matches),
		"dpi", r.cfg.DPI,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return pages, nil
}

func sortByPageNumber(paths []string) {
	num := func(p string) int {
		base := strings.TrimSuffix(filepath.Base(p), ".png")
		i := strings.LastIndexByte(base, '-')
		n, err := strconv.Atoi(base[i+1:])
		if err != nil {
			return -1
		}
		return n
	}
	sort.SliceStable(paths, func(i, j int) bool { return num(paths[i]) < num(paths[j]) })
}
