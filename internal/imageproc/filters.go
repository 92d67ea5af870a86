package imageproc

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// stretchContrast maps the lo..hi luminance percentiles onto 0..255.
// Expects a grayscale image (R == G == B).
func stretchContrast(img *image.NRGBA, lo, hi float64) *image.NRGBA {
	var hist [256]int
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		off := img.PixOffset(b.Min.X, y)
		for x := 0; x < b.Dx(); x++ {
			hist[img.Pix[off+x*4]]++
		}
	}
	total := b.Dx() * b.Dy()
	if total == 0 {
		return img
	}
	low, high := percentile(hist, total, lo), percentile(hist, total, hi)
	if high <= low {
		return img
	}
	span := float64(high - low)
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		v := stretch(c.R, low, span)
		return color.NRGBA{R: v, G: v, B: v, A: c.A}
	})
}

func percentile(hist [256]int, total int, q float64) int {
	target := int(q * float64(total))
	seen := 0
	for v, n := range hist {
		seen += n
		if seen > target {
			return v
		}
	}
	return 255
}

func stretch(v uint8, low int, span float64) uint8 {
	f := (float64(int(v)-low) * 255) / span
	switch {
	case f <= 0:
		return 0
	case f >= 255:
		return 255
	default:
		return uint8(f + 0.5)
	}
}

// binarize turns every pixel black or white; luminance >= threshold is white.
func binarize(img *image.NRGBA, threshold int) *image.NRGBA {
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		if int(c.R) >= threshold {
			return color.NRGBA{R: 255, G: 255, B: 255, A: c.A}
		}
		return color.NRGBA{A: c.A}
	})
}
