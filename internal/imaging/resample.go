package imaging

import (
	"image"
	"math"

	"github.com/disintegration/imaging"

	apperrors "github.com/ironsheep/image-editor-mcp/internal/errors"
)

// Mapper maps a destination pixel to a continuous source coordinate. Returning
// ok=false leaves the destination pixel transparent.
type Mapper func(x, y int) (sx, sy float64, ok bool)

// MapRows fills rows [y0, y1) of dst by sampling src bilinearly at the
// coordinates produced by m. A non-nil kernel adjusts each sampled pixel.
func MapRows(dst, src *PixelBuffer, m Mapper, k *AdjustKernel, y0, y1 int) {
	w := dst.Width()
	for y := y0; y < y1; y++ {
		for x := 0; x < w; x++ {
			sx, sy, ok := m(x, y)
			if !ok {
				continue
			}
			c, err := src.Sample(sx, sy)
			if err != nil {
				continue
			}
			if k != nil {
				c = k.Pixel(c)
			}
			dst.set(x, y, c)
		}
	}
}

// ScaleMapper returns the mapper that stretches src over a width×height grid,
// aligning pixel centers: destination pixel d samples source coordinate
// (d+0.5)*srcSize/dstSize - 0.5.
func ScaleMapper(src *PixelBuffer, width, height int) Mapper {
	sx := float64(src.Width()) / float64(width)
	sy := float64(src.Height()) / float64(height)
	return func(x, y int) (float64, float64, bool) {
		return (float64(x)+0.5)*sx - 0.5, (float64(y)+0.5)*sy - 0.5, true
	}
}

// Resample scales src to width×height with bilinear sampling.
func Resample(src *PixelBuffer, width, height int) (*PixelBuffer, error) {
	dst, err := NewBlank(width, height)
	if err != nil {
		return nil, err
	}
	MapRows(dst, src, ScaleMapper(src, width, height), nil, 0, height)
	return dst, nil
}

// PixelRect converts a continuous image-space rectangle into whole-pixel bounds
// by rounding each edge, clamped to the buffer and at least one pixel wide.
func PixelRect(src *PixelBuffer, x, y, width, height float64) (x0, y0, x1, y1 int) {
	w, h := src.Width(), src.Height()
	x0 = clampInt(int(math.Round(x)), 0, w-1)
	y0 = clampInt(int(math.Round(y)), 0, h-1)
	x1 = clampInt(int(math.Round(x+width)), x0+1, w)
	y1 = clampInt(int(math.Round(y+height)), y0+1, h)
	return x0, y0, x1, y1
}

// Crop extracts the sub-rectangle of src covered by the continuous rectangle
// (x, y, width, height), snapped to whole pixels.
func Crop(src *PixelBuffer, x, y, width, height float64) (*PixelBuffer, error) {
	if !(width > 0) || !(height > 0) {
		return nil, apperrors.Errorf(apperrors.KindInvalidRegion, "imaging.crop",
			"non-positive extent %vx%v", width, height)
	}
	x0, y0, x1, y1 := PixelRect(src, x, y, width, height)
	if x0 == 0 && y0 == 0 && x1 == src.Width() && y1 == src.Height() {
		return src, nil
	}
	return wrapNRGBA(imaging.Crop(src.img, image.Rect(x0, y0, x1, y1))), nil
}

// Thumbnail scales src down to fit within maxWidth×maxHeight, preserving the
// aspect ratio. It never upscales. Thumbnails are for display only and use a
// Lanczos filter rather than the export resampler.
func Thumbnail(src *PixelBuffer, maxWidth, maxHeight int) (*PixelBuffer, error) {
	if maxWidth <= 0 || maxHeight <= 0 {
		return nil, apperrors.Errorf(apperrors.KindInvalidDimensions, "imaging.thumbnail",
			"bounds must be positive, got %dx%d", maxWidth, maxHeight)
	}
	return wrapNRGBA(imaging.Fit(src.img, maxWidth, maxHeight, imaging.Lanczos)), nil
}
