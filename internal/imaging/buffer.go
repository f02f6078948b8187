package imaging

import (
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"

	apperrors "github.com/ironsheep/image-editor-mcp/internal/errors"
)

// RGBA is a single 8-bit pixel with straight (non-premultiplied) alpha.
type RGBA struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
	A uint8 `json:"a"`
}

// SamplePolicy selects how Sample treats coordinates outside the buffer.
type SamplePolicy int

const (
	// SampleClamp clamps coordinates to the nearest edge pixel.
	SampleClamp SamplePolicy = iota
	// SampleStrict rejects coordinates outside [0,width)×[0,height).
	SampleStrict
)

// PixelBuffer owns decoded RGBA8 pixel data.
//
// A PixelBuffer is read-only once constructed: every operation in this package
// that "changes" pixels returns a new buffer. The backing store is an
// *image.NRGBA anchored at the origin.
//
// # Coordinate System
//
// Integer pixel (x, y) is centered on the continuous coordinate (x, y) for
// sampling purposes. A continuous coordinate of (0.5, 0) therefore lies halfway
// between the first two pixels of the top row.
type PixelBuffer struct {
	img *image.NRGBA
}

// NewPixelBuffer copies src into a canonical RGBA8 buffer.
//
// Returns an error if src is nil or has an empty extent.
func NewPixelBuffer(src image.Image) (*PixelBuffer, error) {
	if src == nil {
		return nil, apperrors.Errorf(apperrors.KindInvalidDimensions, "imaging.new_buffer", "nil image")
	}
	b := src.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, apperrors.Errorf(apperrors.KindInvalidDimensions, "imaging.new_buffer",
			"empty image %dx%d", b.Dx(), b.Dy())
	}
	return &PixelBuffer{img: imaging.Clone(src)}, nil
}

// MaxBufferPixels is the largest buffer NewBlank allocates regardless of
// configuration (4 GiB of RGBA8).
const MaxBufferPixels = 1 << 30

// NewBlank allocates a zeroed (transparent black) buffer that render kernels
// fill row by row before handing it out.
func NewBlank(width, height int) (*PixelBuffer, error) {
	if width <= 0 || height <= 0 {
		return nil, apperrors.Errorf(apperrors.KindInvalidDimensions, "imaging.new_blank",
			"width and height must be positive, got %dx%d", width, height)
	}
	if err := CheckOutputSize(uint64(width), uint64(height), MaxBufferPixels); err != nil {
		return nil, err
	}
	return &PixelBuffer{img: image.NewNRGBA(image.Rect(0, 0, width, height))}, nil
}

// CheckOutputSize reports InvalidDimensions unless width×height is positive
// and at most limit pixels. A limit <= 0 means MaxBufferPixels. The product is
// never computed, so huge sides cannot overflow.
func CheckOutputSize(width, height uint64, limit int64) error {
	const op = "imaging.output_size"
	if width == 0 || height == 0 {
		return apperrors.Errorf(apperrors.KindInvalidDimensions, op,
			"width and height must be positive, got %dx%d", width, height)
	}
	if limit <= 0 || limit > MaxBufferPixels {
		limit = MaxBufferPixels
	}
	if width > uint64(limit)/height {
		return apperrors.Errorf(apperrors.KindInvalidDimensions, op,
			"%dx%d exceeds the %d pixel output limit", width, height, limit)
	}
	return nil
}

func wrapNRGBA(img *image.NRGBA) *PixelBuffer {
	if img.Rect.Min != (image.Point{}) {
		img = imaging.Clone(img)
	}
	return &PixelBuffer{img: img}
}

// Width returns the buffer width in pixels.
func (b *PixelBuffer) Width() int { return b.img.Rect.Dx() }

// Height returns the buffer height in pixels.
func (b *PixelBuffer) Height() int { return b.img.Rect.Dy() }

// Bounds returns the buffer rectangle, always anchored at (0,0).
func (b *PixelBuffer) Bounds() image.Rectangle { return b.img.Rect }

// Image exposes the buffer as an image.Image for encoders. Callers must not
// type-assert and mutate the result.
func (b *PixelBuffer) Image() image.Image { return b.img }

// Opaque reports whether every pixel has full alpha.
func (b *PixelBuffer) Opaque() bool { return b.img.Opaque() }

// At returns the pixel at integer coordinates. Coordinates outside the buffer
// are clamped to the nearest edge.
func (b *PixelBuffer) At(x, y int) RGBA {
	x = clampInt(x, 0, b.Width()-1)
	y = clampInt(y, 0, b.Height()-1)
	i := y*b.img.Stride + x*4
	p := b.img.Pix[i : i+4 : i+4]
	return RGBA{R: p[0], G: p[1], B: p[2], A: p[3]}
}

func (b *PixelBuffer) set(x, y int, c RGBA) {
	i := y*b.img.Stride + x*4
	p := b.img.Pix[i : i+4 : i+4]
	p[0], p[1], p[2], p[3] = c.R, c.G, c.B, c.A
}

// Sample returns the bilinearly interpolated color at a continuous coordinate
// using the clamp-to-edge policy.
//
// The only failure is a non-finite coordinate, reported as ErrOutOfBounds.
func (b *PixelBuffer) Sample(x, y float64) (RGBA, error) {
	return b.SampleWith(x, y, SampleClamp)
}

// SampleWith samples under an explicit policy.
func (b *PixelBuffer) SampleWith(x, y float64, policy SamplePolicy) (RGBA, error) {
	if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
		return RGBA{}, apperrors.Errorf(apperrors.KindOutOfBounds, "imaging.sample",
			"non-finite coordinate (%v,%v)", x, y)
	}
	if policy == SampleStrict {
		if !b.Contains(x, y) {
			return RGBA{}, apperrors.Errorf(apperrors.KindOutOfBounds, "imaging.sample",
				"coordinate (%.3f,%.3f) outside %dx%d", x, y, b.Width(), b.Height())
		}
	}
	return b.bilinear(x, y), nil
}

// Contains reports whether (x, y) lies in [0,width)×[0,height).
func (b *PixelBuffer) Contains(x, y float64) bool {
	return x >= 0 && y >= 0 && x < float64(b.Width()) && y < float64(b.Height())
}

// bilinear interpolates each channel independently. x and y must be finite.
func (b *PixelBuffer) bilinear(x, y float64) RGBA {
	w, h := b.Width(), b.Height()
	x = clampFloat(x, 0, float64(w-1))
	y = clampFloat(y, 0, float64(h-1))

	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))
	fx := x - float64(x0)
	fy := y - float64(y0)
	if fx == 0 && fy == 0 {
		return b.At(x0, y0)
	}
	x1 := clampInt(x0+1, 0, w-1)
	y1 := clampInt(y0+1, 0, h-1)

	p00 := b.At(x0, y0)
	p10 := b.At(x1, y0)
	p01 := b.At(x0, y1)
	p11 := b.At(x1, y1)

	lerp := func(c00, c10, c01, c11 uint8) uint8 {
		top := float64(c00)*(1-fx) + float64(c10)*fx
		bottom := float64(c01)*(1-fx) + float64(c11)*fx
		return toByte(top*(1-fy) + bottom*fy)
	}
	return RGBA{
		R: lerp(p00.R, p10.R, p01.R, p11.R),
		G: lerp(p00.G, p10.G, p01.G, p11.G),
		B: lerp(p00.B, p10.B, p01.B, p11.B),
		A: lerp(p00.A, p10.A, p01.A, p11.A),
	}
}

// Equal reports whether two buffers have identical dimensions and pixels.
func (b *PixelBuffer) Equal(other *PixelBuffer) bool {
	if b == nil || other == nil {
		return b == other
	}
	if b.Width() != other.Width() || b.Height() != other.Height() {
		return false
	}
	w := b.Width() * 4
	for y := 0; y < b.Height(); y++ {
		ra := b.img.Pix[y*b.img.Stride : y*b.img.Stride+w]
		rb := other.img.Pix[y*other.img.Stride : y*other.img.Stride+w]
		for i := range ra {
			if ra[i] != rb[i] {
				return false
			}
		}
	}
	return true
}

func (b *PixelBuffer) String() string {
	return fmt.Sprintf("PixelBuffer(%dx%d)", b.Width(), b.Height())
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// toByte clamps v to [0,255] and rounds half away from zero.
func toByte(v float64) uint8 {
	return uint8(math.Round(clampFloat(v, 0, 255)))
}
