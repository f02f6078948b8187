package imaging

import (
	"math"

	apperrors "github.com/ironsheep/image-editor-mcp/internal/errors"
)

// Adjustment bounds shared by every tonal control.
const (
	MinAdjustment = -100.0
	MaxAdjustment = 100.0
)

// Luminance weights (ITU-R BT.601) used by the saturation stage.
const (
	lumaR = 0.299
	lumaG = 0.587
	lumaB = 0.114
)

// Adjustments holds the tonal settings applied to every pixel.
//
// Each value ranges from -100 to 100; the zero value is the identity. Stages
// always run in the order brightness, contrast, saturation.
type Adjustments struct {
	Brightness float64 `json:"brightness" yaml:"brightness"`
	Contrast   float64 `json:"contrast" yaml:"contrast"`
	Saturation float64 `json:"saturation" yaml:"saturation"`
}

// Validate rejects settings outside [-100, 100] or non-finite values.
func (a Adjustments) Validate() error {
	fields := []struct {
		name string
		v    float64
	}{
		{"brightness", a.Brightness},
		{"contrast", a.Contrast},
		{"saturation", a.Saturation},
	}
	for _, f := range fields {
		if math.IsNaN(f.v) || f.v < MinAdjustment || f.v > MaxAdjustment {
			return apperrors.Errorf(apperrors.KindInvalidArgument, "imaging.adjustments",
				"%s %v outside [%v, %v]", f.name, f.v, MinAdjustment, MaxAdjustment)
		}
	}
	return nil
}

// IsIdentity reports whether applying a leaves every pixel unchanged.
func (a Adjustments) IsIdentity() bool {
	return a.Brightness == 0 && a.Contrast == 0 && a.Saturation == 0
}

// AdjustKernel is the precomputed per-pixel form of an Adjustments value.
//
// Brightness and contrast only depend on the channel value, so they collapse
// into a 256-entry tone table. Saturation needs all three channels and runs
// per pixel. The kernel is immutable and safe to share between goroutines.
type AdjustKernel struct {
	tone       [256]float64
	saturation float64
	identity   bool
}

// NewAdjustKernel builds the kernel for a. Callers validate a beforehand;
// out-of-range values still produce clamped, well-defined output.
func NewAdjustKernel(a Adjustments) *AdjustKernel {
	k := &AdjustKernel{
		saturation: (100 + a.Saturation) / 100,
		identity:   a.IsIdentity(),
	}
	brightness := a.Brightness * 2.55
	contrast := (100 + a.Contrast) / 100
	for v := 0; v < 256; v++ {
		c := clampFloat(float64(v)+brightness, 0, 255)
		c = clampFloat((c-128)*contrast+128, 0, 255)
		k.tone[v] = c
	}
	return k
}

// Identity reports whether the kernel is a no-op.
func (k *AdjustKernel) Identity() bool { return k.identity }

// Pixel applies the kernel to one pixel. Alpha passes through.
func (k *AdjustKernel) Pixel(c RGBA) RGBA {
	if k.identity {
		return c
	}
	r, g, b := k.tone[c.R], k.tone[c.G], k.tone[c.B]
	if k.saturation != 1 {
		gray := lumaR*r + lumaG*g + lumaB*b
		r = clampFloat(gray+(r-gray)*k.saturation, 0, 255)
		g = clampFloat(gray+(g-gray)*k.saturation, 0, 255)
		b = clampFloat(gray+(b-gray)*k.saturation, 0, 255)
	}
	return RGBA{R: toByte(r), G: toByte(g), B: toByte(b), A: c.A}
}

// AdjustRows writes adjusted rows [y0, y1) of src into dst. Both buffers must
// share dimensions; dst must be a buffer still under construction.
func (k *AdjustKernel) AdjustRows(dst, src *PixelBuffer, y0, y1 int) {
	w := src.Width()
	for y := y0; y < y1; y++ {
		for x := 0; x < w; x++ {
			dst.set(x, y, k.Pixel(src.At(x, y)))
		}
	}
}

// Apply runs the color adjustment pipeline over buf and returns a new buffer.
//
// This is the sequential reference implementation; accelerated renderers call
// AdjustRows with the same kernel and must match it bit for bit.
func Apply(buf *PixelBuffer, a Adjustments) *PixelBuffer {
	k := NewAdjustKernel(a)
	if k.Identity() {
		return buf
	}
	dst, _ := NewBlank(buf.Width(), buf.Height())
	k.AdjustRows(dst, buf, 0, buf.Height())
	return dst
}
