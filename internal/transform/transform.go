// Package transform maps between image space and viewport space.
//
// A Transform is a uniform scale followed by a translation:
//
//	screen = image*Scale + Offset
//
// All Transform methods are pure and return a new value.
package transform

import (
	"fmt"
	"math"

	apperrors "github.com/ironsheep/image-editor-mcp/internal/errors"
)

// Default scale bounds.
const (
	DefaultMinScale = 0.05
	DefaultMaxScale = 32.0
)

// Tolerance is the absolute error accepted when comparing round-tripped
// coordinates.
const Tolerance = 1e-9

// Limits bounds the scale of a Transform.
type Limits struct {
	MinScale float64 `json:"min_scale" yaml:"min_scale"`
	MaxScale float64 `json:"max_scale" yaml:"max_scale"`
}

// DefaultLimits returns the default scale bounds.
func DefaultLimits() Limits {
	return Limits{MinScale: DefaultMinScale, MaxScale: DefaultMaxScale}
}

// Validate checks that the bounds are finite, positive and ordered.
func (l Limits) Validate() error {
	if !finite(l.MinScale) || !finite(l.MaxScale) || l.MinScale <= 0 || l.MaxScale < l.MinScale {
		return apperrors.Errorf(apperrors.KindInvalidArgument, "transform.limits",
			"invalid scale bounds [%v, %v]", l.MinScale, l.MaxScale)
	}
	return nil
}

// Clamp bounds s to [MinScale, MaxScale].
func (l Limits) Clamp(s float64) float64 {
	return math.Max(l.MinScale, math.Min(l.MaxScale, s))
}

// Transform is the image-to-viewport mapping. The zero value is invalid; use
// Identity.
type Transform struct {
	Scale   float64 `json:"scale"`
	OffsetX float64 `json:"offset_x"`
	OffsetY float64 `json:"offset_y"`
}

// Identity returns the transform that maps image pixels 1:1 onto the viewport.
func Identity() Transform {
	return Transform{Scale: 1}
}

// ImageToScreen maps an image-space point to viewport space.
func (t Transform) ImageToScreen(ix, iy float64) (float64, float64) {
	return ix*t.Scale + t.OffsetX, iy*t.Scale + t.OffsetY
}

// ScreenToImage maps a viewport-space point to image space. It is the exact
// inverse of ImageToScreen.
func (t Transform) ScreenToImage(px, py float64) (float64, float64) {
	return (px - t.OffsetX) / t.Scale, (py - t.OffsetY) / t.Scale
}

// Pan translates the viewport offset by (dx, dy).
func (t Transform) Pan(dx, dy float64) (Transform, error) {
	if !finite(dx) || !finite(dy) {
		return t, apperrors.Errorf(apperrors.KindInvalidArgument, "transform.pan",
			"non-finite delta (%v,%v)", dx, dy)
	}
	t.OffsetX += dx
	t.OffsetY += dy
	return t, nil
}

// ZoomAt multiplies the scale by factor while keeping the viewport point
// (ax, ay) fixed. The resulting scale is clamped to limits rather than
// rejected; a factor that is not a finite positive number is an error.
func (t Transform) ZoomAt(factor, ax, ay float64, limits Limits) (Transform, error) {
	if !finite(factor) || factor <= 0 {
		return t, apperrors.Errorf(apperrors.KindInvalidArgument, "transform.zoom_at",
			"zoom factor must be finite and positive, got %v", factor)
	}
	if !finite(ax) || !finite(ay) {
		return t, apperrors.Errorf(apperrors.KindInvalidArgument, "transform.zoom_at",
			"non-finite anchor (%v,%v)", ax, ay)
	}
	ix, iy := t.ScreenToImage(ax, ay)
	scale := limits.Clamp(t.Scale * factor)
	return Transform{
		Scale:   scale,
		OffsetX: ax - ix*scale,
		OffsetY: ay - iy*scale,
	}, nil
}

// FitTo returns the transform that shows the whole image centered in a
// viewW×viewH viewport, clamped to limits.
func FitTo(viewW, viewH, imgW, imgH float64, limits Limits) (Transform, error) {
	if !(viewW > 0) || !(viewH > 0) || !(imgW > 0) || !(imgH > 0) ||
		!finite(viewW) || !finite(viewH) || !finite(imgW) || !finite(imgH) {
		return Transform{}, apperrors.Errorf(apperrors.KindInvalidDimensions, "transform.fit",
			"viewport %vx%v and image %vx%v must be positive", viewW, viewH, imgW, imgH)
	}
	scale := limits.Clamp(math.Min(viewW/imgW, viewH/imgH))
	return Transform{
		Scale:   scale,
		OffsetX: (viewW - imgW*scale) / 2,
		OffsetY: (viewH - imgH*scale) / 2,
	}, nil
}

// Matrix returns t as an affine matrix.
func (t Transform) Matrix() Matrix {
	return Translate(t.OffsetX, t.OffsetY).Multiply(Scale(t.Scale, t.Scale))
}

// Valid reports whether t has a finite positive scale and finite offsets.
func (t Transform) Valid() bool {
	return finite(t.Scale) && t.Scale > 0 && finite(t.OffsetX) && finite(t.OffsetY)
}

func (t Transform) String() string {
	return fmt.Sprintf("Transform(scale=%.4f, offset=(%.2f,%.2f))", t.Scale, t.OffsetX, t.OffsetY)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
