// Package crop maintains the active crop rectangle of a session and ranks crop
// suggestions derived from externally detected subject boxes.
//
// All rectangles are in continuous image-space coordinates with the origin at
// the top-left corner of the image.
package crop

import (
	"fmt"
	"math"

	apperrors "github.com/ironsheep/image-editor-mcp/internal/errors"
)

// RatioTolerance is the relative tolerance within which width/height must
// equal a locked ratio.
const RatioTolerance = 1e-6

// boundsSlop is the absolute overshoot past the image edges that is clamped
// instead of rejected.
const boundsSlop = 1e-6

// Rect is an axis-aligned rectangle.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Area returns Width*Height.
func (r Rect) Area() float64 { return r.Width * r.Height }

// Center returns the rectangle center.
func (r Rect) Center() (float64, float64) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

// Intersect returns the overlap of r and o, or the zero Rect when disjoint.
func (r Rect) Intersect(o Rect) Rect {
	x0 := math.Max(r.X, o.X)
	y0 := math.Max(r.Y, o.Y)
	x1 := math.Min(r.X+r.Width, o.X+o.Width)
	y1 := math.Min(r.Y+r.Height, o.Y+o.Height)
	if x1 <= x0 || y1 <= y0 {
		return Rect{}
	}
	return Rect{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

func (r Rect) finite() bool {
	return finite(r.X) && finite(r.Y) && finite(r.Width) && finite(r.Height)
}

func (r Rect) String() string {
	return fmt.Sprintf("(%.2f,%.2f %.2fx%.2f)", r.X, r.Y, r.Width, r.Height)
}

// Region is the active crop as reported to callers.
type Region struct {
	Rect
	Ratio *float64 `json:"ratio,omitempty"`
}

// InvariantMode selects what happens when a mutation leaves the manager in an
// inconsistent state.
type InvariantMode int

const (
	// InvariantClamp silently repairs the region. This is the default.
	InvariantClamp InvariantMode = iota
	// InvariantStrict panics. Use it in tests and debug builds.
	InvariantStrict
)

// Manager holds the crop state of one image.
//
// Manager is a value type: copying it yields an independent snapshot, so
// callers can mutate a copy and commit it only on success. It is not safe
// for concurrent use.
type Manager struct {
	width, height float64

	region    Rect
	hasRegion bool

	ratio  float64
	locked bool

	mode InvariantMode
}

// NewManager creates a manager for a width×height image with no active crop
// and no ratio lock.
func NewManager(width, height int, mode InvariantMode) (Manager, error) {
	if width <= 0 || height <= 0 {
		return Manager{}, apperrors.Errorf(apperrors.KindInvalidDimensions, "crop.new_manager",
			"image size must be positive, got %dx%d", width, height)
	}
	return Manager{width: float64(width), height: float64(height), mode: mode}, nil
}

// Bounds returns the full image rectangle.
func (m Manager) Bounds() Rect {
	return Rect{Width: m.width, Height: m.height}
}

// Region returns the active region. ok is false when no crop is active.
func (m Manager) Region() (Region, bool) {
	if !m.hasRegion {
		return Region{}, false
	}
	reg := Region{Rect: m.region}
	if m.locked {
		r := m.ratio
		reg.Ratio = &r
	}
	return reg, true
}

// Ratio returns the locked ratio, if any.
func (m Manager) Ratio() (float64, bool) {
	return m.ratio, m.locked
}

// Effective returns the rectangle export should use: the active region, or
// the full image when uncropped.
func (m Manager) Effective() Rect {
	if m.hasRegion {
		return m.region
	}
	return m.Bounds()
}

// SetRegion replaces the active region.
//
// The rectangle must have finite coordinates and a positive extent and lie
// within the image; overshoot up to a tiny slop is clamped away. When a ratio
// is locked and r does not match it, the height is re-derived from the width
// keeping the top-left corner fixed; if that would overflow the image, the
// width is re-derived from the remaining height instead.
//
// On error the previous region is left unchanged.
func (m *Manager) SetRegion(r Rect) error {
	const op = "crop.set_region"

	if !r.finite() {
		return apperrors.Errorf(apperrors.KindInvalidRegion, op, "non-finite rectangle %v", r)
	}
	if r.Width <= 0 || r.Height <= 0 {
		return apperrors.Errorf(apperrors.KindInvalidRegion, op, "non-positive extent %v", r)
	}
	if r.X < -boundsSlop || r.Y < -boundsSlop ||
		r.X+r.Width > m.width+boundsSlop || r.Y+r.Height > m.height+boundsSlop {
		return apperrors.Errorf(apperrors.KindInvalidRegion, op,
			"rectangle %v exceeds image %gx%g", r, m.width, m.height)
	}

	r = m.clampToImage(r)
	if r.Width <= 0 || r.Height <= 0 {
		return apperrors.Errorf(apperrors.KindInvalidRegion, op, "rectangle %v has no area inside the image", r)
	}
	if m.locked && !ratioMatches(r, m.ratio) {
		r = m.fitRatioFromCorner(r)
	}

	m.region = r
	m.hasRegion = true
	m.checkInvariants(op)
	return nil
}

// SetRatio changes the aspect-ratio lock. A nil ratio unlocks.
//
// A valid ratio immediately reshapes the crop to the largest rectangle of that
// ratio that fits the image, centered on the active region's center (or the
// image center when uncropped) and shifted inside the image. On error nothing
// changes.
func (m *Manager) SetRatio(ratio *float64) error {
	const op = "crop.set_ratio"

	if ratio == nil {
		m.locked = false
		m.ratio = 0
		return nil
	}
	r := *ratio
	if !finite(r) || r <= 0 {
		return apperrors.Errorf(apperrors.KindInvalidArgument, op,
			"ratio must be finite and positive, got %v", r)
	}

	cx, cy := m.Effective().Center()
	w := math.Min(m.width, m.height*r)
	h := w / r
	if h > m.height {
		h = m.height
	}

	m.ratio = r
	m.locked = true
	m.region = Rect{
		X:      clamp(cx-w/2, 0, m.width-w),
		Y:      clamp(cy-h/2, 0, m.height-h),
		Width:  w,
		Height: h,
	}
	m.hasRegion = true
	m.checkInvariants(op)
	return nil
}

// Mirror reflects the active region to follow a flip of the image so that it
// keeps covering the same pixels. The ratio lock is unaffected.
func (m *Manager) Mirror(horizontal, vertical bool) {
	if !m.hasRegion {
		return
	}
	if horizontal {
		m.region.X = m.width - m.region.X - m.region.Width
	}
	if vertical {
		m.region.Y = m.height - m.region.Y - m.region.Height
	}
	m.region = m.clampToImage(m.region)
	m.checkInvariants("crop.mirror")
}

// Clear removes the active region. The ratio lock is kept.
func (m *Manager) Clear() {
	m.hasRegion = false
	m.region = Rect{}
}

// Reset removes both the region and the ratio lock.
func (m *Manager) Reset() {
	m.Clear()
	m.locked = false
	m.ratio = 0
}

func (m Manager) clampToImage(r Rect) Rect {
	r.X = clamp(r.X, 0, m.width)
	r.Y = clamp(r.Y, 0, m.height)
	r.Width = math.Min(r.Width, m.width-r.X)
	r.Height = math.Min(r.Height, m.height-r.Y)
	return r
}

func (m Manager) fitRatioFromCorner(r Rect) Rect {
	h := r.Width / m.ratio
	if r.Y+h <= m.height {
		r.Height = h
		return r
	}
	r.Height = m.height - r.Y
	r.Width = r.Height * m.ratio
	return r
}

// checkInvariants verifies containment and the ratio lock after a mutation.
func (m *Manager) checkInvariants(op string) {
	if !m.hasRegion {
		return
	}
	r := m.region
	ok := r.finite() && r.Width > 0 && r.Height > 0 &&
		r.X >= 0 && r.Y >= 0 &&
		r.X+r.Width <= m.width+boundsSlop && r.Y+r.Height <= m.height+boundsSlop &&
		(!m.locked || ratioMatches(r, m.ratio))
	if ok {
		return
	}
	if m.mode == InvariantStrict {
		panic(fmt.Sprintf("%s: crop invariant violated: region %v ratio %v locked %v image %gx%g",
			op, r, m.ratio, m.locked, m.width, m.height))
	}
	m.repair()
}

// repair forces the region back inside the image and onto the locked ratio.
func (m *Manager) repair() {
	r := m.region
	if !r.finite() || r.Width <= 0 || r.Height <= 0 {
		r = m.Bounds()
	}
	r.Width = math.Min(r.Width, m.width)
	r.Height = math.Min(r.Height, m.height)
	if m.locked {
		w := math.Min(r.Width, r.Height*m.ratio)
		r.Width, r.Height = w, w/m.ratio
	}
	r.X = clamp(r.X, 0, m.width-r.Width)
	r.Y = clamp(r.Y, 0, m.height-r.Height)
	m.region = r
}

func ratioMatches(r Rect, ratio float64) bool {
	return math.Abs(r.Width/r.Height-ratio) <= RatioTolerance*ratio
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		hi = lo
	}
	return math.Max(lo, math.Min(hi, v))
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
