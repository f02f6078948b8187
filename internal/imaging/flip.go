package imaging

import "github.com/disintegration/imaging"

// Flip mirrors the image. Horizontal swaps left and right, Vertical swaps top
// and bottom. The zero value leaves the image as decoded.
type Flip struct {
	Horizontal bool `json:"horizontal"`
	Vertical   bool `json:"vertical"`
}

// IsIdentity reports whether f leaves the image unchanged.
func (f Flip) IsIdentity() bool { return !f.Horizontal && !f.Vertical }

// Then returns the orientation after applying next on top of f. Flipping the
// same axis twice cancels out.
func (f Flip) Then(next Flip) Flip {
	return Flip{
		Horizontal: f.Horizontal != next.Horizontal,
		Vertical:   f.Vertical != next.Vertical,
	}
}

// Source maps a coordinate in the flipped image of size width×height back to
// the unflipped source. Pixel centers map to pixel centers.
func (f Flip) Source(x, y float64, width, height int) (float64, float64) {
	if f.Horizontal {
		x = float64(width-1) - x
	}
	if f.Vertical {
		y = float64(height-1) - y
	}
	return x, y
}

// Mirror returns src flipped by f. The identity flip returns src itself.
func Mirror(src *PixelBuffer, f Flip) *PixelBuffer {
	if f.IsIdentity() {
		return src
	}
	img := src.img
	if f.Horizontal {
		img = imaging.FlipH(img)
	}
	if f.Vertical {
		img = imaging.FlipV(img)
	}
	return wrapNRGBA(img)
}
