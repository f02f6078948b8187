package imaging

import (
	"math"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// HSLColor represents a color in HSL (Hue, Saturation, Lightness) color space.
type HSLColor struct {
	H int `json:"h"` // Hue: 0-359 degrees (0=red, 120=green, 240=blue)
	S int `json:"s"` // Saturation: 0-100 percent (0=gray, 100=vivid)
	L int `json:"l"` // Lightness: 0-100 percent (0=black, 50=normal, 100=white)
}

// ColorResult contains a color value in multiple representations.
type ColorResult struct {
	Hex  string   `json:"hex"`  // Hex format "#RRGGBB" (no alpha)
	RGBA RGBA     `json:"rgba"` // RGBA components with alpha
	HSL  HSLColor `json:"hsl"`  // HSL representation
}

// DescribeColor renders c in hex, RGBA and HSL form.
//
// The hex string excludes alpha; use RGBA.A for transparency.
func DescribeColor(c RGBA) ColorResult {
	cf := colorful.Color{
		R: float64(c.R) / 255,
		G: float64(c.G) / 255,
		B: float64(c.B) / 255,
	}
	h, s, l := cf.Hsl()
	hue := int(math.Round(h)) % 360
	return ColorResult{
		Hex:  strings.ToUpper(cf.Hex()),
		RGBA: c,
		HSL: HSLColor{
			H: hue,
			S: int(math.Round(s * 100)),
			L: int(math.Round(l * 100)),
		},
	}
}
