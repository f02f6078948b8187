package crop

import (
	"fmt"
	"math"
	"sort"
)

// BoundingBox is a subject rectangle reported by an external detector.
type BoundingBox struct {
	Rect

	// Label names the detected subject, e.g. "face". Optional.
	Label string `json:"label,omitempty"`

	// Confidence is the detector's own score in (0,1]. Zero means the
	// detector supplied none and is treated as 1.
	Confidence float64 `json:"confidence,omitempty"`
}

// Suggestion is a ranked crop candidate.
type Suggestion struct {
	Ratio  float64 `json:"ratio"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Score  float64 `json:"score"`
	Label  string  `json:"label"`
}

// Rect returns the suggestion's rectangle.
func (s Suggestion) Rect() Rect {
	return Rect{X: s.X, Y: s.Y, Width: s.Width, Height: s.Height}
}

// ScoringPolicy rates how well a fitted crop frames its subject box. Scores
// are clamped to [0,1] by the ranker.
type ScoringPolicy interface {
	Score(fit, subject Rect, image Rect) float64
}

// OverlapPolicy combines the intersection-over-union of the fitted crop and
// the subject with a centeredness bonus: 1 minus the distance between their
// centers normalized by the image diagonal.
type OverlapPolicy struct {
	OverlapWeight float64
	CenterWeight  float64
}

// DefaultPolicy is the policy used when a Ranker has none.
var DefaultPolicy = OverlapPolicy{OverlapWeight: 0.7, CenterWeight: 0.3}

func (p OverlapPolicy) Score(fit, subject Rect, image Rect) float64 {
	inter := fit.Intersect(subject).Area()
	union := fit.Area() + subject.Area() - inter
	var iou float64
	if union > 0 {
		iou = inter / union
	}
	fx, fy := fit.Center()
	sx, sy := subject.Center()
	centered := 1 - math.Hypot(fx-sx, fy-sy)/diagonal(image)
	return p.OverlapWeight*iou + p.CenterWeight*centered
}

// RuleOfThirdsPolicy favors crops that place the subject center on one of
// the four rule-of-thirds intersections of the crop.
type RuleOfThirdsPolicy struct{}

func (RuleOfThirdsPolicy) Score(fit, subject Rect, image Rect) float64 {
	sx, sy := subject.Center()
	best := math.Inf(1)
	for _, fx := range []float64{1.0 / 3, 2.0 / 3} {
		for _, fy := range []float64{1.0 / 3, 2.0 / 3} {
			px := fit.X + fit.Width*fx
			py := fit.Y + fit.Height*fy
			best = math.Min(best, math.Hypot(sx-px, sy-py))
		}
	}
	return 1 - best/diagonal(image)
}

// Ranker turns detector boxes into crop suggestions. The zero value uses
// DefaultPolicy and no padding.
type Ranker struct {
	// Policy scores each fitted crop. Nil means DefaultPolicy.
	Policy ScoringPolicy

	// Padding grows each candidate box on every side by this fraction of its
	// own size before fitting, e.g. 0.1 for 10%. Must be in [0,1].
	Padding float64
}

// Rank computes, for every candidate box and every target ratio, the smallest
// rectangle of that ratio containing the box, centered on it, shrunk if it is
// larger than the image and shifted inside the image. Results are sorted by
// score (descending), then by area (descending), then by input order.
//
// Candidates with non-finite or non-positive extent, or lying entirely
// outside the image, are skipped, as are ratios that are not finite and
// positive. The function is pure.
func (r Ranker) Rank(width, height float64, candidates []BoundingBox, ratios []float64) []Suggestion {
	if !(width > 0) || !(height > 0) || !finite(width) || !finite(height) {
		return nil
	}
	policy := r.Policy
	if policy == nil {
		policy = DefaultPolicy
	}
	image := Rect{Width: width, Height: height}
	padding := clamp(r.Padding, 0, 1)

	out := make([]Suggestion, 0, len(candidates)*len(ratios))
	for _, c := range candidates {
		box, ok := r.prepare(c.Rect, image, padding)
		if !ok {
			continue
		}
		confidence := 1.0
		if c.Confidence > 0 && c.Confidence <= 1 {
			confidence = c.Confidence
		}
		for _, ratio := range ratios {
			if !finite(ratio) || ratio <= 0 {
				continue
			}
			fit := fitRatio(box, ratio, image)
			score := clamp(policy.Score(fit, box, image), 0, 1) * confidence
			out = append(out, Suggestion{
				Ratio:  ratio,
				X:      fit.X,
				Y:      fit.Y,
				Width:  fit.Width,
				Height: fit.Height,
				Score:  score,
				Label:  label(c.Label, ratio),
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Width*out[i].Height > out[j].Width*out[j].Height
	})
	return out
}

// prepare validates a candidate, pads it and clips it to the image.
func (r Ranker) prepare(box, image Rect, padding float64) (Rect, bool) {
	if !box.finite() || box.Width <= 0 || box.Height <= 0 {
		return Rect{}, false
	}
	if padding > 0 {
		px, py := box.Width*padding, box.Height*padding
		box = Rect{
			X:      box.X - px,
			Y:      box.Y - py,
			Width:  box.Width + 2*px,
			Height: box.Height + 2*py,
		}
	}
	box = box.Intersect(image)
	if box.Width <= 0 || box.Height <= 0 {
		return Rect{}, false
	}
	return box, true
}

// fitRatio returns the smallest ratio-shaped rectangle containing box,
// centered on it and constrained to image.
func fitRatio(box Rect, ratio float64, image Rect) Rect {
	w, h := box.Width, box.Height
	if w/h > ratio {
		h = w / ratio
	} else {
		w = h * ratio
	}
	if w > image.Width || h > image.Height {
		s := math.Min(image.Width/w, image.Height/h)
		w *= s
		h *= s
	}
	cx, cy := box.Center()
	return Rect{
		X:      clamp(cx-w/2, 0, image.Width-w),
		Y:      clamp(cy-h/2, 0, image.Height-h),
		Width:  w,
		Height: h,
	}
}

var ratioNames = []struct {
	name  string
	ratio float64
}{
	{"1:1", 1},
	{"4:3", 4.0 / 3},
	{"3:4", 3.0 / 4},
	{"3:2", 3.0 / 2},
	{"2:3", 2.0 / 3},
	{"16:9", 16.0 / 9},
	{"9:16", 9.0 / 16},
	{"4:5", 4.0 / 5},
	{"5:4", 5.0 / 4},
	{"21:9", 21.0 / 9},
}

// RatioName returns the conventional name of a ratio ("16:9") or a decimal
// form ("1.85:1") when it has none.
func RatioName(ratio float64) string {
	for _, n := range ratioNames {
		if math.Abs(ratio-n.ratio) <= 1e-3*n.ratio {
			return n.name
		}
	}
	return fmt.Sprintf("%.2f:1", ratio)
}

func label(subject string, ratio float64) string {
	if subject == "" {
		return RatioName(ratio)
	}
	return subject + " " + RatioName(ratio)
}

func diagonal(r Rect) float64 {
	return math.Hypot(r.Width, r.Height)
}
