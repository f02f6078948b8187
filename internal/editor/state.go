package editor

import (
	"fmt"

	"github.com/ironsheep/image-editor-mcp/internal/crop"
	apperrors "github.com/ironsheep/image-editor-mcp/internal/errors"
	"github.com/ironsheep/image-editor-mcp/internal/imaging"
	"github.com/ironsheep/image-editor-mcp/internal/transform"
)

// Lifecycle is the session's position in the load/edit/export cycle.
type Lifecycle string

const (
	Empty     Lifecycle = "empty"
	Loading   Lifecycle = "loading"
	Ready     Lifecycle = "ready"
	Exporting Lifecycle = "exporting"
)

// Field names a part of State that a transition changed.
type Field string

const (
	FieldLifecycle   Field = "lifecycle"
	FieldImage       Field = "image"
	FieldTransform   Field = "transform"
	FieldAdjustments Field = "adjustments"
	FieldCrop        Field = "crop"
	FieldOrientation Field = "orientation"
)

// Change reports the outcome of a committed transition.
type Change struct {
	Fields    []Field   `json:"fields"`
	Lifecycle Lifecycle `json:"lifecycle"`
	Version   uint64    `json:"version"`
}

// Has reports whether f is among the changed fields.
func (c Change) Has(f Field) bool {
	for _, x := range c.Fields {
		if x == f {
			return true
		}
	}
	return false
}

// State is the complete edit state of one session. It is a value: every
// transition returns a new State and leaves the receiver untouched. The image
// buffer is immutable and shared between copies.
type State struct {
	Lifecycle   Lifecycle
	Image       *imaging.PixelBuffer
	Info        imaging.Info
	Name        string
	Transform   transform.Transform
	Adjustments imaging.Adjustments
	Crop        crop.Manager
	Orientation imaging.Flip
}

// NewState returns the empty state.
func NewState() State {
	return State{Lifecycle: Empty, Transform: transform.Identity()}
}

// HasImage reports whether an image is loaded.
func (s State) HasImage() bool { return s.Image != nil }

func (s State) requireReady(op string) error {
	if s.Lifecycle != Ready {
		return apperrors.Errorf(apperrors.KindNotReady, op, "session is %s", s.Lifecycle)
	}
	return nil
}

func changed(s State, fields ...Field) Change {
	return Change{Fields: fields, Lifecycle: s.Lifecycle}
}

// BeginLoad moves to Loading. A load may start from Empty or Ready; the new
// image replaces the old one.
func (s State) BeginLoad() (State, Change, error) {
	if s.Lifecycle != Empty && s.Lifecycle != Ready {
		return s, Change{}, apperrors.Errorf(apperrors.KindNotReady, "editor.load", "session is %s", s.Lifecycle)
	}
	s.Lifecycle = Loading
	return s, changed(s, FieldLifecycle), nil
}

// CompleteLoad installs a decoded image with fresh edit state.
func (s State) CompleteLoad(img *imaging.PixelBuffer, info imaging.Info, name string, mode crop.InvariantMode) (State, Change, error) {
	if s.Lifecycle != Loading {
		return s, Change{}, apperrors.Errorf(apperrors.KindNotReady, "editor.load", "session is %s", s.Lifecycle)
	}
	m, err := crop.NewManager(img.Width(), img.Height(), mode)
	if err != nil {
		return s, Change{}, err
	}
	next := State{
		Lifecycle: Ready,
		Image:     img,
		Info:      info,
		Name:      name,
		Transform: transform.Identity(),
		Crop:      m,
	}
	return next, changed(next, FieldLifecycle, FieldImage, FieldTransform, FieldAdjustments, FieldCrop, FieldOrientation), nil
}

// FailLoad abandons a load and returns to Empty, dropping any previous image.
func (s State) FailLoad() (State, Change) {
	next := NewState()
	return next, changed(next, FieldLifecycle, FieldImage, FieldTransform, FieldAdjustments, FieldCrop, FieldOrientation)
}

// Pan translates the viewport.
func (s State) Pan(dx, dy float64) (State, Change, error) {
	if err := s.requireReady("editor.pan"); err != nil {
		return s, Change{}, err
	}
	t, err := s.Transform.Pan(dx, dy)
	if err != nil {
		return s, Change{}, err
	}
	s.Transform = t
	return s, changed(s, FieldTransform), nil
}

// ZoomAt rescales about a fixed viewport point, clamped to limits.
func (s State) ZoomAt(factor, ax, ay float64, limits transform.Limits) (State, Change, error) {
	if err := s.requireReady("editor.zoom_at"); err != nil {
		return s, Change{}, err
	}
	t, err := s.Transform.ZoomAt(factor, ax, ay, limits)
	if err != nil {
		return s, Change{}, err
	}
	s.Transform = t
	return s, changed(s, FieldTransform), nil
}

// FitToViewport centers the whole image in a viewW×viewH viewport.
func (s State) FitToViewport(viewW, viewH float64, limits transform.Limits) (State, Change, error) {
	if err := s.requireReady("editor.fit"); err != nil {
		return s, Change{}, err
	}
	t, err := transform.FitTo(viewW, viewH, float64(s.Image.Width()), float64(s.Image.Height()), limits)
	if err != nil {
		return s, Change{}, err
	}
	s.Transform = t
	return s, changed(s, FieldTransform), nil
}

// ResetTransform restores the identity transform.
func (s State) ResetTransform() (State, Change, error) {
	if err := s.requireReady("editor.reset_transform"); err != nil {
		return s, Change{}, err
	}
	s.Transform = transform.Identity()
	return s, changed(s, FieldTransform), nil
}

// SetAdjustments replaces the tonal settings after validating them.
func (s State) SetAdjustments(a imaging.Adjustments) (State, Change, error) {
	if err := s.requireReady("editor.set_adjustments"); err != nil {
		return s, Change{}, err
	}
	if err := a.Validate(); err != nil {
		return s, Change{}, err
	}
	s.Adjustments = a
	return s, changed(s, FieldAdjustments), nil
}

// ResetAdjustments restores the identity adjustments.
func (s State) ResetAdjustments() (State, Change, error) {
	return s.SetAdjustments(imaging.Adjustments{})
}

// SetCropRegion replaces the crop rectangle.
func (s State) SetCropRegion(r crop.Rect) (State, Change, error) {
	if err := s.requireReady("editor.set_crop_region"); err != nil {
		return s, Change{}, err
	}
	if err := s.Crop.SetRegion(r); err != nil {
		return s, Change{}, err
	}
	return s, changed(s, FieldCrop), nil
}

// SetCropRatio changes the aspect lock; nil unlocks.
func (s State) SetCropRatio(ratio *float64) (State, Change, error) {
	if err := s.requireReady("editor.set_crop_ratio"); err != nil {
		return s, Change{}, err
	}
	if err := s.Crop.SetRatio(ratio); err != nil {
		return s, Change{}, err
	}
	return s, changed(s, FieldCrop), nil
}

// ClearCrop removes the crop; export then uses the full image.
func (s State) ClearCrop() (State, Change, error) {
	if err := s.requireReady("editor.clear_crop"); err != nil {
		return s, Change{}, err
	}
	s.Crop.Clear()
	return s, changed(s, FieldCrop), nil
}

// Flip mirrors the image about the requested axes. The crop region follows
// so it keeps covering the same pixels. At least one axis is required.
func (s State) Flip(horizontal, vertical bool) (State, Change, error) {
	const op = "editor.flip"
	if err := s.requireReady(op); err != nil {
		return s, Change{}, err
	}
	if !horizontal && !vertical {
		return s, Change{}, apperrors.Errorf(apperrors.KindInvalidArgument, op, "no axis to flip")
	}
	s.Orientation = s.Orientation.Then(imaging.Flip{Horizontal: horizontal, Vertical: vertical})
	s.Crop.Mirror(horizontal, vertical)
	return s, changed(s, FieldOrientation, FieldCrop), nil
}

// ResetEdits discards every edit but keeps the image.
func (s State) ResetEdits() (State, Change, error) {
	if err := s.requireReady("editor.reset"); err != nil {
		return s, Change{}, err
	}
	s.Transform = transform.Identity()
	s.Adjustments = imaging.Adjustments{}
	s.Crop.Reset()
	s.Orientation = imaging.Flip{}
	return s, changed(s, FieldTransform, FieldAdjustments, FieldCrop, FieldOrientation), nil
}

// BeginExport moves Ready to Exporting. An export may also start while
// another is in flight; the state then stays Exporting.
func (s State) BeginExport() (State, Change, error) {
	switch s.Lifecycle {
	case Ready:
		s.Lifecycle = Exporting
		return s, changed(s, FieldLifecycle), nil
	case Exporting:
		return s, Change{}, nil
	}
	return s, Change{}, apperrors.Errorf(apperrors.KindNotReady, "editor.export", "session is %s", s.Lifecycle)
}

// EndExport returns from Exporting to Ready.
func (s State) EndExport() (State, Change) {
	if s.Lifecycle != Exporting {
		return s, Change{}
	}
	s.Lifecycle = Ready
	return s, changed(s, FieldLifecycle)
}

func (s State) String() string {
	if !s.HasImage() {
		return fmt.Sprintf("State(%s)", s.Lifecycle)
	}
	return fmt.Sprintf("State(%s, %dx%d, %v)", s.Lifecycle, s.Image.Width(), s.Image.Height(), s.Transform)
}
