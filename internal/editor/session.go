package editor

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ironsheep/image-editor-mcp/internal/config"
	"github.com/ironsheep/image-editor-mcp/internal/crop"
	apperrors "github.com/ironsheep/image-editor-mcp/internal/errors"
	"github.com/ironsheep/image-editor-mcp/internal/imaging"
	"github.com/ironsheep/image-editor-mcp/internal/render"
)

// Observer receives every committed Change. Observers run synchronously on
// the goroutine that made the change, after the session lock is released.
type Observer func(Change)

// Session is one open image and its edit state.
//
// All methods are safe for concurrent use; the session serializes mutations
// with a mutex. Exports snapshot the state and render outside the lock.
type Session struct {
	id       string
	cfg      config.Config
	mode     crop.InvariantMode
	renderer render.Renderer
	logger   zerolog.Logger

	mu        sync.Mutex
	state     State
	version   uint64
	job       *ExportJob
	observers map[int]Observer
	nextObs   int
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Renderer returns the renderer selected for this session.
func (s *Session) Renderer() render.Kind { return s.renderer.Kind() }

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Lifecycle returns the current lifecycle state.
func (s *Session) Lifecycle() Lifecycle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Lifecycle
}

// Subscribe registers fn for every future Change and returns a function that
// removes it.
func (s *Session) Subscribe(fn Observer) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.observers == nil {
		s.observers = make(map[int]Observer)
	}
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

// commit installs next and returns the observers to notify. Callers hold mu.
func (s *Session) commit(next State, c Change) (Change, []Observer) {
	s.state = next
	if len(c.Fields) == 0 {
		return c, nil
	}
	s.version++
	c.Version = s.version
	ids := make([]int, 0, len(s.observers))
	for id := range s.observers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	obs := make([]Observer, 0, len(ids))
	for _, id := range ids {
		obs = append(obs, s.observers[id])
	}
	return c, obs
}

func notify(c Change, obs []Observer) {
	for _, fn := range obs {
		fn(c)
	}
}

// mutate applies a pure transition under the lock. On error nothing changes.
func (s *Session) mutate(t func(State) (State, Change, error)) error {
	s.mu.Lock()
	next, c, err := t(s.state)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	c, obs := s.commit(next, c)
	s.mu.Unlock()
	notify(c, obs)
	return nil
}

// Load decodes data and installs it as the session image, discarding all
// previous edits. On failure the session returns to Empty.
//
// hint is the declared format, or imaging.FormatUnknown to sniff. name is the
// source file name used to name exports.
func (s *Session) Load(ctx context.Context, data []byte, hint imaging.Format, name string) (imaging.Info, error) {
	if err := s.mutate(State.BeginLoad); err != nil {
		return imaging.Info{}, err
	}

	start := time.Now()
	buf, info, err := imaging.Decode(data, hint, imaging.DecodeOptions{
		MaxBytes:  s.cfg.MaxDecodeBytes,
		MaxPixels: s.cfg.MaxPixels,
	})
	if err == nil && ctx.Err() != nil {
		err = apperrors.New(apperrors.KindCanceled, "editor.load", ctx.Err())
	}
	if err != nil {
		s.mutate(func(st State) (State, Change, error) {
			next, c := st.FailLoad()
			return next, c, nil
		})
		s.logger.Warn().Err(err).Int("bytes", len(data)).Msg("Image load failed")
		return imaging.Info{}, err
	}

	err = s.mutate(func(st State) (State, Change, error) {
		return st.CompleteLoad(buf, info, name, s.mode)
	})
	if err != nil {
		return imaging.Info{}, err
	}
	s.logger.Info().
		Str("format", string(info.Format)).
		Int("width", info.Width).
		Int("height", info.Height).
		Dur("elapsed", time.Since(start)).
		Msg("Image loaded")
	return info, nil
}

// Pan translates the viewport by (dx, dy) screen units.
func (s *Session) Pan(dx, dy float64) error {
	return s.mutate(func(st State) (State, Change, error) { return st.Pan(dx, dy) })
}

// ZoomAt multiplies the zoom by factor keeping the viewport point (ax, ay)
// fixed. The resulting scale is clamped to the configured bounds.
func (s *Session) ZoomAt(factor, ax, ay float64) error {
	return s.mutate(func(st State) (State, Change, error) {
		return st.ZoomAt(factor, ax, ay, s.cfg.Limits())
	})
}

// FitToViewport centers the whole image in a viewW×viewH viewport.
func (s *Session) FitToViewport(viewW, viewH float64) error {
	return s.mutate(func(st State) (State, Change, error) {
		return st.FitToViewport(viewW, viewH, s.cfg.Limits())
	})
}

// ResetTransform restores the identity transform.
func (s *Session) ResetTransform() error { return s.mutate(State.ResetTransform) }

// SetAdjustments replaces brightness, contrast and saturation.
func (s *Session) SetAdjustments(a imaging.Adjustments) error {
	return s.mutate(func(st State) (State, Change, error) { return st.SetAdjustments(a) })
}

// UpdateAdjustments replaces the adjustments with fn(current). fn runs under
// the session lock, so concurrent partial updates do not overwrite each other.
// fn must not call back into the session.
func (s *Session) UpdateAdjustments(fn func(imaging.Adjustments) imaging.Adjustments) error {
	return s.mutate(func(st State) (State, Change, error) {
		return st.SetAdjustments(fn(st.Adjustments))
	})
}

// ResetAdjustments restores neutral adjustments.
func (s *Session) ResetAdjustments() error { return s.mutate(State.ResetAdjustments) }

// SetCropRegion replaces the crop rectangle (image space).
func (s *Session) SetCropRegion(r crop.Rect) error {
	return s.mutate(func(st State) (State, Change, error) { return st.SetCropRegion(r) })
}

// SetCropRatio locks the crop to width/height == *ratio, or unlocks when nil.
func (s *Session) SetCropRatio(ratio *float64) error {
	return s.mutate(func(st State) (State, Change, error) { return st.SetCropRatio(ratio) })
}

// ClearCrop removes the crop rectangle.
func (s *Session) ClearCrop() error { return s.mutate(State.ClearCrop) }

// Reset discards all edits, keeping the image.
func (s *Session) Reset() error { return s.mutate(State.ResetEdits) }

// RankCropSuggestions ranks detector boxes against target ratios for the
// loaded image using the default scoring policy. It does not change the
// session.
func (s *Session) RankCropSuggestions(candidates []crop.BoundingBox, ratios []float64) ([]crop.Suggestion, error) {
	return s.RankCropSuggestionsWith(crop.Ranker{}, candidates, ratios)
}

// RankCropSuggestionsWith is RankCropSuggestions with a caller-configured
// ranker (padding, scoring policy).
func (s *Session) RankCropSuggestionsWith(r crop.Ranker, candidates []crop.BoundingBox, ratios []float64) ([]crop.Suggestion, error) {
	st := s.Snapshot()
	if !st.HasImage() {
		return nil, apperrors.Errorf(apperrors.KindNotReady, "editor.suggest_crops", "no image loaded")
	}
	return r.Rank(float64(st.Image.Width()), float64(st.Image.Height()), candidates, ratios), nil
}

// RenderPreview renders the viewport through the current transform and
// adjustments. Pixels outside the image are transparent.
func (s *Session) RenderPreview(ctx context.Context, viewW, viewH int) (*imaging.PixelBuffer, error) {
	if viewW <= 0 || viewH <= 0 {
		return nil, apperrors.Errorf(apperrors.KindInvalidDimensions, "editor.preview",
			"viewport must be positive, got %dx%d", viewW, viewH)
	}
	if err := imaging.CheckOutputSize(uint64(viewW), uint64(viewH), s.cfg.MaxOutputPixels); err != nil {
		return nil, err
	}
	st := s.Snapshot()
	if !st.HasImage() {
		return nil, apperrors.Errorf(apperrors.KindNotReady, "editor.preview", "no image loaded")
	}
	return s.renderer.Preview(ctx, render.PreviewJob{
		Source:      st.Image,
		Transform:   st.Transform,
		Flip:        st.Orientation,
		Adjustments: st.Adjustments,
		Width:       viewW,
		Height:      viewH,
	})
}

// ProbeColor reports the adjusted color of the image pixel under the
// viewport point (screenX, screenY). Points outside the image fail with
// OutOfBounds.
func (s *Session) ProbeColor(screenX, screenY float64) (imaging.ColorResult, error) {
	st := s.Snapshot()
	if !st.HasImage() {
		return imaging.ColorResult{}, apperrors.Errorf(apperrors.KindNotReady, "editor.probe_color", "no image loaded")
	}
	ix, iy := st.Transform.ScreenToImage(screenX, screenY)
	if !st.Image.Contains(ix, iy) {
		return imaging.ColorResult{}, apperrors.Errorf(apperrors.KindOutOfBounds, "editor.probe_color",
			"point (%g, %g) maps outside the image", screenX, screenY)
	}
	ix, iy = st.Orientation.Source(ix, iy, st.Image.Width(), st.Image.Height())
	c, err := st.Image.SampleWith(ix, iy, imaging.SampleClamp)
	if err != nil {
		return imaging.ColorResult{}, err
	}
	return imaging.DescribeColor(imaging.NewAdjustKernel(st.Adjustments).Pixel(c)), nil
}

// Flip mirrors the image horizontally, vertically or both. The crop region
// follows the pixels it covered.
func (s *Session) Flip(horizontal, vertical bool) error {
	return s.mutate(func(st State) (State, Change, error) { return st.Flip(horizontal, vertical) })
}

// Thumbnail returns the unedited image scaled to fit maxW×maxH.
func (s *Session) Thumbnail(maxW, maxH int) (*imaging.PixelBuffer, error) {
	st := s.Snapshot()
	if !st.HasImage() {
		return nil, apperrors.Errorf(apperrors.KindNotReady, "editor.thumbnail", "no image loaded")
	}
	return imaging.Thumbnail(st.Image, maxW, maxH)
}

// Close cancels any export in flight and returns the session to Empty.
func (s *Session) Close() {
	s.mu.Lock()
	if s.job != nil {
		s.job.cancel()
		s.job = nil
	}
	next, c := s.state.FailLoad()
	c, obs := s.commit(next, c)
	s.mu.Unlock()
	notify(c, obs)
	s.logger.Debug().Msg("Session closed")
}
