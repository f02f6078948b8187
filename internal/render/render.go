// Package render composites a session's edit state into pixels.
//
// Two Renderer implementations exist. Reference processes rows sequentially on
// the calling goroutine. Accelerated fans the same row kernels out across CPUs
// with bild's parallel dispatcher. Both call identical per-row functions over
// disjoint row ranges, so their output is bit-identical; acceleration never
// changes results.
package render

import (
	"context"
	"runtime"

	"github.com/anthonynsimon/bild/parallel"
	"github.com/rs/zerolog"

	"github.com/ironsheep/image-editor-mcp/internal/crop"
	apperrors "github.com/ironsheep/image-editor-mcp/internal/errors"
	"github.com/ironsheep/image-editor-mcp/internal/imaging"
	"github.com/ironsheep/image-editor-mcp/internal/transform"
)

// Kind names a renderer implementation.
type Kind string

const (
	KindReference   Kind = "reference"
	KindAccelerated Kind = "accelerated"
)

// bandRows is the number of rows processed between cancellation checks.
const bandRows = 16

// Job describes an export render: crop, then adjust, then resample.
type Job struct {
	Source *imaging.PixelBuffer

	// Crop is the image-space region to keep. The zero Rect means the whole
	// image. It is snapped to whole pixels.
	Crop crop.Rect

	// Flip is applied to Source before cropping; Crop is in flipped space.
	Flip imaging.Flip

	Adjustments imaging.Adjustments

	// Width and Height are the output size in pixels.
	Width  int
	Height int
}

// PreviewJob describes a viewport render through a pan/zoom transform.
// Viewport pixels that map outside the image are transparent.
type PreviewJob struct {
	Source      *imaging.PixelBuffer
	Transform   transform.Transform
	Flip        imaging.Flip
	Adjustments imaging.Adjustments
	Width       int
	Height      int
}

// Renderer produces pixels for export and preview.
type Renderer interface {
	Kind() Kind
	Render(ctx context.Context, job Job) (*imaging.PixelBuffer, error)
	Preview(ctx context.Context, job PreviewJob) (*imaging.PixelBuffer, error)
}

// rowFunc processes rows [y0, y1).
type rowFunc func(y0, y1 int)

// scheduler runs fn over rows [0, height), returning a canceled error if ctx
// ends first.
type scheduler func(ctx context.Context, height int, fn rowFunc) error

// Reference is the sequential software renderer.
type Reference struct{}

func (Reference) Kind() Kind { return KindReference }

func (Reference) Render(ctx context.Context, job Job) (*imaging.PixelBuffer, error) {
	return renderJob(ctx, job, sequentialRows)
}

func (Reference) Preview(ctx context.Context, job PreviewJob) (*imaging.PixelBuffer, error) {
	return previewJob(ctx, job, sequentialRows)
}

// Accelerated is the multi-core renderer.
type Accelerated struct{}

// NewAccelerated returns an Accelerated renderer, or an
// AccelerationUnavailable error when the host cannot run rows in parallel.
func NewAccelerated() (Accelerated, error) {
	if !AccelerationAvailable() {
		return Accelerated{}, apperrors.Errorf(apperrors.KindAccelerationUnavailable, "render.new_accelerated",
			"GOMAXPROCS=%d", runtime.GOMAXPROCS(0))
	}
	return Accelerated{}, nil
}

func (Accelerated) Kind() Kind { return KindAccelerated }

func (Accelerated) Render(ctx context.Context, job Job) (*imaging.PixelBuffer, error) {
	return renderJob(ctx, job, parallelRows)
}

func (Accelerated) Preview(ctx context.Context, job PreviewJob) (*imaging.PixelBuffer, error) {
	return previewJob(ctx, job, parallelRows)
}

// probe reports whether parallel rendering is possible. Tests replace it.
var probe = func() bool { return runtime.GOMAXPROCS(0) > 1 }

// AccelerationAvailable reports whether the accelerated renderer can be used
// on this host. It only selects a code path and never changes output.
func AccelerationAvailable() bool { return probe() }

// Select picks the renderer for a new session. When acceleration is preferred
// but unavailable, the failure is logged and the reference renderer is used.
func Select(preferAccelerated bool, logger zerolog.Logger) Renderer {
	if !preferAccelerated {
		return Reference{}
	}
	r, err := NewAccelerated()
	if err != nil {
		logger.Warn().Err(err).Msg("Accelerated rendering unavailable, falling back to reference renderer")
		return Reference{}
	}
	return r
}

func sequentialRows(ctx context.Context, height int, fn rowFunc) error {
	for y0 := 0; y0 < height; y0 += bandRows {
		if err := ctx.Err(); err != nil {
			return canceled(err)
		}
		fn(y0, min(y0+bandRows, height))
	}
	return nil
}

func parallelRows(ctx context.Context, height int, fn rowFunc) error {
	parallel.Line(height, func(start, end int) {
		for y0 := start; y0 < end; y0 += bandRows {
			if ctx.Err() != nil {
				return
			}
			fn(y0, min(y0+bandRows, end))
		}
	})
	if err := ctx.Err(); err != nil {
		return canceled(err)
	}
	return nil
}

func canceled(err error) error {
	return apperrors.New(apperrors.KindCanceled, "render", err)
}

func renderJob(ctx context.Context, job Job, rows scheduler) (*imaging.PixelBuffer, error) {
	const op = "render.export"

	if job.Source == nil {
		return nil, apperrors.Errorf(apperrors.KindInvalidArgument, op, "no source image")
	}
	if job.Width <= 0 || job.Height <= 0 {
		return nil, apperrors.Errorf(apperrors.KindInvalidDimensions, op,
			"output size must be positive, got %dx%d", job.Width, job.Height)
	}
	if err := ctx.Err(); err != nil {
		return nil, canceled(err)
	}

	src := imaging.Mirror(job.Source, job.Flip)
	region := job.Crop
	if region == (crop.Rect{}) {
		region = crop.Rect{Width: float64(src.Width()), Height: float64(src.Height())}
	}
	cropped, err := imaging.Crop(src, region.X, region.Y, region.Width, region.Height)
	if err != nil {
		return nil, err
	}

	adjusted := cropped
	k := imaging.NewAdjustKernel(job.Adjustments)
	if !k.Identity() {
		dst, err := imaging.NewBlank(cropped.Width(), cropped.Height())
		if err != nil {
			return nil, err
		}
		if err := rows(ctx, cropped.Height(), func(y0, y1 int) {
			k.AdjustRows(dst, cropped, y0, y1)
		}); err != nil {
			return nil, err
		}
		adjusted = dst
	}

	if adjusted.Width() == job.Width && adjusted.Height() == job.Height {
		return adjusted, nil
	}

	out, err := imaging.NewBlank(job.Width, job.Height)
	if err != nil {
		return nil, err
	}
	m := imaging.ScaleMapper(adjusted, job.Width, job.Height)
	if err := rows(ctx, job.Height, func(y0, y1 int) {
		imaging.MapRows(out, adjusted, m, nil, y0, y1)
	}); err != nil {
		return nil, err
	}
	return out, nil
}

func previewJob(ctx context.Context, job PreviewJob, rows scheduler) (*imaging.PixelBuffer, error) {
	const op = "render.preview"

	if job.Source == nil {
		return nil, apperrors.Errorf(apperrors.KindInvalidArgument, op, "no source image")
	}
	if !job.Transform.Valid() {
		return nil, apperrors.Errorf(apperrors.KindInvalidArgument, op, "invalid transform %v", job.Transform)
	}
	out, err := imaging.NewBlank(job.Width, job.Height)
	if err != nil {
		return nil, err
	}

	var k *imaging.AdjustKernel
	if !job.Adjustments.IsIdentity() {
		k = imaging.NewAdjustKernel(job.Adjustments)
	}
	w, h := job.Source.Width(), job.Source.Height()
	maxX := float64(w) - 0.5
	maxY := float64(h) - 0.5
	t, flip := job.Transform, job.Flip
	m := func(x, y int) (float64, float64, bool) {
		ix, iy := t.ScreenToImage(float64(x), float64(y))
		if ix < -0.5 || iy < -0.5 || ix >= maxX || iy >= maxY {
			return 0, 0, false
		}
		ix, iy = flip.Source(ix, iy, w, h)
		return ix, iy, true
	}

	if err := rows(ctx, job.Height, func(y0, y1 int) {
		imaging.MapRows(out, job.Source, m, k, y0, y1)
	}); err != nil {
		return nil, err
	}
	return out, nil
}
