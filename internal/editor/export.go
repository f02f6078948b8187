package editor

import (
	"context"
	"time"

	apperrors "github.com/ironsheep/image-editor-mcp/internal/errors"
	"github.com/ironsheep/image-editor-mcp/internal/export"
	"github.com/ironsheep/image-editor-mcp/internal/imaging"
	"github.com/ironsheep/image-editor-mcp/internal/render"
)

// ExportJob is a handle on an export running in the background.
type ExportJob struct {
	cancel context.CancelFunc
	done   chan struct{}

	file export.EncodedFile
	err  error
}

// Cancel abandons the export. The session state is not affected.
func (j *ExportJob) Cancel() { j.cancel() }

// Done is closed when the export has finished, successfully or not.
func (j *ExportJob) Done() <-chan struct{} { return j.done }

// Result waits for the export and returns its output.
func (j *ExportJob) Result() (export.EncodedFile, error) {
	<-j.done
	return j.file, j.err
}

// Export renders the current edit state and encodes it. It blocks until the
// file is ready; see StartExport for the asynchronous form.
func (s *Session) Export(ctx context.Context, cfg export.Config) (export.EncodedFile, error) {
	job, err := s.StartExport(ctx, cfg)
	if err != nil {
		return export.EncodedFile{}, err
	}
	return job.Result()
}

// StartExport begins rendering and encoding the current edit state and
// returns immediately.
//
// The pipeline is crop, then adjustments, then bilinear resampling to the
// configured size, then encoding. The state is snapshotted when the export
// starts, so the result reflects the edits at that moment. A newer export
// supersedes one still in flight: the older job is canceled and returns a
// Canceled error. Cancellation never changes the session's edit state.
//
// Configuration errors (InvalidDimensions, UnsupportedFormat) are returned
// synchronously, as is NotReady when no image is ready. A size above the
// configured output pixel limit is InvalidDimensions.
func (s *Session) StartExport(ctx context.Context, cfg export.Config) (*ExportJob, error) {
	if cfg.Quality == nil && s.cfg.DefaultQuality > 0 {
		q := uint8(s.cfg.DefaultQuality)
		cfg.Quality = &q
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := imaging.CheckOutputSize(uint64(cfg.Width), uint64(cfg.Height), s.cfg.MaxOutputPixels); err != nil {
		return nil, err
	}

	jobCtx, cancel := context.WithCancel(ctx)
	job := &ExportJob{cancel: cancel, done: make(chan struct{})}

	s.mu.Lock()
	next, c, err := s.state.BeginExport()
	if err != nil {
		s.mu.Unlock()
		cancel()
		return nil, err
	}
	if s.job != nil {
		s.job.cancel()
		s.logger.Debug().Msg("Export superseded by newer request")
	}
	s.job = job
	c, obs := s.commit(next, c)
	snapshot := s.state
	s.mu.Unlock()
	notify(c, obs)

	go s.runExport(jobCtx, job, snapshot, cfg)
	return job, nil
}

func (s *Session) runExport(ctx context.Context, job *ExportJob, st State, cfg export.Config) {
	start := time.Now()
	file, err := s.renderAndEncode(ctx, st, cfg)
	if err == nil && ctx.Err() != nil {
		err = apperrors.New(apperrors.KindCanceled, "editor.export", ctx.Err())
	}
	job.file, job.err = file, err

	s.mu.Lock()
	var c Change
	var obs []Observer
	if s.job == job {
		s.job = nil
		next, ch := s.state.EndExport()
		c, obs = s.commit(next, ch)
	}
	s.mu.Unlock()
	job.cancel()
	close(job.done)
	notify(c, obs)

	ev := s.logger.Info()
	if err != nil {
		ev = s.logger.Warn().Err(err)
	}
	ev.Str("format", string(cfg.Format)).
		Int("bytes", file.Size).
		Dur("elapsed", time.Since(start)).
		Msg("Export finished")
}

func (s *Session) renderAndEncode(ctx context.Context, st State, cfg export.Config) (export.EncodedFile, error) {
	region, w, h := cfg.Plan(st.Crop.Effective())
	buf, err := s.renderer.Render(ctx, render.Job{
		Source:      st.Image,
		Crop:        region,
		Flip:        st.Orientation,
		Adjustments: st.Adjustments,
		Width:       w,
		Height:      h,
	})
	if err != nil {
		return export.EncodedFile{}, err
	}
	if err := ctx.Err(); err != nil {
		return export.EncodedFile{}, apperrors.New(apperrors.KindCanceled, "editor.export", err)
	}
	return export.Encode(buf, cfg, st.Name)
}
