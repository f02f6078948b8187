// Package editor orchestrates image editing sessions.
//
// An Engine must be initialized once before it creates sessions:
//
//	eng := editor.NewEngine(cfg, logger)
//	if err := eng.Initialize(); err != nil { ... }
//	sess, err := eng.CreateSession()
//
// Each Session owns one image and its edit state (transform, adjustments,
// crop) and moves through the lifecycle Empty → Loading → Ready →
// Exporting → Ready. Mutations are only accepted in Ready. Sessions share no
// mutable state and may be used concurrently with each other.
package editor

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ironsheep/image-editor-mcp/internal/config"
	"github.com/ironsheep/image-editor-mcp/internal/crop"
	apperrors "github.com/ironsheep/image-editor-mcp/internal/errors"
	"github.com/ironsheep/image-editor-mcp/internal/export"
	"github.com/ironsheep/image-editor-mcp/internal/render"
)

// Engine creates sessions that share one configuration.
type Engine struct {
	cfg    config.Config
	logger zerolog.Logger

	// probe checks that every encoder works. Tests replace it.
	probe func() error

	mu          sync.Mutex
	initialized bool
}

// NewEngine returns an uninitialized engine.
func NewEngine(cfg config.Config, logger zerolog.Logger) *Engine {
	return &Engine{cfg: cfg, logger: logger, probe: export.Probe}
}

// Initialize validates the configuration and probes the encoders. It is
// idempotent: after the first success later calls return nil immediately. A
// failure is reported as EngineUnavailable and may be retried.
func (e *Engine) Initialize() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.initialized {
		return nil
	}
	if err := e.cfg.Validate(); err != nil {
		return apperrors.New(apperrors.KindEngineUnavailable, "editor.initialize", err)
	}
	if err := e.probe(); err != nil {
		e.logger.Error().Err(err).Msg("Encoder probe failed")
		return apperrors.Wrap(apperrors.KindEngineUnavailable, "editor.initialize", err)
	}

	e.initialized = true
	e.logger.Info().
		Bool("acceleration_available", render.AccelerationAvailable()).
		Bool("acceleration_enabled", e.cfg.Acceleration).
		Msg("Editor engine initialized")
	return nil
}

// Initialized reports whether Initialize has succeeded.
func (e *Engine) Initialized() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.initialized
}

// Config returns the engine configuration.
func (e *Engine) Config() config.Config { return e.cfg }

// CreateSession returns a new Empty session. It fails with EngineUnavailable
// until Initialize has succeeded.
func (e *Engine) CreateSession() (*Session, error) {
	if !e.Initialized() {
		return nil, apperrors.Errorf(apperrors.KindEngineUnavailable, "editor.create_session",
			"engine not initialized")
	}

	id := uuid.NewString()
	logger := e.logger.With().Str("session", id).Logger()
	mode := crop.InvariantClamp
	if e.cfg.StrictInvariants {
		mode = crop.InvariantStrict
	}

	s := &Session{
		id:       id,
		cfg:      e.cfg,
		mode:     mode,
		renderer: render.Select(e.cfg.Acceleration, logger),
		logger:   logger,
		state:    NewState(),
	}
	logger.Debug().Str("renderer", string(s.renderer.Kind())).Msg("Session created")
	return s, nil
}
