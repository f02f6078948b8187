package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ironsheep/image-editor-mcp/internal/crop"
	"github.com/ironsheep/image-editor-mcp/internal/editor"
	apperrors "github.com/ironsheep/image-editor-mcp/internal/errors"
	"github.com/ironsheep/image-editor-mcp/internal/export"
	"github.com/ironsheep/image-editor-mcp/internal/imaging"
	"github.com/ironsheep/image-editor-mcp/internal/transform"
)

// defaultRatios are ranked when editor_suggest_crops is given no ratios.
var defaultRatios = []float64{1, 4.0 / 3, 16.0 / 9}

// executeTool dispatches tool execution to the appropriate handler function.
//
// Each tool handler:
//  1. Unmarshals arguments from JSON
//  2. Resolves the session named by session_id
//  3. Calls the corresponding editor.Session operation
//  4. Returns the result or error
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (any, error) {
	switch name {
	// Session Lifecycle
	case "editor_load":
		return s.handleEditorLoad(ctx, args)
	case "editor_state":
		return s.withSession(args, func(*editor.Session) error { return nil })
	case "editor_close":
		return s.handleEditorClose(args)

	// View Transform
	case "editor_pan":
		return s.handleEditorPan(args)
	case "editor_zoom":
		return s.handleEditorZoom(args)
	case "editor_fit":
		return s.handleEditorFit(args)
	case "editor_reset_transform":
		return s.withSession(args, (*editor.Session).ResetTransform)
	case "editor_preview":
		return s.handleEditorPreview(ctx, args)
	case "editor_flip":
		return s.handleEditorFlip(args)

	// Color Adjustments
	case "editor_set_adjustments":
		return s.handleEditorSetAdjustments(args)
	case "editor_reset_adjustments":
		return s.withSession(args, (*editor.Session).ResetAdjustments)
	case "editor_probe_color":
		return s.handleEditorProbeColor(args)

	// Crop
	case "editor_set_crop":
		return s.handleEditorSetCrop(args)
	case "editor_set_crop_ratio":
		return s.handleEditorSetCropRatio(args)
	case "editor_clear_crop":
		return s.withSession(args, (*editor.Session).ClearCrop)
	case "editor_suggest_crops":
		return s.handleEditorSuggestCrops(args)

	// Export
	case "editor_export":
		return s.handleEditorExport(ctx, args)

	default:
		return nil, apperrors.Errorf(apperrors.KindInvalidArgument, "server.execute", "unknown tool: %s", name)
	}
}

// decodeArgs unmarshals tool arguments, treating an absent payload as empty.
func decodeArgs(args json.RawMessage, v any) error {
	if len(args) == 0 {
		return nil
	}
	if err := json.Unmarshal(args, v); err != nil {
		return apperrors.New(apperrors.KindInvalidArgument, "server.arguments", err)
	}
	return nil
}

// === Session State ===

// cropState describes the crop part of a session.
type cropState struct {
	Region *crop.Rect `json:"region,omitempty"`
	Ratio  *float64   `json:"ratio,omitempty"`
}

// sessionState is the JSON view of a session returned by most tools.
type sessionState struct {
	SessionID   string              `json:"session_id"`
	Lifecycle   editor.Lifecycle    `json:"lifecycle"`
	Renderer    string              `json:"renderer"`
	Image       *imaging.Info       `json:"image,omitempty"`
	Name        string              `json:"name,omitempty"`
	Transform   transform.Transform `json:"transform"`
	Adjustments imaging.Adjustments `json:"adjustments"`
	Crop        cropState           `json:"crop"`
	Orientation imaging.Flip        `json:"orientation"`
}

func describe(sess *editor.Session) sessionState {
	st := sess.Snapshot()
	out := sessionState{
		SessionID:   sess.ID(),
		Lifecycle:   st.Lifecycle,
		Renderer:    string(sess.Renderer()),
		Name:        st.Name,
		Transform:   st.Transform,
		Adjustments: st.Adjustments,
		Orientation: st.Orientation,
	}
	if st.HasImage() {
		info := st.Info
		out.Image = &info
	}
	if r, ok := st.Crop.Region(); ok {
		out.Crop.Region = &r.Rect
	}
	if ratio, ok := st.Crop.Ratio(); ok {
		out.Crop.Ratio = &ratio
	}
	return out
}

type sessionArgs struct {
	SessionID string `json:"session_id"`
}

// withSession runs op on the session named in args and returns its new state.
func (s *Server) withSession(args json.RawMessage, op func(*editor.Session) error) (any, error) {
	var a sessionArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	sess, err := s.session(a.SessionID)
	if err != nil {
		return nil, err
	}
	if err := op(sess); err != nil {
		return nil, err
	}
	return describe(sess), nil
}

// === Session Lifecycle Handlers ===

type editorLoadArgs struct {
	SessionID string `json:"session_id"`
	Path      string `json:"path"`
	Data      string `json:"data"`
	Format    string `json:"format"`
	Name      string `json:"name"`
}

func (s *Server) handleEditorLoad(ctx context.Context, args json.RawMessage) (any, error) {
	var a editorLoadArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	hint := imaging.ParseFormat(a.Format)
	if a.Format != "" && hint == imaging.FormatUnknown {
		return nil, apperrors.Errorf(apperrors.KindUnsupportedFormat, "server.load", "unknown format %q", a.Format)
	}
	data, name, err := s.readSource(a)
	if err != nil {
		return nil, err
	}

	var sess *editor.Session
	created := a.SessionID == ""
	if created {
		sess, err = s.openSession()
	} else {
		sess, err = s.session(a.SessionID)
	}
	if err != nil {
		return nil, err
	}

	if _, err := sess.Load(ctx, data, hint, name); err != nil {
		if created {
			_ = s.closeSession(sess.ID())
		}
		return nil, err
	}
	return describe(sess), nil
}

// readSource returns the image bytes named by a path or carried inline.
func (s *Server) readSource(a editorLoadArgs) ([]byte, string, error) {
	const op = "server.load"
	switch {
	case a.Path != "" && a.Data != "":
		return nil, "", apperrors.Errorf(apperrors.KindInvalidArgument, op, "give either path or data, not both")
	case a.Path != "":
		limit := s.engine.Config().MaxDecodeBytes
		fi, err := os.Stat(a.Path)
		if err != nil {
			return nil, "", apperrors.New(apperrors.KindInvalidArgument, op, err)
		}
		if limit > 0 && fi.Size() > limit {
			return nil, "", apperrors.Errorf(apperrors.KindDecode, op, "file is %d bytes, limit is %d", fi.Size(), limit)
		}
		data, err := os.ReadFile(a.Path)
		if err != nil {
			return nil, "", apperrors.New(apperrors.KindInvalidArgument, op, err)
		}
		name := a.Name
		if name == "" {
			name = filepath.Base(a.Path)
		}
		return data, name, nil
	case a.Data != "":
		data, err := base64.StdEncoding.DecodeString(a.Data)
		if err != nil {
			return nil, "", apperrors.New(apperrors.KindDecode, op, fmt.Errorf("invalid base64: %w", err))
		}
		return data, a.Name, nil
	}
	return nil, "", apperrors.Errorf(apperrors.KindInvalidArgument, op, "path or data is required")
}

func (s *Server) handleEditorClose(args json.RawMessage) (any, error) {
	var a sessionArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if err := s.closeSession(a.SessionID); err != nil {
		return nil, err
	}
	return map[string]any{"session_id": a.SessionID, "closed": true}, nil
}

// === View Transform Handlers ===

type editorPanArgs struct {
	SessionID string  `json:"session_id"`
	DX        float64 `json:"dx"`
	DY        float64 `json:"dy"`
}

func (s *Server) handleEditorPan(args json.RawMessage) (any, error) {
	var a editorPanArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	return s.withSession(args, func(sess *editor.Session) error { return sess.Pan(a.DX, a.DY) })
}

type editorZoomArgs struct {
	SessionID string  `json:"session_id"`
	Factor    float64 `json:"factor"`
	AnchorX   float64 `json:"anchor_x"`
	AnchorY   float64 `json:"anchor_y"`
}

func (s *Server) handleEditorZoom(args json.RawMessage) (any, error) {
	var a editorZoomArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	return s.withSession(args, func(sess *editor.Session) error {
		return sess.ZoomAt(a.Factor, a.AnchorX, a.AnchorY)
	})
}

type editorFitArgs struct {
	SessionID      string  `json:"session_id"`
	ViewportWidth  float64 `json:"viewport_width"`
	ViewportHeight float64 `json:"viewport_height"`
}

func (s *Server) handleEditorFit(args json.RawMessage) (any, error) {
	var a editorFitArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	return s.withSession(args, func(sess *editor.Session) error {
		return sess.FitToViewport(a.ViewportWidth, a.ViewportHeight)
	})
}

type editorPreviewArgs struct {
	SessionID string `json:"session_id"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

// handleEditorPreview returns the rendered viewport as PNG image content.
func (s *Server) handleEditorPreview(ctx context.Context, args json.RawMessage) (any, error) {
	var a editorPreviewArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Width <= 0 || a.Height <= 0 {
		return nil, apperrors.Errorf(apperrors.KindInvalidDimensions, "server.preview",
			"viewport must be positive, got %dx%d", a.Width, a.Height)
	}
	sess, err := s.session(a.SessionID)
	if err != nil {
		return nil, err
	}
	buf, err := sess.RenderPreview(ctx, a.Width, a.Height)
	if err != nil {
		return nil, err
	}
	file, err := export.Encode(buf, export.Config{
		Width:  uint32(a.Width),
		Height: uint32(a.Height),
		Format: imaging.FormatPNG,
	}, "preview")
	if err != nil {
		return nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.ImageContent{Data: file.Data, MIMEType: file.MimeType}},
	}, nil
}

type editorFlipArgs struct {
	SessionID  string `json:"session_id"`
	Horizontal bool   `json:"horizontal"`
	Vertical   bool   `json:"vertical"`
}

func (s *Server) handleEditorFlip(args json.RawMessage) (any, error) {
	var a editorFlipArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	return s.withSession(args, func(sess *editor.Session) error {
		return sess.Flip(a.Horizontal, a.Vertical)
	})
}

// === Color Adjustment Handlers ===

type editorSetAdjustmentsArgs struct {
	SessionID  string   `json:"session_id"`
	Brightness *float64 `json:"brightness"`
	Contrast   *float64 `json:"contrast"`
	Saturation *float64 `json:"saturation"`
}

func (s *Server) handleEditorSetAdjustments(args json.RawMessage) (any, error) {
	var a editorSetAdjustmentsArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	return s.withSession(args, func(sess *editor.Session) error {
		return sess.UpdateAdjustments(func(adj imaging.Adjustments) imaging.Adjustments {
			if a.Brightness != nil {
				adj.Brightness = *a.Brightness
			}
			if a.Contrast != nil {
				adj.Contrast = *a.Contrast
			}
			if a.Saturation != nil {
				adj.Saturation = *a.Saturation
			}
			return adj
		})
	})
}

type editorProbeColorArgs struct {
	SessionID string  `json:"session_id"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
}

func (s *Server) handleEditorProbeColor(args json.RawMessage) (any, error) {
	var a editorProbeColorArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	sess, err := s.session(a.SessionID)
	if err != nil {
		return nil, err
	}
	return sess.ProbeColor(a.X, a.Y)
}

// === Crop Handlers ===

type editorSetCropArgs struct {
	SessionID string `json:"session_id"`
	crop.Rect
}

func (s *Server) handleEditorSetCrop(args json.RawMessage) (any, error) {
	var a editorSetCropArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	return s.withSession(args, func(sess *editor.Session) error { return sess.SetCropRegion(a.Rect) })
}

type editorSetCropRatioArgs struct {
	SessionID string   `json:"session_id"`
	Ratio     *float64 `json:"ratio"`
	Aspect    string   `json:"aspect"`
}

func (s *Server) handleEditorSetCropRatio(args json.RawMessage) (any, error) {
	var a editorSetCropRatioArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	ratio := a.Ratio
	if a.Aspect != "" {
		if a.Ratio != nil {
			return nil, apperrors.Errorf(apperrors.KindInvalidArgument, "server.set_crop_ratio",
				"give either ratio or aspect, not both")
		}
		r, err := ParseAspect(a.Aspect)
		if err != nil {
			return nil, err
		}
		ratio = &r
	}
	return s.withSession(args, func(sess *editor.Session) error { return sess.SetCropRatio(ratio) })
}

// ParseAspect converts "W:H" (or "W/H", or a bare number) into width/height.
func ParseAspect(s string) (float64, error) {
	const op = "server.parse_aspect"
	s = strings.TrimSpace(s)
	sep := strings.IndexAny(s, ":/")
	if sep < 0 {
		r, err := strconv.ParseFloat(s, 64)
		if err != nil || !(r > 0) {
			return 0, apperrors.Errorf(apperrors.KindInvalidArgument, op, "invalid aspect %q", s)
		}
		return r, nil
	}
	w, errW := strconv.ParseFloat(strings.TrimSpace(s[:sep]), 64)
	h, errH := strconv.ParseFloat(strings.TrimSpace(s[sep+1:]), 64)
	if errW != nil || errH != nil || !(w > 0) || !(h > 0) {
		return 0, apperrors.Errorf(apperrors.KindInvalidArgument, op, "invalid aspect %q", s)
	}
	return w / h, nil
}

type editorSuggestCropsArgs struct {
	SessionID string             `json:"session_id"`
	Boxes     []crop.BoundingBox `json:"boxes"`
	Ratios    []float64          `json:"ratios"`
	Padding   float64            `json:"padding"`
	Policy    string             `json:"policy"`
}

type suggestCropsResult struct {
	SessionID   string            `json:"session_id"`
	Suggestions []crop.Suggestion `json:"suggestions"`
}

func (s *Server) handleEditorSuggestCrops(args json.RawMessage) (any, error) {
	var a editorSuggestCropsArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	sess, err := s.session(a.SessionID)
	if err != nil {
		return nil, err
	}

	ranker := crop.Ranker{Padding: a.Padding}
	switch a.Policy {
	case "", "overlap":
		ranker.Policy = crop.DefaultPolicy
	case "thirds":
		ranker.Policy = crop.RuleOfThirdsPolicy{}
	default:
		return nil, apperrors.Errorf(apperrors.KindInvalidArgument, "server.suggest_crops", "unknown policy %q", a.Policy)
	}
	ratios := a.Ratios
	if len(ratios) == 0 {
		ratios = defaultRatios
	}

	suggestions, err := sess.RankCropSuggestionsWith(ranker, a.Boxes, ratios)
	if err != nil {
		return nil, err
	}
	if suggestions == nil {
		suggestions = []crop.Suggestion{}
	}
	return suggestCropsResult{SessionID: sess.ID(), Suggestions: suggestions}, nil
}

// === Export Handlers ===

type editorExportArgs struct {
	SessionID  string `json:"session_id"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Format     string `json:"format"`
	Quality    *int   `json:"quality"`
	Fit        string `json:"fit"`
	OutputPath string `json:"output_path"`
}

// exportResult describes an encoded export. Data is set only when the file
// was not written to disk.
type exportResult struct {
	export.EncodedFile
	Path string `json:"path,omitempty"`
	Data string `json:"data,omitempty"`
}

func (s *Server) handleEditorExport(ctx context.Context, args json.RawMessage) (any, error) {
	const op = "server.export"
	var a editorExportArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	cfg, err := a.config()
	if err != nil {
		return nil, err
	}
	sess, err := s.session(a.SessionID)
	if err != nil {
		return nil, err
	}

	file, err := sess.Export(ctx, cfg)
	if err != nil {
		return nil, err
	}

	res := exportResult{EncodedFile: file}
	if a.OutputPath == "" {
		res.Data = base64.StdEncoding.EncodeToString(file.Data)
		return res, nil
	}
	path := a.OutputPath
	if fi, err := os.Stat(path); err == nil && fi.IsDir() {
		path = filepath.Join(path, file.Name)
	}
	if err := os.WriteFile(path, file.Data, 0o644); err != nil {
		return nil, apperrors.New(apperrors.KindEncode, op, err)
	}
	res.Path = path
	return res, nil
}

// config converts tool arguments into an export configuration. Range checks
// on the size happen here because the wire values are wider than the
// configuration's fields.
func (a editorExportArgs) config() (export.Config, error) {
	const op = "server.export"
	if a.Width <= 0 || a.Height <= 0 || a.Width > 1<<16 || a.Height > 1<<16 {
		return export.Config{}, apperrors.Errorf(apperrors.KindInvalidDimensions, op,
			"size %dx%d outside [1, 65536]", a.Width, a.Height)
	}
	format := imaging.ParseFormat(a.Format)
	fit, err := export.ParseFitMode(a.Fit)
	if err != nil {
		return export.Config{}, err
	}
	cfg := export.Config{
		Width:  uint32(a.Width),
		Height: uint32(a.Height),
		Format: format,
		Fit:    fit,
	}
	if a.Quality != nil {
		if *a.Quality < 1 || *a.Quality > 100 {
			return export.Config{}, apperrors.Errorf(apperrors.KindInvalidArgument, op,
				"quality %d outside [1, 100]", *a.Quality)
		}
		q := uint8(*a.Quality)
		cfg.Quality = &q
	}
	if err := cfg.Validate(); err != nil {
		return export.Config{}, err
	}
	return cfg, nil
}
