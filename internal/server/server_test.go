package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/image-editor-mcp/internal/config"
	"github.com/ironsheep/image-editor-mcp/internal/editor"
	"github.com/ironsheep/image-editor-mcp/internal/imaging"
)

var testImpl = &mcp.Implementation{Name: "image-editor-test", Version: "0.0.0"}

func testPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestServer(t *testing.T, cfg config.Config) (*Server, *mcp.ClientSession) {
	t.Helper()
	eng := editor.NewEngine(cfg, zerolog.Nop())
	require.NoError(t, eng.Initialize())
	srv := New(eng, zerolog.Nop(), "test")

	ctx, cancel := context.WithCancel(context.Background())
	serverT, clientT := mcp.NewInMemoryTransports()
	go func() { _ = srv.Run(ctx, serverT) }()

	client := mcp.NewClient(testImpl, nil)
	cs, err := client.Connect(ctx, clientT, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		cs.Close()
		cancel()
	})
	return srv, cs
}

func callTool(t *testing.T, cs *mcp.ClientSession, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err, name)
	return res
}

// callJSON calls a tool that must succeed and decodes its JSON text result.
func callJSON(t *testing.T, cs *mcp.ClientSession, name string, args map[string]any, out any) {
	t.Helper()
	res := callTool(t, cs, name, args)
	require.NotEmpty(t, res.Content, name)
	tc, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok, "%s: expected text content", name)
	require.False(t, res.IsError, "%s failed: %s", name, tc.Text)
	require.NoError(t, json.Unmarshal([]byte(tc.Text), out))
}

// callError calls a tool that must fail and returns its error text.
func callError(t *testing.T, cs *mcp.ClientSession, name string, args map[string]any) string {
	t.Helper()
	res := callTool(t, cs, name, args)
	require.True(t, res.IsError, "%s unexpectedly succeeded", name)
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func loadImage(t *testing.T, cs *mcp.ClientSession, width, height int) string {
	t.Helper()
	var st sessionState
	callJSON(t, cs, "editor_load", map[string]any{
		"data": base64.StdEncoding.EncodeToString(testPNG(t, width, height)),
		"name": "photo.png",
	}, &st)
	require.NotEmpty(t, st.SessionID)
	return st.SessionID
}

func TestListTools(t *testing.T) {
	_, cs := newTestServer(t, config.Default())

	res, err := cs.ListTools(context.Background(), nil)
	require.NoError(t, err)

	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	var want []string
	for _, tool := range GetToolDefinitions() {
		want = append(want, tool.Name)
	}
	assert.ElementsMatch(t, want, names)
	assert.Len(t, names, 17)
}

func TestGetToolDefinitions_Schemas(t *testing.T) {
	for _, tool := range GetToolDefinitions() {
		schema, ok := tool.InputSchema.(map[string]any)
		require.True(t, ok, tool.Name)
		assert.Equal(t, "object", schema["type"], tool.Name)
		assert.NotEmpty(t, tool.Description, tool.Name)
	}
}

func TestEditorLoad_AndState(t *testing.T) {
	srv, cs := newTestServer(t, config.Default())
	id := loadImage(t, cs, 30, 20)

	var st sessionState
	callJSON(t, cs, "editor_state", map[string]any{"session_id": id}, &st)
	assert.Equal(t, editor.Ready, st.Lifecycle)
	require.NotNil(t, st.Image)
	assert.Equal(t, 30, st.Image.Width)
	assert.Equal(t, 20, st.Image.Height)
	assert.Equal(t, "photo.png", st.Name)
	assert.Equal(t, 1.0, st.Transform.Scale)
	assert.Nil(t, st.Crop.Region)
	assert.Equal(t, []string{id}, srv.SessionIDs())
}

func TestEditorLoad_FromPath(t *testing.T) {
	_, cs := newTestServer(t, config.Default())
	path := filepath.Join(t.TempDir(), "scan.png")
	require.NoError(t, os.WriteFile(path, testPNG(t, 12, 8), 0o644))

	var st sessionState
	callJSON(t, cs, "editor_load", map[string]any{"path": path}, &st)
	assert.Equal(t, "scan.png", st.Name)
	assert.Equal(t, 12, st.Image.Width)
}

func TestEditorLoad_Errors(t *testing.T) {
	srv, cs := newTestServer(t, config.Default())

	text := callError(t, cs, "editor_load", map[string]any{
		"data": base64.StdEncoding.EncodeToString([]byte("not an image")),
	})
	assert.Contains(t, text, "[decode]")
	assert.Empty(t, srv.SessionIDs(), "failed load must not leak a session")

	text = callError(t, cs, "editor_load", map[string]any{})
	assert.Contains(t, text, "path or data is required")

	text = callError(t, cs, "editor_load", map[string]any{"data": "!!!"})
	assert.Contains(t, text, "invalid base64")

	text = callError(t, cs, "editor_load", map[string]any{
		"data":   base64.StdEncoding.EncodeToString(testPNG(t, 2, 2)),
		"format": "pcx",
	})
	assert.Contains(t, text, "[unsupported_format]")

	text = callError(t, cs, "editor_load", map[string]any{
		"data":   base64.StdEncoding.EncodeToString(testPNG(t, 2, 2)),
		"format": "jpeg",
	})
	assert.Contains(t, text, "[decode]")
}

func TestEditorLoad_ReplacesImageInSession(t *testing.T) {
	_, cs := newTestServer(t, config.Default())
	id := loadImage(t, cs, 30, 20)
	callJSON(t, cs, "editor_pan", map[string]any{"session_id": id, "dx": 5, "dy": 5}, &sessionState{})

	var st sessionState
	callJSON(t, cs, "editor_load", map[string]any{
		"session_id": id,
		"data":       base64.StdEncoding.EncodeToString(testPNG(t, 8, 8)),
	}, &st)
	assert.Equal(t, id, st.SessionID)
	assert.Equal(t, 8, st.Image.Width)
	assert.Equal(t, 0.0, st.Transform.OffsetX)
}

func TestSessionLimit(t *testing.T) {
	cfg := config.Default()
	cfg.MaxSessions = 1
	_, cs := newTestServer(t, cfg)

	id := loadImage(t, cs, 4, 4)
	text := callError(t, cs, "editor_load", map[string]any{
		"data": base64.StdEncoding.EncodeToString(testPNG(t, 4, 4)),
	})
	assert.Contains(t, text, "session limit")

	callJSON(t, cs, "editor_close", map[string]any{"session_id": id}, &map[string]any{})
	loadImage(t, cs, 4, 4)
}

func TestUnknownSession(t *testing.T) {
	_, cs := newTestServer(t, config.Default())

	text := callError(t, cs, "editor_pan", map[string]any{"session_id": "nope", "dx": 1, "dy": 1})
	assert.Contains(t, text, "unknown session")

	text = callError(t, cs, "editor_state", map[string]any{})
	assert.Contains(t, text, "session_id is required")
}

func TestEditorZoom_AnchorInvariance(t *testing.T) {
	_, cs := newTestServer(t, config.Default())
	id := loadImage(t, cs, 100, 100)

	var st sessionState
	callJSON(t, cs, "editor_zoom", map[string]any{
		"session_id": id, "factor": 2.0, "anchor_x": 50, "anchor_y": 50,
	}, &st)
	assert.Equal(t, 2.0, st.Transform.Scale)
	x, y := st.Transform.ScreenToImage(50, 50)
	assert.InDelta(t, 50, x, 1e-9)
	assert.InDelta(t, 50, y, 1e-9)

	text := callError(t, cs, "editor_zoom", map[string]any{"session_id": id, "factor": 0})
	assert.Contains(t, text, "[invalid_argument]")

	callJSON(t, cs, "editor_reset_transform", map[string]any{"session_id": id}, &st)
	assert.Equal(t, 1.0, st.Transform.Scale)

	callJSON(t, cs, "editor_fit", map[string]any{
		"session_id": id, "viewport_width": 50, "viewport_height": 80,
	}, &st)
	assert.Equal(t, 0.5, st.Transform.Scale)
	assert.Equal(t, 15.0, st.Transform.OffsetY)
}

func TestEditorCrop(t *testing.T) {
	_, cs := newTestServer(t, config.Default())
	id := loadImage(t, cs, 200, 100)

	var st sessionState
	callJSON(t, cs, "editor_set_crop_ratio", map[string]any{"session_id": id, "aspect": "1:1"}, &st)
	require.NotNil(t, st.Crop.Region)
	assert.Equal(t, 50.0, st.Crop.Region.X)
	assert.Equal(t, 0.0, st.Crop.Region.Y)
	assert.Equal(t, 100.0, st.Crop.Region.Width)
	assert.Equal(t, 100.0, st.Crop.Region.Height)
	require.NotNil(t, st.Crop.Ratio)
	assert.Equal(t, 1.0, *st.Crop.Ratio)

	text := callError(t, cs, "editor_set_crop", map[string]any{
		"session_id": id, "x": 150, "y": 50, "width": 100, "height": 10,
	})
	assert.Contains(t, text, "[invalid_region]")
	callJSON(t, cs, "editor_state", map[string]any{"session_id": id}, &st)
	assert.Equal(t, 50.0, st.Crop.Region.X, "rejected crop keeps the prior region")

	callJSON(t, cs, "editor_set_crop_ratio", map[string]any{"session_id": id}, &st)
	assert.Nil(t, st.Crop.Ratio)

	callJSON(t, cs, "editor_set_crop", map[string]any{
		"session_id": id, "x": 10, "y": 10, "width": 40, "height": 30,
	}, &st)
	assert.Equal(t, 40.0, st.Crop.Region.Width)

	callJSON(t, cs, "editor_clear_crop", map[string]any{"session_id": id}, &st)
	assert.Nil(t, st.Crop.Region)

	text = callError(t, cs, "editor_set_crop_ratio", map[string]any{"session_id": id, "ratio": 1, "aspect": "4:3"})
	assert.Contains(t, text, "not both")
}

func TestEditorAdjustments(t *testing.T) {
	_, cs := newTestServer(t, config.Default())
	id := loadImage(t, cs, 10, 10)

	var st sessionState
	callJSON(t, cs, "editor_set_adjustments", map[string]any{"session_id": id, "brightness": 20}, &st)
	callJSON(t, cs, "editor_set_adjustments", map[string]any{"session_id": id, "contrast": -10}, &st)
	assert.Equal(t, 20.0, st.Adjustments.Brightness)
	assert.Equal(t, -10.0, st.Adjustments.Contrast)

	text := callError(t, cs, "editor_set_adjustments", map[string]any{"session_id": id, "saturation": 150})
	assert.Contains(t, text, "[invalid_argument]")

	var c struct {
		Hex  string `json:"hex"`
		RGBA struct {
			R, G, B, A uint8
		} `json:"rgba"`
	}
	callJSON(t, cs, "editor_reset_adjustments", map[string]any{"session_id": id}, &st)
	callJSON(t, cs, "editor_probe_color", map[string]any{"session_id": id, "x": 3, "y": 4}, &c)
	assert.Equal(t, "#0304C8", c.Hex)

	text = callError(t, cs, "editor_probe_color", map[string]any{"session_id": id, "x": 30, "y": 4})
	assert.Contains(t, text, "[out_of_bounds]")
}

func TestEditorSuggestCrops(t *testing.T) {
	_, cs := newTestServer(t, config.Default())
	id := loadImage(t, cs, 200, 100)

	var res suggestCropsResult
	callJSON(t, cs, "editor_suggest_crops", map[string]any{
		"session_id": id,
		"boxes": []map[string]any{
			{"x": 40, "y": 40, "width": 20, "height": 20, "label": "face"},
		},
		"ratios": []float64{1, 16.0 / 9},
	}, &res)
	require.Len(t, res.Suggestions, 2)
	assert.GreaterOrEqual(t, res.Suggestions[0].Score, res.Suggestions[1].Score)
	assert.Contains(t, res.Suggestions[0].Label, "face")

	callJSON(t, cs, "editor_suggest_crops", map[string]any{
		"session_id": id,
		"boxes":      []map[string]any{{"x": 40, "y": 40, "width": 20, "height": 20}},
		"policy":     "thirds",
	}, &res)
	assert.Len(t, res.Suggestions, len(defaultRatios))

	text := callError(t, cs, "editor_suggest_crops", map[string]any{
		"session_id": id, "boxes": []map[string]any{}, "policy": "golden",
	})
	assert.Contains(t, text, "unknown policy")
}

func TestEditorExport_Inline(t *testing.T) {
	_, cs := newTestServer(t, config.Default())
	id := loadImage(t, cs, 80, 60)

	var res struct {
		Name     string `json:"name"`
		Size     int    `json:"size"`
		MimeType string `json:"mime_type"`
		Data     string `json:"data"`
	}
	callJSON(t, cs, "editor_export", map[string]any{
		"session_id": id, "width": 50, "height": 50, "format": "png", "quality": 10,
	}, &res)
	assert.Equal(t, "photo_50x50.png", res.Name)
	assert.Equal(t, "image/png", res.MimeType)

	data, err := base64.StdEncoding.DecodeString(res.Data)
	require.NoError(t, err)
	assert.Equal(t, res.Size, len(data))
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Width)
	assert.Equal(t, 50, cfg.Height)

	var st sessionState
	callJSON(t, cs, "editor_state", map[string]any{"session_id": id}, &st)
	assert.Equal(t, editor.Ready, st.Lifecycle)
}

func TestEditorExport_ToDirectory(t *testing.T) {
	_, cs := newTestServer(t, config.Default())
	id := loadImage(t, cs, 40, 40)
	dir := t.TempDir()

	var res struct {
		Path string `json:"path"`
		Size int    `json:"size"`
		Data string `json:"data"`
	}
	callJSON(t, cs, "editor_export", map[string]any{
		"session_id": id, "width": 20, "height": 20, "format": "jpeg", "output_path": dir,
	}, &res)
	assert.Equal(t, filepath.Join(dir, "photo_20x20.jpg"), res.Path)
	assert.Empty(t, res.Data)

	fi, err := os.Stat(res.Path)
	require.NoError(t, err)
	assert.Equal(t, int64(res.Size), fi.Size())
}

func TestEditorExport_InvalidConfig(t *testing.T) {
	_, cs := newTestServer(t, config.Default())
	id := loadImage(t, cs, 10, 10)

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{"zero width", map[string]any{"width": 0, "height": 5, "format": "png"}, "[invalid_dimensions]"},
		{"huge", map[string]any{"width": 1 << 20, "height": 5, "format": "png"}, "[invalid_dimensions]"},
		{"too many pixels", map[string]any{"width": 65536, "height": 65536, "format": "png"}, "[invalid_dimensions]"},
		{"format", map[string]any{"width": 5, "height": 5, "format": "tiff"}, "[unsupported_format]"},
		{"quality", map[string]any{"width": 5, "height": 5, "format": "jpeg", "quality": 0}, "[invalid_argument]"},
		{"fit", map[string]any{"width": 5, "height": 5, "format": "png", "fit": "fill"}, "[invalid_argument]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.args["session_id"] = id
			assert.Contains(t, callError(t, cs, "editor_export", tt.args), tt.want)
		})
	}
}

func TestEditorPreview(t *testing.T) {
	_, cs := newTestServer(t, config.Default())
	id := loadImage(t, cs, 20, 20)

	res := callTool(t, cs, "editor_preview", map[string]any{"session_id": id, "width": 32, "height": 24})
	require.False(t, res.IsError)
	require.Len(t, res.Content, 1)
	ic, ok := res.Content[0].(*mcp.ImageContent)
	require.True(t, ok)
	assert.Equal(t, "image/png", ic.MIMEType)

	img, err := png.Decode(bytes.NewReader(ic.Data))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 32, 24), img.Bounds())
	_, _, _, a := img.At(30, 22).RGBA()
	assert.Zero(t, a, "outside the image is transparent")

	text := callError(t, cs, "editor_preview", map[string]any{"session_id": id, "width": 0, "height": 24})
	assert.Contains(t, text, "[invalid_dimensions]")

	text = callError(t, cs, "editor_preview", map[string]any{"session_id": id, "width": 1 << 20, "height": 1 << 20})
	assert.Contains(t, text, "[invalid_dimensions]")
}

func TestEditorFlip(t *testing.T) {
	_, cs := newTestServer(t, config.Default())
	id := loadImage(t, cs, 20, 10)

	var st sessionState
	callJSON(t, cs, "editor_set_crop", map[string]any{
		"session_id": id, "x": 2, "y": 1, "width": 5, "height": 4,
	}, &st)
	callJSON(t, cs, "editor_flip", map[string]any{"session_id": id, "horizontal": true}, &st)
	assert.Equal(t, imaging.Flip{Horizontal: true}, st.Orientation)
	require.NotNil(t, st.Crop.Region)
	assert.Equal(t, 13.0, st.Crop.Region.X)

	var c imaging.ColorResult
	callJSON(t, cs, "editor_probe_color", map[string]any{"session_id": id, "x": 0, "y": 0}, &c)
	assert.Equal(t, uint8(19), c.RGBA.R)

	text := callError(t, cs, "editor_flip", map[string]any{"session_id": id})
	assert.Contains(t, text, "[invalid_argument]")

	callJSON(t, cs, "editor_flip", map[string]any{"session_id": id, "horizontal": true}, &st)
	assert.True(t, st.Orientation.IsIdentity())
	assert.Equal(t, 2.0, st.Crop.Region.X)
}

func TestEditorClose(t *testing.T) {
	srv, cs := newTestServer(t, config.Default())
	id := loadImage(t, cs, 4, 4)

	var res map[string]any
	callJSON(t, cs, "editor_close", map[string]any{"session_id": id}, &res)
	assert.Equal(t, true, res["closed"])
	assert.Empty(t, srv.SessionIDs())

	assert.Contains(t, callError(t, cs, "editor_state", map[string]any{"session_id": id}), "unknown session")
	assert.Contains(t, callError(t, cs, "editor_close", map[string]any{"session_id": id}), "unknown session")
}

func TestParseAspect(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"16:9", 16.0 / 9, false},
		{" 4 / 3 ", 4.0 / 3, false},
		{"1.5", 1.5, false},
		{"0:1", 0, true},
		{"a:b", 0, true},
		{"", 0, true},
		{"-2", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseAspect(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.InDelta(t, tt.want, got, 1e-12, tt.in)
	}
}
