package server

import "github.com/modelcontextprotocol/go-sdk/mcp"

// sessionIDProperty is shared by every tool that operates on an open session.
var sessionIDProperty = map[string]any{
	"type":        "string",
	"description": "Session id returned by editor_load",
}

// objectSchema builds an object input schema.
func objectSchema(properties map[string]any, required ...string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// sessionOnly is the schema of tools whose only argument is the session id.
func sessionOnly() map[string]any {
	return objectSchema(map[string]any{"session_id": sessionIDProperty}, "session_id")
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []*mcp.Tool {
	return []*mcp.Tool{
		// Session Lifecycle
		{
			Name: "editor_load",
			Description: "Load an image into an editing session. Pass either a file path or base64 data. " +
				"Without session_id a new session is created; with one, the image replaces the session's " +
				"current image and discards its edits. Returns the session id and image metadata.",
			InputSchema: objectSchema(map[string]any{
				"session_id": map[string]any{
					"type":        "string",
					"description": "Existing session to load into. Omit to create a new session",
				},
				"path": map[string]any{
					"type":        "string",
					"description": "Absolute path to the image file",
				},
				"data": map[string]any{
					"type":        "string",
					"description": "Base64-encoded image bytes (alternative to path)",
				},
				"format": map[string]any{
					"type":        "string",
					"description": "Declared format (jpeg, png, gif, webp, bmp, tiff). Omit to detect from content",
				},
				"name": map[string]any{
					"type":        "string",
					"description": "Source file name used to name exports. Defaults to the path's base name",
				},
			}),
		},
		{
			Name:        "editor_state",
			Description: "Get the current state of a session: lifecycle, image info, view transform, adjustments and crop.",
			InputSchema: sessionOnly(),
		},
		{
			Name:        "editor_close",
			Description: "Close a session, canceling any export in progress and releasing its image.",
			InputSchema: sessionOnly(),
		},

		// View Transform
		{
			Name:        "editor_pan",
			Description: "Translate the view by (dx, dy) screen units.",
			InputSchema: objectSchema(map[string]any{
				"session_id": sessionIDProperty,
				"dx":         map[string]any{"type": "number", "description": "Horizontal offset in screen units"},
				"dy":         map[string]any{"type": "number", "description": "Vertical offset in screen units"},
			}, "session_id", "dx", "dy"),
		},
		{
			Name: "editor_zoom",
			Description: "Multiply the zoom by factor while keeping the screen point (anchor_x, anchor_y) " +
				"over the same image point. The scale is clamped to the configured bounds.",
			InputSchema: objectSchema(map[string]any{
				"session_id": sessionIDProperty,
				"factor":     map[string]any{"type": "number", "description": "Zoom multiplier, e.g. 2.0 to zoom in or 0.5 to zoom out"},
				"anchor_x":   map[string]any{"type": "number", "description": "Screen X of the fixed point. Default 0"},
				"anchor_y":   map[string]any{"type": "number", "description": "Screen Y of the fixed point. Default 0"},
			}, "session_id", "factor"),
		},
		{
			Name:        "editor_fit",
			Description: "Scale and center the whole image inside a viewport of the given size.",
			InputSchema: objectSchema(map[string]any{
				"session_id":      sessionIDProperty,
				"viewport_width":  map[string]any{"type": "number", "description": "Viewport width in screen units"},
				"viewport_height": map[string]any{"type": "number", "description": "Viewport height in screen units"},
			}, "session_id", "viewport_width", "viewport_height"),
		},
		{
			Name:        "editor_reset_transform",
			Description: "Restore the identity view transform (scale 1, no offset).",
			InputSchema: sessionOnly(),
		},
		{
			Name: "editor_flip",
			Description: "Mirror the image horizontally, vertically or both. Flipping an axis twice " +
				"restores it. An active crop follows the pixels it covered.",
			InputSchema: objectSchema(map[string]any{
				"session_id": sessionIDProperty,
				"horizontal": map[string]any{"type": "boolean", "description": "Swap left and right"},
				"vertical":   map[string]any{"type": "boolean", "description": "Swap top and bottom"},
			}, "session_id"),
		},
		{
			Name: "editor_preview",
			Description: "Render the current view (transform and adjustments applied) into a viewport " +
				"and return it as a PNG image. Areas outside the image are transparent.",
			InputSchema: objectSchema(map[string]any{
				"session_id": sessionIDProperty,
				"width":      map[string]any{"type": "integer", "description": "Viewport width in pixels"},
				"height":     map[string]any{"type": "integer", "description": "Viewport height in pixels"},
			}, "session_id", "width", "height"),
		},

		// Color Adjustments
		{
			Name: "editor_set_adjustments",
			Description: "Set brightness, contrast and saturation, each in [-100, 100]. " +
				"Omitted values keep their current setting.",
			InputSchema: objectSchema(map[string]any{
				"session_id": sessionIDProperty,
				"brightness": map[string]any{"type": "number", "minimum": -100, "maximum": 100},
				"contrast":   map[string]any{"type": "number", "minimum": -100, "maximum": 100},
				"saturation": map[string]any{"type": "number", "minimum": -100, "maximum": 100},
			}, "session_id"),
		},
		{
			Name:        "editor_reset_adjustments",
			Description: "Restore neutral adjustments.",
			InputSchema: sessionOnly(),
		},
		{
			Name:        "editor_probe_color",
			Description: "Get the adjusted color of the image pixel under a screen point, as hex, RGBA and HSL.",
			InputSchema: objectSchema(map[string]any{
				"session_id": sessionIDProperty,
				"x":          map[string]any{"type": "number", "description": "Screen X coordinate"},
				"y":          map[string]any{"type": "number", "description": "Screen Y coordinate"},
			}, "session_id", "x", "y"),
		},

		// Crop
		{
			Name: "editor_set_crop",
			Description: "Set the crop rectangle in image pixel coordinates. If an aspect ratio is locked " +
				"the rectangle is adjusted to it, anchored at its top-left corner.",
			InputSchema: objectSchema(map[string]any{
				"session_id": sessionIDProperty,
				"x":          map[string]any{"type": "number", "description": "Left edge"},
				"y":          map[string]any{"type": "number", "description": "Top edge"},
				"width":      map[string]any{"type": "number", "description": "Width, must be positive"},
				"height":     map[string]any{"type": "number", "description": "Height, must be positive"},
			}, "session_id", "x", "y", "width", "height"),
		},
		{
			Name: "editor_set_crop_ratio",
			Description: "Lock the crop to an aspect ratio, resizing the crop to the largest centered " +
				"rectangle of that ratio. Give ratio as a number (width/height) or aspect as \"W:H\". " +
				"Omit both to unlock.",
			InputSchema: objectSchema(map[string]any{
				"session_id": sessionIDProperty,
				"ratio":      map[string]any{"type": "number", "description": "Width divided by height, e.g. 1.7778"},
				"aspect":     map[string]any{"type": "string", "description": "Aspect as W:H, e.g. \"16:9\""},
			}, "session_id"),
		},
		{
			Name:        "editor_clear_crop",
			Description: "Remove the crop rectangle. A locked aspect ratio stays locked.",
			InputSchema: sessionOnly(),
		},
		{
			Name: "editor_suggest_crops",
			Description: "Rank crop suggestions for subject bounding boxes against target aspect ratios. " +
				"The session is not modified.",
			InputSchema: objectSchema(map[string]any{
				"session_id": sessionIDProperty,
				"boxes": map[string]any{
					"type":        "array",
					"description": "Subject bounding boxes in image coordinates",
					"items": objectSchema(map[string]any{
						"x":          map[string]any{"type": "number"},
						"y":          map[string]any{"type": "number"},
						"width":      map[string]any{"type": "number"},
						"height":     map[string]any{"type": "number"},
						"label":      map[string]any{"type": "string"},
						"confidence": map[string]any{"type": "number", "minimum": 0, "maximum": 1},
					}, "x", "y", "width", "height"),
				},
				"ratios": map[string]any{
					"type":        "array",
					"description": "Target aspect ratios (width/height). Default [1, 1.3333, 1.7778]",
					"items":       map[string]any{"type": "number"},
				},
				"padding": map[string]any{
					"type":        "number",
					"description": "Fraction of each box's size added on every side before fitting. Default 0",
				},
				"policy": map[string]any{
					"type":        "string",
					"enum":        []string{"overlap", "thirds"},
					"description": "Scoring policy. Default overlap",
				},
			}, "session_id", "boxes"),
		},

		// Export
		{
			Name: "editor_export",
			Description: "Render the cropped and adjusted image at the requested size and encode it. " +
				"With output_path the file is written there; otherwise the bytes are returned base64-encoded.",
			InputSchema: objectSchema(map[string]any{
				"session_id": sessionIDProperty,
				"width":      map[string]any{"type": "integer", "description": "Output width in pixels"},
				"height":     map[string]any{"type": "integer", "description": "Output height in pixels"},
				"format": map[string]any{
					"type": "string",
					"enum": []string{"jpeg", "png", "webp"},
				},
				"quality": map[string]any{
					"type":        "integer",
					"minimum":     1,
					"maximum":     100,
					"description": "Lossy quality. Ignored for PNG. Defaults to the configured quality",
				},
				"fit": map[string]any{
					"type":        "string",
					"enum":        []string{"exact", "contain", "cover"},
					"description": "How the crop maps onto width×height. Default exact",
				},
				"output_path": map[string]any{
					"type":        "string",
					"description": "Write the file here (a directory gets the generated file name)",
				},
			}, "session_id", "width", "height", "format"),
		},
	}
}
