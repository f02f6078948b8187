// Package server exposes editor sessions over the Model Context Protocol.
//
// The server is built on the official MCP Go SDK and normally speaks JSON-RPC
// over stdio. Every tool call is dispatched to one editor.Session, identified
// by the session_id that editor_load returns.
//
// # Available Tools
//
// Session lifecycle:
//   - editor_load: Load an image (path or base64) into a new or existing session
//   - editor_state: Describe a session
//   - editor_close: Close a session
//
// View transform:
//   - editor_pan, editor_zoom, editor_fit, editor_reset_transform
//   - editor_flip: Mirror the image horizontally and/or vertically
//   - editor_preview: Render the current view as PNG image content
//
// Color adjustments:
//   - editor_set_adjustments, editor_reset_adjustments
//   - editor_probe_color: Adjusted color under a screen point
//
// Crop:
//   - editor_set_crop, editor_set_crop_ratio, editor_clear_crop
//   - editor_suggest_crops: Rank crops for subject boxes
//
// Export:
//   - editor_export: Encode the edited image to bytes or a file
//
// # Sessions
//
// Sessions live until editor_close or server shutdown. The number of open
// sessions is capped by the engine configuration.
//
// # Error Handling
//
// Editor failures are returned as tool results with IsError set; the text
// carries the failing operation and error kind. Protocol errors are reserved
// for malformed requests handled by the SDK itself.
//
// # Usage
//
//	srv := server.New(engine, logger, version)
//	if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil {
//	    log.Fatal().Err(err).Msg("server stopped")
//	}
package server
