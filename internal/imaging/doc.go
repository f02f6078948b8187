// Package imaging provides the pixel-level building blocks of the editor engine.
//
// This package owns decoded raster data (PixelBuffer) and the pure operations
// over it: decoding, tonal adjustment, bilinear sampling and resampling,
// whole-pixel crop extraction and color description. Nothing here keeps edit
// state; sessions in package editor compose these functions.
//
// # Coordinate System
//
// All pixel coordinates in this package are 0-based:
//   - X: horizontal position (0 = leftmost pixel)
//   - Y: vertical position (0 = topmost pixel)
//   - Integer pixel (x, y) is centered on the continuous point (x, y)
//   - Rectangles are given as (x, y, width, height) in continuous image space
//
// # Pixel Format
//
// Buffers are RGBA8 with straight alpha. Adjustments modify RGB and leave
// alpha untouched; sampling interpolates all four channels independently.
//
// # Thread Safety
//
// A PixelBuffer is immutable once returned, so any number of goroutines may
// read it. Row kernels (AdjustKernel.AdjustRows, MapRows) write disjoint rows of
// a destination buffer and may run concurrently on non-overlapping ranges.
//
// # Error Handling
//
// Functions return *errors.EditorError values:
//   - KindDecode for malformed, unsupported or oversized input
//   - KindOutOfBounds for strict sampling outside the buffer
//   - KindInvalidDimensions for empty target sizes
//   - KindInvalidArgument for out-of-range adjustment settings
package imaging
