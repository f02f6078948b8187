package imaging

import (
	"bytes"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // Register BMP format decoder
	_ "golang.org/x/image/tiff" // Register TIFF format decoder
	_ "golang.org/x/image/webp" // Register WebP format decoder

	apperrors "github.com/ironsheep/image-editor-mcp/internal/errors"
)

// Format identifies an image container format.
type Format string

const (
	FormatUnknown Format = ""
	FormatJPEG    Format = "jpeg"
	FormatPNG     Format = "png"
	FormatGIF     Format = "gif"
	FormatWebP    Format = "webp"
	FormatBMP     Format = "bmp"
	FormatTIFF    Format = "tiff"
)

// ParseFormat normalizes a user-supplied format name or MIME type. Unknown
// names yield FormatUnknown.
func ParseFormat(s string) Format {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "image/")
	s = strings.TrimPrefix(s, ".")
	switch s {
	case "jpg", "jpeg":
		return FormatJPEG
	case "png":
		return FormatPNG
	case "gif":
		return FormatGIF
	case "webp":
		return FormatWebP
	case "bmp":
		return FormatBMP
	case "tif", "tiff":
		return FormatTIFF
	}
	return FormatUnknown
}

// MimeType returns the MIME type for f.
func (f Format) MimeType() string {
	if f == FormatUnknown {
		return "application/octet-stream"
	}
	return "image/" + string(f)
}

// Extension returns the conventional file extension for f, without the dot.
func (f Format) Extension() string {
	switch f {
	case FormatJPEG:
		return "jpg"
	case FormatUnknown:
		return "bin"
	case FormatTIFF:
		return "tif"
	}
	return string(f)
}

// DetectFormat identifies the image format by examining the magic bytes.
func DetectFormat(data []byte) Format {
	switch {
	case len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF:
		return FormatJPEG
	case bytes.HasPrefix(data, []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}):
		return FormatPNG
	case bytes.HasPrefix(data, []byte("GIF87a")), bytes.HasPrefix(data, []byte("GIF89a")):
		return FormatGIF
	case len(data) >= 12 && bytes.HasPrefix(data, []byte("RIFF")) && string(data[8:12]) == "WEBP":
		return FormatWebP
	case bytes.HasPrefix(data, []byte("II*\x00")), bytes.HasPrefix(data, []byte("MM\x00*")):
		return FormatTIFF
	case bytes.HasPrefix(data, []byte("BM")):
		return FormatBMP
	}
	return FormatUnknown
}

// DecodeOptions bounds the resources a single decode may consume. Zero values
// disable the corresponding limit.
type DecodeOptions struct {
	MaxBytes  int64
	MaxPixels int64
}

// Info contains metadata about a decoded image.
type Info struct {
	// Width is the image width in pixels.
	Width int `json:"width"`

	// Height is the image height in pixels.
	Height int `json:"height"`

	// Format is the container format detected from the magic bytes.
	Format Format `json:"format"`

	// HasAlpha indicates whether any pixel is not fully opaque.
	HasAlpha bool `json:"has_alpha"`

	// SizeBytes is the size of the encoded input in bytes.
	SizeBytes int `json:"size_bytes"`
}

// Decode converts raw image bytes into a canonical PixelBuffer.
//
// Parameters:
//   - data: The encoded image. Supported formats are JPEG, PNG, GIF (first
//     frame), WebP, BMP and TIFF.
//   - hint: The declared format, or FormatUnknown to rely on sniffing alone.
//     A hint that contradicts the magic bytes is rejected.
//   - opts: Resource limits checked before the pixel data is decoded.
//
// EXIF orientation is applied, so the buffer is always upright.
//
// # Errors
//
// Every failure is reported with KindDecode: empty or oversized input,
// unrecognized magic bytes, hint mismatch, too many pixels, or a corrupt
// payload.
func Decode(data []byte, hint Format, opts DecodeOptions) (*PixelBuffer, Info, error) {
	const op = "imaging.decode"

	if len(data) == 0 {
		return nil, Info{}, apperrors.Errorf(apperrors.KindDecode, op, "empty input")
	}
	if opts.MaxBytes > 0 && int64(len(data)) > opts.MaxBytes {
		return nil, Info{}, apperrors.Errorf(apperrors.KindDecode, op,
			"input of %d bytes exceeds limit %d", len(data), opts.MaxBytes)
	}

	format := DetectFormat(data)
	if format == FormatUnknown {
		return nil, Info{}, apperrors.Errorf(apperrors.KindDecode, op, "unrecognized image signature")
	}
	if hint != FormatUnknown && hint != format {
		return nil, Info{}, apperrors.Errorf(apperrors.KindDecode, op,
			"declared format %q does not match detected %q", hint, format)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, Info{}, apperrors.New(apperrors.KindDecode, op, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, Info{}, apperrors.Errorf(apperrors.KindDecode, op,
			"empty image %dx%d", cfg.Width, cfg.Height)
	}
	if opts.MaxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > opts.MaxPixels {
		return nil, Info{}, apperrors.Errorf(apperrors.KindDecode, op,
			"image %dx%d exceeds pixel limit %d", cfg.Width, cfg.Height, opts.MaxPixels)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, Info{}, apperrors.New(apperrors.KindDecode, op, err)
	}

	buf, err := NewPixelBuffer(img)
	if err != nil {
		return nil, Info{}, apperrors.New(apperrors.KindDecode, op, err)
	}

	return buf, Info{
		Width:     buf.Width(),
		Height:    buf.Height(),
		Format:    format,
		HasAlpha:  !buf.Opaque(),
		SizeBytes: len(data),
	}, nil
}
