// Package export serializes rendered pixels into encoded image files.
package export

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"
	"math"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"

	"github.com/ironsheep/image-editor-mcp/internal/crop"
	apperrors "github.com/ironsheep/image-editor-mcp/internal/errors"
	imgbuf "github.com/ironsheep/image-editor-mcp/internal/imaging"
)

// DefaultQuality applies to lossy formats when Config.Quality is nil.
const DefaultQuality = 92

// FitMode controls how the cropped image is mapped onto Width×Height.
type FitMode string

const (
	// FitExact stretches the crop to exactly Width×Height.
	FitExact FitMode = "exact"
	// FitContain preserves the crop's aspect ratio; the output is shrunk so it
	// fits inside Width×Height.
	FitContain FitMode = "contain"
	// FitCover preserves the aspect ratio by trimming the crop, centered, to
	// the target aspect; the output is exactly Width×Height.
	FitCover FitMode = "cover"
)

// ParseFitMode normalizes a fit mode name. Empty means FitExact.
func ParseFitMode(s string) (FitMode, error) {
	switch FitMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", FitExact:
		return FitExact, nil
	case FitContain:
		return FitContain, nil
	case FitCover:
		return FitCover, nil
	}
	return "", apperrors.Errorf(apperrors.KindInvalidArgument, "export.fit_mode", "unknown fit mode %q", s)
}

// Config is the export target.
type Config struct {
	Width   uint32        `json:"width"`
	Height  uint32        `json:"height"`
	Format  imgbuf.Format `json:"format"`
	Quality *uint8        `json:"quality,omitempty"` // 1-100; ignored for PNG
	Fit     FitMode       `json:"fit,omitempty"`
}

// Validate checks the target size, format and quality.
func (c Config) Validate() error {
	const op = "export.config"
	if c.Width == 0 || c.Height == 0 {
		return apperrors.Errorf(apperrors.KindInvalidDimensions, op,
			"width and height must be positive, got %dx%d", c.Width, c.Height)
	}
	if _, ok := encoders[c.Format]; !ok {
		return apperrors.Errorf(apperrors.KindUnsupportedFormat, op, "cannot encode %q", c.Format)
	}
	if c.Quality != nil && (*c.Quality < 1 || *c.Quality > 100) {
		return apperrors.Errorf(apperrors.KindInvalidArgument, op, "quality %d outside [1, 100]", *c.Quality)
	}
	if _, err := ParseFitMode(string(c.Fit)); err != nil {
		return err
	}
	return nil
}

// EffectiveQuality returns the quality the encoder will use.
func (c Config) EffectiveQuality() int {
	if c.Quality == nil {
		return DefaultQuality
	}
	return int(*c.Quality)
}

// Plan resolves the fit mode: it returns the image-space region to render
// and the output size in pixels.
func (c Config) Plan(region crop.Rect) (crop.Rect, int, int) {
	w, h := int(c.Width), int(c.Height)
	switch c.Fit {
	case FitContain:
		scale := math.Min(float64(w)/region.Width, float64(h)/region.Height)
		return region,
			max(1, min(w, int(math.Round(region.Width*scale)))),
			max(1, min(h, int(math.Round(region.Height*scale))))
	case FitCover:
		target := float64(w) / float64(h)
		cw, ch := region.Width, region.Height
		if cw/ch > target {
			cw = ch * target
		} else {
			ch = cw / target
		}
		return crop.Rect{
			X:      region.X + (region.Width-cw)/2,
			Y:      region.Y + (region.Height-ch)/2,
			Width:  cw,
			Height: ch,
		}, w, h
	}
	return region, w, h
}

// EncodedFile is an immutable encoded image.
type EncodedFile struct {
	Name     string `json:"name"`
	Data     []byte `json:"-"`
	Size     int    `json:"size"`
	MimeType string `json:"mime_type"`
}

// encodeFunc writes img to w at the given quality.
type encodeFunc func(w io.Writer, img image.Image, quality int) error

var encoders = map[imgbuf.Format]encodeFunc{
	imgbuf.FormatJPEG: encodeJPEG,
	imgbuf.FormatPNG:  encodePNG,
	imgbuf.FormatWebP: encodeWebP,
}

func encodeJPEG(w io.Writer, img image.Image, quality int) error {
	return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(quality))
}

// encodePNG is lossless at a fixed compression level; quality is ignored.
func encodePNG(w io.Writer, img image.Image, _ int) error {
	return imaging.Encode(w, img, imaging.PNG, imaging.PNGCompressionLevel(png.DefaultCompression))
}

func encodeWebP(w io.Writer, img image.Image, quality int) error {
	return webp.Encode(w, img, &webp.Options{Quality: float32(quality)})
}

// Supported lists the formats Encode can produce.
func Supported() []imgbuf.Format {
	return []imgbuf.Format{imgbuf.FormatJPEG, imgbuf.FormatPNG, imgbuf.FormatWebP}
}

// Encode serializes buf according to cfg. The buffer must already have the
// target dimensions; use the render package to produce it.
//
// name is the source file name; the result is named
// "<base>_<width>x<height>.<ext>". Output is deterministic for a given buffer
// and config.
func Encode(buf *imgbuf.PixelBuffer, cfg Config, name string) (EncodedFile, error) {
	const op = "export.encode"

	if err := cfg.Validate(); err != nil {
		return EncodedFile{}, err
	}
	if buf == nil {
		return EncodedFile{}, apperrors.Errorf(apperrors.KindInvalidArgument, op, "no image to encode")
	}

	var out bytes.Buffer
	if err := encoders[cfg.Format](&out, buf.Image(), cfg.EffectiveQuality()); err != nil {
		return EncodedFile{}, apperrors.New(apperrors.KindEncode, op, err)
	}
	data := out.Bytes()
	return EncodedFile{
		Name:     FileName(name, buf.Width(), buf.Height(), cfg.Format),
		Data:     data,
		Size:     len(data),
		MimeType: cfg.Format.MimeType(),
	}, nil
}

// FileName builds the output file name for an export.
func FileName(source string, width, height int, format imgbuf.Format) string {
	base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	if base == "" || base == "." || base == string(filepath.Separator) {
		base = "image"
	}
	return fmt.Sprintf("%s_%dx%d.%s", base, width, height, format.Extension())
}

// Probe encodes a 1×1 image in every supported format. Engine start-up uses it
// to fail fast when an encoder is broken.
func Probe() error {
	px := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	for _, f := range Supported() {
		if err := encoders[f](io.Discard, px, DefaultQuality); err != nil {
			return apperrors.New(apperrors.KindEngineUnavailable, "export.probe",
				fmt.Errorf("%s encoder: %w", f, err))
		}
	}
	return nil
}
