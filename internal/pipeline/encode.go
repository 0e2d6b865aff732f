package pipeline

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"

	"github.com/disintegration/imaging"
)

type encodeFunc func(w io.Writer, img *image.NRGBA, quality int) error

var encoders = [...]encodeFunc{
	FormatJPEG: encodeJPEG,
	FormatPNG:  encodePNG,
	FormatWebP: encodeWebP,
}

// JPEG has no alpha channel; transparent pixels are composited onto this.
var jpegBackground = color.White

// Encode serializes img and returns the bytes with their content type.
func Encode(img *image.NRGBA, spec OutputSpec) ([]byte, string, error) {
	if !spec.Format.valid() {
		return nil, "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, spec.Format)
	}
	if spec.Quality < 1 || spec.Quality > 100 {
		return nil, "", fmt.Errorf("%w: quality must be in [1,100], got %d", ErrInvalidParams, spec.Quality)
	}

	var buf bytes.Buffer
	if err := encoders[spec.Format](&buf, img, spec.Quality); err != nil {
		return nil, "", fmt.Errorf("%w: %s: %w", ErrEncode, spec.Format, err)
	}
	return buf.Bytes(), spec.Format.ContentType(), nil
}

func encodeJPEG(w io.Writer, img *image.NRGBA, quality int) error {
	var src image.Image = img
	if !img.Opaque() {
		b := img.Bounds()
		bg := imaging.New(b.Dx(), b.Dy(), jpegBackground)
		src = imaging.Overlay(bg, img, image.Point{}, 1)
	}
	return imaging.Encode(w, src, imaging.JPEG, imaging.JPEGQuality(quality))
}

// encodePNG is lossless at every quality; quality only picks how hard
// the deflate stage works.
func encodePNG(w io.Writer, img *image.NRGBA, quality int) error {
	return imaging.Encode(w, img, imaging.PNG, imaging.PNGCompressionLevel(pngCompression(quality)))
}

func pngCompression(quality int) png.CompressionLevel {
	switch {
	case quality <= 33:
		return png.BestSpeed
	case quality <= 66:
		return png.DefaultCompression
	default:
		return png.BestCompression
	}
}
