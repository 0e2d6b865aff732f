package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// Info describes a source image without decoding its pixels.
type Info struct {
	Format string
	Width  int
	Height int
}

func (i Info) Pixels() int64 {
	return int64(i.Width) * int64(i.Height)
}

// Probe reads only the image header. GIF headers carry no integrity
// check, so their block layout is walked as well.
func Probe(data []byte) (Info, error) {
	if len(data) == 0 {
		return Info{}, fmt.Errorf("%w: empty source", ErrDecode)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Info{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if format == "gif" {
		if err := checkGIFStructure(data); err != nil {
			return Info{}, fmt.Errorf("%w: %w", ErrDecode, err)
		}
	}
	return Info{Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}

func decode(data []byte, autoOrient bool) (*image.NRGBA, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty source", ErrDecode)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(autoOrient))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: %w", ErrDecode, errors.New("image has no pixels"))
	}
	return toNRGBA(img), nil
}

// toNRGBA returns a straight-alpha buffer anchored at the origin.
func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n
	}
	return imaging.Clone(img)
}
