package pipeline

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// crop extracts r verbatim. r is relative to the image origin and must lie
// entirely inside it; imaging.Crop on its own would silently intersect.
func crop(src *image.NRGBA, r image.Rectangle) (*image.NRGBA, error) {
	b := src.Bounds()
	abs := r.Add(b.Min)
	if r.Empty() || !abs.In(b) {
		return nil, fmt.Errorf("%w: %dx%d+%d+%d exceeds %dx%d image",
			ErrInvalidCrop, r.Dx(), r.Dy(), r.Min.X, r.Min.Y, b.Dx(), b.Dy())
	}
	return imaging.Crop(src, abs), nil
}
