package pipeline

import (
	"image"

	"github.com/disintegration/imaging"
)

// blur runs a separable Gaussian with sigma = radius. Callers skip it
// for radius 0.
func blur(src *image.NRGBA, radius float64) *image.NRGBA {
	return imaging.Blur(src, radius)
}
