package pipeline

import (
	"image"
	"math"

	"github.com/anthonynsimon/bild/parallel"
)

// Rec. 709 luma weights.
const (
	lumaR = 0.2126
	lumaG = 0.7152
	lumaB = 0.0722
)

// modulate applies brightness and saturation in one pass over normalized
// RGB. Saturation scales each channel's distance from the pixel's luma,
// so 0 collapses to gray and hue is kept for any other factor.
func modulate(src *image.NRGBA, brightness, saturation float64) *image.NRGBA {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))

	parallel.Line(h, func(start, end int) {
		for y := start; y < end; y++ {
			s := src.Pix[y*src.Stride : y*src.Stride+w*4]
			d := dst.Pix[y*dst.Stride : y*dst.Stride+w*4]
			for i := 0; i < len(s); i += 4 {
				r := float64(s[i]) / 255
				g := float64(s[i+1]) / 255
				b := float64(s[i+2]) / 255
				l := lumaR*r + lumaG*g + lumaB*b

				d[i] = toByte(brightness * (l + (r-l)*saturation))
				d[i+1] = toByte(brightness * (l + (g-l)*saturation))
				d[i+2] = toByte(brightness * (l + (b-l)*saturation))
				d[i+3] = s[i+3]
			}
		}
	})
	return dst
}

// contrast pivots every channel around mid-gray:
// out = in*c + (0.5 - 0.5*c) on [0,1].
func contrast(src *image.NRGBA, c float64) *image.NRGBA {
	var lut [256]uint8
	offset := 0.5 - 0.5*c
	for i := range lut {
		lut[i] = toByte(float64(i)/255*c + offset)
	}

	w, h := src.Rect.Dx(), src.Rect.Dy()
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))

	parallel.Line(h, func(start, end int) {
		for y := start; y < end; y++ {
			s := src.Pix[y*src.Stride : y*src.Stride+w*4]
			d := dst.Pix[y*dst.Stride : y*dst.Stride+w*4]
			for i := 0; i < len(s); i += 4 {
				d[i] = lut[s[i]]
				d[i+1] = lut[s[i+1]]
				d[i+2] = lut[s[i+2]]
				d[i+3] = s[i+3]
			}
		}
	})
	return dst
}

func toByte(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 255
	default:
		return uint8(math.Round(v * 255))
	}
}
