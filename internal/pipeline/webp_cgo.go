//go:build cgo && !govips

package pipeline

import (
	"image"
	"io"

	"github.com/chai2010/webp"
)

func encodeWebP(w io.Writer, img *image.NRGBA, quality int) error {
	// libwebp wants straight alpha, which is exactly what NRGBA holds.
	// Passing it as *image.RGBA stops the encoder from premultiplying.
	straight := &image.RGBA{Pix: img.Pix, Stride: img.Stride, Rect: img.Rect}
	return webp.Encode(w, straight, &webp.Options{Quality: float32(quality)})
}
