//go:build !cgo

package pipeline

import (
	"errors"
	"image"
	"io"
)

func encodeWebP(_ io.Writer, _ *image.NRGBA, _ int) error {
	return errors.New("webp encoding requires a cgo build")
}
