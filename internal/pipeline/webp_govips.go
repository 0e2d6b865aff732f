//go:build govips && cgo

package pipeline

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"

	"github.com/davidbyttow/govips/v2/vips"
)

func encodeWebP(w io.Writer, img *image.NRGBA, quality int) error {
	if err := Startup(); err != nil {
		return err
	}

	// Hand libvips a fast lossless intermediate; it owns the webp encoder.
	var staged bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.NoCompression}
	if err := enc.Encode(&staged, img); err != nil {
		return fmt.Errorf("stage png for vips: %w", err)
	}

	ref, err := vips.NewImageFromBuffer(staged.Bytes())
	if err != nil {
		return fmt.Errorf("load into vips: %w", err)
	}
	defer ref.Close()

	params := vips.NewWebpExportParams()
	params.Quality = quality
	data, _, err := ref.ExportWebp(params)
	if err != nil {
		return fmt.Errorf("vips webp export: %w", err)
	}
	_, err = w.Write(data)
	return err
}
