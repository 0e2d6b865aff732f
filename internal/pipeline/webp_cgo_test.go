//go:build cgo && !govips

package pipeline

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/webp"
)

func TestRunWebP(t *testing.T) {
	params := Params{
		Crop:        Rect{X: 4, Y: 4, Width: 40, Height: 30},
		Adjustments: NeutralAdjustments(),
		Output:      OutputSpec{Format: FormatWebP, Quality: 75},
	}

	res, err := Run(context.Background(), encodeFixturePNG(t, gradient(64, 64)), params)
	require.NoError(t, err)
	assert.Equal(t, "image/webp", res.ContentType)
	require.Greater(t, len(res.Data), 12)
	assert.Equal(t, []byte("RIFF"), res.Data[0:4])
	assert.Equal(t, []byte("WEBP"), res.Data[8:12])

	decoded, err := webp.Decode(bytes.NewReader(res.Data))
	require.NoError(t, err)
	assert.Equal(t, 40, decoded.Bounds().Dx())
	assert.Equal(t, 30, decoded.Bounds().Dy())
}
