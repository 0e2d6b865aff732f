package pipeline

import (
	"image"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validParams() Params {
	return Params{
		Crop:        Rect{X: 0, Y: 0, Width: 10, Height: 10},
		Adjustments: NeutralAdjustments(),
		Output:      OutputSpec{Format: DefaultFormat, Quality: DefaultQuality},
	}
}

func TestParseFormat(t *testing.T) {
	cases := map[string]Format{
		"jpeg":  FormatJPEG,
		"jpg":   FormatJPEG,
		"JPEG":  FormatJPEG,
		"png":   FormatPNG,
		" webp": FormatWebP,
	}
	for in, want := range cases {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "bmp", "gif", "tiff", "image/png"} {
		_, err := ParseFormat(bad)
		assert.ErrorIs(t, err, ErrUnsupportedFormat, bad)
	}
}

func TestFormatMetadata(t *testing.T) {
	assert.Equal(t, "image/jpeg", FormatJPEG.ContentType())
	assert.Equal(t, "image/png", FormatPNG.ContentType())
	assert.Equal(t, "image/webp", FormatWebP.ContentType())
	assert.Equal(t, "jpeg", FormatJPEG.Extension())
	assert.Empty(t, Format(0).ContentType())
	assert.Equal(t, "processed.webp", OutputFilename(FormatWebP))
	assert.Equal(t, "inline; filename=processed.png", ContentDisposition(FormatPNG))
}

func TestValidateRoundsCropHalfUp(t *testing.T) {
	p := validParams()
	p.Crop = Rect{X: 10.5, Y: 2.4, Width: 99.5, Height: 0.5}

	plan, err := p.Validate()
	require.NoError(t, err)
	assert.Equal(t, image.Rect(11, 2, 11+100, 2+1), plan.Crop())
}

func TestValidateRejectsBadCrop(t *testing.T) {
	cases := map[string]Rect{
		"negative x":   {X: -1, Y: 0, Width: 5, Height: 5},
		"zero width":   {X: 0, Y: 0, Width: 0, Height: 5},
		"rounds empty": {X: 0, Y: 0, Width: 5, Height: 0.49},
		"nan":          {X: math.NaN(), Y: 0, Width: 5, Height: 5},
		"inf":          {X: 0, Y: 0, Width: math.Inf(1), Height: 5},
	}
	for name, r := range cases {
		t.Run(name, func(t *testing.T) {
			p := validParams()
			p.Crop = r
			_, err := p.Validate()
			assert.ErrorIs(t, err, ErrInvalidCrop)
		})
	}
}

func TestValidateAdjustmentRanges(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Adjustments)
		ok     bool
	}{
		{"neutral", func(*Adjustments) {}, true},
		{"grayscale", func(a *Adjustments) { a.Saturation = 0 }, true},
		{"zero brightness", func(a *Adjustments) { a.Brightness = 0 }, false},
		{"negative saturation", func(a *Adjustments) { a.Saturation = -0.1 }, false},
		{"zero contrast", func(a *Adjustments) { a.Contrast = 0 }, false},
		{"negative blur", func(a *Adjustments) { a.BlurRadius = -1 }, false},
		{"nan brightness", func(a *Adjustments) { a.Brightness = math.NaN() }, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := validParams()
			tc.mutate(&p.Adjustments)
			_, err := p.Validate()
			if tc.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidParams)
		})
	}
}

func TestValidateOutput(t *testing.T) {
	for _, q := range []int{0, -5, 101} {
		p := validParams()
		p.Output.Quality = q
		_, err := p.Validate()
		assert.ErrorIs(t, err, ErrInvalidParams, "quality %d", q)
	}

	for _, q := range []int{1, 100} {
		p := validParams()
		p.Output.Quality = q
		_, err := p.Validate()
		assert.NoError(t, err, "quality %d", q)
	}

	p := validParams()
	p.Output.Format = Format(42)
	_, err := p.Validate()
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestPlanStagesSkipNeutralAdjustments(t *testing.T) {
	names := func(p Params) []string {
		plan, err := p.Validate()
		require.NoError(t, err)
		var out []string
		for _, st := range plan.stages() {
			out = append(out, st.name)
		}
		return out
	}

	assert.Equal(t, []string{StageCrop}, names(validParams()))

	p := validParams()
	p.Adjustments = Adjustments{Brightness: 1.2, Saturation: 1, Contrast: 0.8, BlurRadius: 1.5}
	assert.Equal(t, []string{StageCrop, StageModulate, StageContrast, StageBlur}, names(p))

	p = validParams()
	p.Adjustments.Saturation = 0
	assert.Equal(t, []string{StageCrop, StageModulate}, names(p))
}
