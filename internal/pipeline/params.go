package pipeline

import (
	"fmt"
	"image"
	"math"
	"strings"
)

const (
	DefaultQuality = 80
	DefaultFormat  = FormatJPEG
)

// Format is the closed set of output containers the encode stage can produce.
type Format uint8

const (
	FormatJPEG Format = iota + 1
	FormatPNG
	FormatWebP
)

// ParseFormat accepts the lower-case container names plus the "jpg" alias.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "jpeg", "jpg":
		return FormatJPEG, nil
	case "png":
		return FormatPNG, nil
	case "webp":
		return FormatWebP, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

func (f Format) String() string {
	switch f {
	case FormatJPEG:
		return "jpeg"
	case FormatPNG:
		return "png"
	case FormatWebP:
		return "webp"
	default:
		return fmt.Sprintf("format(%d)", uint8(f))
	}
}

func (f Format) ContentType() string {
	if !f.valid() {
		return ""
	}
	return "image/" + f.String()
}

func (f Format) Extension() string {
	if !f.valid() {
		return ""
	}
	return f.String()
}

func (f Format) valid() bool {
	return f >= FormatJPEG && f <= FormatWebP
}

// Rect is a crop rectangle in source-pixel coordinates as supplied by the
// caller. Fields are rounded to whole pixels before use.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type Adjustments struct {
	Brightness float64 `json:"brightness"`
	Saturation float64 `json:"saturation"`
	Contrast   float64 `json:"contrast"`
	BlurRadius float64 `json:"blur_radius"`
}

// NeutralAdjustments leaves every pixel untouched.
func NeutralAdjustments() Adjustments {
	return Adjustments{Brightness: 1, Saturation: 1, Contrast: 1}
}

func (a Adjustments) modulates() bool {
	return a.Brightness != 1 || a.Saturation != 1
}

type OutputSpec struct {
	Format  Format
	Quality int
}

// Params is everything a single edit needs besides the source bytes.
type Params struct {
	Crop        Rect
	Adjustments Adjustments
	Output      OutputSpec
	// AutoOrient applies the EXIF orientation before cropping. Off by
	// default so crop coordinates address the stored pixel grid.
	AutoOrient bool
}

// Plan is a validated Params value. Stages only ever see a Plan.
type Plan struct {
	crop       image.Rectangle
	adjust     Adjustments
	output     OutputSpec
	autoOrient bool
}

func (p Plan) Crop() image.Rectangle    { return p.crop }
func (p Plan) Adjustments() Adjustments { return p.adjust }
func (p Plan) Output() OutputSpec       { return p.output }

// Validate checks every parameter once and rounds the crop rectangle.
// Bounds against the decoded image are checked by the crop stage.
func (p Params) Validate() (Plan, error) {
	crop, err := roundRect(p.Crop)
	if err != nil {
		return Plan{}, err
	}

	a := p.Adjustments
	switch {
	case !finite(a.Brightness) || a.Brightness <= 0:
		return Plan{}, fmt.Errorf("%w: brightness must be > 0, got %v", ErrInvalidParams, a.Brightness)
	case !finite(a.Saturation) || a.Saturation < 0:
		return Plan{}, fmt.Errorf("%w: saturation must be >= 0, got %v", ErrInvalidParams, a.Saturation)
	case !finite(a.Contrast) || a.Contrast <= 0:
		return Plan{}, fmt.Errorf("%w: contrast must be > 0, got %v", ErrInvalidParams, a.Contrast)
	case !finite(a.BlurRadius) || a.BlurRadius < 0:
		return Plan{}, fmt.Errorf("%w: blur radius must be >= 0, got %v", ErrInvalidParams, a.BlurRadius)
	}

	if !p.Output.Format.valid() {
		return Plan{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, p.Output.Format)
	}
	if p.Output.Quality < 1 || p.Output.Quality > 100 {
		return Plan{}, fmt.Errorf("%w: quality must be in [1,100], got %d", ErrInvalidParams, p.Output.Quality)
	}

	return Plan{
		crop:       crop,
		adjust:     a,
		output:     p.Output,
		autoOrient: p.AutoOrient,
	}, nil
}

func roundRect(r Rect) (image.Rectangle, error) {
	for _, v := range [...]float64{r.X, r.Y, r.Width, r.Height} {
		if !finite(v) {
			return image.Rectangle{}, fmt.Errorf("%w: non-finite value in %+v", ErrInvalidCrop, r)
		}
	}

	x, y := roundHalfUp(r.X), roundHalfUp(r.Y)
	w, h := roundHalfUp(r.Width), roundHalfUp(r.Height)
	if x < 0 || y < 0 {
		return image.Rectangle{}, fmt.Errorf("%w: origin (%d,%d) is negative", ErrInvalidCrop, x, y)
	}
	if w < 1 || h < 1 {
		return image.Rectangle{}, fmt.Errorf("%w: size %dx%d is empty", ErrInvalidCrop, w, h)
	}
	return image.Rect(x, y, x+w, y+h), nil
}

// roundHalfUp matches the browser's Math.round, which produced the
// coordinates: halves go towards +Inf.
func roundHalfUp(v float64) int {
	f := math.Floor(v + 0.5)
	if f > math.MaxInt32 {
		return math.MaxInt32
	}
	if f < math.MinInt32 {
		return math.MinInt32
	}
	return int(f)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
