package domain

import (
	"github.com/dunamismax/imagersharp/internal/pipeline"
)

// EditSpec is the wire form of an edit. Omitted adjustments are neutral
// and an omitted output falls back to jpeg at quality 80.
type EditSpec struct {
	Crop        pipeline.Rect  `json:"crop"`
	Adjustments AdjustmentSpec `json:"adjustments"`
	Output      OutputSpec     `json:"output"`
	AutoOrient  bool           `json:"auto_orient,omitempty"`
}

type AdjustmentSpec struct {
	Brightness *float64 `json:"brightness,omitempty"`
	Saturation *float64 `json:"saturation,omitempty"`
	Contrast   *float64 `json:"contrast,omitempty"`
	BlurRadius float64  `json:"blur_radius,omitempty"`
}

type OutputSpec struct {
	Format  string `json:"format,omitempty"`
	Quality int    `json:"quality,omitempty"`
}

func (a AdjustmentSpec) Adjustments() pipeline.Adjustments {
	out := pipeline.NeutralAdjustments()
	if a.Brightness != nil {
		out.Brightness = *a.Brightness
	}
	if a.Saturation != nil {
		out.Saturation = *a.Saturation
	}
	if a.Contrast != nil {
		out.Contrast = *a.Contrast
	}
	out.BlurRadius = a.BlurRadius
	return out
}

func (o OutputSpec) Spec() (pipeline.OutputSpec, error) {
	out := pipeline.OutputSpec{Format: pipeline.DefaultFormat, Quality: pipeline.DefaultQuality}
	if o.Format != "" {
		f, err := pipeline.ParseFormat(o.Format)
		if err != nil {
			return pipeline.OutputSpec{}, err
		}
		out.Format = f
	}
	if o.Quality != 0 {
		out.Quality = o.Quality
	}
	return out, nil
}

// Params converts the wire form. Range checks are left to Validate.
func (e EditSpec) Params() (pipeline.Params, error) {
	output, err := e.Output.Spec()
	if err != nil {
		return pipeline.Params{}, err
	}
	return pipeline.Params{
		Crop:        e.Crop,
		Adjustments: e.Adjustments.Adjustments(),
		Output:      output,
		AutoOrient:  e.AutoOrient,
	}, nil
}
