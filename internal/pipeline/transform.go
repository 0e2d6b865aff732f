package pipeline

import (
	"image"
	"time"
)

const (
	StageDecode   = "decode"
	StageCrop     = "crop"
	StageModulate = "modulate"
	StageContrast = "contrast"
	StageBlur     = "blur"
	StageEncode   = "encode"
)

type stage struct {
	name  string
	apply func(*image.NRGBA) (*image.NRGBA, error)
}

// stages lists the pixel operations the plan needs, in their fixed order.
// Neutral adjustments contribute no stage at all.
func (p Plan) stages() []stage {
	out := []stage{{
		name: StageCrop,
		apply: func(img *image.NRGBA) (*image.NRGBA, error) {
			return crop(img, p.crop)
		},
	}}

	if p.adjust.modulates() {
		brightness, saturation := p.adjust.Brightness, p.adjust.Saturation
		out = append(out, stage{
			name: StageModulate,
			apply: func(img *image.NRGBA) (*image.NRGBA, error) {
				return modulate(img, brightness, saturation), nil
			},
		})
	}
	if c := p.adjust.Contrast; c != 1 {
		out = append(out, stage{
			name: StageContrast,
			apply: func(img *image.NRGBA) (*image.NRGBA, error) {
				return contrast(img, c), nil
			},
		})
	}
	if r := p.adjust.BlurRadius; r > 0 {
		out = append(out, stage{
			name: StageBlur,
			apply: func(img *image.NRGBA) (*image.NRGBA, error) {
				return blur(img, r), nil
			},
		})
	}
	return out
}

// Transform decodes source and runs the plan's pixel stages.
func Transform(source []byte, plan Plan) (*image.NRGBA, error) {
	img, _, err := transform(source, plan, nil)
	return img, err
}

type stageObserver func(name string, elapsed time.Duration, err error)

// transform also returns the decoded source bounds for reporting.
func transform(source []byte, plan Plan, observe stageObserver) (*image.NRGBA, image.Rectangle, error) {
	if observe == nil {
		observe = func(string, time.Duration, error) {}
	}

	start := time.Now()
	img, err := decode(source, plan.autoOrient)
	observe(StageDecode, time.Since(start), err)
	if err != nil {
		return nil, image.Rectangle{}, err
	}
	srcBounds := img.Bounds()

	for _, st := range plan.stages() {
		start = time.Now()
		img, err = st.apply(img)
		observe(st.name, time.Since(start), err)
		if err != nil {
			return nil, image.Rectangle{}, err
		}
	}
	return img, srcBounds, nil
}
