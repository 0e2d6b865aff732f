package domain

import (
	"errors"
	"testing"

	"github.com/dunamismax/imagersharp/internal/pipeline"
)

func validEdit() EditSpec {
	return EditSpec{
		Crop: pipeline.Rect{X: 10, Y: 10, Width: 100, Height: 100},
	}
}

func TestCreateJobRequestValidate(t *testing.T) {
	valid := CreateJobRequest{
		SourceType: SourceTypeS3Presigned,
		Edit:       validEdit(),
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid request, got error: %v", err)
	}

	invalid := CreateJobRequest{}
	if err := invalid.Validate(); err == nil {
		t.Fatal("expected validation error for empty request")
	}

	missingObjectKey := CreateJobRequest{
		SourceType: SourceTypeLocalFile,
		Edit:       validEdit(),
	}
	if err := missingObjectKey.Validate(); err == nil {
		t.Fatal("expected validation error for local_file object_key")
	}

	unsupportedSourceType := CreateJobRequest{
		SourceType: "http_url",
		Edit:       validEdit(),
	}
	if err := unsupportedSourceType.Validate(); err == nil {
		t.Fatal("expected validation error for unsupported source_type")
	}

	badFormat := CreateJobRequest{
		SourceType: SourceTypeS3Presigned,
		Edit:       validEdit(),
	}
	badFormat.Edit.Output.Format = "bmp"
	if err := badFormat.Validate(); !errors.Is(err, pipeline.ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}

	emptyCrop := CreateJobRequest{
		SourceType: SourceTypeS3Presigned,
		Edit:       EditSpec{Crop: pipeline.Rect{X: 0, Y: 0, Width: 0.2, Height: 10}},
	}
	if err := emptyCrop.Validate(); !errors.Is(err, pipeline.ErrInvalidCrop) {
		t.Fatalf("expected ErrInvalidCrop, got %v", err)
	}
}

func TestEditSpecParamsDefaults(t *testing.T) {
	params, err := validEdit().Params()
	if err != nil {
		t.Fatalf("params: %v", err)
	}
	if params.Output.Format != pipeline.FormatJPEG {
		t.Fatalf("expected jpeg default, got %s", params.Output.Format)
	}
	if params.Output.Quality != 80 {
		t.Fatalf("expected quality 80, got %d", params.Output.Quality)
	}
	if params.Adjustments != pipeline.NeutralAdjustments() {
		t.Fatalf("expected neutral adjustments, got %+v", params.Adjustments)
	}
}

func TestEditSpecParamsKeepsExplicitZeroSaturation(t *testing.T) {
	zero := 0.0
	spec := validEdit()
	spec.Adjustments.Saturation = &zero
	spec.Output = OutputSpec{Format: "png", Quality: 10}

	params, err := spec.Params()
	if err != nil {
		t.Fatalf("params: %v", err)
	}
	if params.Adjustments.Saturation != 0 {
		t.Fatalf("expected saturation 0, got %v", params.Adjustments.Saturation)
	}
	if params.Adjustments.Brightness != 1 {
		t.Fatalf("expected neutral brightness, got %v", params.Adjustments.Brightness)
	}
	if params.Output.Format != pipeline.FormatPNG || params.Output.Quality != 10 {
		t.Fatalf("unexpected output %+v", params.Output)
	}
}
