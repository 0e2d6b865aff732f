package pipeline

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("imagersharp/pipeline")

type StageTiming struct {
	Stage   string
	Elapsed time.Duration
}

type Result struct {
	Data         []byte
	ContentType  string
	Format       Format
	Width        int
	Height       int
	SourceWidth  int
	SourceHeight int
	Timings      []StageTiming
}

// Run validates params, transforms source and encodes the result. It never
// returns partial output: on error Result is zero.
func Run(ctx context.Context, source []byte, params Params) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	ctx, span := tracer.Start(ctx, "pipeline.run")
	defer span.End()

	plan, err := params.Validate()
	if err != nil {
		failSpan(span, err)
		return Result{}, err
	}
	span.SetAttributes(
		attribute.Int("pipeline.source_bytes", len(source)),
		attribute.String("pipeline.format", plan.output.Format.String()),
		attribute.Int("pipeline.quality", plan.output.Quality),
	)

	var timings []StageTiming
	record := func(name string, start time.Time, elapsed time.Duration, err error) {
		timings = append(timings, StageTiming{Stage: name, Elapsed: elapsed})
		_, s := tracer.Start(ctx, "pipeline."+name, trace.WithTimestamp(start))
		if err != nil {
			failSpan(s, err)
		}
		s.End(trace.WithTimestamp(start.Add(elapsed)))
	}

	img, srcBounds, err := transform(source, plan, func(name string, elapsed time.Duration, err error) {
		record(name, time.Now().Add(-elapsed), elapsed, err)
	})
	if err != nil {
		failSpan(span, err)
		return Result{}, err
	}

	start := time.Now()
	data, contentType, err := Encode(img, plan.output)
	record(StageEncode, start, time.Since(start), err)
	if err != nil {
		failSpan(span, err)
		return Result{}, err
	}

	b := img.Bounds()
	span.SetAttributes(
		attribute.Int("pipeline.output_bytes", len(data)),
		attribute.Int("pipeline.width", b.Dx()),
		attribute.Int("pipeline.height", b.Dy()),
	)
	return Result{
		Data:         data,
		ContentType:  contentType,
		Format:       plan.output.Format,
		Width:        b.Dx(),
		Height:       b.Dy(),
		SourceWidth:  srcBounds.Dx(),
		SourceHeight: srcBounds.Dy(),
		Timings:      timings,
	}, nil
}

func failSpan(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, ErrorKind(err))
}
