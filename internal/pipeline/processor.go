package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	SourceTypeLocalFile   = "local_file"
	SourceTypeS3Presigned = "s3_presigned"
)

var ErrUnsupportedSourceType = errors.New("unsupported source_type")

// Request is one queued edit: where the source lives and what to do to it.
type Request struct {
	JobID      string
	SourceType string
	ObjectKey  string
	Params     Params
}

// Output describes an emitted file or object.
type Output struct {
	Path        string `json:"path"`
	Format      string `json:"format"`
	ContentType string `json:"content_type"`
	Bytes       int    `json:"bytes"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
}

type JobResult struct {
	Output      Output
	SourceBytes int
	Timings     []StageTiming
}

type Fetcher interface {
	Fetch(ctx context.Context, req Request) ([]byte, error)
}

type Emitter interface {
	Emit(ctx context.Context, req Request, res Result) (Output, error)
}

// Processor moves a job's bytes from a Fetcher, through Run, to an Emitter.
type Processor struct {
	fetcher Fetcher
	emitter Emitter
	limits  Limits
}

func NewProcessor(fetcher Fetcher, emitter Emitter, limits Limits) (*Processor, error) {
	if fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	if emitter == nil {
		return nil, errors.New("emitter is required")
	}
	return &Processor{fetcher: fetcher, emitter: emitter, limits: limits}, nil
}

func NewLocalProcessor(outputDir string, limits Limits) (*Processor, error) {
	return NewProcessor(LocalFileFetcher{}, LocalFileEmitter{OutputDir: outputDir}, limits)
}

func (p *Processor) Process(ctx context.Context, req Request) (JobResult, error) {
	if strings.TrimSpace(req.JobID) == "" {
		return JobResult{}, errors.New("job_id is required")
	}

	source, err := p.fetcher.Fetch(ctx, req)
	if err != nil {
		return JobResult{}, fmt.Errorf("fetch stage: %w", err)
	}
	if _, err := p.limits.Check(source); err != nil {
		return JobResult{}, fmt.Errorf("limit check: %w", err)
	}

	res, err := Run(ctx, source, req.Params)
	if err != nil {
		return JobResult{}, fmt.Errorf("edit stage: %w", err)
	}

	out, err := p.emitter.Emit(ctx, req, res)
	if err != nil {
		return JobResult{}, fmt.Errorf("emit stage: %w", err)
	}

	return JobResult{
		Output:      out,
		SourceBytes: len(source),
		Timings:     res.Timings,
	}, nil
}

// OutputFilename is the basename every edited image is published under.
func OutputFilename(f Format) string {
	return "processed." + f.Extension()
}

// ContentDisposition renders the header value for serving an edit inline.
func ContentDisposition(f Format) string {
	return fmt.Sprintf("inline; filename=%s", OutputFilename(f))
}

type LocalFileFetcher struct{}

func (LocalFileFetcher) Fetch(ctx context.Context, req Request) ([]byte, error) {
	if !strings.EqualFold(req.SourceType, SourceTypeLocalFile) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSourceType, req.SourceType)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(req.ObjectKey)
	if err != nil {
		return nil, fmt.Errorf("read input file %s: %w", req.ObjectKey, err)
	}
	return data, nil
}

type LocalFileEmitter struct {
	OutputDir string
}

func (e LocalFileEmitter) Emit(_ context.Context, req Request, res Result) (Output, error) {
	if strings.TrimSpace(e.OutputDir) == "" {
		return Output{}, errors.New("output directory is required")
	}

	jobDir := filepath.Join(e.OutputDir, sanitizePathToken(req.JobID))
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		return Output{}, fmt.Errorf("create output dir: %w", err)
	}

	fullPath := filepath.Join(jobDir, OutputFilename(res.Format))
	if err := os.WriteFile(fullPath, res.Data, 0o644); err != nil {
		return Output{}, fmt.Errorf("write output file: %w", err)
	}

	return outputFor(fullPath, res), nil
}

func outputFor(path string, res Result) Output {
	return Output{
		Path:        path,
		Format:      res.Format.String(),
		ContentType: res.ContentType,
		Bytes:       len(res.Data),
		Width:       res.Width,
		Height:      res.Height,
	}
}

func sanitizePathToken(in string) string {
	in = strings.TrimSpace(in)
	if in == "" {
		return "unknown"
	}

	var b strings.Builder
	b.Grow(len(in))
	for _, r := range in {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
