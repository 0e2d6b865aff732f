package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dunamismax/imagersharp/internal/storage"
)

type ObjectStoreFetcher struct {
	Storage  *storage.Client
	MaxBytes int64
}

func (f ObjectStoreFetcher) Fetch(ctx context.Context, req Request) ([]byte, error) {
	if f.Storage == nil {
		return nil, errors.New("storage client is required")
	}
	if !strings.EqualFold(req.SourceType, SourceTypeS3Presigned) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSourceType, req.SourceType)
	}

	data, err := f.Storage.ReadObject(ctx, req.ObjectKey, f.MaxBytes)
	if errors.Is(err, storage.ErrObjectTooLarge) {
		return nil, fmt.Errorf("%w: %w", ErrSourceTooLarge, err)
	}
	return data, err
}

type ObjectStoreEmitter struct {
	Storage *storage.Client
}

func (e ObjectStoreEmitter) Emit(ctx context.Context, req Request, res Result) (Output, error) {
	if e.Storage == nil {
		return Output{}, errors.New("storage client is required")
	}

	key := storage.OutputKey(sanitizePathToken(req.JobID), OutputFilename(res.Format))
	if err := e.Storage.WriteObject(ctx, key, res.Data, storage.ObjectMeta{
		ContentType:        res.ContentType,
		ContentDisposition: ContentDisposition(res.Format),
	}); err != nil {
		return Output{}, err
	}
	return outputFor(key, res), nil
}
