package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dunamismax/imagersharp/internal/pipeline"
)

const (
	JobStatusCreated    = "created"
	JobStatusQueued     = "queued"
	JobStatusProcessing = "processing"
	JobStatusSucceeded  = "succeeded"
	JobStatusFailed     = "failed"

	SourceTypeLocalFile   = pipeline.SourceTypeLocalFile
	SourceTypeS3Presigned = pipeline.SourceTypeS3Presigned
)

type CreateJobRequest struct {
	SourceType string   `json:"source_type"`
	WebhookURL string   `json:"webhook_url,omitempty"`
	ObjectKey  string   `json:"object_key,omitempty"`
	Edit       EditSpec `json:"edit"`
}

type Job struct {
	ID         string
	UserID     string
	Status     string
	SourceType string
	WebhookURL string
	ObjectKey  string
	Edit       EditSpec
	Output     *pipeline.Output
	Error      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (r CreateJobRequest) Validate() error {
	sourceType := strings.ToLower(strings.TrimSpace(r.SourceType))
	if sourceType == "" {
		return errors.New("source_type is required")
	}
	if sourceType != SourceTypeLocalFile && sourceType != SourceTypeS3Presigned {
		return fmt.Errorf("unsupported source_type: %s", r.SourceType)
	}
	if sourceType == SourceTypeLocalFile && strings.TrimSpace(r.ObjectKey) == "" {
		return errors.New("object_key is required for source_type=local_file")
	}

	params, err := r.Edit.Params()
	if err != nil {
		return fmt.Errorf("edit: %w", err)
	}
	if _, err := params.Validate(); err != nil {
		return fmt.Errorf("edit: %w", err)
	}
	return nil
}
