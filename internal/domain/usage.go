package domain

import "time"

// UsageLog is one billing record per finished edit.
type UsageLog struct {
	UserID          string
	JobID           string
	Format          string
	PixelsProcessed int64
	BytesIn         int64
	BytesOut        int64
	ComputeTimeMS   int64
	CreatedAt       time.Time
}
