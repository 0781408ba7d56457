package storage

import (
	"context"
	"errors"
	"time"
)

// ErrRunNotFound is returned when no run matches the requested ID.
var ErrRunNotFound = errors.New("run not found")

// RunRecord is the persisted state of one patch run.
type RunRecord struct {
	RunID           string
	Groups          []string
	Status          string
	TotalBytes      int64
	DownloadedBytes int64
	Percent         int
	Error           string
	StartedAt       time.Time
	UpdatedAt       time.Time
	FinishedAt      *time.Time // nil while the run is active
}

type RunReadRepository interface {
	GetRuns(ctx context.Context, limit int) ([]RunRecord, error) // newest first
	GetRun(ctx context.Context, runID string) (RunRecord, error)
}

type RunWriteRepository interface {
	SaveRun(ctx context.Context, run RunRecord) error                              // insert or update by RunID
	DeleteRunsFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) // returns rows removed
}

type RunRepository interface {
	RunReadRepository
	RunWriteRepository
}
