package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/italolelis/asset_patcher/internal/storage"
	"github.com/italolelis/asset_patcher/internal/telemetry"
)

// InstrumentedRunRepository wraps RunRepository with telemetry.
type InstrumentedRunRepository struct {
	repo      *RunRepository
	telemetry *telemetry.Telemetry
}

// NewInstrumentedRunRepository creates a new instrumented run repository.
func NewInstrumentedRunRepository(dbConn *sql.DB, tel *telemetry.Telemetry) *InstrumentedRunRepository {
	return &InstrumentedRunRepository{
		repo:      NewRunRepository(dbConn),
		telemetry: tel,
	}
}

// SaveRun persists a run with telemetry.
func (r *InstrumentedRunRepository) SaveRun(ctx context.Context, run storage.RunRecord) error {
	return r.telemetry.InstrumentDBOperation(ctx, "save_run", func(ctx context.Context) error {
		return r.repo.SaveRun(ctx, run)
	})
}

// GetRuns lists runs with telemetry.
func (r *InstrumentedRunRepository) GetRuns(ctx context.Context, limit int) ([]storage.RunRecord, error) {
	var result []storage.RunRecord

	var err error

	instrumentedErr := r.telemetry.InstrumentDBOperation(ctx, "get_runs", func(ctx context.Context) error {
		result, err = r.repo.GetRuns(ctx, limit)

		return err
	})

	if instrumentedErr != nil {
		return nil, instrumentedErr
	}

	return result, nil
}

// GetRun loads one run with telemetry.
func (r *InstrumentedRunRepository) GetRun(ctx context.Context, runID string) (storage.RunRecord, error) {
	var result storage.RunRecord

	var err error

	instrumentedErr := r.telemetry.InstrumentDBOperation(ctx, "get_run", func(ctx context.Context) error {
		result, err = r.repo.GetRun(ctx, runID)

		return err
	})

	if instrumentedErr != nil {
		return storage.RunRecord{}, instrumentedErr
	}

	return result, nil
}

// DeleteRunsFinishedBefore prunes history with telemetry.
func (r *InstrumentedRunRepository) DeleteRunsFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var removed int64

	var err error

	instrumentedErr := r.telemetry.InstrumentDBOperation(ctx, "delete_runs", func(ctx context.Context) error {
		removed, err = r.repo.DeleteRunsFinishedBefore(ctx, cutoff)

		return err
	})

	if instrumentedErr != nil {
		return 0, instrumentedErr
	}

	return removed, nil
}
