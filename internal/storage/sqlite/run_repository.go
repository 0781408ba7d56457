package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/italolelis/asset_patcher/internal/storage"
)

// Fixed-width UTC timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000Z"

// RunRepository implements storage.RunRepository on SQLite.
type RunRepository struct {
	db *sql.DB
}

func NewRunRepository(dbConn *sql.DB) *RunRepository {
	return &RunRepository{db: dbConn}
}

// SaveRun inserts the run or overwrites its mutable columns.
func (r *RunRepository) SaveRun(ctx context.Context, run storage.RunRecord) error {
	var finishedAt sql.NullString
	if run.FinishedAt != nil {
		finishedAt = sql.NullString{String: formatTime(*run.FinishedAt), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO patch_runs (run_id, group_labels, status, total_bytes, downloaded_bytes, percent, error, started_at, updated_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			status = excluded.status,
			total_bytes = excluded.total_bytes,
			downloaded_bytes = excluded.downloaded_bytes,
			percent = excluded.percent,
			error = excluded.error,
			updated_at = excluded.updated_at,
			finished_at = excluded.finished_at
	`,
		run.RunID, strings.Join(run.Groups, ","), run.Status, run.TotalBytes, run.DownloadedBytes, run.Percent,
		run.Error, formatTime(run.StartedAt), formatTime(run.UpdatedAt), finishedAt,
	)

	return err
}

// GetRuns returns up to limit runs, most recently started first.
func (r *RunRepository) GetRuns(ctx context.Context, limit int) ([]storage.RunRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT
			run_id,
			group_labels,
			status,
			total_bytes,
			downloaded_bytes,
			percent,
			error,
			started_at,
			updated_at,
			finished_at
		FROM patch_runs
		ORDER BY started_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []storage.RunRecord

	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}

		runs = append(runs, run)
	}

	return runs, rows.Err()
}

func (r *RunRepository) GetRun(ctx context.Context, runID string) (storage.RunRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT run_id, group_labels, status, total_bytes, downloaded_bytes, percent, error, started_at, updated_at, finished_at
		FROM patch_runs WHERE run_id = ?`, runID)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.RunRecord{}, storage.ErrRunNotFound
	}

	return run, err
}

// DeleteRunsFinishedBefore removes finished runs older than cutoff. Active
// runs are never removed.
func (r *RunRepository) DeleteRunsFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM patch_runs WHERE finished_at IS NOT NULL AND finished_at < ?`, formatTime(cutoff))
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (storage.RunRecord, error) {
	var (
		run                  storage.RunRecord
		groups, errText      sql.NullString
		startedAt, updatedAt string
		finishedAt           sql.NullString
	)

	err := s.Scan(&run.RunID, &groups, &run.Status, &run.TotalBytes, &run.DownloadedBytes, &run.Percent,
		&errText, &startedAt, &updatedAt, &finishedAt)
	if err != nil {
		return storage.RunRecord{}, err
	}

	if groups.String != "" {
		run.Groups = strings.Split(groups.String, ",")
	}

	run.Error = errText.String

	if run.StartedAt, err = time.Parse(timeLayout, startedAt); err != nil {
		return storage.RunRecord{}, err
	}

	if run.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return storage.RunRecord{}, err
	}

	if finishedAt.Valid {
		t, err := time.Parse(timeLayout, finishedAt.String)
		if err != nil {
			return storage.RunRecord{}, err
		}

		run.FinishedAt = &t
	}

	return run, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
