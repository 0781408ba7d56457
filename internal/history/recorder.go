// Package history persists every state change of a patch run.
package history

import (
	"context"
	"sync"

	"github.com/italolelis/asset_patcher/internal/logctx"
	"github.com/italolelis/asset_patcher/internal/patch"
	"github.com/italolelis/asset_patcher/internal/storage"
)

// Recorder is a patch.Observer writing runs to a repository. Progress is
// saved only when the percentage changes.
type Recorder struct {
	ctx  context.Context
	repo storage.RunWriteRepository

	mu          sync.Mutex
	lastRun     string
	lastPercent int
}

func NewRecorder(ctx context.Context, repo storage.RunWriteRepository) *Recorder {
	return &Recorder{ctx: ctx, repo: repo, lastPercent: -1}
}

func (r *Recorder) OnTotalSizeKnown(s patch.Snapshot)  { r.save(s) }
func (r *Recorder) OnUpToDate(s patch.Snapshot)        { r.save(s) }
func (r *Recorder) OnSucceeded(s patch.Snapshot)       { r.save(s) }
func (r *Recorder) OnFailed(s patch.Snapshot, _ error) { r.save(s) }

func (r *Recorder) OnProgress(s patch.Snapshot) {
	r.mu.Lock()
	changed := s.RunID != r.lastRun || s.Percent != r.lastPercent
	r.lastRun, r.lastPercent = s.RunID, s.Percent
	r.mu.Unlock()

	if changed && !s.Status.IsTerminal() {
		r.save(s)
	}
}

func (r *Recorder) save(s patch.Snapshot) {
	ctx := logctx.WithRunID(r.ctx, s.RunID)

	if err := r.repo.SaveRun(ctx, ToRecord(s)); err != nil {
		logctx.LoggerFromContext(ctx).ErrorContext(ctx, "failed to save run", "status", s.Status, "err", err)
	}
}

// ToRecord converts a run snapshot into its stored form.
func ToRecord(s patch.Snapshot) storage.RunRecord {
	rec := storage.RunRecord{
		RunID:           s.RunID,
		Groups:          s.Groups,
		Status:          string(s.Status),
		TotalBytes:      s.Total,
		DownloadedBytes: s.Downloaded,
		Percent:         s.Percent,
		StartedAt:       s.StartedAt,
		UpdatedAt:       s.UpdatedAt,
	}

	if s.Err != nil {
		rec.Error = s.Err.Error()
	}

	if s.Status.IsTerminal() {
		finished := s.UpdatedAt
		rec.FinishedAt = &finished
	}

	return rec
}
