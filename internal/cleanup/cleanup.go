package cleanup

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/italolelis/asset_patcher/internal/logctx"
	"github.com/italolelis/asset_patcher/internal/storage"
)

const partialSuffix = ".part"

// DeleteExpiredRuns removes run history that finished more than keepDuration ago.
func DeleteExpiredRuns(ctx context.Context, repo storage.RunWriteRepository, now time.Time, keepDuration time.Duration) (int64, error) {
	logger := logctx.LoggerFromContext(ctx)

	removed, err := repo.DeleteRunsFinishedBefore(ctx, now.Add(-keepDuration))
	if err != nil {
		logger.ErrorContext(ctx, "Failed to delete expired runs", "err", err)

		return 0, err
	}

	if removed > 0 {
		logger.InfoContext(ctx, "Deleted expired runs", "count", removed)
	}

	return removed, nil
}

// DeleteStalePartials deletes unfinished downloads left in dir by a previous
// process that were last written more than keepDuration ago.
func DeleteStalePartials(ctx context.Context, dir string, now time.Time, keepDuration time.Duration) error {
	logger := logctx.LoggerFromContext(ctx)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil // nothing cached yet
			}

			return err
		}

		if d.IsDir() || !strings.HasSuffix(path, partialSuffix) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			if os.IsNotExist(err) {
				return nil // already deleted
			}

			logger.ErrorContext(ctx, "Failed to stat file", "file", path, "err", err)

			return err
		}

		if now.Sub(info.ModTime()) <= keepDuration {
			return nil
		}

		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logger.ErrorContext(ctx, "Failed to delete stale partial file", "file", path, "err", err)

			return err
		}

		logger.InfoContext(ctx, "Deleted stale partial file", "file", path)

		return nil
	})

	return err
}
