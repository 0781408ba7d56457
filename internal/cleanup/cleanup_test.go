package cleanup

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/italolelis/asset_patcher/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	cutoff  time.Time
	removed int64
	err     error
}

func (f *fakeRepo) SaveRun(context.Context, storage.RunRecord) error { return nil }

func (f *fakeRepo) DeleteRunsFinishedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff

	return f.removed, f.err
}

func TestDeleteExpiredRuns(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	repo := &fakeRepo{removed: 3}

	removed, err := DeleteExpiredRuns(context.Background(), repo, now, 48*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(3), removed)
	assert.Equal(t, now.Add(-48*time.Hour), repo.cutoff)

	repo.err = errors.New("locked")

	_, err = DeleteExpiredRuns(context.Background(), repo, now, time.Hour)
	assert.ErrorIs(t, err, repo.err)
}

func TestDeleteStalePartials(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()

	stale := filepath.Join(dir, "prefab", "hero.bundle.part")
	fresh := filepath.Join(dir, "prefab", "enemy.bundle.part")
	complete := filepath.Join(dir, "prefab", "old.bundle")

	require.NoError(t, os.MkdirAll(filepath.Dir(stale), 0o755))

	for _, p := range []string{stale, fresh, complete} {
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o600))
	}

	old := now.Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))
	require.NoError(t, os.Chtimes(complete, old, old))

	require.NoError(t, DeleteStalePartials(context.Background(), dir, now, time.Hour))

	assert.NoFileExists(t, stale)
	assert.FileExists(t, fresh)
	assert.FileExists(t, complete)
}

func TestDeleteStalePartialsMissingDir(t *testing.T) {
	err := DeleteStalePartials(context.Background(), filepath.Join(t.TempDir(), "nope"), time.Now(), time.Hour)
	assert.NoError(t, err)
}
