package delivery

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staticFile(dir, name, content string) File {
	return File{
		Name: name,
		Path: filepath.Join(dir, name),
		Size: int64(len(content)),
		Open: func(context.Context) (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(content)), nil
		},
	}
}

func waitDone(t *testing.T, h *TransferHandle) {
	t.Helper()

	require.Eventually(t, h.IsDone, 2*time.Second, 5*time.Millisecond)
}

func TestFetchWritesFilesAndCountsBytes(t *testing.T) {
	dir := t.TempDir()
	files := []File{
		staticFile(dir, "a/one.bundle", "hello"),
		staticFile(dir, "two.bundle", "patched world"),
	}

	h := Fetch(context.Background(), files, 2, nil)
	waitDone(t, h)

	require.NoError(t, h.Err())
	assert.Equal(t, int64(18), h.TotalBytes())
	assert.Equal(t, int64(18), h.DownloadedBytes())

	data, err := os.ReadFile(filepath.Join(dir, "a/one.bundle"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	assert.True(t, IsCached(filepath.Join(dir, "two.bundle"), 13))
	assert.False(t, IsCached(filepath.Join(dir, "two.bundle"), 12))
	assert.False(t, IsCached(filepath.Join(dir, "two.bundle.part"), 13))
}

func TestFetchReportsOpenFailure(t *testing.T) {
	dir := t.TempDir()
	cause := errors.New("404")

	broken := File{
		Name: "missing.bundle",
		Path: filepath.Join(dir, "missing.bundle"),
		Size: 10,
		Open: func(context.Context) (io.ReadCloser, error) { return nil, cause },
	}

	h := Fetch(context.Background(), []File{broken}, 1, nil)
	waitDone(t, h)

	assert.ErrorIs(t, h.Err(), cause)
	assert.NoFileExists(t, broken.Path)
}

func TestFetchRejectsShortBody(t *testing.T) {
	dir := t.TempDir()

	f := staticFile(dir, "short.bundle", "abc")
	f.Size = 10

	h := Fetch(context.Background(), []File{f}, 1, nil)
	waitDone(t, h)

	require.Error(t, h.Err())
	assert.Contains(t, h.Err().Error(), "size mismatch")
	assert.NoFileExists(t, f.Path)
	assert.NoFileExists(t, f.Path+partialSuffix)
}

func TestFetchRejectsLongBody(t *testing.T) {
	dir := t.TempDir()

	f := staticFile(dir, "long.bundle", "goblins and more goblins")
	f.Size = 7

	h := Fetch(context.Background(), []File{f}, 1, nil)
	waitDone(t, h)

	require.Error(t, h.Err())
	assert.Contains(t, h.Err().Error(), "size mismatch")
	assert.LessOrEqual(t, h.DownloadedBytes(), h.TotalBytes())
	assert.NoFileExists(t, f.Path)
	assert.NoFileExists(t, f.Path+partialSuffix)
}

func TestPendingSize(t *testing.T) {
	assert.Zero(t, PendingSize(nil))
	assert.Equal(t, int64(30), PendingSize([]File{{Size: 10}, {Size: 20}}))
}
