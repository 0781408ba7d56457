package delivery

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/italolelis/asset_patcher/internal/delivery/progress"
	"github.com/italolelis/asset_patcher/internal/logctx"
	"golang.org/x/sync/errgroup"
)

const (
	dirPerm          = 0755
	progressInterval = int64(8 * 1024 * 1024) // 8MB
	partialSuffix    = ".part"
)

// File is one remote file an adapter moves into the local cache.
type File struct {
	Name string // Remote name, used in logs
	Path string // Destination on disk
	Size int64
	Open func(ctx context.Context) (io.ReadCloser, error)
}

// PendingSize sums the sizes of files.
func PendingSize(files []File) int64 {
	var total int64

	for _, f := range files {
		total += f.Size
	}

	return total
}

// IsCached reports whether path exists with exactly size bytes.
func IsCached(path string, size int64) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}

	return info.Mode().IsRegular() && info.Size() == size
}

// Fetch downloads files in the background, at most maxParallel at a time,
// and returns the handle observing them. The transfer outlives ctx and stops
// only when it finishes or the handle is released.
func Fetch(ctx context.Context, files []File, maxParallel int, onRelease func()) *TransferHandle {
	h := NewTransferHandle(ctx, PendingSize(files), onRelease)

	if maxParallel < 1 {
		maxParallel = 1
	}

	go func() {
		wg, ctx := errgroup.WithContext(h.Context())
		wg.SetLimit(maxParallel)

		for _, f := range files {
			wg.Go(func() error {
				return fetchFile(ctx, h, f)
			})
		}

		h.Finish(wg.Wait())
	}()

	return h
}

func fetchFile(ctx context.Context, h *TransferHandle, f File) error {
	logger := logctx.LoggerFromContext(ctx).With("file", f.Name)

	body, err := f.Open(ctx)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", f.Name, err)
	}

	defer body.Close()

	if err := ensureTargetDir(f.Path, logger); err != nil {
		return err
	}

	partial := f.Path + partialSuffix

	out, err := os.Create(partial)
	if err != nil {
		return fmt.Errorf("failed to create target file: %w", err)
	}

	written, err := writeFile(ctx, out, body, h, f)

	if closeErr := out.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("failed to close target file: %w", closeErr)
	}

	if err == nil && written != f.Size {
		err = fmt.Errorf("size mismatch for %s: got %d bytes, want %d", f.Name, written, f.Size)
	}

	if err != nil {
		_ = os.Remove(partial)

		return err
	}

	if err := os.Rename(partial, f.Path); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", f.Name, err)
	}

	logger.DebugContext(ctx, "downloaded and saved file", "target", f.Path)

	return nil
}

func writeFile(ctx context.Context, out io.Writer, body io.Reader, h *TransferHandle, f File) (int64, error) {
	logger := logctx.LoggerFromContext(ctx)

	logger.DebugContext(ctx, "downloading file", "file_path", f.Path, "file_size", humanize.IBytes(uint64(f.Size)))

	// Bytes past f.Size are never counted; the handle stays within its total.
	pr := progress.NewReader(io.LimitReader(body, f.Size), f.Size, progressInterval, h.Add, func(read int64, total int64) {
		if total > 0 {
			logger.DebugContext(ctx, "download progress",
				"file", f.Name,
				"downloaded", humanize.IBytes(uint64(read)),
				"total", humanize.IBytes(uint64(total)),
				"percent", humanize.FtoaWithDigits(float64(read)*100/float64(total), 2))
		}
	})

	if _, err := io.Copy(out, pr); err != nil {
		return pr.BytesRead(), fmt.Errorf("failed to copy file: %w", err)
	}

	if n, _ := io.ReadFull(body, make([]byte, 1)); n > 0 {
		return pr.BytesRead(), fmt.Errorf("size mismatch for %s: body is longer than %d bytes", f.Name, f.Size)
	}

	return pr.BytesRead(), nil
}

func ensureTargetDir(targetPath string, logger *slog.Logger) error {
	dir := filepath.Dir(targetPath)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		logger.Error("failed to create target directory", "dir", dir, "err", err)

		return fmt.Errorf("failed to create target directory: %w", err)
	}

	return nil
}
