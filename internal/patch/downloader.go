package patch

import (
	"context"
	"fmt"
	"sync"

	"github.com/italolelis/asset_patcher/internal/delivery"
)

// DownloadState is the lifecycle of one group transfer.
type DownloadState string

const (
	DownloadPending   DownloadState = "pending"
	DownloadRunning   DownloadState = "running"
	DownloadDone      DownloadState = "done"
	DownloadFailed    DownloadState = "failed"
	DownloadCancelled DownloadState = "cancelled"
)

// GroupSnapshot is a read-only view of a GroupDownloader.
type GroupSnapshot struct {
	Group      string        `json:"group"`
	State      DownloadState `json:"state"`
	Downloaded int64         `json:"downloaded"`
	Size       int64         `json:"size"`
}

// GroupDownloader owns the transfer of a single group. Its count only moves
// forward and stays within [0, size]; a group reads as complete only once the
// backend reports the transfer done, at which point the count is set to size.
type GroupDownloader struct {
	group   string
	size    int64
	backend delivery.Backend

	mu         sync.Mutex
	handle     delivery.Handle
	state      DownloadState
	downloaded int64
	err        error

	releaseOnce sync.Once
}

func NewGroupDownloader(group string, size int64, backend delivery.Backend) *GroupDownloader {
	return &GroupDownloader{
		group:   group,
		size:    size,
		backend: backend,
		state:   DownloadPending,
	}
}

// Start asks the backend to begin the transfer. ctx bounds the request only.
func (d *GroupDownloader) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != DownloadPending {
		return fmt.Errorf("group %q: start called in state %s", d.group, d.state)
	}

	handle, err := d.backend.StartTransfer(ctx, d.group)
	if err != nil {
		d.state = DownloadFailed
		d.err = &DownloadFailedError{Group: d.group, Err: err}

		return d.err
	}

	d.handle = handle
	d.state = DownloadRunning

	return nil
}

// Poll observes the backend handle once. It returns a *DownloadFailedError
// when the transfer has failed; later polls return the same error.
func (d *GroupDownloader) Poll() (GroupSnapshot, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != DownloadRunning {
		return d.snapshotLocked(), d.err
	}

	done := d.handle.IsDone()
	read := d.handle.DownloadedBytes()

	if read > d.size {
		read = d.size
	}

	// A running group reads complete only once its handle reports done.
	if !done && read >= d.size {
		read = d.size - 1
	}

	if read > d.downloaded {
		d.downloaded = read
	}

	if done {
		if err := d.handle.Err(); err != nil {
			d.state = DownloadFailed
			d.err = &DownloadFailedError{Group: d.group, Err: err}
		} else {
			d.state = DownloadDone
			d.downloaded = d.size
		}

		d.release()
	}

	return d.snapshotLocked(), d.err
}

// Cancel stops reporting progress and releases the backend handle. It
// returns true if a running transfer was abandoned.
func (d *GroupDownloader) Cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	wasRunning := d.state == DownloadRunning

	if d.state == DownloadPending || wasRunning {
		d.state = DownloadCancelled
	}

	d.release()

	return wasRunning
}

// Downloaded returns the bytes counted so far.
func (d *GroupDownloader) Downloaded() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.downloaded
}

func (d *GroupDownloader) Group() string {
	return d.group
}

func (d *GroupDownloader) State() DownloadState {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.state
}

func (d *GroupDownloader) Snapshot() GroupSnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.snapshotLocked()
}

func (d *GroupDownloader) snapshotLocked() GroupSnapshot {
	return GroupSnapshot{
		Group:      d.group,
		State:      d.state,
		Downloaded: d.downloaded,
		Size:       d.size,
	}
}

func (d *GroupDownloader) release() {
	if d.handle == nil {
		return
	}

	d.releaseOnce.Do(d.handle.Release)
}
