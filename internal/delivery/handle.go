package delivery

import (
	"context"
	"sync"
	"sync/atomic"
)

// TransferHandle is a Handle backed by a worker goroutine. Adapters create one
// with NewTransferHandle, hand Context() to the worker, report bytes through
// Add and finish with Finish.
type TransferHandle struct {
	total      int64
	downloaded atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	done bool
	err  error

	releaseOnce sync.Once
	onRelease   func()
}

// NewTransferHandle creates a handle for a transfer of total bytes. onRelease,
// if non-nil, runs once when the handle is released.
func NewTransferHandle(ctx context.Context, total int64, onRelease func()) *TransferHandle {
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	return &TransferHandle{
		total:     total,
		ctx:       ctx,
		cancel:    cancel,
		onRelease: onRelease,
	}
}

// Context is cancelled when the handle is released.
func (h *TransferHandle) Context() context.Context {
	return h.ctx
}

// Add records n more bytes received.
func (h *TransferHandle) Add(n int64) {
	h.downloaded.Add(n)
}

// Finish marks the transfer done; err is the failure, if any. Only the first
// call has an effect.
func (h *TransferHandle) Finish(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.done {
		return
	}

	h.done = true
	h.err = err
}

func (h *TransferHandle) IsDone() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.done
}

func (h *TransferHandle) DownloadedBytes() int64 {
	return h.downloaded.Load()
}

func (h *TransferHandle) TotalBytes() int64 {
	return h.total
}

func (h *TransferHandle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.err
}

// Release aborts a running transfer and runs the release hook once.
func (h *TransferHandle) Release() {
	h.releaseOnce.Do(func() {
		h.cancel()
		h.Finish(ErrReleased)

		if h.onRelease != nil {
			h.onRelease()
		}
	})
}
