package patch

import (
	"context"
	"errors"
	"sync"

	"github.com/italolelis/asset_patcher/internal/delivery"
)

type fakeHandle struct {
	mu         sync.Mutex
	total      int64
	downloaded int64
	done       bool
	err        error
	released   int
}

func (h *fakeHandle) IsDone() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.done
}

func (h *fakeHandle) DownloadedBytes() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.downloaded
}

func (h *fakeHandle) TotalBytes() int64 {
	return h.total
}

func (h *fakeHandle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.err
}

func (h *fakeHandle) Release() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.released++
}

func (h *fakeHandle) set(downloaded int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.downloaded = downloaded
}

func (h *fakeHandle) complete(downloaded int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.downloaded = downloaded
	h.done = true
}

func (h *fakeHandle) fail(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.done = true
	h.err = err
}

func (h *fakeHandle) releases() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.released
}

// fakeBackend serves fixed sizes and records every transfer it starts.
type fakeBackend struct {
	mu        sync.Mutex
	sizes     map[string]int64
	probeErrs map[string]error
	startErrs map[string]error
	handles   map[string]*fakeHandle
	started   []string
	probes    []string
	probeHook func(group string)
}

func newFakeBackend(sizes map[string]int64) *fakeBackend {
	return &fakeBackend{
		sizes:     sizes,
		probeErrs: map[string]error{},
		startErrs: map[string]error{},
		handles:   map[string]*fakeHandle{},
	}
}

func (b *fakeBackend) RemoteSize(_ context.Context, group string) (int64, error) {
	b.mu.Lock()
	b.probes = append(b.probes, group)
	hook := b.probeHook
	err := b.probeErrs[group]
	size, ok := b.sizes[group]
	b.mu.Unlock()

	if hook != nil {
		hook(group)
	}

	if err != nil {
		return 0, err
	}

	if !ok {
		return 0, delivery.ErrGroupNotFound
	}

	return size, nil
}

func (b *fakeBackend) StartTransfer(_ context.Context, group string) (delivery.Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.startErrs[group]; err != nil {
		return nil, err
	}

	h := &fakeHandle{total: b.sizes[group]}
	b.handles[group] = h
	b.started = append(b.started, group)

	return h, nil
}

func (b *fakeBackend) handle(group string) *fakeHandle {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.handles[group]
}

func (b *fakeBackend) startedGroups() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]string(nil), b.started...)
}

func (b *fakeBackend) probeCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.probes)
}

var errTransport = errors.New("connection reset by peer")
