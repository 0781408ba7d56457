package patch

import (
	"context"
	"sync"

	"github.com/italolelis/asset_patcher/internal/logctx"
)

// Confirmer starts the download of a run awaiting confirmation.
type Confirmer interface {
	Confirm(ctx context.Context) error
}

// AutoConfirmer confirms every run as soon as its size is known, for
// unattended clients that never show the download popup.
type AutoConfirmer struct {
	NopObserver

	ctx context.Context

	mu        sync.Mutex
	confirmer Confirmer
}

// NewAutoConfirmer creates an observer confirming with ctx. Bind must be
// called before the first run starts.
func NewAutoConfirmer(ctx context.Context) *AutoConfirmer {
	return &AutoConfirmer{ctx: ctx}
}

// Bind sets the orchestrator to confirm. The observer is usually passed to
// that same orchestrator, hence the late binding.
func (a *AutoConfirmer) Bind(c Confirmer) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.confirmer = c
}

func (a *AutoConfirmer) OnTotalSizeKnown(s Snapshot) {
	ctx := logctx.WithRunID(a.ctx, s.RunID)
	logger := logctx.LoggerFromContext(ctx)

	a.mu.Lock()
	c := a.confirmer
	a.mu.Unlock()

	if c == nil {
		logger.WarnContext(ctx, "auto confirm is not bound to an orchestrator")

		return
	}

	logger.InfoContext(ctx, "auto confirming patch download", "size", FormatSize(s.Total))

	if err := c.Confirm(ctx); err != nil {
		logger.ErrorContext(ctx, "auto confirm failed", "err", err)
	}
}
