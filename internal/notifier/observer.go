package notifier

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/italolelis/asset_patcher/internal/logctx"
	"github.com/italolelis/asset_patcher/internal/patch"
)

// RunNotifier posts a message when a run ends. Messages are sent in the
// background so a slow webhook never holds up progress ticks; Wait blocks
// until every pending message has been sent.
type RunNotifier struct {
	patch.NopObserver

	ctx      context.Context
	notifier Notifier
	wg       sync.WaitGroup
}

func NewRunNotifier(ctx context.Context, n Notifier) *RunNotifier {
	return &RunNotifier{ctx: ctx, notifier: n}
}

func (r *RunNotifier) OnUpToDate(s patch.Snapshot) {
	r.send(s, fmt.Sprintf("Content is up to date (%s).", strings.Join(s.Groups, ", ")))
}

func (r *RunNotifier) OnSucceeded(s patch.Snapshot) {
	r.send(s, fmt.Sprintf("Patch applied: %s downloaded for %s.", patch.FormatSize(s.Total), strings.Join(s.Groups, ", ")))
}

func (r *RunNotifier) OnFailed(s patch.Snapshot, err error) {
	r.send(s, fmt.Sprintf("Patch failed at %d %%: %v", s.Percent, err))
}

// Wait blocks until all messages sent so far are delivered or have failed.
func (r *RunNotifier) Wait() {
	r.wg.Wait()
}

func (r *RunNotifier) send(s patch.Snapshot, content string) {
	ctx := logctx.WithRunID(r.ctx, s.RunID)

	r.wg.Add(1)

	go func() {
		defer r.wg.Done()

		if err := r.notifier.Notify(ctx, content); err != nil {
			logctx.LoggerFromContext(ctx).ErrorContext(ctx, "failed to send notification", "status", s.Status, "err", err)
		}
	}()
}
