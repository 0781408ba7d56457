package patch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/italolelis/asset_patcher/internal/delivery"
	"github.com/italolelis/asset_patcher/internal/logctx"
	"github.com/italolelis/asset_patcher/internal/telemetry"
	"golang.org/x/sync/errgroup"
)

const defaultMaxParallel = 5

// Snapshot is a consistent view of the current run.
type Snapshot struct {
	RunID      string           `json:"run_id,omitempty"`
	Status     Status           `json:"status"`
	Groups     []string         `json:"groups,omitempty"`
	PerGroup   map[string]int64 `json:"per_group,omitempty"`
	Total      int64            `json:"total"`
	Downloaded int64            `json:"downloaded"`
	Percent    int              `json:"percent"`
	Downloads  []GroupSnapshot  `json:"downloads,omitempty"`
	Err        error            `json:"-"`
	StartedAt  time.Time        `json:"started_at,omitempty"`
	UpdatedAt  time.Time        `json:"updated_at,omitempty"`
}

type session struct {
	id          string
	status      Status
	report      SizeReport
	downloaders []*GroupDownloader
	progress    *ProgressAggregator
	last        Progress
	err         error
	startedAt   time.Time
	updatedAt   time.Time
}

func (s *session) snapshot() Snapshot {
	snap := Snapshot{
		RunID:      s.id,
		Status:     s.status,
		Groups:     s.report.Groups,
		Total:      s.report.Total,
		Downloaded: s.last.Downloaded,
		Percent:    s.last.Percent,
		Err:        s.err,
		StartedAt:  s.startedAt,
		UpdatedAt:  s.updatedAt,
	}

	if len(s.report.PerGroup) > 0 {
		snap.PerGroup = make(map[string]int64, len(s.report.PerGroup))
		for group, size := range s.report.PerGroup {
			snap.PerGroup[group] = size
		}
	}

	for _, d := range s.downloaders {
		snap.Downloads = append(snap.Downloads, d.Snapshot())
	}

	return snap
}

// Orchestrator runs patch runs one at a time over a fixed list of groups.
type Orchestrator struct {
	backend     delivery.Backend
	groups      []string
	aggregator  *SizeAggregator
	observer    Observer
	telemetry   *telemetry.Telemetry
	maxParallel int
	now         func() time.Time

	mu      sync.Mutex
	session *session
}

type Option func(*Orchestrator)

// WithObserver sets the receiver of run events.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) {
		o.observer = obs
	}
}

func WithTelemetry(tel *telemetry.Telemetry) Option {
	return func(o *Orchestrator) {
		o.telemetry = tel
	}
}

// WithMaxParallel bounds concurrent probes and transfer launches.
func WithMaxParallel(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxParallel = n
		}
	}
}

func withClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

func NewOrchestrator(backend delivery.Backend, groups []string, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		backend:     backend,
		groups:      append([]string(nil), groups...),
		observer:    NopObserver{},
		maxParallel: defaultMaxParallel,
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(o)
	}

	o.aggregator = NewSizeAggregator(NewSizeProbe(backend), o.maxParallel)

	return o
}

// Start begins a new run and probes every group. It returns once probing is
// over: the run is then awaiting confirmation, up to date, or failed. Start
// returns ErrRunInProgress while a previous run is still active.
func (o *Orchestrator) Start(ctx context.Context) (Snapshot, error) {
	o.mu.Lock()

	if o.session != nil && o.session.status.IsActive() {
		snap := o.session.snapshot()
		o.mu.Unlock()

		return snap, ErrRunInProgress
	}

	now := o.now()
	s := &session{
		id:        uuid.NewString(),
		status:    StatusProbing,
		report:    SizeReport{Groups: uniqueGroups(o.groups)},
		startedAt: now,
		updatedAt: now,
	}
	o.session = s

	o.mu.Unlock()

	ctx = logctx.WithRunID(ctx, s.id)
	logger := logctx.LoggerFromContext(ctx)

	logger.InfoContext(ctx, "probing patch size", "groups", o.groups)

	var report SizeReport

	probeErr := o.telemetry.InstrumentProbe(ctx, len(o.groups), func(ctx context.Context) error {
		var err error

		report, err = o.aggregator.ComputeTotal(ctx, o.groups)

		return err
	})

	o.mu.Lock()

	if s.status != StatusProbing {
		snap := s.snapshot()
		o.mu.Unlock()

		return snap, s.err
	}

	s.updatedAt = o.now()

	switch {
	case probeErr != nil:
		s.status = StatusFailed
		s.err = probeErr
	case report.UpToDate():
		s.report = report
		s.status = StatusNoOpNeeded
	default:
		s.report = report
		s.status = StatusAwaitingConfirmation
	}

	snap := s.snapshot()
	o.mu.Unlock()

	switch snap.Status {
	case StatusFailed:
		logger.ErrorContext(ctx, "failed to compute patch size", "err", probeErr)
		o.finish(ctx, snap)
		o.observer.OnFailed(snap, probeErr)
	case StatusNoOpNeeded:
		logger.InfoContext(ctx, "content is up to date")
		o.finish(ctx, snap)
		o.observer.OnUpToDate(snap)
	default:
		logger.InfoContext(ctx, "patch required", "total", snap.Total, "size", FormatSize(snap.Total))
		o.observer.OnTotalSizeKnown(snap)
	}

	return snap, probeErr
}

// Confirm starts a transfer for every group with pending bytes. It is only
// valid while the run awaits confirmation.
func (o *Orchestrator) Confirm(ctx context.Context) error {
	o.mu.Lock()

	s := o.session
	if s == nil || s.status != StatusAwaitingConfirmation {
		current := StatusIdle
		if s != nil {
			current = s.status
		}

		o.mu.Unlock()

		return &StateError{Operation: "confirm", Status: current}
	}

	s.status = StatusDownloading
	s.updatedAt = o.now()

	pending := s.report.Pending()
	sizes := s.report.PerGroup
	total := s.report.Total

	o.mu.Unlock()

	ctx = logctx.WithRunID(ctx, s.id)
	logger := logctx.LoggerFromContext(ctx)

	downloaders := make([]*GroupDownloader, len(pending))
	for i, group := range pending {
		downloaders[i] = NewGroupDownloader(group, sizes[group], o.backend)
	}

	var wg errgroup.Group

	wg.SetLimit(o.maxParallel)

	for _, d := range downloaders {
		wg.Go(func() error {
			logger.DebugContext(ctx, "starting group transfer", "group", d.Group(), "size", FormatSize(sizes[d.Group()]))

			return d.Start(ctx)
		})
	}

	launchErr := wg.Wait()

	progress, err := NewProgressAggregator(total)
	if launchErr == nil && err != nil {
		launchErr = err
	}

	o.mu.Lock()

	if s.status != StatusDownloading || o.session != s {
		o.mu.Unlock()
		cancelAll(downloaders)

		return s.err
	}

	s.downloaders = downloaders
	s.updatedAt = o.now()

	if launchErr != nil {
		cancelAll(downloaders)

		s.status = StatusFailed
		s.err = launchErr

		snap := s.snapshot()
		o.mu.Unlock()

		logger.ErrorContext(ctx, "failed to start patch download", "err", launchErr)
		o.finish(ctx, snap)
		o.observer.OnFailed(snap, launchErr)

		return launchErr
	}

	s.progress = progress

	for range downloaders {
		o.telemetry.IncrementActiveGroupDownloads(ctx)
	}

	o.mu.Unlock()

	logger.InfoContext(ctx, "patch download started", "groups", pending, "total", total)

	return nil
}

// Tick advances a downloading run by one observation. It polls every group,
// fails the run on the first broken transfer and otherwise reports progress,
// moving the run to succeeded once all bytes have arrived. Outside the
// downloading state it only returns the current snapshot.
func (o *Orchestrator) Tick(ctx context.Context) (Snapshot, error) {
	o.mu.Lock()

	s := o.session
	if s == nil || s.status != StatusDownloading || s.progress == nil {
		snap := o.snapshotLocked()
		o.mu.Unlock()

		return snap, nil
	}

	ctx = logctx.WithRunID(ctx, s.id)

	var failure error

	for _, d := range s.downloaders {
		before := d.State()

		snap, err := d.Poll()
		if before == DownloadRunning && snap.State != DownloadRunning {
			o.settleGroup(ctx, snap)
		}

		if err != nil {
			failure = err

			break
		}
	}

	s.updatedAt = o.now()

	if failure != nil {
		for _, d := range s.downloaders {
			if d.Cancel() {
				o.settleGroup(ctx, d.Snapshot())
			}
		}

		s.status = StatusFailed
		s.err = failure

		snap := s.snapshot()
		o.mu.Unlock()

		logctx.LoggerFromContext(ctx).ErrorContext(ctx, "patch download failed", "err", failure)
		o.finish(ctx, snap)
		o.observer.OnFailed(snap, failure)

		return snap, failure
	}

	sources := make([]ByteCounter, len(s.downloaders))
	for i, d := range s.downloaders {
		sources[i] = d
	}

	progress, completed := s.progress.Tick(sources)
	s.last = progress

	if completed {
		s.status = StatusSucceeded
	}

	snap := s.snapshot()
	o.mu.Unlock()

	o.telemetry.RecordProgress(ctx, progress.Percent)
	o.observer.OnProgress(snap)

	if completed {
		logctx.LoggerFromContext(ctx).InfoContext(ctx, "patch completed", "total", snap.Total, "size", FormatSize(snap.Total))
		o.finish(ctx, snap)
		o.observer.OnSucceeded(snap)
	}

	return snap, nil
}

// Abort fails the active run with ErrAborted, wrapping cause when given, and
// releases every running transfer. It does nothing if no run is active.
func (o *Orchestrator) Abort(ctx context.Context, cause error) {
	o.mu.Lock()

	s := o.session
	if s == nil || !s.status.IsActive() {
		o.mu.Unlock()

		return
	}

	ctx = logctx.WithRunID(ctx, s.id)

	for _, d := range s.downloaders {
		if d.Cancel() {
			o.settleGroup(ctx, d.Snapshot())
		}
	}

	err := ErrAborted
	if cause != nil {
		err = fmt.Errorf("%w: %w", ErrAborted, cause)
	}

	s.status = StatusFailed
	s.err = err
	s.updatedAt = o.now()

	snap := s.snapshot()
	o.mu.Unlock()

	logctx.LoggerFromContext(ctx).WarnContext(ctx, "patch run aborted", "err", err)
	o.finish(ctx, snap)
	o.observer.OnFailed(snap, err)
}

// Snapshot returns the state of the current run, or an idle snapshot before
// the first Start.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.snapshotLocked()
}

func (o *Orchestrator) Status() Status {
	return o.Snapshot().Status
}

func (o *Orchestrator) snapshotLocked() Snapshot {
	if o.session == nil {
		return Snapshot{Status: StatusIdle, Groups: uniqueGroups(o.groups)}
	}

	return o.session.snapshot()
}

func (o *Orchestrator) settleGroup(ctx context.Context, snap GroupSnapshot) {
	status := "success"

	switch snap.State {
	case DownloadFailed:
		status = "error"
	case DownloadCancelled:
		status = "cancelled"
	}

	o.telemetry.RecordGroupDownload(ctx, status)
	o.telemetry.DecrementActiveGroupDownloads(ctx)

	logctx.LoggerFromContext(ctx).DebugContext(ctx, "group transfer finished",
		"group", snap.Group, "status", snap.State, "downloaded", snap.Downloaded)
}

func (o *Orchestrator) finish(ctx context.Context, snap Snapshot) {
	o.telemetry.RecordRun(ctx, string(snap.Status), snap.UpdatedAt.Sub(snap.StartedAt))
}

func cancelAll(downloaders []*GroupDownloader) {
	for _, d := range downloaders {
		d.Cancel()
	}
}
