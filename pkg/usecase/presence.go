package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/seabird-lab/beacon/pkg/domain/interfaces"
	"github.com/seabird-lab/beacon/pkg/domain/model"
	"github.com/seabird-lab/beacon/pkg/domain/model/config"
	"github.com/seabird-lab/beacon/pkg/domain/types"
	"github.com/seabird-lab/beacon/pkg/utils/logging"
)

// PresenceUseCase reports the local user's presence and observes the
// presence of others.
type PresenceUseCase struct {
	repo   interfaces.Repository
	timing config.Timing
}

func NewPresenceUseCase(repo interfaces.Repository, timing config.Timing) *PresenceUseCase {
	return &PresenceUseCase{
		repo:   repo,
		timing: timing,
	}
}

// IsOnline evaluates a record against the use case's liveness TTL.
func (uc *PresenceUseCase) IsOnline(rec model.PresenceRecord) bool {
	return model.IsOnline(rec, time.Now(), uc.timing.TTL)
}

// Snapshot fetches the current records for the given users. Users with
// no stored record come back as offline.
func (uc *PresenceUseCase) Snapshot(ctx context.Context, ids []types.UserID) (map[types.UserID]model.PresenceRecord, error) {
	for _, id := range ids {
		if err := id.Validate(); err != nil {
			return nil, err
		}
	}

	return uc.repo.Presence().GetMany(ctx, ids)
}

// Report upserts a one-shot presence record. Tracker handles the
// periodic case; this is for callers that manage their own cadence.
func (uc *PresenceUseCase) Report(ctx context.Context, id types.UserID, status types.PresenceStatus) error {
	if err := id.Validate(); err != nil {
		return err
	}

	rec := &model.PresenceRecord{
		UserID:   id,
		Status:   status,
		LastSeen: time.Now(),
	}

	return uc.repo.Presence().Report(ctx, rec)
}

// Tracker maintains one user's presence with periodic heartbeats. One
// instance per session; Start and Stop are not reusable.
type Tracker struct {
	repo      interfaces.PresenceRepository
	userID    types.UserID
	interval  time.Duration
	hideDelay time.Duration

	mu           sync.Mutex
	started      bool
	stopped      bool
	visible      bool
	lastActivity time.Time
	hideTimer    *time.Timer

	stopCh chan struct{}
	doneCh chan struct{}
}

func (uc *PresenceUseCase) NewTracker(userID types.UserID) (*Tracker, error) {
	if err := userID.Validate(); err != nil {
		return nil, err
	}

	return &Tracker{
		repo:      uc.repo.Presence(),
		userID:    userID,
		interval:  uc.timing.HeartbeatInterval,
		hideDelay: uc.timing.HideDelay,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}, nil
}

// Start issues an immediate online report and begins the heartbeat
// loop. Calling Start twice is an error.
func (t *Tracker) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return goerr.New("tracker already started", goerr.V("user_id", t.userID))
	}
	t.started = true
	t.visible = true
	t.mu.Unlock()

	t.reportOnline(ctx)
	go t.run(ctx)

	return nil
}

func (t *Tracker) run(ctx context.Context) {
	defer close(t.doneCh)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if t.isVisible() {
				t.reportOnline(ctx)
			}

		case <-t.stopCh:
			return

		case <-ctx.Done():
			return
		}
	}
}

// SetHidden arms the hide timer. The offline report fires only if the
// session stays hidden for the full delay.
func (t *Tracker) SetHidden(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.started || t.stopped || !t.visible {
		return
	}
	t.visible = false

	if t.hideTimer != nil {
		t.hideTimer.Stop()
	}
	t.hideTimer = time.AfterFunc(t.hideDelay, func() {
		if t.isHiddenAndRunning() {
			t.reportOffline(context.WithoutCancel(ctx))
		}
	})
}

// SetVisible cancels any pending hide timer and reports online
// immediately, regardless of heartbeat phase.
func (t *Tracker) SetVisible(ctx context.Context) {
	t.mu.Lock()
	if !t.started || t.stopped {
		t.mu.Unlock()
		return
	}
	t.visible = true
	if t.hideTimer != nil {
		t.hideTimer.Stop()
		t.hideTimer = nil
	}
	t.mu.Unlock()

	t.reportOnline(ctx)
}

// Stop halts the heartbeat loop, cancels the hide timer and issues a
// final offline report. Stop is idempotent and returns after the loop
// has exited; no reports are issued afterwards.
func (t *Tracker) Stop(ctx context.Context) {
	t.mu.Lock()
	if !t.started || t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	if t.hideTimer != nil {
		t.hideTimer.Stop()
		t.hideTimer = nil
	}
	t.mu.Unlock()

	close(t.stopCh)
	<-t.doneCh

	t.reportOffline(ctx)
}

func (t *Tracker) isVisible() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.visible && !t.stopped
}

func (t *Tracker) isHiddenAndRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.visible && !t.stopped
}

// reportOnline refreshes both status and activity timestamp. Report
// failures are logged and swallowed; the next tick retries naturally.
func (t *Tracker) reportOnline(ctx context.Context) {
	now := time.Now()
	t.mu.Lock()
	t.lastActivity = now
	t.mu.Unlock()

	rec := &model.PresenceRecord{
		UserID:   t.userID,
		Status:   types.StatusOnline,
		LastSeen: now,
	}
	if err := t.repo.Report(ctx, rec); err != nil {
		logging.From(ctx).Warn("presence report dropped",
			"user_id", t.userID,
			"status", rec.Status,
			"error", err,
		)
	}
}

// reportOffline keeps the last activity timestamp untouched so that
// liveness decays on the activity clock, not the report clock.
func (t *Tracker) reportOffline(ctx context.Context) {
	t.mu.Lock()
	lastActivity := t.lastActivity
	t.mu.Unlock()

	rec := &model.PresenceRecord{
		UserID:   t.userID,
		Status:   types.StatusOffline,
		LastSeen: lastActivity,
	}
	if err := t.repo.Report(ctx, rec); err != nil {
		logging.From(ctx).Warn("presence report dropped",
			"user_id", t.userID,
			"status", rec.Status,
			"error", err,
		)
	}
}

const watchBuffer = 64

// ContactWatch is a live view over a fixed set of users. The snapshot
// is kept current by a background goroutine; Updates exposes the raw
// change feed for callers that want to react per record.
type ContactWatch struct {
	sub interfaces.PresenceSubscription

	mu      sync.RWMutex
	records map[types.UserID]model.PresenceRecord
	closed  bool

	updates chan model.PresenceRecord
	doneCh  chan struct{}
}

// Watch bulk-fetches the initial records for ids and subscribes to
// subsequent changes. Changing the watched set means closing the watch
// and opening a new one.
func (uc *PresenceUseCase) Watch(ctx context.Context, ids []types.UserID) (*ContactWatch, error) {
	for _, id := range ids {
		if err := id.Validate(); err != nil {
			return nil, err
		}
	}

	records, err := uc.repo.Presence().GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	sub, err := uc.repo.Presence().Watch(ctx, ids)
	if err != nil {
		return nil, err
	}

	w := &ContactWatch{
		sub:     sub,
		records: make(map[types.UserID]model.PresenceRecord, len(records)),
		updates: make(chan model.PresenceRecord, watchBuffer),
		doneCh:  make(chan struct{}),
	}
	for _, rec := range records {
		w.records[rec.UserID] = rec
	}

	go w.run(ctx)

	return w, nil
}

func (w *ContactWatch) run(ctx context.Context) {
	defer close(w.doneCh)
	defer close(w.updates)

	for rec := range w.sub.Updates() {
		w.mu.Lock()
		if w.closed {
			w.mu.Unlock()
			continue
		}
		w.records[rec.UserID] = rec
		w.mu.Unlock()

		select {
		case w.updates <- rec:
		default:
			logging.From(ctx).Warn("presence watch consumer lagging, update dropped",
				"user_id", rec.UserID,
			)
		}
	}
}

// Snapshot returns a copy of the current view.
func (w *ContactWatch) Snapshot() map[types.UserID]model.PresenceRecord {
	w.mu.RLock()
	defer w.mu.RUnlock()

	records := make(map[types.UserID]model.PresenceRecord, len(w.records))
	for id, rec := range w.records {
		records[id] = rec
	}

	return records
}

// Updates returns the change feed. The channel is closed after Close.
func (w *ContactWatch) Updates() <-chan model.PresenceRecord {
	return w.updates
}

// Close tears down the subscription. Safe to call more than once and
// safe against deliveries racing the teardown.
func (w *ContactWatch) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.mu.Unlock()

	w.sub.Close()
	<-w.doneCh
}
