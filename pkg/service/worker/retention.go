package worker

import (
	"context"
	"time"

	"github.com/seabird-lab/beacon/pkg/domain/interfaces"
	"github.com/seabird-lab/beacon/pkg/utils/logging"
)

// RetentionWorker periodically purges attention events older than the
// retention window. Events are one-shot alerts, so anything past the
// deduplication horizon is garbage.
//
// Architecture assumptions:
// - Single server instance (no distributed locking)
// - Backends with native expiry report zero purges and the sweep is cheap
type RetentionWorker struct {
	repo      interfaces.Repository
	retention time.Duration
	interval  time.Duration
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// NewRetentionWorker creates a worker sweeping at the given interval.
func NewRetentionWorker(repo interfaces.Repository, retention, interval time.Duration) *RetentionWorker {
	return &RetentionWorker{
		repo:      repo,
		retention: retention,
		interval:  interval,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start begins the background sweep loop. Does not block server startup.
func (w *RetentionWorker) Start(ctx context.Context) error {
	logging.Default().Info("Attention retention worker starting",
		"retention", w.retention.String(),
		"interval", w.interval.String())

	go w.run(ctx)

	return nil
}

// Stop signals the worker to stop and waits for completion
func (w *RetentionWorker) Stop() {
	logging.Default().Info("Attention retention worker stopping")
	close(w.stopCh)
	<-w.doneCh
	logging.Default().Info("Attention retention worker stopped")
}

// run is the main worker loop (runs in goroutine)
func (w *RetentionWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	if err := w.sweep(ctx); err != nil {
		logging.Default().Error("Initial attention retention sweep failed (will retry next interval)",
			"error", err.Error())
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.sweep(ctx); err != nil {
				// Log error but continue worker
				logging.Default().Error("Attention retention sweep failed (will retry next interval)",
					"error", err.Error())
			}

		case <-w.stopCh:
			return

		case <-ctx.Done():
			logging.Default().Info("Attention retention worker context cancelled")
			return
		}
	}
}

// sweep performs a single purge cycle
func (w *RetentionWorker) sweep(ctx context.Context) error {
	cutoff := time.Now().Add(-w.retention)
	purged, err := w.repo.Attention().PurgeBefore(ctx, cutoff)
	if err != nil {
		return err
	}

	if purged > 0 {
		logging.Default().Info("Purged expired attention events",
			"purged", purged,
			"cutoff", cutoff.Format(time.RFC3339))
	}
	return nil
}
