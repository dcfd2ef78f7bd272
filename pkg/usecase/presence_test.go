package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/seabird-lab/beacon/pkg/domain/model"
	"github.com/seabird-lab/beacon/pkg/domain/model/config"
	"github.com/seabird-lab/beacon/pkg/domain/types"
	"github.com/seabird-lab/beacon/pkg/repository/memory"
	"github.com/seabird-lab/beacon/pkg/usecase"
)

func fastTiming() config.Timing {
	return config.Timing{
		TTL:               200 * time.Millisecond,
		HeartbeatInterval: 20 * time.Millisecond,
		HideDelay:         60 * time.Millisecond,
		DedupWindow:       time.Minute,
		DedupCapacity:     64,
	}
}

func TestTrackerHeartbeat(t *testing.T) {
	repo := newCountingRepo()
	uc := usecase.New(repo, usecase.WithTiming(fastTiming()))
	ctx := context.Background()

	tracker, err := uc.Presence.NewTracker("alice")
	gt.NoError(t, err).Required()

	gt.NoError(t, tracker.Start(ctx)).Required()
	gt.Error(t, tracker.Start(ctx)) // second start is rejected

	gt.Bool(t, eventually(time.Second, func() bool {
		return len(repo.recordedReports()) >= 3
	})).True()

	tracker.Stop(ctx)

	reports := repo.recordedReports()
	gt.Value(t, reports[0].Status).Equal(types.StatusOnline)
	for _, rec := range reports[:len(reports)-1] {
		gt.Value(t, rec.Status).Equal(types.StatusOnline)
	}
	gt.Value(t, reports[len(reports)-1].Status).Equal(types.StatusOffline)

	// No reports after Stop has returned.
	time.Sleep(100 * time.Millisecond)
	gt.Number(t, len(repo.recordedReports())).Equal(len(reports))
}

func TestTrackerStopIdempotent(t *testing.T) {
	repo := newCountingRepo()
	uc := usecase.New(repo, usecase.WithTiming(fastTiming()))
	ctx := context.Background()

	tracker, err := uc.Presence.NewTracker("alice")
	gt.NoError(t, err).Required()
	gt.NoError(t, tracker.Start(ctx)).Required()

	tracker.Stop(ctx)
	tracker.Stop(ctx)

	count := len(repo.recordedReports())
	time.Sleep(100 * time.Millisecond)
	gt.Number(t, len(repo.recordedReports())).Equal(count)
}

func TestTrackerHideCancelledByShow(t *testing.T) {
	repo := newCountingRepo()
	uc := usecase.New(repo, usecase.WithTiming(fastTiming()))
	ctx := context.Background()

	tracker, err := uc.Presence.NewTracker("alice")
	gt.NoError(t, err).Required()
	gt.NoError(t, tracker.Start(ctx)).Required()
	defer tracker.Stop(ctx)

	tracker.SetHidden(ctx)
	time.Sleep(20 * time.Millisecond) // well inside the hide delay
	tracker.SetVisible(ctx)

	// Wait past the original hide deadline; the cancelled timer must not fire.
	time.Sleep(100 * time.Millisecond)
	for _, rec := range repo.recordedReports() {
		gt.Value(t, rec.Status).Equal(types.StatusOnline)
	}
}

func TestTrackerHideReportsOfflineAfterDelay(t *testing.T) {
	repo := newCountingRepo()
	uc := usecase.New(repo, usecase.WithTiming(fastTiming()))
	ctx := context.Background()

	tracker, err := uc.Presence.NewTracker("alice")
	gt.NoError(t, err).Required()
	gt.NoError(t, tracker.Start(ctx)).Required()
	defer tracker.Stop(ctx)

	tracker.SetHidden(ctx)

	gt.Bool(t, eventually(time.Second, func() bool {
		reports := repo.recordedReports()
		return len(reports) > 0 && reports[len(reports)-1].Status == types.StatusOffline
	})).True()

	// Heartbeats stay suppressed while hidden so the offline report sticks.
	count := len(repo.recordedReports())
	time.Sleep(60 * time.Millisecond)
	gt.Number(t, len(repo.recordedReports())).Equal(count)
}

func TestTrackerShowReportsImmediately(t *testing.T) {
	repo := newCountingRepo()
	uc := usecase.New(repo, usecase.WithTiming(fastTiming()))
	ctx := context.Background()

	tracker, err := uc.Presence.NewTracker("alice")
	gt.NoError(t, err).Required()
	gt.NoError(t, tracker.Start(ctx)).Required()
	defer tracker.Stop(ctx)

	tracker.SetHidden(ctx)
	before := len(repo.recordedReports())
	tracker.SetVisible(ctx)

	reports := repo.recordedReports()
	gt.Number(t, len(reports)).Greater(before)
	gt.Value(t, reports[len(reports)-1].Status).Equal(types.StatusOnline)
}

func TestWatchSnapshotAndUpdates(t *testing.T) {
	repo := memory.New()
	uc := usecase.New(repo, usecase.WithTiming(fastTiming()))
	ctx := context.Background()

	gt.NoError(t, repo.Presence().Report(ctx, &model.PresenceRecord{
		UserID:   "bob",
		Status:   types.StatusOnline,
		LastSeen: time.Now(),
	})).Required()

	watch, err := uc.Presence.Watch(ctx, []types.UserID{"bob", "carol"})
	gt.NoError(t, err).Required()
	defer watch.Close()

	snap := watch.Snapshot()
	gt.Number(t, len(snap)).Equal(2)
	gt.Value(t, snap["bob"].Status).Equal(types.StatusOnline)
	gt.Value(t, snap["carol"].Status).Equal(types.StatusOffline)

	gt.NoError(t, repo.Presence().Report(ctx, &model.PresenceRecord{
		UserID:   "carol",
		Status:   types.StatusOnline,
		LastSeen: time.Now(),
	})).Required()

	select {
	case rec := <-watch.Updates():
		gt.Value(t, rec.UserID).Equal(types.UserID("carol"))
		gt.Value(t, rec.Status).Equal(types.StatusOnline)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for watch update")
	}

	gt.Bool(t, eventually(time.Second, func() bool {
		return watch.Snapshot()["carol"].Status == types.StatusOnline
	})).True()
}

func TestWatchSetChange(t *testing.T) {
	repo := memory.New()
	uc := usecase.New(repo, usecase.WithTiming(fastTiming()))
	ctx := context.Background()

	oldWatch, err := uc.Presence.Watch(ctx, []types.UserID{"bob"})
	gt.NoError(t, err).Required()
	oldWatch.Close()

	newWatch, err := uc.Presence.Watch(ctx, []types.UserID{"carol"})
	gt.NoError(t, err).Required()
	defer newWatch.Close()

	gt.NoError(t, repo.Presence().Report(ctx, &model.PresenceRecord{
		UserID:   "bob",
		Status:   types.StatusOnline,
		LastSeen: time.Now(),
	})).Required()
	gt.NoError(t, repo.Presence().Report(ctx, &model.PresenceRecord{
		UserID:   "carol",
		Status:   types.StatusOnline,
		LastSeen: time.Now(),
	})).Required()

	// Only the new set's user may come through.
	select {
	case rec := <-newWatch.Updates():
		gt.Value(t, rec.UserID).Equal(types.UserID("carol"))
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for watch update")
	}
}

func TestWatchCloseIdempotentUnderLoad(t *testing.T) {
	repo := memory.New()
	uc := usecase.New(repo, usecase.WithTiming(fastTiming()))
	ctx := context.Background()

	watch, err := uc.Presence.Watch(ctx, []types.UserID{"bob"})
	gt.NoError(t, err).Required()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			_ = repo.Presence().Report(ctx, &model.PresenceRecord{
				UserID:   "bob",
				Status:   types.StatusOnline,
				LastSeen: time.Now(),
			})
		}
	}()

	watch.Close()
	watch.Close()
	<-done
}

func TestSnapshotRejectsInvalidID(t *testing.T) {
	uc := usecase.New(memory.New(), usecase.WithTiming(fastTiming()))

	_, err := uc.Presence.Snapshot(context.Background(), []types.UserID{""})
	gt.Error(t, err)
}
