package worker_test

import (
	"context"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/seabird-lab/beacon/pkg/domain/model"
	"github.com/seabird-lab/beacon/pkg/repository/memory"
	"github.com/seabird-lab/beacon/pkg/service/worker"
)

func TestRetentionWorkerPurgesOldEvents(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()

	old := model.NewAttentionEvent("alice", "bob", "stale")
	old.CreatedAt = time.Now().Add(-time.Hour)
	_, err := repo.Attention().Create(ctx, old)
	gt.NoError(t, err).Required()

	fresh, err := repo.Attention().Create(ctx, model.NewAttentionEvent("alice", "bob", "fresh"))
	gt.NoError(t, err).Required()

	w := worker.NewRetentionWorker(repo, 10*time.Minute, 10*time.Millisecond)
	gt.NoError(t, w.Start(ctx)).Required()
	defer w.Stop()

	// The stale event is gone once re-creating its ID stops colliding.
	recreated := &model.AttentionEvent{
		ID:         old.ID,
		SenderID:   old.SenderID,
		ReceiverID: old.ReceiverID,
		Message:    old.Message,
		CreatedAt:  time.Now(),
	}
	deadline := time.Now().Add(time.Second)
	for {
		if _, err := repo.Attention().Create(ctx, recreated); err == nil {
			break
		}
		if !time.Now().Before(deadline) {
			t.Fatal("stale attention event was never purged")
		}
		time.Sleep(10 * time.Millisecond)
	}

	// The fresh event is inside the retention window and must survive.
	_, err = repo.Attention().Create(ctx, &model.AttentionEvent{
		ID:         fresh.ID,
		SenderID:   fresh.SenderID,
		ReceiverID: fresh.ReceiverID,
		Message:    fresh.Message,
		CreatedAt:  time.Now(),
	})
	gt.Value(t, err).NotNil()
}

func TestRetentionWorkerStopIsClean(t *testing.T) {
	repo := memory.New()

	w := worker.NewRetentionWorker(repo, time.Minute, 10*time.Millisecond)
	gt.NoError(t, w.Start(context.Background())).Required()
	time.Sleep(30 * time.Millisecond)
	w.Stop()
}
