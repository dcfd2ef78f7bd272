package repository_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/seabird-lab/beacon/pkg/domain/interfaces"
	"github.com/seabird-lab/beacon/pkg/domain/model"
	"github.com/seabird-lab/beacon/pkg/domain/types"
	"github.com/seabird-lab/beacon/pkg/repository/firestore"
	"github.com/seabird-lab/beacon/pkg/repository/memory"
	"github.com/seabird-lab/beacon/pkg/repository/redis"
)

func waitEvent(t *testing.T, ch <-chan model.AttentionEvent) model.AttentionEvent {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatal("subscription channel closed unexpectedly")
		}
		return ev
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for attention event")
	}
	return model.AttentionEvent{}
}

func runAttentionRepositoryTest(t *testing.T, newRepo func(t *testing.T) interfaces.Repository) {
	t.Helper()

	t.Run("Create rejects invalid events", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		ev := model.NewAttentionEvent("u-sender", "", "hi")
		_, err := repo.Attention().Create(ctx, ev)
		gt.Value(t, err).NotNil()
	})

	t.Run("Subscribe receives events for the receiver", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		receiver := newTestUserID("u-recv")
		other := newTestUserID("u-other")

		sub, err := repo.Attention().Subscribe(ctx, receiver)
		gt.NoError(t, err).Required()
		defer sub.Close()

		time.Sleep(500 * time.Millisecond)

		_, err = repo.Attention().Create(ctx, model.NewAttentionEvent("u-sender", other, "not yours"))
		gt.NoError(t, err).Required()

		sent := model.NewAttentionEvent("u-sender", receiver, "wake up")
		created, err := repo.Attention().Create(ctx, sent)
		gt.NoError(t, err).Required()
		gt.Value(t, created.ID).Equal(sent.ID)

		got := waitEvent(t, sub.Events())
		gt.Value(t, got.ID).Equal(sent.ID)
		gt.Value(t, got.SenderID).Equal(types.UserID("u-sender"))
		gt.Value(t, got.ReceiverID).Equal(receiver)
		gt.Value(t, got.Message).Equal("wake up")
	})

	t.Run("Close is idempotent and drops late events", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		receiver := newTestUserID("u-close")
		sub, err := repo.Attention().Subscribe(ctx, receiver)
		gt.NoError(t, err).Required()

		sub.Close()
		sub.Close()

		_, err = repo.Attention().Create(ctx, model.NewAttentionEvent("u-sender", receiver, ""))
		gt.NoError(t, err)
	})

	t.Run("Subscribe rejects empty receiver", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		_, err := repo.Attention().Subscribe(ctx, "")
		gt.Value(t, err).NotNil()
	})

	t.Run("PurgeBefore succeeds on every backend", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		receiver := newTestUserID("u-purge")
		stale := model.NewAttentionEvent("u-sender", receiver, "stale")
		stale.CreatedAt = time.Now().Add(-time.Hour)
		_, err := repo.Attention().Create(ctx, stale)
		gt.NoError(t, err).Required()

		_, err = repo.Attention().PurgeBefore(ctx, time.Now().Add(-30*time.Minute))
		gt.NoError(t, err)
	})
}

func TestAttentionPurgeBefore_Memory(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()

	stale := model.NewAttentionEvent("u-sender", "u-recv", "stale")
	stale.CreatedAt = time.Now().Add(-time.Hour)
	_, err := repo.Attention().Create(ctx, stale)
	gt.NoError(t, err).Required()

	fresh, err := repo.Attention().Create(ctx, model.NewAttentionEvent("u-sender", "u-recv", "fresh"))
	gt.NoError(t, err).Required()

	purged, err := repo.Attention().PurgeBefore(ctx, time.Now().Add(-30*time.Minute))
	gt.NoError(t, err).Required()
	gt.Number(t, purged).Equal(1)

	// The stale ID is free again; the fresh one still collides.
	recreated := *stale
	recreated.CreatedAt = time.Now()
	_, err = repo.Attention().Create(ctx, &recreated)
	gt.NoError(t, err)

	dup := *fresh
	_, err = repo.Attention().Create(ctx, &dup)
	gt.Value(t, err).NotNil()
}

func TestAttentionRepository_Memory(t *testing.T) {
	runAttentionRepositoryTest(t, func(t *testing.T) interfaces.Repository {
		return memory.New()
	})
}

func TestAttentionRepository_Firestore(t *testing.T) {
	projectID := os.Getenv("TEST_FIRESTORE_PROJECT_ID")
	if projectID == "" {
		t.Skip("TEST_FIRESTORE_PROJECT_ID not set")
	}
	databaseID := os.Getenv("TEST_FIRESTORE_DATABASE_ID")

	runAttentionRepositoryTest(t, func(t *testing.T) interfaces.Repository {
		repo, err := firestore.New(context.Background(), projectID, databaseID,
			firestore.WithCollectionPrefix(newTestUserID("test").String()))
		gt.NoError(t, err).Required()
		t.Cleanup(func() {
			if err := repo.Close(); err != nil {
				t.Logf("failed to close firestore repository: %v", err)
			}
		})
		return repo
	})
}

func TestAttentionRepository_Redis(t *testing.T) {
	redisURL := os.Getenv("TEST_REDIS_URL")
	if redisURL == "" {
		t.Skip("TEST_REDIS_URL not set")
	}

	runAttentionRepositoryTest(t, func(t *testing.T) interfaces.Repository {
		repo, err := redis.New(context.Background(), redisURL,
			redis.WithKeyPrefix(newTestUserID("test").String()+":"))
		gt.NoError(t, err).Required()
		t.Cleanup(func() {
			if err := repo.Close(); err != nil {
				t.Logf("failed to close redis repository: %v", err)
			}
		})
		return repo
	})
}
