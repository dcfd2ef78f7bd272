package repository_test

import (
	"context"
	"fmt"
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

func newTestUserID(prefix string) types.UserID {
	return types.UserID(fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano()))
}

// waitUpdate receives one update with a timeout; live backends deliver
// asynchronously.
func waitUpdate(t *testing.T, ch <-chan model.PresenceRecord) model.PresenceRecord {
	t.Helper()
	select {
	case rec, ok := <-ch:
		if !ok {
			t.Fatal("subscription channel closed unexpectedly")
		}
		return rec
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for presence update")
	}
	return model.PresenceRecord{}
}

func runPresenceRepositoryTest(t *testing.T, newRepo func(t *testing.T) interfaces.Repository) {
	t.Helper()

	t.Run("GetMany returns offline for unknown users", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		unknown := newTestUserID("u-unknown")
		got, err := repo.Presence().GetMany(ctx, []types.UserID{unknown})
		gt.NoError(t, err).Required()

		gt.Number(t, len(got)).Equal(1)
		gt.Value(t, got[unknown].Status).Equal(types.StatusOffline)
		gt.Bool(t, got[unknown].LastSeen.IsZero()).True()
	})

	t.Run("Report then GetMany round trips", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		userID := newTestUserID("u-report")
		now := time.Now().Truncate(time.Millisecond)
		err := repo.Presence().Report(ctx, &model.PresenceRecord{
			UserID:   userID,
			Status:   types.StatusOnline,
			LastSeen: now,
		})
		gt.NoError(t, err).Required()

		got, err := repo.Presence().GetMany(ctx, []types.UserID{userID})
		gt.NoError(t, err).Required()
		gt.Value(t, got[userID].Status).Equal(types.StatusOnline)
		gt.Bool(t, got[userID].LastSeen.IsZero()).False()
	})

	t.Run("Report is idempotent upsert", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		userID := newTestUserID("u-upsert")
		for i := 0; i < 3; i++ {
			err := repo.Presence().Report(ctx, &model.PresenceRecord{
				UserID:   userID,
				Status:   types.StatusOnline,
				LastSeen: time.Now(),
			})
			gt.NoError(t, err).Required()
		}

		err := repo.Presence().Report(ctx, &model.PresenceRecord{
			UserID:   userID,
			Status:   types.StatusOffline,
			LastSeen: time.Now(),
		})
		gt.NoError(t, err).Required()

		got, err := repo.Presence().GetMany(ctx, []types.UserID{userID})
		gt.NoError(t, err).Required()
		gt.Value(t, got[userID].Status).Equal(types.StatusOffline)
	})

	t.Run("Report rejects empty user ID", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		err := repo.Presence().Report(ctx, &model.PresenceRecord{Status: types.StatusOnline})
		gt.Value(t, err).NotNil()
	})

	t.Run("Watch receives updates for watched users only", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		watched := newTestUserID("u-watched")
		ignored := newTestUserID("u-ignored")

		sub, err := repo.Presence().Watch(ctx, []types.UserID{watched})
		gt.NoError(t, err).Required()
		defer sub.Close()

		// Live backends need a moment to establish the subscription.
		time.Sleep(500 * time.Millisecond)

		gt.NoError(t, repo.Presence().Report(ctx, &model.PresenceRecord{
			UserID:   ignored,
			Status:   types.StatusOnline,
			LastSeen: time.Now(),
		})).Required()
		gt.NoError(t, repo.Presence().Report(ctx, &model.PresenceRecord{
			UserID:   watched,
			Status:   types.StatusOnline,
			LastSeen: time.Now(),
		})).Required()

		rec := waitUpdate(t, sub.Updates())
		gt.Value(t, rec.UserID).Equal(watched)
		gt.Value(t, rec.Status).Equal(types.StatusOnline)
	})

	t.Run("Close is idempotent and drops late updates", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		userID := newTestUserID("u-teardown")
		sub, err := repo.Presence().Watch(ctx, []types.UserID{userID})
		gt.NoError(t, err).Required()

		sub.Close()
		sub.Close()

		// A report racing with teardown must not panic or deliver.
		gt.NoError(t, repo.Presence().Report(ctx, &model.PresenceRecord{
			UserID:   userID,
			Status:   types.StatusOnline,
			LastSeen: time.Now(),
		}))
	})
}

func TestPresenceRepository_Memory(t *testing.T) {
	runPresenceRepositoryTest(t, func(t *testing.T) interfaces.Repository {
		return memory.New()
	})
}

func TestPresenceRepository_Firestore(t *testing.T) {
	projectID := os.Getenv("TEST_FIRESTORE_PROJECT_ID")
	if projectID == "" {
		t.Skip("TEST_FIRESTORE_PROJECT_ID not set")
	}
	databaseID := os.Getenv("TEST_FIRESTORE_DATABASE_ID")

	runPresenceRepositoryTest(t, func(t *testing.T) interfaces.Repository {
		repo, err := firestore.New(context.Background(), projectID, databaseID,
			firestore.WithCollectionPrefix(fmt.Sprintf("test_%d", time.Now().UnixNano())))
		gt.NoError(t, err).Required()
		t.Cleanup(func() {
			if err := repo.Close(); err != nil {
				t.Logf("failed to close firestore repository: %v", err)
			}
		})
		return repo
	})
}

func TestPresenceRepository_Redis(t *testing.T) {
	redisURL := os.Getenv("TEST_REDIS_URL")
	if redisURL == "" {
		t.Skip("TEST_REDIS_URL not set")
	}

	runPresenceRepositoryTest(t, func(t *testing.T) interfaces.Repository {
		repo, err := redis.New(context.Background(), redisURL,
			redis.WithKeyPrefix(fmt.Sprintf("test:%d:", time.Now().UnixNano())))
		gt.NoError(t, err).Required()
		t.Cleanup(func() {
			if err := repo.Close(); err != nil {
				t.Logf("failed to close redis repository: %v", err)
			}
		})
		return repo
	})
}
