package interfaces

import (
	"context"

	"github.com/seabird-lab/beacon/pkg/domain/model"
	"github.com/seabird-lab/beacon/pkg/domain/types"
)

// PresenceRepository defines presence data access against the backend.
type PresenceRepository interface {
	// Report upserts the caller's presence record. Idempotent; callers on
	// fire-and-forget paths drop the error after logging.
	Report(ctx context.Context, rec *model.PresenceRecord) error

	// GetMany performs a point-in-time bulk read. Users the backend has never
	// seen are returned as model.Offline records, so the result always has
	// one entry per requested ID.
	GetMany(ctx context.Context, ids []types.UserID) (map[types.UserID]model.PresenceRecord, error)

	// Watch establishes a standing subscription scoped to the given ID set.
	// One update is pushed per matching record change. The caller must call
	// Close on the subscription to release it.
	Watch(ctx context.Context, ids []types.UserID) (PresenceSubscription, error)
}

// PresenceSubscription is a live stream of presence updates. Close is
// idempotent and safe to call while an update delivery is in flight; updates
// arriving after Close are silently dropped.
type PresenceSubscription interface {
	Updates() <-chan model.PresenceRecord
	Close()
}
