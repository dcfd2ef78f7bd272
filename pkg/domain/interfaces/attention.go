package interfaces

import (
	"context"
	"time"

	"github.com/seabird-lab/beacon/pkg/domain/model"
	"github.com/seabird-lab/beacon/pkg/domain/types"
)

// AttentionRepository defines attention event persistence and delivery.
type AttentionRepository interface {
	// Create persists a new event and makes it visible to subscribers of the
	// receiver. The stored event is returned.
	Create(ctx context.Context, ev *model.AttentionEvent) (*model.AttentionEvent, error)

	// Subscribe establishes a standing subscription for events addressed to
	// the given receiver. Events created before the subscription are not
	// replayed.
	Subscribe(ctx context.Context, receiverID types.UserID) (AttentionSubscription, error)

	// PurgeBefore deletes events created before the cutoff and returns how
	// many were removed. Backends that expire events natively may return 0.
	PurgeBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// AttentionSubscription is a live stream of attention events for one
// receiver. Close is idempotent; events arriving after Close are silently
// dropped.
type AttentionSubscription interface {
	Events() <-chan model.AttentionEvent
	Close()
}
