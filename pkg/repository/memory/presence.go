package memory

import (
	"context"
	"sync"

	"github.com/seabird-lab/beacon/pkg/domain/interfaces"
	"github.com/seabird-lab/beacon/pkg/domain/model"
	"github.com/seabird-lab/beacon/pkg/domain/types"
)

type presenceWatcher struct {
	ids map[types.UserID]bool
	sub *presenceSubscription
}

type presenceRepository struct {
	mu       sync.RWMutex
	records  map[types.UserID]model.PresenceRecord
	watchers map[*presenceWatcher]bool
}

var _ interfaces.PresenceRepository = &presenceRepository{}

func newPresenceRepository() *presenceRepository {
	return &presenceRepository{
		records:  make(map[types.UserID]model.PresenceRecord),
		watchers: make(map[*presenceWatcher]bool),
	}
}

// Report upserts the record and fans it out to watchers whose ID set
// contains the user.
func (r *presenceRepository) Report(ctx context.Context, rec *model.PresenceRecord) error {
	if err := rec.UserID.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	r.records[rec.UserID] = *rec
	watchers := make([]*presenceWatcher, 0, len(r.watchers))
	for w := range r.watchers {
		if w.ids[rec.UserID] {
			watchers = append(watchers, w)
		}
	}
	r.mu.Unlock()

	for _, w := range watchers {
		w.sub.deliver(*rec)
	}
	return nil
}

// GetMany returns one record per requested ID; unknown users read as offline.
func (r *presenceRepository) GetMany(ctx context.Context, ids []types.UserID) (map[types.UserID]model.PresenceRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[types.UserID]model.PresenceRecord, len(ids))
	for _, id := range ids {
		if rec, ok := r.records[id]; ok {
			result[id] = rec
		} else {
			result[id] = model.Offline(id)
		}
	}
	return result, nil
}

func (r *presenceRepository) Watch(ctx context.Context, ids []types.UserID) (interfaces.PresenceSubscription, error) {
	idSet := make(map[types.UserID]bool, len(ids))
	for _, id := range ids {
		idSet[id] = true
	}

	w := &presenceWatcher{ids: idSet}
	w.sub = newPresenceSubscription(func() {
		r.mu.Lock()
		delete(r.watchers, w)
		r.mu.Unlock()
	})

	r.mu.Lock()
	r.watchers[w] = true
	r.mu.Unlock()

	return w.sub, nil
}
