package memory

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/seabird-lab/beacon/pkg/domain/interfaces"
	"github.com/seabird-lab/beacon/pkg/domain/model"
	"github.com/seabird-lab/beacon/pkg/domain/types"
)

type attentionListener struct {
	receiverID types.UserID
	sub        *attentionSubscription
}

type attentionRepository struct {
	mu        sync.RWMutex
	events    map[types.EventID]model.AttentionEvent
	listeners map[*attentionListener]bool
}

var _ interfaces.AttentionRepository = &attentionRepository{}

func newAttentionRepository() *attentionRepository {
	return &attentionRepository{
		events:    make(map[types.EventID]model.AttentionEvent),
		listeners: make(map[*attentionListener]bool),
	}
}

func (r *attentionRepository) Create(ctx context.Context, ev *model.AttentionEvent) (*model.AttentionEvent, error) {
	if err := ev.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid attention event")
	}

	r.mu.Lock()
	if _, exists := r.events[ev.ID]; exists {
		r.mu.Unlock()
		return nil, goerr.New("attention event already exists", goerr.V("id", ev.ID))
	}
	stored := *ev
	r.events[ev.ID] = stored
	listeners := make([]*attentionListener, 0, len(r.listeners))
	for l := range r.listeners {
		if l.receiverID == ev.ReceiverID {
			listeners = append(listeners, l)
		}
	}
	r.mu.Unlock()

	for _, l := range listeners {
		l.sub.deliver(stored)
	}
	return &stored, nil
}

func (r *attentionRepository) Subscribe(ctx context.Context, receiverID types.UserID) (interfaces.AttentionSubscription, error) {
	if err := receiverID.Validate(); err != nil {
		return nil, err
	}

	l := &attentionListener{receiverID: receiverID}
	l.sub = newAttentionSubscription(func() {
		r.mu.Lock()
		delete(r.listeners, l)
		r.mu.Unlock()
	})

	r.mu.Lock()
	r.listeners[l] = true
	r.mu.Unlock()

	return l.sub, nil
}

func (r *attentionRepository) PurgeBefore(ctx context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	purged := 0
	for id, ev := range r.events {
		if ev.CreatedAt.Before(cutoff) {
			delete(r.events, id)
			purged++
		}
	}
	return purged, nil
}
