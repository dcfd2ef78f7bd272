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
	"github.com/seabird-lab/beacon/pkg/service/push"
	"github.com/seabird-lab/beacon/pkg/utils/async"
	"github.com/seabird-lab/beacon/pkg/utils/dedup"
	"github.com/seabird-lab/beacon/pkg/utils/logging"
)

// AttentionUseCase sends attention events and dispatches incoming ones
// to a handler, suppressing duplicates.
type AttentionUseCase struct {
	repo    interfaces.Repository
	timing  config.Timing
	pushSvc push.Service
}

func NewAttentionUseCase(repo interfaces.Repository, timing config.Timing, pushSvc push.Service) *AttentionUseCase {
	return &AttentionUseCase{
		repo:    repo,
		timing:  timing,
		pushSvc: pushSvc,
	}
}

// Send validates input, checks that the receiver is online, persists
// the event and fans it out to push delivery in the background.
// Validation failures return before any remote call.
func (uc *AttentionUseCase) Send(ctx context.Context, senderID, receiverID types.UserID, message string) (*model.AttentionEvent, error) {
	if receiverID == "" {
		return nil, goerr.Wrap(types.ErrInvalidArgument, "receiver is required")
	}
	if err := receiverID.Validate(); err != nil {
		return nil, err
	}
	if err := senderID.Validate(); err != nil {
		return nil, err
	}

	records, err := uc.repo.Presence().GetMany(ctx, []types.UserID{receiverID})
	if err != nil {
		return nil, err
	}

	if !model.IsOnline(records[receiverID], time.Now(), uc.timing.TTL) {
		return nil, goerr.Wrap(types.ErrReceiverOffline, "cannot send attention",
			goerr.V("receiver_id", receiverID),
		)
	}

	ev, err := uc.repo.Attention().Create(ctx, model.NewAttentionEvent(senderID, receiverID, message))
	if err != nil {
		return nil, err
	}

	if uc.pushSvc != nil {
		async.Dispatch(ctx, func(ctx context.Context) error {
			return uc.pushSvc.Deliver(ctx, push.NewAttentionNotification(ev))
		})
	}

	return ev, nil
}

const listenBuffer = 64

// Listener merges attention events from the realtime subscription and
// any extra sources into a single handler, invoking it at most once
// per event ID within the dedup window.
type Listener struct {
	sub     interfaces.AttentionSubscription
	handler func(model.AttentionEvent)
	recent  *dedup.RecentSet

	events chan model.AttentionEvent

	mu     sync.Mutex
	closed bool

	doneCh     chan struct{}
	dispatched chan struct{}
}

// Listen subscribes to events addressed to receiverID. The handler
// runs on a single goroutine, so it must not block for long.
func (uc *AttentionUseCase) Listen(ctx context.Context, receiverID types.UserID, handler func(model.AttentionEvent)) (*Listener, error) {
	if err := receiverID.Validate(); err != nil {
		return nil, err
	}
	if handler == nil {
		return nil, goerr.Wrap(types.ErrInvalidArgument, "handler is required")
	}

	sub, err := uc.repo.Attention().Subscribe(ctx, receiverID)
	if err != nil {
		return nil, err
	}

	l := &Listener{
		sub:        sub,
		handler:    handler,
		recent:     dedup.New(uc.timing.DedupWindow, uc.timing.DedupCapacity),
		events:     make(chan model.AttentionEvent, listenBuffer),
		doneCh:     make(chan struct{}),
		dispatched: make(chan struct{}),
	}

	go l.forward(ctx, sub.Events())
	go l.dispatch(ctx)

	return l, nil
}

// AddSource merges another event channel into the listener, typically
// one fed by push notification callbacks. Events arriving on multiple
// sources with the same ID are still delivered once.
func (l *Listener) AddSource(ctx context.Context, ch <-chan model.AttentionEvent) {
	go l.forward(ctx, ch)
}

// Inject offers a single event to the listener. Events injected after
// Close are dropped.
func (l *Listener) Inject(ev model.AttentionEvent) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.mu.Unlock()

	select {
	case l.events <- ev:
	case <-l.doneCh:
	}
}

func (l *Listener) forward(ctx context.Context, ch <-chan model.AttentionEvent) {
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			l.Inject(ev)

		case <-l.doneCh:
			return

		case <-ctx.Done():
			return
		}
	}
}

func (l *Listener) dispatch(ctx context.Context) {
	defer close(l.dispatched)

	for {
		select {
		case ev := <-l.events:
			if !l.recent.Observe(string(ev.ID)) {
				logging.From(ctx).Debug("duplicate attention event suppressed",
					"event_id", ev.ID,
					"sender_id", ev.SenderID,
				)
				continue
			}
			l.handler(ev)

		case <-l.doneCh:
			return
		}
	}
}

// Close tears down the subscription and stops dispatching. Safe to
// call more than once; deliveries racing the teardown are dropped
// without invoking the handler.
func (l *Listener) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.mu.Unlock()

	close(l.doneCh)
	l.sub.Close()
	<-l.dispatched
}
