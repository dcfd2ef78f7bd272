package redis

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/redis/go-redis/v9"
	"github.com/seabird-lab/beacon/pkg/domain/interfaces"
	"github.com/seabird-lab/beacon/pkg/domain/model"
	"github.com/seabird-lab/beacon/pkg/domain/types"
	"github.com/seabird-lab/beacon/pkg/utils/logging"
)

const (
	attentionEventKeyPrefix = "attention:event:"
	attentionChannelPrefix  = "attention:inbox:"
)

// attentionDoc is the Redis persistence model
type attentionDoc struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Message    string    `json:"message,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type attentionRepository struct {
	client    *redis.Client
	keyPrefix string
	retention time.Duration
}

var _ interfaces.AttentionRepository = &attentionRepository{}

func newAttentionRepository(client *redis.Client) *attentionRepository {
	return &attentionRepository{
		client:    client,
		retention: defaultEventRetention,
	}
}

func (r *attentionRepository) eventKey(id types.EventID) string {
	return r.keyPrefix + attentionEventKeyPrefix + string(id)
}

func (r *attentionRepository) channel(receiverID types.UserID) string {
	return r.keyPrefix + attentionChannelPrefix + string(receiverID)
}

func toAttentionDoc(ev *model.AttentionEvent) *attentionDoc {
	return &attentionDoc{
		ID:         string(ev.ID),
		SenderID:   string(ev.SenderID),
		ReceiverID: string(ev.ReceiverID),
		Message:    ev.Message,
		CreatedAt:  ev.CreatedAt,
	}
}

func fromAttentionDoc(doc *attentionDoc) model.AttentionEvent {
	return model.AttentionEvent{
		ID:         types.EventID(doc.ID),
		SenderID:   types.UserID(doc.SenderID),
		ReceiverID: types.UserID(doc.ReceiverID),
		Message:    doc.Message,
		CreatedAt:  doc.CreatedAt,
	}
}

// Create persists the event with a short retention and publishes it on the
// receiver's inbox channel in the same pipeline.
func (r *attentionRepository) Create(ctx context.Context, ev *model.AttentionEvent) (*model.AttentionEvent, error) {
	if err := ev.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid attention event")
	}

	data, err := json.Marshal(toAttentionDoc(ev))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal attention event", goerr.V("id", ev.ID))
	}

	pipe := r.client.Pipeline()
	pipe.Set(ctx, r.eventKey(ev.ID), data, r.retention)
	pipe.Publish(ctx, r.channel(ev.ReceiverID), data)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, goerr.Wrap(types.ErrRemote, "failed to create attention event",
			goerr.V("id", ev.ID), goerr.V("cause", err.Error()))
	}

	stored := *ev
	return &stored, nil
}

// PurgeBefore is a no-op: event keys carry a TTL and expire on their own.
func (r *attentionRepository) PurgeBefore(ctx context.Context, cutoff time.Time) (int, error) {
	return 0, nil
}

func (r *attentionRepository) Subscribe(ctx context.Context, receiverID types.UserID) (interfaces.AttentionSubscription, error) {
	if err := receiverID.Validate(); err != nil {
		return nil, err
	}

	pubsub := r.client.Subscribe(ctx, r.channel(receiverID))
	sub := &attentionSubscription{
		ch:     make(chan model.AttentionEvent, subscriptionBuffer),
		pubsub: pubsub,
	}

	go func() {
		for msg := range pubsub.Channel() {
			var doc attentionDoc
			if err := json.Unmarshal([]byte(msg.Payload), &doc); err != nil {
				logging.Default().Warn("skipping malformed attention event", "error", err.Error())
				continue
			}
			sub.deliver(fromAttentionDoc(&doc))
		}
		sub.finish()
	}()

	return sub, nil
}

type attentionSubscription struct {
	mu     sync.Mutex
	closed bool
	done   bool
	ch     chan model.AttentionEvent
	pubsub *redis.PubSub
}

func (s *attentionSubscription) Events() <-chan model.AttentionEvent {
	return s.ch
}

func (s *attentionSubscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	if err := s.pubsub.Close(); err != nil {
		logging.Default().Warn("failed to close attention pubsub", "error", err.Error())
	}
}

func (s *attentionSubscription) deliver(ev model.AttentionEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.done {
		return
	}
	select {
	case s.ch <- ev:
	default:
		logging.Default().Warn("attention subscription buffer full, dropping event",
			"event_id", ev.ID, "receiver_id", ev.ReceiverID)
	}
}

func (s *attentionSubscription) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	s.done = true
	close(s.ch)
}
