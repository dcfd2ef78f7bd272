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
	presenceKeyPrefix      = "presence:"
	presenceUpdatesChannel = "presence:updates"
)

// presenceDoc is the Redis persistence model
type presenceDoc struct {
	UserID   string    `json:"user_id"`
	Status   string    `json:"status"`
	LastSeen time.Time `json:"last_seen"`
}

type presenceRepository struct {
	client    *redis.Client
	keyPrefix string
	recordTTL time.Duration
}

var _ interfaces.PresenceRepository = &presenceRepository{}

func newPresenceRepository(client *redis.Client) *presenceRepository {
	return &presenceRepository{
		client:    client,
		recordTTL: defaultRecordTTL,
	}
}

func (r *presenceRepository) key(id types.UserID) string {
	return r.keyPrefix + presenceKeyPrefix + string(id)
}

func (r *presenceRepository) channel() string {
	return r.keyPrefix + presenceUpdatesChannel
}

func toPresenceDoc(rec *model.PresenceRecord) *presenceDoc {
	return &presenceDoc{
		UserID:   string(rec.UserID),
		Status:   string(rec.Status),
		LastSeen: rec.LastSeen,
	}
}

func fromPresenceDoc(doc *presenceDoc) model.PresenceRecord {
	return model.PresenceRecord{
		UserID:   types.UserID(doc.UserID),
		Status:   types.PresenceStatus(doc.Status),
		LastSeen: doc.LastSeen,
	}
}

// Report upserts the presence key with a bounded TTL and publishes the
// change so standing watchers see it without polling. The write and the
// publish share one pipeline round trip.
func (r *presenceRepository) Report(ctx context.Context, rec *model.PresenceRecord) error {
	if err := rec.UserID.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(toPresenceDoc(rec))
	if err != nil {
		return goerr.Wrap(err, "failed to marshal presence record", goerr.V("user_id", rec.UserID))
	}

	pipe := r.client.Pipeline()
	pipe.Set(ctx, r.key(rec.UserID), data, r.recordTTL)
	pipe.Publish(ctx, r.channel(), data)
	if _, err := pipe.Exec(ctx); err != nil {
		return goerr.Wrap(types.ErrRemote, "failed to report presence",
			goerr.V("user_id", rec.UserID), goerr.V("cause", err.Error()))
	}
	return nil
}

func (r *presenceRepository) GetMany(ctx context.Context, ids []types.UserID) (map[types.UserID]model.PresenceRecord, error) {
	result := make(map[types.UserID]model.PresenceRecord, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.key(id)
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, goerr.Wrap(types.ErrRemote, "failed to bulk read presence",
			goerr.V("count", len(ids)), goerr.V("cause", err.Error()))
	}

	for i, id := range ids {
		raw, ok := values[i].(string)
		if !ok {
			// Key missing or expired: the user reads as offline.
			result[id] = model.Offline(id)
			continue
		}

		var doc presenceDoc
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal presence record", goerr.V("user_id", id))
		}
		result[id] = fromPresenceDoc(&doc)
	}

	return result, nil
}

// Watch subscribes to the shared presence update channel and filters to the
// watched ID set client-side.
func (r *presenceRepository) Watch(ctx context.Context, ids []types.UserID) (interfaces.PresenceSubscription, error) {
	idSet := make(map[types.UserID]bool, len(ids))
	for _, id := range ids {
		idSet[id] = true
	}

	pubsub := r.client.Subscribe(ctx, r.channel())
	sub := &presenceSubscription{
		ch:     make(chan model.PresenceRecord, subscriptionBuffer),
		pubsub: pubsub,
	}

	go func() {
		for msg := range pubsub.Channel() {
			var doc presenceDoc
			if err := json.Unmarshal([]byte(msg.Payload), &doc); err != nil {
				logging.Default().Warn("skipping malformed presence update", "error", err.Error())
				continue
			}
			rec := fromPresenceDoc(&doc)
			if !idSet[rec.UserID] {
				continue
			}
			sub.deliver(rec)
		}
		// Channel drained: either Close was called or the connection died.
		// Readers degrade to TTL-based staleness until they re-watch.
		sub.finish()
	}()

	return sub, nil
}

type presenceSubscription struct {
	mu     sync.Mutex
	closed bool
	done   bool
	ch     chan model.PresenceRecord
	pubsub *redis.PubSub
}

func (s *presenceSubscription) Updates() <-chan model.PresenceRecord {
	return s.ch
}

func (s *presenceSubscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	// Closing the pubsub ends the feeding goroutine, which then closes ch
	// via finish.
	if err := s.pubsub.Close(); err != nil {
		logging.Default().Warn("failed to close presence pubsub", "error", err.Error())
	}
}

func (s *presenceSubscription) deliver(rec model.PresenceRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.done {
		return
	}
	select {
	case s.ch <- rec:
	default:
		logging.Default().Warn("presence subscription buffer full, dropping update",
			"user_id", rec.UserID)
	}
}

func (s *presenceSubscription) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	s.done = true
	close(s.ch)
}
