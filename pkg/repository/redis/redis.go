package redis

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/redis/go-redis/v9"
	"github.com/seabird-lab/beacon/pkg/domain/interfaces"
)

const (
	// defaultRecordTTL bounds how long a presence key outlives its last
	// report. Expired keys read as offline, which matches what the TTL
	// heuristic would conclude anyway.
	defaultRecordTTL = 120 * time.Second

	// defaultEventRetention is how long a delivered attention event is kept.
	// Events are momentary alerts; retention only needs to cover delivery
	// races and debugging.
	defaultEventRetention = 10 * time.Minute

	subscriptionBuffer = 64
)

// Redis is a backend built on Redis: presence lives in TTL-bound keys,
// change subscriptions ride on pub/sub channels.
type Redis struct {
	client    *redis.Client
	presence  *presenceRepository
	attention *attentionRepository
}

var _ interfaces.Repository = &Redis{}

type Option func(*Redis)

// WithKeyPrefix namespaces all keys and channels, mainly for test isolation.
func WithKeyPrefix(prefix string) Option {
	return func(r *Redis) {
		r.presence.keyPrefix = prefix
		r.attention.keyPrefix = prefix
	}
}

// WithRecordTTL overrides the presence key expiry.
func WithRecordTTL(ttl time.Duration) Option {
	return func(r *Redis) {
		r.presence.recordTTL = ttl
	}
}

func New(ctx context.Context, url string, opts ...Option) (*Redis, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to parse Redis URL", goerr.V("url", url))
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to connect to Redis")
	}

	r := &Redis{
		client:    client,
		presence:  newPresenceRepository(client),
		attention: newAttentionRepository(client),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r, nil
}

func (r *Redis) Presence() interfaces.PresenceRepository {
	return r.presence
}

func (r *Redis) Attention() interfaces.AttentionRepository {
	return r.attention
}

func (r *Redis) Close() error {
	return r.client.Close()
}
