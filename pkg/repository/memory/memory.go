package memory

import (
	"github.com/seabird-lab/beacon/pkg/domain/interfaces"
)

// Repository is an alias for Memory to match the pattern
type Repository = Memory

// Memory is an in-memory backend for development and tests. Subscriptions
// are fed synchronously from the writer's goroutine, which makes delivery
// ordering deterministic in tests.
type Memory struct {
	presence  *presenceRepository
	attention *attentionRepository
}

var _ interfaces.Repository = &Memory{}

func New() *Memory {
	return &Memory{
		presence:  newPresenceRepository(),
		attention: newAttentionRepository(),
	}
}

func (m *Memory) Presence() interfaces.PresenceRepository {
	return m.presence
}

func (m *Memory) Attention() interfaces.AttentionRepository {
	return m.attention
}

func (m *Memory) Close() error {
	return nil
}
