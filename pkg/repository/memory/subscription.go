package memory

import (
	"sync"

	"github.com/seabird-lab/beacon/pkg/domain/model"
	"github.com/seabird-lab/beacon/pkg/utils/logging"
)

const subscriptionBuffer = 64

// presenceSubscription delivers presence updates to one watcher. deliver and
// Close may race: the closed flag is checked under mu so a late delivery
// after teardown is dropped instead of panicking on a closed channel.
type presenceSubscription struct {
	mu         sync.Mutex
	closed     bool
	ch         chan model.PresenceRecord
	unregister func()
}

func newPresenceSubscription(unregister func()) *presenceSubscription {
	return &presenceSubscription{
		ch:         make(chan model.PresenceRecord, subscriptionBuffer),
		unregister: unregister,
	}
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
	close(s.ch)
	s.mu.Unlock()

	s.unregister()
}

func (s *presenceSubscription) deliver(rec model.PresenceRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- rec:
	default:
		// Slow consumer: drop the update. The TTL fallback and the next
		// bulk fetch converge the reader's view.
		logging.Default().Warn("presence subscription buffer full, dropping update",
			"user_id", rec.UserID)
	}
}

// attentionSubscription delivers attention events to one receiver listener.
type attentionSubscription struct {
	mu         sync.Mutex
	closed     bool
	ch         chan model.AttentionEvent
	unregister func()
}

func newAttentionSubscription(unregister func()) *attentionSubscription {
	return &attentionSubscription{
		ch:         make(chan model.AttentionEvent, subscriptionBuffer),
		unregister: unregister,
	}
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
	close(s.ch)
	s.mu.Unlock()

	s.unregister()
}

func (s *attentionSubscription) deliver(ev model.AttentionEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- ev:
	default:
		logging.Default().Warn("attention subscription buffer full, dropping event",
			"event_id", ev.ID, "receiver_id", ev.ReceiverID)
	}
}
