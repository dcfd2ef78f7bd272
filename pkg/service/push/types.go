package push

import (
	"context"
	"time"

	"github.com/seabird-lab/beacon/pkg/domain/model"
)

// Service is the contract to the out-of-band push delivery provider. Delivery
// is best-effort: the provider may duplicate, delay, or drop payloads, and
// callers on the fan-out path discard the error after logging.
type Service interface {
	Deliver(ctx context.Context, n *Notification) error
}

// Kind classifies the notification payload for the provider
type Kind string

const (
	KindAttention Kind = "attention"
)

// Notification is the payload handed to the push provider
type Notification struct {
	EventID    string    `json:"event_id"`
	Kind       Kind      `json:"kind"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Message    string    `json:"message,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewAttentionNotification maps an attention event onto the provider payload.
// The event ID rides along so the receiving client can deduplicate against
// the live-subscription copy of the same event.
func NewAttentionNotification(ev *model.AttentionEvent) *Notification {
	return &Notification{
		EventID:    string(ev.ID),
		Kind:       KindAttention,
		SenderID:   string(ev.SenderID),
		ReceiverID: string(ev.ReceiverID),
		Message:    ev.Message,
		CreatedAt:  ev.CreatedAt,
	}
}
