package model

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/seabird-lab/beacon/pkg/domain/types"
)

// AttentionEvent is a single one-shot "buzz" from one user to another. Events
// are immutable once created and conceptually short-lived: their only purpose
// is a momentary alert on the receiver's side. The ID is the deduplication
// key across delivery channels.
type AttentionEvent struct {
	ID         types.EventID
	SenderID   types.UserID
	ReceiverID types.UserID
	Message    string // optional free-text annotation
	CreatedAt  time.Time
}

// NewAttentionEvent builds an event with a fresh ID and creation timestamp.
func NewAttentionEvent(sender, receiver types.UserID, message string) *AttentionEvent {
	return &AttentionEvent{
		ID:         types.NewEventID(),
		SenderID:   sender,
		ReceiverID: receiver,
		Message:    message,
		CreatedAt:  time.Now(),
	}
}

// Validate checks the event is well-formed
func (e *AttentionEvent) Validate() error {
	if err := e.ID.Validate(); err != nil {
		return goerr.Wrap(err, "invalid event ID")
	}
	if err := e.SenderID.Validate(); err != nil {
		return goerr.Wrap(err, "invalid sender ID")
	}
	if err := e.ReceiverID.Validate(); err != nil {
		return goerr.Wrap(err, "invalid receiver ID")
	}
	if e.CreatedAt.IsZero() {
		return goerr.Wrap(types.ErrInvalidArgument, "event has no creation time", goerr.V("id", e.ID))
	}
	return nil
}
