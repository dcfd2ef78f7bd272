package types

import (
	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

// EventID represents a unique identifier for an attention event. It is the
// deduplication key: delivery channels may duplicate an event, its ID may not.
type EventID string

// NewEventID generates a new random EventID
func NewEventID() EventID {
	return EventID(uuid.NewString())
}

// Validate checks if the EventID is valid
func (e EventID) Validate() error {
	if e == "" {
		return goerr.Wrap(ErrInvalidArgument, "event ID cannot be empty")
	}
	return nil
}

// String returns the string representation of EventID
func (e EventID) String() string {
	return string(e)
}
