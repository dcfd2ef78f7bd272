package types

import (
	"github.com/m-mizutani/goerr/v2"
)

// PresenceStatus represents the online state of a user as last reported by
// the backend. The raw status alone is not trusted for display; see
// model.IsOnline for the TTL fallback.
type PresenceStatus string

const (
	StatusOnline  PresenceStatus = "online"
	StatusOffline PresenceStatus = "offline"
)

// Validate checks if the PresenceStatus is a known value
func (s PresenceStatus) Validate() error {
	switch s {
	case StatusOnline, StatusOffline:
		return nil
	default:
		return goerr.Wrap(ErrInvalidArgument, "unknown presence status", goerr.V("status", s))
	}
}

// String returns the string representation of PresenceStatus
func (s PresenceStatus) String() string {
	return string(s)
}
