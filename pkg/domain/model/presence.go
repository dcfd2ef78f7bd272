package model

import (
	"time"

	"github.com/seabird-lab/beacon/pkg/domain/types"
)

// PresenceRecord is the local belief about one user's online state. Records
// are created when a contact is first observed, mutated on every push update
// or poll tick, and never explicitly deleted: a record becomes irrelevant
// when no watch set references it anymore.
type PresenceRecord struct {
	UserID   types.UserID
	Status   types.PresenceStatus
	LastSeen time.Time // zero value means no activity signal is known
}

// Offline returns a PresenceRecord for a user with no known activity.
// Backends return this for users they have never seen.
func Offline(id types.UserID) PresenceRecord {
	return PresenceRecord{
		UserID: id,
		Status: types.StatusOffline,
	}
}

// IsOnline is the single source of truth for displayed online state. The raw
// status alone is insufficient: heartbeats lag and a backend-pushed offline
// may itself be stale, so a recent LastSeen overrides it.
func IsOnline(rec PresenceRecord, now time.Time, ttl time.Duration) bool {
	if rec.Status == types.StatusOnline {
		return true
	}
	if rec.LastSeen.IsZero() {
		return false
	}
	return now.Sub(rec.LastSeen) < ttl
}
