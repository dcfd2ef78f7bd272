package config

import "time"

// Timing holds the wall-clock parameters of the presence and attention
// subsystem. The defaults mirror the observed production profile: heartbeats
// every 25s, a 70s trust window on last-seen timestamps (a bit under 3
// missed beats), and a 65s grace period before a hidden session is reported
// offline.
type Timing struct {
	// TTL is the maximum age of a LastSeen timestamp still trusted as
	// evidence of "online". Must exceed HeartbeatInterval by a safety margin
	// of at least 2x to tolerate missed beats.
	TTL time.Duration

	// HeartbeatInterval is the cadence of self online reports.
	HeartbeatInterval time.Duration

	// HideDelay is how long a session stays "online" after being hidden
	// before an offline report is issued. Avoids flapping on brief tab
	// switches.
	HideDelay time.Duration

	// DedupWindow is how long an attention event ID is remembered for
	// duplicate suppression.
	DedupWindow time.Duration

	// DedupCapacity bounds the recent-ID set.
	DedupCapacity int

	// EventRetention is how long delivered attention events are kept before
	// the retention worker purges them.
	EventRetention time.Duration
}

// DefaultTiming returns the production timing profile.
func DefaultTiming() Timing {
	return Timing{
		TTL:               70 * time.Second,
		HeartbeatInterval: 25 * time.Second,
		HideDelay:         65 * time.Second,
		DedupWindow:       2 * time.Minute,
		DedupCapacity:     256,
		EventRetention:    10 * time.Minute,
	}
}
