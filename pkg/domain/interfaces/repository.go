package interfaces

// Repository defines the interface to the realtime/storage backend. All
// implementations (Firestore, Redis, in-memory) provide both point-in-time
// reads and standing change subscriptions.
type Repository interface {
	Presence() PresenceRepository
	Attention() AttentionRepository

	Close() error
}
