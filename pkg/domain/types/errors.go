package types

import "github.com/m-mizutani/goerr/v2"

// Error taxonomy of the presence and attention subsystem. All errors returned
// by usecases wrap one of these sentinels so callers can classify with
// errors.Is without string matching.
var (
	// ErrInvalidArgument indicates caller misuse, e.g. an empty receiver ID.
	// Surfaced directly to the initiating caller.
	ErrInvalidArgument = goerr.New("invalid argument")

	// ErrReceiverOffline indicates an attention send was rejected because the
	// recipient has no active session. Semantically meaningful and
	// user-displayable.
	ErrReceiverOffline = goerr.New("receiver is offline")

	// ErrRemote indicates a transient or opaque backend failure. Swallowed
	// (logged only) on fire-and-forget paths, surfaced on user-initiated
	// operations.
	ErrRemote = goerr.New("remote operation failed")

	// ErrSubscriptionLost indicates a live channel disconnected. Never
	// surfaced to users; the TTL fallback self-heals the displayed state.
	ErrSubscriptionLost = goerr.New("subscription lost")
)
