package types

import (
	"regexp"

	"github.com/m-mizutani/goerr/v2"
)

// UserID represents an opaque stable identifier for a user known to the
// presence subsystem. The backend issues these; beacon never parses them
// beyond validation.
type UserID string

// idPattern permits printable identifier characters without whitespace
var idPattern = regexp.MustCompile(`^[0-9A-Za-z][0-9A-Za-z._:-]*$`)

// Validate checks if the UserID is valid
func (u UserID) Validate() error {
	if u == "" {
		return goerr.Wrap(ErrInvalidArgument, "user ID cannot be empty")
	}
	if !idPattern.MatchString(string(u)) {
		return goerr.Wrap(ErrInvalidArgument, "user ID contains invalid characters", goerr.V("id", u))
	}
	return nil
}

// String returns the string representation of UserID
func (u UserID) String() string {
	return string(u)
}
