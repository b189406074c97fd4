package authclient

import "errors"

// Sentinel errors for session client operations.
var (
	// ErrUserInterrupt is returned by an Opener when the user closed the
	// identity provider window before authorizing.
	ErrUserInterrupt = errors.New("authclient: user interrupted authorization")

	// ErrNoOpener is returned by Login when the client has no Opener.
	ErrNoOpener = errors.New("authclient: no identity provider opener configured")

	// ErrNoSessionKey is returned by Login on a client opened read-only
	// without a usable session.
	ErrNoSessionKey = errors.New("authclient: no session key")

	// ErrEmptyDelegation is returned when an identity provider answers
	// without any delegation.
	ErrEmptyDelegation = errors.New("authclient: identity provider returned no delegation")
)
