package auth

import (
	"errors"
	"strings"
)

// Sentinel errors for sign-in and sign-up.
var (
	// ErrInitNotReady is returned when no session client exists yet.
	ErrInitNotReady = errors.New("auth: session client not initialized")

	// ErrUserInterrupt is returned when the user cancels a popup, a passkey
	// prompt or a signer request.
	ErrUserInterrupt = errors.New("auth: interrupted by user")

	// ErrSignIn wraps any other provider failure.
	ErrSignIn = errors.New("auth: sign-in failed")

	ErrUnsupportedProvider  = errors.New("auth: unsupported provider")
	ErrMissingClientID      = errors.New("auth: missing client id")
	ErrPublicKeyMissing     = errors.New("auth: passkey public key missing")
	ErrNoIdentity           = errors.New("auth: no identity")
	ErrDevOnly              = errors.New("auth: dev provider requires a local container in development")
	ErrInvalidRedirectState = errors.New("auth: invalid redirect state")
	ErrMissingDependency    = errors.New("auth: missing dependency")

	// Token validation errors
	ErrTokenMalformed = errors.New("auth: id token malformed")
	ErrTokenExpired   = errors.New("auth: id token expired")
	ErrTokenInvalid   = errors.New("auth: id token invalid")
	ErrKeyNotFound    = errors.New("auth: signing key not found")
)

// SchemaValidationError lists the constraints an Options value violates.
type SchemaValidationError struct {
	Violations []string
}

func (e *SchemaValidationError) Error() string {
	return "auth: invalid options: " + strings.Join(e.Violations, "; ")
}
