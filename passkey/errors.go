package passkey

import "errors"

// Sentinel errors for passkey operations.
var (
	// ErrCeremonyAborted is returned by an Authenticator when the user
	// cancels the credential prompt.
	ErrCeremonyAborted = errors.New("passkey: ceremony aborted")

	// ErrInvalidAuthData is returned for authenticator data too short to
	// carry an AAGUID.
	ErrInvalidAuthData = errors.New("passkey: invalid authenticator data")

	// ErrUnknownProvider is returned for an all-zero AAGUID.
	ErrUnknownProvider = errors.New("passkey: unknown provider")

	ErrNoCredential       = errors.New("passkey: authenticator returned no credential")
	ErrCredentialMismatch = errors.New("passkey: assertion for another credential")
)
