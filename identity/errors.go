package identity

import "errors"

// Sentinel errors for identity operations.
var (
	ErrInvalidPrincipal   = errors.New("identity: invalid principal")
	ErrChecksumMismatch   = errors.New("identity: principal checksum mismatch")
	ErrAnonymousSign      = errors.New("identity: anonymous identity cannot sign")
	ErrUnsupportedKey     = errors.New("identity: unsupported public key")
	ErrInvalidSignature   = errors.New("identity: invalid signature")
	ErrEmptyChain         = errors.New("identity: delegation chain is empty")
	ErrDelegationExpired  = errors.New("identity: delegation expired")
	ErrTargetNotAllowed   = errors.New("identity: target not allowed by delegation")
	ErrKeyMismatch        = errors.New("identity: session key does not match delegation")
	ErrMalformedChain     = errors.New("identity: malformed delegation chain")
	ErrMalformedKey       = errors.New("identity: malformed session key")
	ErrNonPositiveTTL     = errors.New("identity: time to live must be positive")
	ErrSessionKeyReleased = errors.New("identity: session key released")
)
