package identity

import (
	"context"
	"crypto/ed25519"
	"crypto/x509"
	"fmt"
)

// Identity is a principal able to sign outgoing calls.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: Sign may suspend on user interaction (passkeys) and must honor cancellation.
// - Errors: Sign errors are returned unmodified to the caller.
type Identity interface {
	// Principal returns the principal this identity acts as.
	Principal() Principal

	// PublicKey returns the DER encoded public key, or nil for anonymous.
	PublicKey() []byte

	// Sign signs msg.
	Sign(ctx context.Context, msg []byte) ([]byte, error)
}

// AnonymousIdentity is the identity of unauthenticated callers.
type AnonymousIdentity struct{}

// Principal returns the anonymous principal.
func (AnonymousIdentity) Principal() Principal { return AnonymousPrincipal() }

// PublicKey returns nil.
func (AnonymousIdentity) PublicKey() []byte { return nil }

// Sign always fails: anonymous calls are sent unsigned.
func (AnonymousIdentity) Sign(context.Context, []byte) ([]byte, error) {
	return nil, ErrAnonymousSign
}

// IsAnonymous reports whether id is nil or acts as the anonymous principal.
func IsAnonymous(id Identity) bool {
	return id == nil || id.Principal().IsAnonymous()
}

// VerifySignature checks sig over msg with a DER encoded public key.
// Only ed25519 keys are supported; other key types return ErrUnsupportedKey.
func VerifySignature(derPublicKey, msg, sig []byte) error {
	pub, err := x509.ParsePKIXPublicKey(derPublicKey)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupportedKey, err)
	}
	edPub, ok := pub.(ed25519.PublicKey)
	if !ok {
		return ErrUnsupportedKey
	}
	if !ed25519.Verify(edPub, msg, sig) {
		return ErrInvalidSignature
	}
	return nil
}

// Ensure AnonymousIdentity implements Identity
var _ Identity = AnonymousIdentity{}
