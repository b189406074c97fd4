package identity

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"fmt"
)

// devSeedPrefix namespaces development seeds so they never collide with
// seeds derived for other purposes.
const devSeedPrefix = "satauth:dev-identity:"

// DefaultDevIdentifier is used when a development sign-in names no identifier.
const DefaultDevIdentifier = "dev"

// Ed25519Identity is a root identity backed by an in-memory ed25519 key.
type Ed25519Identity struct {
	priv ed25519.PrivateKey
	der  []byte
}

// GenerateEd25519 creates a random ed25519 identity.
func GenerateEd25519() (*Ed25519Identity, error) {
	var seed [ed25519.SeedSize]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return nil, fmt.Errorf("identity: generate seed: %w", err)
	}
	return Ed25519FromSeed(seed)
}

// Ed25519FromSeed derives an identity deterministically from a 32-byte seed.
func Ed25519FromSeed(seed [ed25519.SeedSize]byte) (*Ed25519Identity, error) {
	priv := ed25519.NewKeyFromSeed(seed[:])
	der, err := x509.MarshalPKIXPublicKey(priv.Public())
	if err != nil {
		return nil, fmt.Errorf("identity: encode public key: %w", err)
	}
	return &Ed25519Identity{priv: priv, der: der}, nil
}

// DevIdentity derives a deterministic identity from identifier.
//
// The seed is a plain hash of a public string: anyone knowing the identifier
// can sign as this identity. Only use it against a local container.
func DevIdentity(identifier string) (*Ed25519Identity, error) {
	if identifier == "" {
		identifier = DefaultDevIdentifier
	}
	return Ed25519FromSeed(sha256.Sum256([]byte(devSeedPrefix + identifier)))
}

// Principal returns the self-authenticating principal of the key.
func (e *Ed25519Identity) Principal() Principal {
	return SelfAuthenticating(e.der)
}

// PublicKey returns the DER encoded public key.
func (e *Ed25519Identity) PublicKey() []byte {
	return e.der
}

// Sign signs msg with the private key.
func (e *Ed25519Identity) Sign(_ context.Context, msg []byte) ([]byte, error) {
	return ed25519.Sign(e.priv, msg), nil
}

// Ensure Ed25519Identity implements Identity
var _ Identity = (*Ed25519Identity)(nil)
