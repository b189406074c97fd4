package passkey

import (
	"context"
	"time"
)

// CreateOptions configures a credential creation ceremony.
type CreateOptions struct {
	Challenge    []byte
	RelyingParty string
	UserID       []byte
	UserName     string
	DisplayName  string
	Timeout      time.Duration
}

// Attestation is a newly created credential.
type Attestation struct {
	CredentialID []byte

	// PublicKey is the DER encoded credential public key.
	PublicKey []byte

	AuthenticatorData []byte
}

// GetOptions configures an assertion ceremony.
type GetOptions struct {
	Challenge     []byte
	RelyingParty  string
	CredentialIDs [][]byte
	Timeout       time.Duration
}

// Assertion is the authenticator's answer to a challenge.
type Assertion struct {
	CredentialID      []byte
	AuthenticatorData []byte
	ClientDataJSON    []byte
	Signature         []byte
	UserHandle        []byte
}

// Authenticator runs WebAuthn ceremonies.
//
// Contract:
//   - Context: ceremonies wait for the user and must return when ctx is done.
//   - Errors: a user cancelling the prompt must yield ErrCeremonyAborted
//     (possibly wrapped).
type Authenticator interface {
	Create(ctx context.Context, opts CreateOptions) (*Attestation, error)
	Get(ctx context.Context, opts GetOptions) (*Assertion, error)
}
