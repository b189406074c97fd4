package passkey

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"

	"github.com/jonwraymond/satauth/identity"
)

// challengeSize is the length of random ceremony challenges.
const challengeSize = 32

// Signature is what a passkey Identity returns from Sign: the raw pieces
// of the assertion, enough for the backend to verify it.
type Signature struct {
	AuthenticatorData []byte `json:"authenticator_data"`
	ClientDataJSON    []byte `json:"client_data_json"`
	Signature         []byte `json:"signature"`
}

// Identity is a root identity whose key lives in a passkey. Every Sign
// runs an assertion ceremony.
type Identity struct {
	credentialID []byte
	der          []byte
	authn        Authenticator
	relyingParty string
}

// NewIdentity binds a credential and its DER public key to authn.
func NewIdentity(credentialID, publicKey []byte, authn Authenticator, relyingParty string) *Identity {
	return &Identity{
		credentialID: append([]byte(nil), credentialID...),
		der:          append([]byte(nil), publicKey...),
		authn:        authn,
		relyingParty: relyingParty,
	}
}

// CredentialID returns the id of the underlying credential.
func (i *Identity) CredentialID() []byte { return i.credentialID }

// Principal returns the self-authenticating principal of the credential key.
func (i *Identity) Principal() identity.Principal {
	return identity.SelfAuthenticating(i.der)
}

// PublicKey returns the DER encoded credential public key.
func (i *Identity) PublicKey() []byte { return i.der }

// Sign asks the authenticator to sign msg as a challenge and returns the
// JSON encoded Signature. ErrCeremonyAborted is returned as is.
func (i *Identity) Sign(ctx context.Context, msg []byte) ([]byte, error) {
	a, err := i.authn.Get(ctx, GetOptions{
		Challenge:     msg,
		RelyingParty:  i.relyingParty,
		CredentialIDs: [][]byte{i.credentialID},
	})
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrNoCredential
	}
	if len(a.CredentialID) > 0 && !bytes.Equal(a.CredentialID, i.credentialID) {
		return nil, ErrCredentialMismatch
	}
	return json.Marshal(Signature{
		AuthenticatorData: a.AuthenticatorData,
		ClientDataJSON:    a.ClientDataJSON,
		Signature:         a.Signature,
	})
}

// RetrieveCredential lets the user pick a passkey for relyingParty and
// returns the assertion identifying it.
func RetrieveCredential(ctx context.Context, authn Authenticator, relyingParty string) (*Assertion, error) {
	challenge, err := randomChallenge()
	if err != nil {
		return nil, err
	}
	a, err := authn.Get(ctx, GetOptions{Challenge: challenge, RelyingParty: relyingParty})
	if err != nil {
		return nil, err
	}
	if a == nil || len(a.CredentialID) == 0 {
		return nil, ErrNoCredential
	}
	return a, nil
}

// CreateCredential runs a creation ceremony, filling a random challenge and
// user id when opts leaves them empty.
func CreateCredential(ctx context.Context, authn Authenticator, opts CreateOptions) (*Attestation, error) {
	if len(opts.Challenge) == 0 {
		c, err := randomChallenge()
		if err != nil {
			return nil, err
		}
		opts.Challenge = c
	}
	if len(opts.UserID) == 0 {
		id, err := randomChallenge()
		if err != nil {
			return nil, err
		}
		opts.UserID = id[:16]
	}

	att, err := authn.Create(ctx, opts)
	if err != nil {
		return nil, err
	}
	if att == nil || len(att.CredentialID) == 0 || len(att.PublicKey) == 0 {
		return nil, ErrNoCredential
	}
	return att, nil
}

func randomChallenge() ([]byte, error) {
	b := make([]byte, challengeSize)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("passkey: challenge: %w", err)
	}
	return b, nil
}

// Ensure Identity implements identity.Identity
var _ identity.Identity = (*Identity)(nil)
