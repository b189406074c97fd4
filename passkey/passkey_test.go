package passkey

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/json"
	"errors"
	"testing"

	"github.com/jonwraymond/satauth/identity"
)

func authData(n int, aaguid []byte) []byte {
	b := make([]byte, n)
	copy(b[aaguidOffset:], aaguid)
	return b
}

func TestExtractAAGUID(t *testing.T) {
	aaguid := []byte{0xea, 0x9b, 0x8d, 0x66, 0x4d, 0x01, 0x1d, 0x21, 0x3c, 0xe4, 0xb6, 0xb4, 0x8c, 0xb5, 0x75, 0xd4}
	want := "ea9b8d66-4d01-1d21-3ce4-b6b48cb575d4"

	tests := []struct {
		name    string
		data    []byte
		want    string
		wantErr error
	}{
		{"empty", nil, "", ErrInvalidAuthData},
		{"shorter than 37", make([]byte, 36), "", ErrInvalidAuthData},
		{"37 bytes", make([]byte, 37), "", ErrInvalidAuthData},
		{"52 bytes", make([]byte, 52), "", ErrInvalidAuthData},
		{"zero aaguid", make([]byte, 53), "", ErrUnknownProvider},
		{"exact length", authData(53, aaguid), want, nil},
		{"with credential data", authData(200, aaguid), want, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractAAGUID(tt.data)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ExtractAAGUID() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ExtractAAGUID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestProviderForAAGUID(t *testing.T) {
	info, ok := ProviderForAAGUID("FBFC3007-154E-4ECC-8C0B-6E020557D7BD")
	if !ok || info.Name != "iCloud Keychain" {
		t.Errorf("ProviderForAAGUID() = %+v, %v", info, ok)
	}
	if _, ok := ProviderForAAGUID("00000000-0000-0000-0000-000000000001"); ok {
		t.Error("unexpected provider for unknown aaguid")
	}
}

// fakeAuthenticator holds one P-256 credential.
type fakeAuthenticator struct {
	key     *ecdsa.PrivateKey
	credID  []byte
	abort   bool
	gets    []GetOptions
	creates []CreateOptions
}

func newFakeAuthenticator(t *testing.T) *fakeAuthenticator {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	return &fakeAuthenticator{key: key, credID: []byte("cred-1")}
}

func (f *fakeAuthenticator) der(t *testing.T) []byte {
	t.Helper()
	der, err := x509.MarshalPKIXPublicKey(&f.key.PublicKey)
	if err != nil {
		t.Fatalf("MarshalPKIXPublicKey() error = %v", err)
	}
	return der
}

func (f *fakeAuthenticator) Create(_ context.Context, opts CreateOptions) (*Attestation, error) {
	f.creates = append(f.creates, opts)
	if f.abort {
		return nil, ErrCeremonyAborted
	}
	der, _ := x509.MarshalPKIXPublicKey(&f.key.PublicKey)
	return &Attestation{CredentialID: f.credID, PublicKey: der, AuthenticatorData: make([]byte, 53)}, nil
}

func (f *fakeAuthenticator) Get(_ context.Context, opts GetOptions) (*Assertion, error) {
	f.gets = append(f.gets, opts)
	if f.abort {
		return nil, ErrCeremonyAborted
	}
	clientData, _ := json.Marshal(map[string]any{"type": "webauthn.get", "challenge": opts.Challenge})
	digest := sha256.Sum256(clientData)
	sig, err := ecdsa.SignASN1(rand.Reader, f.key, digest[:])
	if err != nil {
		return nil, err
	}
	return &Assertion{CredentialID: f.credID, AuthenticatorData: make([]byte, 37), ClientDataJSON: clientData, Signature: sig}, nil
}

func TestIdentity_Sign(t *testing.T) {
	authn := newFakeAuthenticator(t)
	der := authn.der(t)
	id := NewIdentity(authn.credID, der, authn, "example.org")

	if !id.Principal().Equal(identity.SelfAuthenticating(der)) {
		t.Error("Principal() should derive from the credential public key")
	}

	out, err := id.Sign(context.Background(), []byte("challenge"))
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	var sig Signature
	if err := json.Unmarshal(out, &sig); err != nil {
		t.Fatalf("Sign() output is not a signature envelope: %v", err)
	}
	digest := sha256.Sum256(sig.ClientDataJSON)
	if !ecdsa.VerifyASN1(&authn.key.PublicKey, digest[:], sig.Signature) {
		t.Error("signature does not verify")
	}

	got := authn.gets[0]
	if !bytes.Equal(got.Challenge, []byte("challenge")) || len(got.CredentialIDs) != 1 || got.RelyingParty != "example.org" {
		t.Errorf("assertion options = %+v", got)
	}
}

func TestIdentity_SignAborted(t *testing.T) {
	authn := newFakeAuthenticator(t)
	authn.abort = true
	id := NewIdentity(authn.credID, authn.der(t), authn, "")

	if _, err := id.Sign(context.Background(), []byte("x")); !errors.Is(err, ErrCeremonyAborted) {
		t.Errorf("Sign() error = %v, want ErrCeremonyAborted", err)
	}
}

func TestIdentity_BuildsSessionDelegation(t *testing.T) {
	authn := newFakeAuthenticator(t)
	id := NewIdentity(authn.credID, authn.der(t), authn, "")

	session, err := identity.BuildSessionDelegation(context.Background(), id)
	if err != nil {
		t.Fatalf("BuildSessionDelegation() error = %v", err)
	}
	if !session.Chain.Principal().Equal(id.Principal()) {
		t.Error("chain root should be the passkey principal")
	}
	if err := identity.ValidateDelegation(session.Chain, session.Chain.Expiration().Add(-1)); err != nil {
		t.Errorf("ValidateDelegation() error = %v", err)
	}
}

func TestRetrieveAndCreateCredential(t *testing.T) {
	authn := newFakeAuthenticator(t)
	ctx := context.Background()

	a, err := RetrieveCredential(ctx, authn, "example.org")
	if err != nil {
		t.Fatalf("RetrieveCredential() error = %v", err)
	}
	if !bytes.Equal(a.CredentialID, authn.credID) {
		t.Errorf("CredentialID = %q", a.CredentialID)
	}
	if len(authn.gets[0].Challenge) != challengeSize || len(authn.gets[0].CredentialIDs) != 0 {
		t.Errorf("discovery options = %+v", authn.gets[0])
	}

	att, err := CreateCredential(ctx, authn, CreateOptions{UserName: "alice"})
	if err != nil {
		t.Fatalf("CreateCredential() error = %v", err)
	}
	if len(att.PublicKey) == 0 {
		t.Error("attestation has no public key")
	}
	if opts := authn.creates[0]; len(opts.Challenge) != challengeSize || len(opts.UserID) != 16 {
		t.Errorf("create options = %+v", opts)
	}

	authn.abort = true
	if _, err := CreateCredential(ctx, authn, CreateOptions{}); !errors.Is(err, ErrCeremonyAborted) {
		t.Errorf("CreateCredential() error = %v, want ErrCeremonyAborted", err)
	}
}
