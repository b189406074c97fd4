package user

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jonwraymond/satauth/identity"
)

// Provider tags the identity provider a user signed up with.
type Provider string

const (
	InternetIdentity Provider = "internet_identity"
	NFID             Provider = "nfid"
	WebAuthn         Provider = "webauthn"
	Google           Provider = "google"
	GitHub           Provider = "github"
	Dev              Provider = "dev"
	Ethereum         Provider = "ethereum"
)

// Providers lists every known provider tag.
var Providers = []Provider{InternetIdentity, NFID, WebAuthn, Google, GitHub, Dev, Ethereum}

// User is the backend document of a principal.
type User struct {
	Key       string         `json:"key"`
	Owner     string         `json:"owner"`
	Provider  Provider       `json:"provider,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Version   uint64         `json:"version,omitempty"`
}

// CannotUpdateCode is the backend error returned when a user document may
// only be updated by a privileged caller.
const CannotUpdateCode = "error_user_cannot_update"

// ErrCannotUpdate matches CannotUpdateCode.
var ErrCannotUpdate = errors.New(CannotUpdateCode)

// IsCannotUpdate reports whether err is ErrCannotUpdate or a remote error
// carrying its code.
func IsCannotUpdate(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrCannotUpdate) || strings.Contains(err.Error(), CannotUpdateCode)
}

// Service reads and creates user documents.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use.
//   - Context: calls are remote and must honor cancellation.
//   - Errors: GetUserDoc returns (nil, nil) when no document exists.
type Service interface {
	GetUserDoc(ctx context.Context, principal identity.Principal) (*User, error)
	CreateUserDoc(ctx context.Context, principal identity.Principal, provider Provider, data map[string]any) (*User, error)
}

// Initialize returns the user document of principal, creating it when
// absent.
//
// When creation fails with ErrCannotUpdate, another session may have
// created the document first: it is read once more and returned if found.
// Any other error is returned unchanged.
func Initialize(ctx context.Context, svc Service, principal identity.Principal, provider Provider, data map[string]any) (*User, error) {
	u, err := svc.GetUserDoc(ctx, principal)
	if err != nil {
		return nil, err
	}
	if u != nil {
		return u, nil
	}

	u, err = svc.CreateUserDoc(ctx, principal, provider, data)
	if err == nil {
		return u, nil
	}
	if !IsCannotUpdate(err) {
		return nil, err
	}

	existing, readErr := svc.GetUserDoc(ctx, principal)
	if readErr != nil || existing == nil {
		return nil, err
	}
	return existing, nil
}
