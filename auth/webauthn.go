package auth

import (
	"context"
	"crypto/x509"
	"encoding/base64"
	"fmt"

	"github.com/jonwraymond/satauth/identity"
	"github.com/jonwraymond/satauth/observe"
	"github.com/jonwraymond/satauth/passkey"
	"github.com/jonwraymond/satauth/user"
)

// PasskeyProvider signs in and signs up with a WebAuthn credential.
type PasskeyProvider struct {
	opts PasskeyOptions
}

// ID returns user.WebAuthn.
func (p *PasskeyProvider) ID() user.Provider { return user.WebAuthn }

func (p *PasskeyProvider) check(deps *Deps) error {
	if _, err := deps.client(); err != nil {
		return err
	}
	if deps.Passkeys == nil {
		return fmt.Errorf("%w: passkey authenticator", ErrMissingDependency)
	}
	if deps.KeyStore == nil {
		return fmt.Errorf("%w: passkey key store", ErrMissingDependency)
	}
	return nil
}

// SignIn lets the user pick a passkey, looks up its public key and signs a
// session delegation with it.
func (p *PasskeyProvider) SignIn(ctx context.Context, deps *Deps, _ SignInContext) error {
	assertion, err := runStep(ctx, deps.Progress, RequestingUserCredential, func(ctx context.Context) (*passkey.Assertion, error) {
		if err := p.check(deps); err != nil {
			return nil, err
		}
		a, err := passkey.RetrieveCredential(ctx, deps.Passkeys, p.opts.RelyingParty)
		return a, interrupted(err)
	})
	if err != nil {
		return err
	}

	root, err := runStep(ctx, deps.Progress, FinalizingCredential, func(ctx context.Context) (*passkey.Identity, error) {
		pub, err := deps.KeyStore.GetPublicKey(ctx, assertion.CredentialID)
		if err != nil {
			return nil, err
		}
		if len(pub) == 0 {
			return nil, ErrPublicKeyMissing
		}
		return passkey.NewIdentity(assertion.CredentialID, pub, deps.Passkeys, p.opts.RelyingParty), nil
	})
	if err != nil {
		return err
	}

	id, err := p.establish(ctx, deps, root)
	if err != nil {
		return err
	}

	_, err = runStep(ctx, deps.Progress, RetrievingUser, func(ctx context.Context) (*user.User, error) {
		return initUser(ctx, deps, id, user.WebAuthn, nil)
	})
	return err
}

type credential struct {
	att    *passkey.Attestation
	aaguid string
}

// SignUp creates a passkey, signs a session delegation with it and
// registers the user.
func (p *PasskeyProvider) SignUp(ctx context.Context, deps *Deps, _ SignInContext) error {
	att, err := runStep(ctx, deps.Progress, CreatingUserCredential, func(ctx context.Context) (*passkey.Attestation, error) {
		if err := p.check(deps); err != nil {
			return nil, err
		}
		a, err := passkey.CreateCredential(ctx, deps.Passkeys, passkey.CreateOptions{
			RelyingParty: p.opts.RelyingParty,
			UserName:     p.opts.UserName,
			DisplayName:  p.opts.DisplayName,
		})
		return a, interrupted(err)
	})
	if err != nil {
		return err
	}

	cred, err := runStep(ctx, deps.Progress, ValidatingUserCredential, func(ctx context.Context) (credential, error) {
		if _, err := x509.ParsePKIXPublicKey(att.PublicKey); err != nil {
			return credential{}, fmt.Errorf("%w: credential public key: %w", ErrSignIn, err)
		}
		// The AAGUID only names the credential's provider.
		aaguid, err := passkey.ExtractAAGUID(att.AuthenticatorData)
		if err != nil {
			deps.logger().Debug(ctx, "passkey provider unknown", observe.F("error", err.Error()))
			aaguid = ""
		}
		return credential{att: att, aaguid: aaguid}, nil
	})
	if err != nil {
		return err
	}

	root, err := runStep(ctx, deps.Progress, FinalizingCredential, func(ctx context.Context) (*passkey.Identity, error) {
		if reg, ok := deps.KeyStore.(passkey.KeyRegistry); ok {
			if err := reg.RegisterPublicKey(ctx, att.CredentialID, att.PublicKey); err != nil {
				return nil, err
			}
		}
		return passkey.NewIdentity(att.CredentialID, att.PublicKey, deps.Passkeys, p.opts.RelyingParty), nil
	})
	if err != nil {
		return err
	}

	id, err := p.establish(ctx, deps, root)
	if err != nil {
		return err
	}

	_, err = runStep(ctx, deps.Progress, RegisteringUser, func(ctx context.Context) (*user.User, error) {
		data := map[string]any{
			"credential_id": base64.RawURLEncoding.EncodeToString(att.CredentialID),
		}
		if cred.aaguid != "" {
			data["aaguid"] = cred.aaguid
			if info, ok := passkey.ProviderForAAGUID(cred.aaguid); ok {
				data["provider_name"] = info.Name
			}
		}
		return initUser(ctx, deps, id, user.WebAuthn, data)
	})
	return err
}

// establish signs a session delegation with the passkey, then persists it.
func (p *PasskeyProvider) establish(ctx context.Context, deps *Deps, root *passkey.Identity) (identity.Identity, error) {
	session, err := runStep(ctx, deps.Progress, Signing, func(ctx context.Context) (*identity.Session, error) {
		s, err := buildSession(ctx, deps, root, p.opts.MaxTimeToLive)
		return s, interrupted(err)
	})
	if err != nil {
		return nil, err
	}
	return runStep(ctx, deps.Progress, FinalizingSession, func(ctx context.Context) (identity.Identity, error) {
		return finalizeSession(ctx, deps, session)
	})
}

// Ensure PasskeyProvider implements Provider and SignUpper
var (
	_ Provider  = (*PasskeyProvider)(nil)
	_ SignUpper = (*PasskeyProvider)(nil)
)
