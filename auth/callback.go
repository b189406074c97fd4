package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"golang.org/x/oauth2"

	"github.com/jonwraymond/satauth/agent"
	"github.com/jonwraymond/satauth/identity"
	"github.com/jonwraymond/satauth/storage"
	"github.com/jonwraymond/satauth/user"
)

// OpenIDRequest asks the satellite to exchange a validated id token for a
// delegation to the session key.
type OpenIDRequest struct {
	JWT        string        `json:"jwt"`
	SessionKey []byte        `json:"session_key"`
	Salt       []byte        `json:"salt"`
	Provider   user.Provider `json:"provider"`
}

// OpenIDAuthenticator exchanges id tokens for delegation chains.
//
// Contract:
//   - Context: implementations must honor cancellation.
//   - Errors: a rejected token is returned as an error; a nil chain with a
//     nil error is never returned.
type OpenIDAuthenticator interface {
	Authenticate(ctx context.Context, req OpenIDRequest) (*identity.DelegationChain, error)
}

// ActorOpenIDAuthenticator authenticates through the satellite's
// authenticate method.
type ActorOpenIDAuthenticator struct {
	caller agent.Caller
}

// NewActorOpenIDAuthenticator creates an authenticator calling c.
func NewActorOpenIDAuthenticator(c agent.Caller) *ActorOpenIDAuthenticator {
	return &ActorOpenIDAuthenticator{caller: c}
}

type authenticateReply struct {
	Delegation *identity.DelegationChain `json:"delegation"`
}

// Authenticate calls authenticate with req.
func (a *ActorOpenIDAuthenticator) Authenticate(ctx context.Context, req OpenIDRequest) (*identity.DelegationChain, error) {
	var reply authenticateReply
	if err := a.caller.Call(ctx, "authenticate", req, &reply); err != nil {
		return nil, err
	}
	if reply.Delegation == nil || len(reply.Delegation.Delegations) == 0 {
		return nil, identity.ErrEmptyChain
	}
	return reply.Delegation, nil
}

// CallbackConfig holds what HandleRedirectCallback needs beyond Deps.
type CallbackConfig struct {
	// Authenticator exchanges the id token for a delegation. Required.
	Authenticator OpenIDAuthenticator

	// Keys verifies id token signatures. Nil leaves signature checks to
	// the satellite.
	Keys KeyProvider

	// Issuers overrides the accepted issuers. Google tokens default to
	// GoogleIssuers.
	Issuers []string

	// HTTPClient is used for the code exchange.
	HTTPClient *http.Client
}

// HandleRedirectCallback completes a Google or GitHub sign-in from the
// query parameters of the redirect back to the application.
//
// The persisted redirect context is consumed whatever the outcome.
func HandleRedirectCallback(ctx context.Context, deps *Deps, params url.Values, cfg CallbackConfig) error {
	if cfg.Authenticator == nil {
		return fmt.Errorf("%w: openid authenticator", ErrMissingDependency)
	}

	type authorized struct {
		id       identity.Identity
		provider user.Provider
		profile  map[string]any
	}
	res, err := runStep(ctx, deps.Progress, AuthorizingWithProvider, func(ctx context.Context) (authorized, error) {
		if _, err := deps.client(); err != nil {
			return authorized{}, err
		}
		s := deps.Clients.Storage()
		rc, err := loadRedirectContext(ctx, s)
		if err != nil {
			return authorized{}, err
		}
		defer func() { _ = s.Remove(context.WithoutCancel(ctx), storage.KeyRedirectContext) }()

		if params.Get("state") != rc.State {
			return authorized{}, fmt.Errorf("%w: state mismatch", ErrInvalidRedirectState)
		}
		if code := params.Get("error"); code != "" {
			if code == "access_denied" {
				return authorized{}, fmt.Errorf("%w: %s", ErrUserInterrupt, code)
			}
			return authorized{}, fmt.Errorf("%w: %s: %s", ErrSignIn, code, params.Get("error_description"))
		}

		key, err := identity.SessionKeyFromBinary(rc.SessionKey)
		if err != nil {
			return authorized{}, fmt.Errorf("%w: %v", ErrInvalidRedirectState, err)
		}

		raw, err := idToken(ctx, rc, params, cfg.HTTPClient)
		if err != nil {
			return authorized{}, err
		}

		issuers := cfg.Issuers
		if len(issuers) == 0 && rc.Provider == user.Google {
			issuers = GoogleIssuers
		}
		v := TokenValidator{Keys: cfg.Keys, Audience: rc.ClientID, Issuers: issuers, Now: deps.Now}
		claims, err := v.Validate(ctx, raw, Nonce(rc.Salt, key.Principal()))
		if err != nil {
			return authorized{}, err
		}

		chain, err := cfg.Authenticator.Authenticate(ctx, OpenIDRequest{
			JWT:        raw,
			SessionKey: key.PublicKey(),
			Salt:       rc.Salt,
			Provider:   rc.Provider,
		})
		if err != nil {
			return authorized{}, interrupted(err)
		}

		id, err := finalizeSession(ctx, deps, &identity.Session{Key: key, Chain: chain})
		if err != nil {
			return authorized{}, err
		}
		return authorized{id: id, provider: rc.Provider, profile: claims.Profile()}, nil
	})
	if err != nil {
		return err
	}

	_, err = runStep(ctx, deps.Progress, CreatingOrRetrievingUser, func(ctx context.Context) (*user.User, error) {
		return initUser(ctx, deps, res.id, res.provider, res.profile)
	})
	return err
}

// idToken returns the id token carried by the callback, exchanging the
// authorization code when the provider did not return one directly.
func idToken(ctx context.Context, rc *RedirectContext, params url.Values, client *http.Client) (string, error) {
	if raw := params.Get("id_token"); raw != "" {
		return raw, nil
	}
	code := params.Get("code")
	if code == "" {
		return "", fmt.Errorf("%w: neither id_token nor code returned", ErrSignIn)
	}

	if client != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, client)
	}
	cfg := oauthConfig(rc.Provider, rc.ClientID, rc.RedirectURL, rc.AuthURL, nil)
	tok, err := cfg.Exchange(ctx, code, oauth2.VerifierOption(rc.Verifier))
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.ErrorCode == "access_denied" {
			return "", fmt.Errorf("%w: %v", ErrUserInterrupt, err)
		}
		return "", fmt.Errorf("%w: code exchange: %w", ErrSignIn, err)
	}
	raw, _ := tok.Extra("id_token").(string)
	if raw == "" {
		return "", fmt.Errorf("%w: token response has no id_token", ErrSignIn)
	}
	return raw, nil
}

// Ensure ActorOpenIDAuthenticator implements OpenIDAuthenticator
var _ OpenIDAuthenticator = (*ActorOpenIDAuthenticator)(nil)
