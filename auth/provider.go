package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonwraymond/satauth/authclient"
	"github.com/jonwraymond/satauth/identity"
	"github.com/jonwraymond/satauth/observe"
	"github.com/jonwraymond/satauth/passkey"
	"github.com/jonwraymond/satauth/user"
)

// Provider signs users in with one identity provider.
//
// Contract:
//   - Context: SignIn waits on the user and must honor cancellation.
//   - Errors: a user cancellation matches ErrUserInterrupt; no session is
//     persisted and the user store is left unchanged on failure.
type Provider interface {
	ID() user.Provider
	SignIn(ctx context.Context, deps *Deps, sc SignInContext) error
}

// SignUpper is implemented by providers that can register a new user.
type SignUpper interface {
	SignUp(ctx context.Context, deps *Deps, sc SignInContext) error
}

// SignInContext is the policy of a single sign-in or sign-up call.
type SignInContext struct {
	// GuardNavigation asks the caller to deter page navigation while the
	// call runs.
	GuardNavigation bool

	// Validate adds caller checks to the built-in option checks.
	Validate Validator
}

// Deps are the collaborators providers use.
type Deps struct {
	Clients   *authclient.Store
	Users     user.Service
	AuthStore *user.Store
	Progress  ProgressFunc
	Env       Environment

	// Redirector is required by the Google and GitHub providers.
	Redirector Redirector

	// Passkeys and KeyStore are required by the passkey provider.
	Passkeys passkey.Authenticator
	KeyStore passkey.KeyStore

	// Signer is required by the Ethereum provider.
	Signer EthereumSigner

	Logger observe.Logger

	// Now is the clock. Default: time.Now
	Now func() time.Time
}

func (d *Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d *Deps) logger() observe.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return observe.NopLogger()
}

// client returns the current session client or ErrInitNotReady.
func (d *Deps) client() (*authclient.Client, error) {
	if d.Clients == nil {
		return nil, ErrInitNotReady
	}
	c := d.Clients.AuthClient()
	if c == nil {
		return nil, ErrInitNotReady
	}
	return c, nil
}

// NewProvider returns the provider for opts.
func NewProvider(opts Options, env Environment) (Provider, error) {
	switch o := opts.(type) {
	case InternetIdentityOptions:
		return newInternetIdentity(o, env), nil
	case NFIDOptions:
		return newNFID(o, env), nil
	case PasskeyOptions:
		return &PasskeyProvider{opts: o}, nil
	case GoogleOptions:
		return newGoogle(o, env)
	case GitHubOptions:
		return newGitHub(o, env)
	case DevOptions:
		return &DevProvider{opts: o}, nil
	case EthereumOptions:
		return &EthereumProvider{opts: o}, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedProvider, opts)
	}
}

// SignIn validates opts and signs in with the matching provider.
func SignIn(ctx context.Context, deps *Deps, opts Options, sc SignInContext) error {
	if err := Validate(opts, sc.Validate); err != nil {
		return err
	}
	p, err := NewProvider(opts, deps.Env)
	if err != nil {
		return err
	}
	return p.SignIn(ctx, deps, sc)
}

// SignUp validates opts and registers a user with the matching provider.
// Providers without sign-up return ErrUnsupportedProvider.
func SignUp(ctx context.Context, deps *Deps, opts Options, sc SignInContext) error {
	if err := Validate(opts, sc.Validate); err != nil {
		return err
	}
	p, err := NewProvider(opts, deps.Env)
	if err != nil {
		return err
	}
	s, ok := p.(SignUpper)
	if !ok {
		return fmt.Errorf("%w: %s does not support sign-up", ErrUnsupportedProvider, p.ID())
	}
	return s.SignUp(ctx, deps, sc)
}

// interrupted maps provider cancellations to ErrUserInterrupt and any other
// failure to ErrSignIn, keeping the cause.
func interrupted(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrUserInterrupt):
		return err
	case errors.Is(err, authclient.ErrUserInterrupt),
		errors.Is(err, passkey.ErrCeremonyAborted),
		errors.Is(err, ErrSignerRejected):
		return fmt.Errorf("%w: %w", ErrUserInterrupt, err)
	case errors.Is(err, ErrSignIn):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrSignIn, err)
	}
}

// initUser loads or creates the user of id and publishes it.
func initUser(ctx context.Context, deps *Deps, id identity.Identity, provider user.Provider, data map[string]any) (*user.User, error) {
	if deps.Users == nil {
		return nil, fmt.Errorf("%w: user service", ErrMissingDependency)
	}
	if identity.IsAnonymous(id) {
		return nil, ErrNoIdentity
	}
	u, err := user.Initialize(ctx, deps.Users, id.Principal(), provider, data)
	if err != nil {
		return nil, err
	}
	if deps.AuthStore != nil {
		deps.AuthStore.Set(u)
	}
	deps.logger().Info(ctx, "user signed in", observe.F("provider", string(provider)), observe.F("principal", id.Principal().Text()))
	return u, nil
}

// buildSession derives a session delegation from root.
func buildSession(ctx context.Context, deps *Deps, root identity.Identity, ttl time.Duration) (*identity.Session, error) {
	opts := []identity.SessionOption{identity.WithClock(deps.now)}
	if ttl > 0 {
		opts = append(opts, identity.WithMaxTimeToLive(ttl))
	}
	return identity.BuildSessionDelegation(ctx, root, opts...)
}

// finalizeSession persists session and rebuilds the session client from
// storage so it signs with the delegated identity.
func finalizeSession(ctx context.Context, deps *Deps, session *identity.Session) (identity.Identity, error) {
	if err := deps.Clients.SetAuthClientStorage(ctx, session.Chain, session.Key); err != nil {
		return nil, err
	}
	c, err := deps.Clients.CreateAuthClient(ctx)
	if err != nil {
		return nil, err
	}
	if !c.IsAuthenticated() {
		return nil, fmt.Errorf("%w: persisted session was not accepted", ErrSignIn)
	}
	return c.Identity(), nil
}

// localSignIn runs the steps shared by providers deriving their root
// identity locally: authorize (derive, delegate, persist) then load the user.
func localSignIn(ctx context.Context, deps *Deps, provider user.Provider, ttl time.Duration, derive func(ctx context.Context) (identity.Identity, map[string]any, error)) error {
	type authorized struct {
		id   identity.Identity
		data map[string]any
	}
	res, err := runStep(ctx, deps.Progress, AuthorizingWithProvider, func(ctx context.Context) (authorized, error) {
		if _, err := deps.client(); err != nil {
			return authorized{}, err
		}
		root, data, err := derive(ctx)
		if err != nil {
			return authorized{}, err
		}
		session, err := buildSession(ctx, deps, root, ttl)
		if err != nil {
			return authorized{}, interrupted(err)
		}
		id, err := finalizeSession(ctx, deps, session)
		if err != nil {
			return authorized{}, err
		}
		return authorized{id: id, data: data}, nil
	})
	if err != nil {
		return err
	}

	_, err = runStep(ctx, deps.Progress, CreatingOrRetrievingUser, func(ctx context.Context) (*user.User, error) {
		return initUser(ctx, deps, res.id, provider, res.data)
	})
	return err
}
