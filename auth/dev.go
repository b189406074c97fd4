package auth

import (
	"context"

	"github.com/jonwraymond/satauth/identity"
	"github.com/jonwraymond/satauth/user"
)

// DevProvider signs in with a deterministic identity derived from an
// identifier. Anyone knowing the identifier can sign as it, so the
// provider refuses to run outside a local container in development.
type DevProvider struct {
	opts DevOptions
}

// ID returns user.Dev.
func (p *DevProvider) ID() user.Provider { return user.Dev }

// SignIn signs in as the identity of the configured identifier.
func (p *DevProvider) SignIn(ctx context.Context, deps *Deps, _ SignInContext) error {
	return localSignIn(ctx, deps, user.Dev, p.opts.MaxTimeToLive, func(context.Context) (identity.Identity, map[string]any, error) {
		if !deps.Env.Dev || !deps.Env.Local() {
			return nil, nil, ErrDevOnly
		}
		id, err := identity.DevIdentity(p.opts.Identifier)
		if err != nil {
			return nil, nil, err
		}
		identifier := p.opts.Identifier
		if identifier == "" {
			identifier = identity.DefaultDevIdentifier
		}
		return id, map[string]any{"identifier": identifier}, nil
	})
}

// SignUp is SignIn: the first sign-in of an identifier creates its user.
func (p *DevProvider) SignUp(ctx context.Context, deps *Deps, sc SignInContext) error {
	return p.SignIn(ctx, deps, sc)
}

// Ensure DevProvider implements Provider and SignUpper
var (
	_ Provider  = (*DevProvider)(nil)
	_ SignUpper = (*DevProvider)(nil)
)
