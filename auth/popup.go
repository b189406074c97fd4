package auth

import (
	"context"
	"time"

	"github.com/jonwraymond/satauth/authclient"
	"github.com/jonwraymond/satauth/identity"
	"github.com/jonwraymond/satauth/user"
)

// Popup sizes of the identity provider windows.
const (
	InternetIdentityPopupWidth  = 576
	InternetIdentityPopupHeight = 576
	NFIDPopupWidth              = 505
	NFIDPopupHeight             = 705
)

// PopupProvider signs in through an identity provider window that returns
// a delegation for the session key of the current session client.
type PopupProvider struct {
	id    user.Provider
	login authclient.LoginOptions
}

func newInternetIdentity(o InternetIdentityOptions, env Environment) *PopupProvider {
	return &PopupProvider{
		id: user.InternetIdentity,
		login: authclient.LoginOptions{
			IdentityProviderURL:    env.InternetIdentity(o.Domain),
			MaxTimeToLive:          o.MaxTimeToLive,
			DerivationOrigin:       firstNonEmpty(o.DerivationOrigin, env.DerivationOrigin),
			AllowPinAuthentication: o.AllowPinAuthentication,
			WindowFeatures:         env.PopupFeatures(InternetIdentityPopupWidth, InternetIdentityPopupHeight),
		},
	}
}

func newNFID(o NFIDOptions, env Environment) *PopupProvider {
	return &PopupProvider{
		id: user.NFID,
		login: authclient.LoginOptions{
			IdentityProviderURL: env.NFID(o.AppName, o.LogoURL),
			MaxTimeToLive:       o.MaxTimeToLive,
			DerivationOrigin:    firstNonEmpty(o.DerivationOrigin, env.DerivationOrigin),
			WindowFeatures:      env.PopupFeatures(NFIDPopupWidth, NFIDPopupHeight),
		},
	}
}

// ID returns the provider tag.
func (p *PopupProvider) ID() user.Provider { return p.id }

// URL returns the identity provider URL the popup opens.
func (p *PopupProvider) URL() string { return p.login.IdentityProviderURL }

// WindowFeatures returns the popup window features.
func (p *PopupProvider) WindowFeatures() string { return p.login.WindowFeatures }

// MaxTimeToLive returns the delegation lifetime requested from the provider.
func (p *PopupProvider) MaxTimeToLive() time.Duration {
	if p.login.MaxTimeToLive <= 0 {
		return authclient.DefaultMaxTimeToLive
	}
	return p.login.MaxTimeToLive
}

// SignIn opens the popup, then loads or creates the user.
func (p *PopupProvider) SignIn(ctx context.Context, deps *Deps, _ SignInContext) error {
	id, err := runStep(ctx, deps.Progress, AuthorizingWithProvider, func(ctx context.Context) (identity.Identity, error) {
		c, err := deps.client()
		if err != nil {
			return nil, err
		}
		if err := c.Login(ctx, p.login); err != nil {
			return nil, interrupted(err)
		}
		return c.Identity(), nil
	})
	if err != nil {
		return err
	}

	_, err = runStep(ctx, deps.Progress, CreatingOrRetrievingUser, func(ctx context.Context) (*user.User, error) {
		return initUser(ctx, deps, id, p.id, nil)
	})
	return err
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Ensure PopupProvider implements Provider
var _ Provider = (*PopupProvider)(nil)
