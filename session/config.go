package session

import (
	"context"
	"time"

	"github.com/jonwraymond/satauth/agent"
	"github.com/jonwraymond/satauth/auth"
	"github.com/jonwraymond/satauth/authclient"
	"github.com/jonwraymond/satauth/broadcast"
	"github.com/jonwraymond/satauth/observe"
	"github.com/jonwraymond/satauth/passkey"
	"github.com/jonwraymond/satauth/storage"
	"github.com/jonwraymond/satauth/user"
)

// Config holds the settings of a Manager.
type Config struct {
	// Target is the satellite user documents and actors are bound to.
	Target agent.Target

	Env auth.Environment

	// Origin scopes cross-session notifications.
	Origin string

	// WorkerInterval is the expiry polling interval. Default: 1s
	WorkerInterval time.Duration

	// KeyCacheTTL bounds how long passkey public keys are cached.
	// Default: passkey.DefaultKeyTTL
	KeyCacheTTL time.Duration
}

// Navigator is the page hosting the session.
type Navigator interface {
	// GuardNavigation deters leaving the page until release is called.
	GuardNavigation() (release func())

	// Reload restarts the application on the current session.
	Reload(ctx context.Context) error
}

// ChannelFactory opens the cross-session channel.
type ChannelFactory func(ctx context.Context) (broadcast.Channel, error)

// Deps are the collaborators of a Manager. Only Storage is required.
type Deps struct {
	Storage storage.Storage

	// Users defaults to the user documents of Config.Target.
	Users user.Service

	// Opener opens identity provider popups.
	Opener authclient.Opener

	Navigator Navigator

	// Channel opens the sync channel. Nil disables cross-session sync.
	Channel ChannelFactory

	// Observer defaults to observe.Nop.
	Observer observe.Observer

	// Agents builds agents. Default: agent.DefaultAgentFactory
	Agents agent.AgentFactory

	Redirector auth.Redirector
	Passkeys   passkey.Authenticator

	// KeyStore defaults to the passkey public keys of Config.Target.
	KeyStore passkey.KeyStore

	Signer auth.EthereumSigner

	// OpenID defaults to the authenticate method of Config.Target.
	OpenID auth.OpenIDAuthenticator

	// TokenKeys verifies id token signatures in redirect callbacks.
	TokenKeys auth.KeyProvider

	// Progress receives sign-in progress.
	Progress auth.ProgressFunc

	// Now is the clock. Default: time.Now
	Now func() time.Time
}

// SignOutOptions configures SignOut.
type SignOutOptions struct {
	// WindowReload reloads the page after signing out. Default: true
	WindowReload *bool
}

func (o SignOutOptions) reload() bool {
	return o.WindowReload == nil || *o.WindowReload
}
