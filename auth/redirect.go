package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"

	"github.com/jonwraymond/satauth/identity"
	"github.com/jonwraymond/satauth/storage"
	"github.com/jonwraymond/satauth/user"
)

// DefaultRedirectTTL bounds how long a redirect may take to come back.
const DefaultRedirectTTL = 10 * time.Minute

var (
	defaultGoogleScopes = []string{"openid", "profile", "email"}
	defaultGitHubScopes = []string{"read:user", "user:email"}
)

// Redirector sends the browser to an OAuth authorization URL.
type Redirector interface {
	Redirect(ctx context.Context, url string) error
}

// RedirectorFunc adapts a function to Redirector.
type RedirectorFunc func(ctx context.Context, url string) error

// Redirect calls f.
func (f RedirectorFunc) Redirect(ctx context.Context, url string) error { return f(ctx, url) }

// RedirectContext is persisted before the redirect and read back by the
// callback.
type RedirectContext struct {
	Provider    user.Provider `json:"provider"`
	State       string        `json:"state"`
	Salt        []byte        `json:"salt"`
	Verifier    string        `json:"verifier"`
	SessionKey  []byte        `json:"session_key"`
	ClientID    string        `json:"client_id"`
	RedirectURL string        `json:"redirect_url,omitempty"`
	AuthURL     string        `json:"auth_url,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

// Nonce binds an id token to a session key: base64url(sha256(salt || principal)).
func Nonce(salt []byte, sessionPrincipal identity.Principal) string {
	h := sha256.New()
	h.Write(salt)
	h.Write(sessionPrincipal)
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

// RedirectProvider signs in through an OAuth redirect. SignIn returns once
// the redirect is issued; HandleRedirectCallback completes the sign-in.
type RedirectProvider struct {
	id        user.Provider
	config    *oauth2.Config
	authURL   string
	loginHint string
}

func newGoogle(o GoogleOptions, env Environment) (*RedirectProvider, error) {
	clientID := firstNonEmpty(o.ClientID, env.GoogleClientID)
	if clientID == "" {
		return nil, fmt.Errorf("%w: google", ErrMissingClientID)
	}
	scopes := o.Scopes
	if len(scopes) == 0 {
		scopes = defaultGoogleScopes
	}
	return &RedirectProvider{
		id:        user.Google,
		config:    oauthConfig(user.Google, clientID, firstNonEmpty(o.RedirectURL, env.RedirectURL), "", scopes),
		loginHint: o.LoginHint,
	}, nil
}

func newGitHub(o GitHubOptions, env Environment) (*RedirectProvider, error) {
	clientID := firstNonEmpty(o.ClientID, env.GitHubClientID)
	if clientID == "" {
		return nil, fmt.Errorf("%w: github", ErrMissingClientID)
	}
	scopes := o.Scopes
	if len(scopes) == 0 {
		scopes = defaultGitHubScopes
	}
	authURL := firstNonEmpty(o.AuthURL, env.GitHubAuthURL)
	return &RedirectProvider{
		id:      user.GitHub,
		config:  oauthConfig(user.GitHub, clientID, firstNonEmpty(o.RedirectURL, env.RedirectURL), authURL, scopes),
		authURL: authURL,
	}, nil
}

// oauthConfig returns the OAuth client of provider. A GitHub authURL
// replaces github.com with a proxy exposing /authorize and /token.
func oauthConfig(provider user.Provider, clientID, redirectURL, authURL string, scopes []string) *oauth2.Config {
	cfg := &oauth2.Config{ClientID: clientID, RedirectURL: redirectURL, Scopes: scopes}
	switch {
	case provider == user.Google:
		cfg.Endpoint = google.Endpoint
	case authURL != "":
		base := strings.TrimRight(authURL, "/")
		cfg.Endpoint = oauth2.Endpoint{AuthURL: base + "/authorize", TokenURL: base + "/token"}
	default:
		cfg.Endpoint = github.Endpoint
	}
	return cfg
}

// ID returns the provider tag.
func (p *RedirectProvider) ID() user.Provider { return p.id }

// ClientID returns the OAuth client id in use.
func (p *RedirectProvider) ClientID() string { return p.config.ClientID }

// SignIn persists a redirect context and redirects to the provider.
func (p *RedirectProvider) SignIn(ctx context.Context, deps *Deps, _ SignInContext) error {
	_, err := runStep(ctx, deps.Progress, AuthorizingWithProvider, func(ctx context.Context) (struct{}, error) {
		if _, err := deps.client(); err != nil {
			return struct{}{}, err
		}
		if deps.Redirector == nil {
			return struct{}{}, fmt.Errorf("%w: redirector", ErrMissingDependency)
		}
		url, err := p.prepare(ctx, deps)
		if err != nil {
			return struct{}{}, err
		}
		if err := deps.Redirector.Redirect(ctx, url); err != nil {
			_ = deps.Clients.Storage().Remove(context.WithoutCancel(ctx), storage.KeyRedirectContext)
			return struct{}{}, interrupted(err)
		}
		return struct{}{}, nil
	})
	return err
}

// prepare generates the session key and redirect secrets, persists them
// and returns the authorization URL.
func (p *RedirectProvider) prepare(ctx context.Context, deps *Deps) (string, error) {
	key, err := identity.GenerateSessionKey()
	if err != nil {
		return "", err
	}
	defer key.Release()
	keyData, err := key.MarshalBinary()
	if err != nil {
		return "", err
	}

	salt := make([]byte, 32)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("auth: salt: %w", err)
	}

	rc := RedirectContext{
		Provider:    p.id,
		State:       uuid.NewString(),
		Salt:        salt,
		Verifier:    oauth2.GenerateVerifier(),
		SessionKey:  keyData,
		ClientID:    p.config.ClientID,
		RedirectURL: p.config.RedirectURL,
		AuthURL:     p.authURL,
		CreatedAt:   deps.now(),
	}
	data, err := json.Marshal(rc)
	if err != nil {
		return "", err
	}
	if err := deps.Clients.Storage().Set(ctx, storage.KeyRedirectContext, data); err != nil {
		return "", fmt.Errorf("auth: persist redirect context: %w", err)
	}

	opts := []oauth2.AuthCodeOption{
		oauth2.S256ChallengeOption(rc.Verifier),
		oauth2.SetAuthURLParam("nonce", Nonce(salt, key.Principal())),
	}
	if p.loginHint != "" {
		opts = append(opts, oauth2.SetAuthURLParam("login_hint", p.loginHint))
	}
	return p.config.AuthCodeURL(rc.State, opts...), nil
}

func loadRedirectContext(ctx context.Context, s storage.Storage) (*RedirectContext, error) {
	data, err := s.Get(ctx, storage.KeyRedirectContext)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: no sign-in in progress", ErrInvalidRedirectState)
	}
	if err != nil {
		return nil, fmt.Errorf("auth: read redirect context: %w", err)
	}
	var rc RedirectContext
	if err := json.Unmarshal(data, &rc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRedirectState, err)
	}
	return &rc, nil
}

// Ensure RedirectProvider implements Provider
var _ Provider = (*RedirectProvider)(nil)
