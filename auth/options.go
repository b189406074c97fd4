package auth

import (
	"net/url"
	"time"

	"github.com/jonwraymond/satauth/user"
)

// Options selects a provider and configures it. The set of variants is
// closed: only the types of this package implement it.
type Options interface {
	Provider() user.Provider
	violations() []string
}

// InternetIdentityOptions configures the Internet Identity popup.
type InternetIdentityOptions struct {
	// Domain overrides the production domain, e.g. "ic0.app".
	Domain                 string
	MaxTimeToLive          time.Duration
	DerivationOrigin       string
	AllowPinAuthentication bool
}

// NFIDOptions configures the NFID popup.
type NFIDOptions struct {
	AppName          string
	LogoURL          string
	MaxTimeToLive    time.Duration
	DerivationOrigin string
}

// PasskeyOptions configures passkey sign-in and sign-up.
type PasskeyOptions struct {
	RelyingParty  string
	UserName      string
	DisplayName   string
	MaxTimeToLive time.Duration
}

// GoogleOptions configures the Google redirect. An empty ClientID falls
// back to the environment.
type GoogleOptions struct {
	ClientID    string
	RedirectURL string
	Scopes      []string
	LoginHint   string
}

// GitHubOptions configures the GitHub redirect. An empty ClientID or
// AuthURL falls back to the environment.
type GitHubOptions struct {
	ClientID    string
	RedirectURL string
	AuthURL     string
	Scopes      []string
}

// DevOptions configures the local development provider.
type DevOptions struct {
	// Identifier seeds the identity. Same identifier, same principal.
	Identifier    string
	MaxTimeToLive time.Duration
}

// EthereumOptions configures sign-in with an Ethereum wallet.
type EthereumOptions struct {
	// Statement is shown by the wallet. Default: DefaultEthereumStatement
	Statement     string
	Domain        string
	ChainID       int64
	MaxTimeToLive time.Duration
}

func (InternetIdentityOptions) Provider() user.Provider { return user.InternetIdentity }
func (NFIDOptions) Provider() user.Provider             { return user.NFID }
func (PasskeyOptions) Provider() user.Provider          { return user.WebAuthn }
func (GoogleOptions) Provider() user.Provider           { return user.Google }
func (GitHubOptions) Provider() user.Provider           { return user.GitHub }
func (DevOptions) Provider() user.Provider              { return user.Dev }
func (EthereumOptions) Provider() user.Provider         { return user.Ethereum }

func ttlViolations(ttl time.Duration) []string {
	if ttl < 0 {
		return []string{"max time to live must not be negative"}
	}
	return nil
}

func urlViolations(field, raw string) []string {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return []string{field + " must be an absolute URL"}
	}
	return nil
}

func (o InternetIdentityOptions) violations() []string {
	return append(ttlViolations(o.MaxTimeToLive), urlViolations("derivation origin", o.DerivationOrigin)...)
}

func (o NFIDOptions) violations() []string {
	v := append(ttlViolations(o.MaxTimeToLive), urlViolations("derivation origin", o.DerivationOrigin)...)
	return append(v, urlViolations("logo url", o.LogoURL)...)
}

func (o PasskeyOptions) violations() []string {
	return ttlViolations(o.MaxTimeToLive)
}

func (o GoogleOptions) violations() []string {
	return urlViolations("redirect url", o.RedirectURL)
}

func (o GitHubOptions) violations() []string {
	return append(urlViolations("redirect url", o.RedirectURL), urlViolations("auth url", o.AuthURL)...)
}

func (o DevOptions) violations() []string {
	v := ttlViolations(o.MaxTimeToLive)
	if len(o.Identifier) > 32 {
		v = append(v, "identifier must be at most 32 characters")
	}
	return v
}

func (o EthereumOptions) violations() []string {
	v := ttlViolations(o.MaxTimeToLive)
	if o.ChainID < 0 {
		v = append(v, "chain id must not be negative")
	}
	return v
}

// Validator checks options on behalf of the caller and returns the
// violated constraints.
type Validator func(Options) []string

// Validate runs the built-in checks of opts and then v.
func Validate(opts Options, v Validator) error {
	if opts == nil {
		return ErrUnsupportedProvider
	}
	violations := opts.violations()
	if v != nil {
		violations = append(violations, v(opts)...)
	}
	if len(violations) > 0 {
		return &SchemaValidationError{Violations: violations}
	}
	return nil
}

// Ensure every variant implements Options
var (
	_ Options = InternetIdentityOptions{}
	_ Options = NFIDOptions{}
	_ Options = PasskeyOptions{}
	_ Options = GoogleOptions{}
	_ Options = GitHubOptions{}
	_ Options = DevOptions{}
	_ Options = EthereumOptions{}
)
