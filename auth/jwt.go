package auth

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// GoogleIssuers are the issuers of Google id tokens.
var GoogleIssuers = []string{"https://accounts.google.com", "accounts.google.com"}

// KeyProvider retrieves id token signing keys.
type KeyProvider interface {
	// GetKey returns the key for the given key ID.
	GetKey(ctx context.Context, keyID string) (any, error)
}

// StaticKeyProvider always returns the same key.
type StaticKeyProvider struct {
	key any
}

// NewStaticKeyProvider creates a static key provider.
func NewStaticKeyProvider(key any) *StaticKeyProvider {
	return &StaticKeyProvider{key: key}
}

// GetKey returns the static key.
func (p *StaticKeyProvider) GetKey(context.Context, string) (any, error) {
	return p.key, nil
}

// IDTokenClaims are the claims read from OpenID id tokens.
type IDTokenClaims struct {
	jwt.RegisteredClaims
	Nonce         string `json:"nonce"`
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified,omitempty"`
	Name          string `json:"name,omitempty"`
	Picture       string `json:"picture,omitempty"`
	Locale        string `json:"locale,omitempty"`
	Login         string `json:"preferred_username,omitempty"`
}

// Profile returns the claims stored with the user document.
func (c *IDTokenClaims) Profile() map[string]any {
	data := map[string]any{}
	for k, v := range map[string]string{
		"email":    c.Email,
		"name":     c.Name,
		"picture":  c.Picture,
		"locale":   c.Locale,
		"username": c.Login,
	} {
		if v != "" {
			data[k] = v
		}
	}
	return data
}

// TokenValidator checks id tokens returned by redirect providers.
type TokenValidator struct {
	// Keys verifies signatures. Nil skips signature checks and leaves them
	// to the satellite, which verifies the token again.
	Keys KeyProvider

	// Audience is the expected client id. Required.
	Audience string

	// Issuers lists accepted issuers. Empty accepts any.
	Issuers []string

	// Leeway tolerates clock skew. Default: 1m
	Leeway time.Duration

	Now func() time.Time
}

// Validate parses raw and checks its expiry, audience, issuer and nonce.
func (v *TokenValidator) Validate(ctx context.Context, raw, nonce string) (*IDTokenClaims, error) {
	now := v.Now
	if now == nil {
		now = time.Now
	}
	leeway := v.Leeway
	if leeway == 0 {
		leeway = time.Minute
	}
	opts := []jwt.ParserOption{
		jwt.WithAudience(v.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(leeway),
		jwt.WithTimeFunc(now),
	}

	var claims IDTokenClaims
	if v.Keys == nil {
		if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
			return nil, tokenError(err)
		}
		if err := jwt.NewValidator(opts...).Validate(&claims); err != nil {
			return nil, tokenError(err)
		}
	} else {
		opts = append(opts, jwt.WithValidMethods([]string{"RS256"}))
		_, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (any, error) {
			kid, _ := token.Header["kid"].(string)
			return v.Keys.GetKey(ctx, kid)
		}, opts...)
		if err != nil {
			return nil, tokenError(err)
		}
	}

	if len(v.Issuers) > 0 && !slices.Contains(v.Issuers, claims.Issuer) {
		return nil, fmt.Errorf("%w: unexpected issuer %q", ErrTokenInvalid, claims.Issuer)
	}
	if claims.Nonce == "" || claims.Nonce != nonce {
		return nil, fmt.Errorf("%w: nonce mismatch", ErrTokenInvalid)
	}
	return &claims, nil
}

func tokenError(err error) error {
	switch {
	case errors.Is(err, ErrKeyNotFound):
		return err
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	default:
		return fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
}

// Ensure key providers implement KeyProvider
var (
	_ KeyProvider = (*StaticKeyProvider)(nil)
	_ KeyProvider = (*JWKSKeyProvider)(nil)
)
