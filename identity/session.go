package identity

import (
	"context"
	"time"
)

// DefaultSessionTTL bounds a session delegation when the caller gives none.
const DefaultSessionTTL = 4 * time.Hour

// Session pairs a fresh session key with the chain delegating to it.
// Both are created together and must be persisted together.
type Session struct {
	Key   *SessionKey
	Chain *DelegationChain
}

// Identity returns the identity that signs with Key on behalf of the chain root.
func (s *Session) Identity() (*DelegationIdentity, error) {
	return NewDelegationIdentity(s.Key, s.Chain)
}

type sessionOptions struct {
	ttl     time.Duration
	targets []Principal
	now     func() time.Time
}

// SessionOption configures BuildSessionDelegation.
type SessionOption func(*sessionOptions)

// WithMaxTimeToLive sets how long the delegation stays valid.
func WithMaxTimeToLive(ttl time.Duration) SessionOption {
	return func(o *sessionOptions) { o.ttl = ttl }
}

// WithTargets restricts the delegation to the given targets.
func WithTargets(targets ...Principal) SessionOption {
	return func(o *sessionOptions) { o.targets = targets }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) SessionOption {
	return func(o *sessionOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// BuildSessionDelegation creates a new session key and a delegation from
// root to it expiring at now + ttl.
//
// Errors from root's signature are returned unmodified. Nothing is persisted.
func BuildSessionDelegation(ctx context.Context, root Identity, opts ...SessionOption) (*Session, error) {
	o := sessionOptions{ttl: DefaultSessionTTL, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.ttl <= 0 {
		return nil, ErrNonPositiveTTL
	}

	key, err := GenerateSessionKey()
	if err != nil {
		return nil, err
	}

	chain, err := CreateDelegationChain(ctx, root, key.PublicKey(), o.now().Add(o.ttl), o.targets, nil)
	if err != nil {
		key.Release()
		return nil, err
	}

	return &Session{Key: key, Chain: chain}, nil
}
