package authclient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonwraymond/satauth/identity"
	"github.com/jonwraymond/satauth/storage"
)

// DefaultMaxTimeToLive is the delegation lifetime requested from identity
// providers when LoginOptions leaves it unset.
const DefaultMaxTimeToLive = 8 * time.Hour

// AuthorizeRequest is what the identity provider window receives.
type AuthorizeRequest struct {
	IdentityProviderURL    string
	SessionPublicKey       []byte
	MaxTimeToLive          time.Duration
	DerivationOrigin       string
	AllowPinAuthentication bool
	WindowFeatures         string
}

// AuthorizeResponse carries the delegations granted to the session key.
type AuthorizeResponse struct {
	Delegations   []identity.SignedDelegation
	UserPublicKey []byte
}

// Opener opens an identity provider window and waits for its answer.
//
// Contract:
// - Context: implementations must return when ctx is done.
// - Errors: a user closing the window must yield ErrUserInterrupt (possibly wrapped).
type Opener interface {
	Authorize(ctx context.Context, req AuthorizeRequest) (*AuthorizeResponse, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context, req AuthorizeRequest) (*AuthorizeResponse, error)

// Authorize calls f.
func (f OpenerFunc) Authorize(ctx context.Context, req AuthorizeRequest) (*AuthorizeResponse, error) {
	return f(ctx, req)
}

// LoginOptions configures Client.Login.
type LoginOptions struct {
	IdentityProviderURL    string
	MaxTimeToLive          time.Duration
	DerivationOrigin       string
	AllowPinAuthentication bool
	WindowFeatures         string
}

// Option configures a Client.
type Option func(*Client)

// WithOpener sets the identity provider window opener used by Login.
func WithOpener(o Opener) Option {
	return func(c *Client) { c.opener = o }
}

// WithClock overrides the time source used to validate the chain.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// Client is a session client rebuilt from storage.
type Client struct {
	storage storage.Storage
	opener  Opener
	now     func() time.Time

	mu    sync.RWMutex
	key   *identity.SessionKey
	chain *identity.DelegationChain
	id    identity.Identity
}

// Create loads the persisted session key and chain from s.
//
// A missing or malformed key is replaced by a fresh persisted one. A chain
// that is malformed, expired or not bound to the key is discarded together
// with the key, leaving an anonymous client.
func Create(ctx context.Context, s storage.Storage, opts ...Option) (*Client, error) {
	c := &Client{storage: s, now: time.Now, id: identity.AnonymousIdentity{}}
	for _, opt := range opts {
		opt(c)
	}

	key, err := loadKey(ctx, s)
	if err != nil {
		return nil, err
	}

	if key != nil {
		chain, err := loadChain(ctx, s)
		if err != nil {
			return nil, err
		}
		if chain != nil {
			if id, ok := c.delegated(key, chain); ok {
				c.key, c.chain, c.id = key, chain, id
				return c, nil
			}
			if err := purge(ctx, s); err != nil {
				return nil, err
			}
			key.Release()
			key = nil
		}
	}

	if key == nil {
		if err := s.Remove(ctx, storage.KeyDelegation); err != nil {
			return nil, fmt.Errorf("authclient: remove delegation: %w", err)
		}
		key, err = identity.GenerateSessionKey()
		if err != nil {
			return nil, err
		}
		data, err := key.MarshalBinary()
		if err != nil {
			return nil, err
		}
		if err := s.Set(ctx, storage.KeySessionKey, data); err != nil {
			return nil, fmt.Errorf("authclient: persist session key: %w", err)
		}
	}
	c.key = key
	return c, nil
}

// Open loads the persisted session like Create but never writes to s.
// A missing, expired or mismatched session yields an anonymous client
// that cannot Login.
func Open(ctx context.Context, s storage.Storage, opts ...Option) (*Client, error) {
	c := &Client{storage: s, now: time.Now, id: identity.AnonymousIdentity{}}
	for _, opt := range opts {
		opt(c)
	}

	key, err := loadKey(ctx, s)
	if err != nil || key == nil {
		return c, err
	}
	chain, err := loadChain(ctx, s)
	if err != nil {
		return nil, err
	}
	if chain != nil {
		if id, ok := c.delegated(key, chain); ok {
			c.key, c.chain, c.id = key, chain, id
			return c, nil
		}
	}
	key.Release()
	return c, nil
}

func (c *Client) delegated(key *identity.SessionKey, chain *identity.DelegationChain) (identity.Identity, bool) {
	if !identity.IsDelegationValid(chain, c.now()) {
		return nil, false
	}
	id, err := identity.NewDelegationIdentity(key, chain)
	if err != nil {
		return nil, false
	}
	return id, true
}

func loadKey(ctx context.Context, s storage.Storage) (*identity.SessionKey, error) {
	data, err := s.Get(ctx, storage.KeySessionKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("authclient: read session key: %w", err)
	}
	key, err := identity.SessionKeyFromBinary(data)
	if err != nil {
		return nil, nil
	}
	return key, nil
}

func loadChain(ctx context.Context, s storage.Storage) (*identity.DelegationChain, error) {
	data, err := s.Get(ctx, storage.KeyDelegation)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("authclient: read delegation: %w", err)
	}
	chain, err := identity.ParseDelegationChain(data)
	if err != nil {
		// Unparseable chains are treated like expired ones.
		return &identity.DelegationChain{}, nil
	}
	return chain, nil
}

// ReadDelegation returns the chain persisted in s, or nil when none is stored.
func ReadDelegation(ctx context.Context, s storage.Storage) (*identity.DelegationChain, error) {
	data, err := s.Get(ctx, storage.KeyDelegation)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("authclient: read delegation: %w", err)
	}
	return identity.ParseDelegationChain(data)
}

func purge(ctx context.Context, s storage.Storage) error {
	return errors.Join(
		s.Remove(ctx, storage.KeySessionKey),
		s.Remove(ctx, storage.KeyDelegation),
	)
}

// Identity returns the identity calls should be signed with.
func (c *Client) Identity() identity.Identity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.id
}

// Chain returns the active delegation chain, or nil when anonymous.
func (c *Client) Chain() *identity.DelegationChain {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.chain
}

// IsAuthenticated reports whether the client holds a delegated identity.
func (c *Client) IsAuthenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.chain != nil && !identity.IsAnonymous(c.id)
}

// Login asks the identity provider for a delegation to the session key,
// persists it and switches the client to the delegated identity.
//
// Errors from the Opener, ErrUserInterrupt included, are returned as is.
func (c *Client) Login(ctx context.Context, opts LoginOptions) error {
	if c.opener == nil {
		return ErrNoOpener
	}
	ttl := opts.MaxTimeToLive
	if ttl <= 0 {
		ttl = DefaultMaxTimeToLive
	}

	c.mu.RLock()
	key := c.key
	c.mu.RUnlock()
	if key == nil {
		return ErrNoSessionKey
	}

	resp, err := c.opener.Authorize(ctx, AuthorizeRequest{
		IdentityProviderURL:    opts.IdentityProviderURL,
		SessionPublicKey:       key.PublicKey(),
		MaxTimeToLive:          ttl,
		DerivationOrigin:       opts.DerivationOrigin,
		AllowPinAuthentication: opts.AllowPinAuthentication,
		WindowFeatures:         opts.WindowFeatures,
	})
	if err != nil {
		return err
	}
	if resp == nil || len(resp.Delegations) == 0 {
		return ErrEmptyDelegation
	}

	chain := &identity.DelegationChain{
		Delegations: resp.Delegations,
		PublicKey:   resp.UserPublicKey,
	}
	id, err := identity.NewDelegationIdentity(key, chain)
	if err != nil {
		return fmt.Errorf("authclient: %w", err)
	}
	if err := Persist(ctx, c.storage, chain, key); err != nil {
		return err
	}

	c.mu.Lock()
	c.chain, c.id = chain, id
	c.mu.Unlock()
	return nil
}

// Logout removes the persisted session and makes the client anonymous.
func (c *Client) Logout(ctx context.Context) error {
	err := purge(ctx, c.storage)

	c.mu.Lock()
	c.chain = nil
	c.id = identity.AnonymousIdentity{}
	c.mu.Unlock()

	if err != nil {
		return fmt.Errorf("authclient: logout: %w", err)
	}
	return nil
}

// Persist writes key and chain under their fixed storage keys.
//
// The key is written first. When the chain cannot be written the previous
// key value is restored, so either both are stored or neither changes.
func Persist(ctx context.Context, s storage.Storage, chain *identity.DelegationChain, key *identity.SessionKey) error {
	keyData, err := key.MarshalBinary()
	if err != nil {
		return fmt.Errorf("authclient: encode session key: %w", err)
	}
	chainData, err := chain.MarshalJSON()
	if err != nil {
		return fmt.Errorf("authclient: encode delegation: %w", err)
	}

	previous, err := s.Get(ctx, storage.KeySessionKey)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("authclient: read session key: %w", err)
	}
	hadPrevious := err == nil

	if err := s.Set(ctx, storage.KeySessionKey, keyData); err != nil {
		return fmt.Errorf("authclient: persist session key: %w", err)
	}
	if err := s.Set(ctx, storage.KeyDelegation, chainData); err != nil {
		var rollback error
		if hadPrevious {
			rollback = s.Set(context.WithoutCancel(ctx), storage.KeySessionKey, previous)
		} else {
			rollback = s.Remove(context.WithoutCancel(ctx), storage.KeySessionKey)
		}
		return errors.Join(fmt.Errorf("authclient: persist delegation: %w", err), rollback)
	}
	return nil
}
