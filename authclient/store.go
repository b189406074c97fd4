package authclient

import (
	"context"
	"fmt"
	"sync"

	"github.com/jonwraymond/satauth/identity"
	"github.com/jonwraymond/satauth/storage"
)

// Store holds the single live Client of a process.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Ownership: creating a client replaces (and invalidates) the previous reference.
type Store struct {
	storage storage.Storage
	opts    []Option

	mu     sync.RWMutex
	client *Client
}

// NewStore creates a Store whose clients read and write s.
// opts are applied to every client it creates.
func NewStore(s storage.Storage, opts ...Option) *Store {
	return &Store{storage: s, opts: opts}
}

// Storage returns the storage shared by every client of the store.
func (s *Store) Storage() storage.Storage {
	return s.storage
}

// CreateAuthClient builds a brand-new client from storage and makes it current.
func (s *Store) CreateAuthClient(ctx context.Context) (*Client, error) {
	c, err := Create(ctx, s.storage, s.opts...)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.client = c
	s.mu.Unlock()
	return c, nil
}

// SafeCreateAuthClient removes any persisted session key before creating a
// new client, so the new session starts from freshly generated key material.
func (s *Store) SafeCreateAuthClient(ctx context.Context) (*Client, error) {
	if err := s.storage.Remove(ctx, storage.KeySessionKey); err != nil {
		return nil, fmt.Errorf("authclient: remove session key: %w", err)
	}
	return s.CreateAuthClient(ctx)
}

// AuthClient returns the current client, or nil before the first creation
// and after Logout.
func (s *Store) AuthClient() *Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client
}

// Logout logs the current client out and drops the reference.
// Without a current client the persisted session is purged directly.
func (s *Store) Logout(ctx context.Context) error {
	s.mu.Lock()
	c := s.client
	s.client = nil
	s.mu.Unlock()

	if c == nil {
		if err := purge(ctx, s.storage); err != nil {
			return fmt.Errorf("authclient: logout: %w", err)
		}
		return nil
	}
	return c.Logout(ctx)
}

// SetAuthClientStorage persists chain and key so the next client created
// from storage signs with the delegated identity.
func (s *Store) SetAuthClientStorage(ctx context.Context, chain *identity.DelegationChain, key *identity.SessionKey) error {
	return Persist(ctx, s.storage, chain, key)
}
