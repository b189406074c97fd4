package passkey

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"sync"
	"time"

	"github.com/jonwraymond/satauth/agent"
	"github.com/jonwraymond/satauth/cache"
)

// Collection holds the public keys of registered passkeys.
const Collection = "#user-webauthn"

// DefaultKeyTTL is how long looked up public keys stay cached.
const DefaultKeyTTL = 10 * time.Minute

// KeyStore finds the public key registered for a credential.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use.
//   - Errors: GetPublicKey returns (nil, nil) when no key is registered.
type KeyStore interface {
	GetPublicKey(ctx context.Context, credentialID []byte) ([]byte, error)
}

// KeyRegistry is a KeyStore that records the keys of new credentials.
type KeyRegistry interface {
	KeyStore
	RegisterPublicKey(ctx context.Context, credentialID, publicKey []byte) error
}

type keyDoc struct {
	Data struct {
		PublicKey []byte `json:"public_key"`
	} `json:"data"`
}

type getDocArg struct {
	Collection string `json:"collection"`
	Key        string `json:"key"`
}

// ActorKeyStore reads public keys from the satellite. The caller should be
// anonymous: the collection is public and the user is not signed in yet.
type ActorKeyStore struct {
	caller agent.Caller
	cache  cache.Cache
	ttl    time.Duration
}

// NewActorKeyStore creates an ActorKeyStore caching lookups in c.
// A nil c uses a MemoryCache; ttl <= 0 uses DefaultKeyTTL.
func NewActorKeyStore(caller agent.Caller, c cache.Cache, ttl time.Duration) *ActorKeyStore {
	if c == nil {
		c = cache.NewMemoryCache(cache.DefaultPolicy())
	}
	if ttl <= 0 {
		ttl = DefaultKeyTTL
	}
	return &ActorKeyStore{caller: caller, cache: c, ttl: ttl}
}

// GetPublicKey returns the DER public key stored for credentialID.
func (s *ActorKeyStore) GetPublicKey(ctx context.Context, credentialID []byte) ([]byte, error) {
	docKey := base64.RawURLEncoding.EncodeToString(credentialID)
	key, err := cache.Key("webauthn", hex.EncodeToString(credentialID))
	if err != nil {
		key = ""
	}
	return cache.ReadThrough(ctx, s.cache, key, s.ttl, func(ctx context.Context) ([]byte, error) {
		var doc *keyDoc
		if err := s.caller.Call(ctx, "get_doc", getDocArg{Collection: Collection, Key: docKey}, &doc); err != nil {
			return nil, err
		}
		if doc == nil || len(doc.Data.PublicKey) == 0 {
			return nil, nil
		}
		return doc.Data.PublicKey, nil
	})
}

// MemoryKeyStore keeps public keys in memory.
type MemoryKeyStore struct {
	mu   sync.RWMutex
	keys map[string][]byte
}

// NewMemoryKeyStore creates an empty MemoryKeyStore.
func NewMemoryKeyStore() *MemoryKeyStore {
	return &MemoryKeyStore{keys: make(map[string][]byte)}
}

// RegisterPublicKey records publicKey for credentialID.
func (s *MemoryKeyStore) RegisterPublicKey(_ context.Context, credentialID, publicKey []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[string(credentialID)] = append([]byte(nil), publicKey...)
	return nil
}

// GetPublicKey returns the registered key, or nil.
func (s *MemoryKeyStore) GetPublicKey(_ context.Context, credentialID []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.keys[string(credentialID)], nil
}

// Ensure implementations satisfy KeyStore
var (
	_ KeyStore    = (*ActorKeyStore)(nil)
	_ KeyRegistry = (*MemoryKeyStore)(nil)
)
