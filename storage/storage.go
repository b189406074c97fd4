// Package storage persists session state shared by every context of a client:
// the session key, the delegation chain and pending redirect state.
//
// Storage is the single source of truth. The timeout worker never talks to the
// session client directly; it re-reads what is persisted here.
package storage

import (
	"context"
	"errors"
	"sync"
)

// Fixed storage keys.
const (
	// KeySessionKey holds the serialized session key pair.
	KeySessionKey = "identity"

	// KeyDelegation holds the serialized delegation chain.
	KeyDelegation = "delegation"

	// KeyRedirectContext holds the state of a pending redirect sign-in.
	KeyRedirectContext = "redirect_context"
)

// Sentinel errors for storage operations.
var (
	ErrNotFound = errors.New("storage: key not found")
	ErrClosed   = errors.New("storage: closed")
)

// Storage is a small key/value store.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: methods should honor cancellation/deadlines.
// - Errors: Get returns ErrNotFound on miss; Remove is idempotent.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
	Close() error
}

// Memory is an in-process Storage.
type Memory struct {
	mu     sync.RWMutex
	values map[string][]byte
	closed bool
}

// NewMemory creates an empty in-memory storage.
func NewMemory() *Memory {
	return &Memory{values: make(map[string][]byte)}
}

// Get returns a copy of the stored value.
func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}
	v, ok := m.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

// Set stores a copy of value.
func (m *Memory) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	m.values[key] = append([]byte(nil), value...)
	return nil
}

// Remove deletes key. Missing keys are not an error.
func (m *Memory) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	delete(m.values, key)
	return nil
}

// Close releases the storage. Later calls fail with ErrClosed.
func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.values = nil
	m.mu.Unlock()
	return nil
}

// Ensure Memory implements Storage
var _ Storage = (*Memory)(nil)
