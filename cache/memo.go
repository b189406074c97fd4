package cache

import (
	"context"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"
)

// CreateFunc builds the value for a key on first use.
type CreateFunc[V any] func(ctx context.Context) (V, error)

// Memo memoizes values by key, including creations still in flight.
//
// Contract:
//   - Concurrency: safe for concurrent use; concurrent Get calls for an
//     uncached key run create once and share its result.
//   - Reset: values and in-flight creations from before a Reset are never
//     returned to calls made after it.
//   - Errors: failed creations are not cached.
type Memo[V any] struct {
	mu      sync.Mutex
	gen     uint64
	entries map[string]V
	group   singleflight.Group
}

// NewMemo creates an empty Memo.
func NewMemo[V any]() *Memo[V] {
	return &Memo[V]{entries: make(map[string]V)}
}

// Get returns the value cached under key, joining or starting its creation.
//
// create runs detached from the cancellation of the caller that started it,
// so one caller giving up does not fail the others; each caller still
// returns as soon as its own ctx is done.
func (m *Memo[V]) Get(ctx context.Context, key string, create CreateFunc[V]) (V, error) {
	var zero V
	if err := ValidateKey(key); err != nil {
		return zero, err
	}

	m.mu.Lock()
	if v, ok := m.entries[key]; ok {
		m.mu.Unlock()
		return v, nil
	}
	gen := m.gen
	m.mu.Unlock()

	detached := context.WithoutCancel(ctx)
	ch := m.group.DoChan(strconv.FormatUint(gen, 10)+"\x00"+key, func() (any, error) {
		m.mu.Lock()
		if v, ok := m.entries[key]; ok && m.gen == gen {
			m.mu.Unlock()
			return v, nil
		}
		m.mu.Unlock()

		v, err := create(detached)
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		if m.gen == gen {
			m.entries[key] = v
		}
		m.mu.Unlock()
		return v, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(V), nil
	}
}

// Peek returns the cached value without creating one.
func (m *Memo[V]) Peek(key string) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.entries[key]
	return v, ok
}

// Reset drops every cached value and detaches in-flight creations.
func (m *Memo[V]) Reset() {
	m.mu.Lock()
	m.gen++
	m.entries = make(map[string]V)
	m.mu.Unlock()
}

// Len returns the number of cached values.
func (m *Memo[V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
