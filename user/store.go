package user

import (
	"slices"
	"sync"
)

// Store publishes the currently authenticated user.
//
// Contract:
//   - Concurrency: safe for concurrent use. Subscribers are called outside
//     the store lock, in the order values were set. They must not call
//     back into the store.
//   - Replay: Subscribe calls the new subscriber with the current value
//     before any later change.
type Store struct {
	mu      sync.Mutex
	current *User
	nextID  int
	subs    map[int]func(*User)

	// notify serializes deliveries so subscribers observe changes in order.
	notify sync.Mutex
}

// NewStore creates a Store holding no user.
func NewStore() *Store {
	return &Store{subs: make(map[int]func(*User))}
}

// Get returns the current user, or nil.
func (s *Store) Get() *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Set stores u and notifies subscribers.
func (s *Store) Set(u *User) {
	s.notify.Lock()
	defer s.notify.Unlock()

	s.mu.Lock()
	s.current = u
	subs := s.snapshotLocked()
	s.mu.Unlock()

	for _, fn := range subs {
		fn(u)
	}
}

// Reset clears the user and notifies subscribers with nil.
func (s *Store) Reset() {
	s.Set(nil)
}

// Subscribe calls fn with the current user, then on every change.
// The returned function unsubscribes; it is safe to call more than once.
func (s *Store) Subscribe(fn func(*User)) (unsubscribe func()) {
	s.notify.Lock()
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	current := s.current
	s.mu.Unlock()

	fn(current)
	s.notify.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Store) snapshotLocked() []func(*User) {
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]func(*User), 0, len(ids))
	for _, id := range ids {
		out = append(out, s.subs[id])
	}
	return out
}
