package broadcast

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by operations on a closed channel.
var ErrClosed = errors.New("broadcast: channel closed")

// Envelope is a message posted on a channel.
type Envelope struct {
	// Origin is the application origin of the poster.
	Origin string `json:"origin"`
	Data   []byte `json:"data"`
}

// Channel delivers envelopes to the other handles of the same named
// channel.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use.
//   - Delivery: a handle never receives its own posts. Handlers of one
//     subscription run sequentially, in post order, off the posting
//     goroutine.
//   - Ownership: Close releases the handle; it is idempotent.
type Channel interface {
	// Post sends env. An empty Origin is stamped with the handle's origin.
	Post(ctx context.Context, env Envelope) error

	// Subscribe registers fn for envelopes posted by other handles.
	Subscribe(fn func(Envelope)) (cancel func())

	Close() error
}

// subscription delivers envelopes to one handler from its own goroutine.
type subscription struct {
	fn    func(Envelope)
	queue chan Envelope
	done  chan struct{}
	once  sync.Once
}

const queueSize = 64

func newSubscription(fn func(Envelope)) *subscription {
	s := &subscription{fn: fn, queue: make(chan Envelope, queueSize), done: make(chan struct{})}
	go s.run()
	return s
}

func (s *subscription) run() {
	for {
		select {
		case env := <-s.queue:
			s.fn(env)
		case <-s.done:
			return
		}
	}
}

// deliver enqueues env. It gives up when ctx ends or the subscription is
// cancelled.
func (s *subscription) deliver(ctx context.Context, env Envelope) error {
	select {
	case s.queue <- env:
		return nil
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *subscription) cancel() {
	s.once.Do(func() { close(s.done) })
}

// subscribers is a set of subscriptions keyed by registration order.
type subscribers struct {
	mu   sync.Mutex
	next int
	subs map[int]*subscription
}

func (s *subscribers) add(fn func(Envelope)) func() {
	sub := newSubscription(fn)
	s.mu.Lock()
	if s.subs == nil {
		s.subs = make(map[int]*subscription)
	}
	id := s.next
	s.next++
	s.subs[id] = sub
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
		sub.cancel()
	}
}

func (s *subscribers) snapshot() []*subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		out = append(out, sub)
	}
	return out
}

// Dispatch hands env to every subscriber.
func (s *subscribers) dispatch(ctx context.Context, env Envelope) error {
	var errs []error
	for _, sub := range s.snapshot() {
		if err := sub.deliver(ctx, env); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *subscribers) closeAll() {
	s.mu.Lock()
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()
	for _, sub := range subs {
		sub.cancel()
	}
}

// Subscribers is a set of handlers for channel implementations outside
// this package.
type Subscribers struct {
	s subscribers
}

// Add registers fn and returns its cancel function.
func (s *Subscribers) Add(fn func(Envelope)) (cancel func()) { return s.s.add(fn) }

// Dispatch queues env for every handler.
func (s *Subscribers) Dispatch(ctx context.Context, env Envelope) error {
	return s.s.dispatch(ctx, env)
}

// CloseAll cancels every handler.
func (s *Subscribers) CloseAll() { s.s.closeAll() }
