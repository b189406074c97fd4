package broadcast

import (
	"context"
	"sync"
)

// MemoryBus connects channel handles of one process.
type MemoryBus struct {
	mu      sync.Mutex
	handles map[string]map[*memoryChannel]struct{}
}

// NewMemoryBus creates an empty bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{handles: make(map[string]map[*memoryChannel]struct{})}
}

// Channel opens a handle on the channel name for origin.
func (b *MemoryBus) Channel(name, origin string) Channel {
	c := &memoryChannel{bus: b, name: name, origin: origin}
	b.mu.Lock()
	if b.handles[name] == nil {
		b.handles[name] = make(map[*memoryChannel]struct{})
	}
	b.handles[name][c] = struct{}{}
	b.mu.Unlock()
	return c
}

func (b *MemoryBus) peers(c *memoryChannel) []*memoryChannel {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []*memoryChannel
	for h := range b.handles[c.name] {
		if h != c {
			out = append(out, h)
		}
	}
	return out
}

func (b *MemoryBus) remove(c *memoryChannel) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handles[c.name], c)
	if len(b.handles[c.name]) == 0 {
		delete(b.handles, c.name)
	}
}

type memoryChannel struct {
	bus    *MemoryBus
	name   string
	origin string
	subs   subscribers

	mu     sync.RWMutex
	closed bool
}

func (c *memoryChannel) Post(ctx context.Context, env Envelope) error {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	if env.Origin == "" {
		env.Origin = c.origin
	}
	for _, peer := range c.bus.peers(c) {
		if err := peer.subs.dispatch(ctx, env); err != nil {
			return err
		}
	}
	return nil
}

func (c *memoryChannel) Subscribe(fn func(Envelope)) func() {
	return c.subs.add(fn)
}

func (c *memoryChannel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.bus.remove(c)
	c.subs.closeAll()
	return nil
}

// Ensure memoryChannel implements Channel
var _ Channel = (*memoryChannel)(nil)
