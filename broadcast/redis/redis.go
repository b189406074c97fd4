// Package redis carries broadcast channels over Redis pub/sub so sessions
// of several processes notify each other.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jonwraymond/satauth/broadcast"
)

// DefaultPrefix namespaces pub/sub channel names.
const DefaultPrefix = "satauth:broadcast:"

// message is the published form of an envelope. Sender lets a handle drop
// its own posts.
type message struct {
	Sender string             `json:"sender"`
	Env    broadcast.Envelope `json:"envelope"`
}

// Channel is a broadcast.Channel on a Redis pub/sub channel.
type Channel struct {
	client redis.UniversalClient
	topic  string
	origin string
	id     string
	subs   broadcast.Subscribers

	mu     sync.Mutex
	pubsub *redis.PubSub
	cancel context.CancelFunc
	done   chan struct{}
	closed bool
}

// NewChannel opens a handle on the channel name for origin. The client is
// owned by the caller.
func NewChannel(client redis.UniversalClient, name, origin string) *Channel {
	return &Channel{
		client: client,
		topic:  DefaultPrefix + name,
		origin: origin,
		id:     uuid.NewString(),
	}
}

// Listen subscribes to the Redis channel and waits for the confirmation,
// so posts made by other handles after it returns are received. Subscribe
// calls it lazily.
func (c *Channel) Listen(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return broadcast.ErrClosed
	}
	if c.pubsub != nil {
		return nil
	}

	pubsub := c.client.Subscribe(ctx, c.topic)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("redis subscribe %s: %w", c.topic, err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	c.pubsub, c.cancel, c.done = pubsub, cancel, make(chan struct{})
	go c.loop(loopCtx, pubsub.Channel(), c.done)
	return nil
}

func (c *Channel) loop(ctx context.Context, in <-chan *redis.Message, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-in:
			if !ok {
				return
			}
			var msg message
			if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil || msg.Sender == c.id {
				continue
			}
			_ = c.subs.Dispatch(ctx, msg.Env)
		}
	}
}

// Post publishes env.
func (c *Channel) Post(ctx context.Context, env broadcast.Envelope) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return broadcast.ErrClosed
	}
	if env.Origin == "" {
		env.Origin = c.origin
	}
	payload, err := json.Marshal(message{Sender: c.id, Env: env})
	if err != nil {
		return fmt.Errorf("redis publish %s: %w", c.topic, err)
	}
	if err := c.client.Publish(ctx, c.topic, payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", c.topic, err)
	}
	return nil
}

// Subscribe registers fn. When the Redis subscription cannot be set up fn
// is never called; call Listen first to observe the error.
func (c *Channel) Subscribe(fn func(broadcast.Envelope)) func() {
	cancel := c.subs.Add(fn)
	_ = c.Listen(context.Background())
	return cancel
}

// Close unsubscribes and stops delivery.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	pubsub, cancel, done := c.pubsub, c.cancel, c.done
	c.mu.Unlock()

	var err error
	if pubsub != nil {
		cancel()
		err = pubsub.Close()
		<-done
	}
	c.subs.CloseAll()
	return err
}

// Ensure Channel implements broadcast.Channel
var _ broadcast.Channel = (*Channel)(nil)
