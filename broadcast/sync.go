package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ChannelName is the channel sessions use for login notifications.
const ChannelName = "satauth_sync"

// MsgLoginSuccess announces a completed sign-in.
const MsgLoginSuccess = "loginSuccess"

// Message is the payload of a login notification.
type Message struct {
	EmitterID string `json:"emitterId"`
	Msg       string `json:"msg"`
}

// Sync posts and receives login notifications on a channel.
//
// Contract:
//   - Delivery: handlers never run for messages posted by this Sync, from
//     another origin, or that are not well-formed login notifications.
//   - Ownership: Sync owns the channel; Destroy closes it.
type Sync struct {
	channel   Channel
	origin    string
	emitterID string

	mu      sync.Mutex
	cancels []func()
}

// New wraps channel for origin with a random emitter id.
func New(channel Channel, origin string) *Sync {
	return &Sync{channel: channel, origin: origin, emitterID: uuid.NewString()}
}

// EmitterID returns the id stamped on this Sync's posts.
func (s *Sync) EmitterID() string { return s.emitterID }

// PostLoginSuccess tells sibling sessions that this one signed in.
func (s *Sync) PostLoginSuccess(ctx context.Context) error {
	data, err := json.Marshal(Message{EmitterID: s.emitterID, Msg: MsgLoginSuccess})
	if err != nil {
		return err
	}
	if err := s.channel.Post(ctx, Envelope{Origin: s.origin, Data: data}); err != nil {
		return fmt.Errorf("broadcast: post login success: %w", err)
	}
	return nil
}

// OnLoginSuccess calls handler when a sibling session signs in.
func (s *Sync) OnLoginSuccess(handler func()) (cancel func()) {
	cancel = s.channel.Subscribe(func(env Envelope) {
		if s.accept(env) {
			handler()
		}
	})
	s.mu.Lock()
	s.cancels = append(s.cancels, cancel)
	s.mu.Unlock()
	return cancel
}

func (s *Sync) accept(env Envelope) bool {
	if env.Origin != s.origin {
		return false
	}
	var msg Message
	if err := json.Unmarshal(env.Data, &msg); err != nil {
		return false
	}
	return msg.Msg == MsgLoginSuccess && msg.EmitterID != "" && msg.EmitterID != s.emitterID
}

// Destroy removes the handlers and closes the channel.
func (s *Sync) Destroy() error {
	s.mu.Lock()
	cancels := s.cancels
	s.cancels = nil
	s.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
	return s.channel.Close()
}
