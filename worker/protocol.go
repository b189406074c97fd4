package worker

import (
	"context"
	"time"

	"github.com/jonwraymond/satauth/authclient"
	"github.com/jonwraymond/satauth/identity"
	"github.com/jonwraymond/satauth/storage"
)

// InboundKind is a message sent to the worker.
type InboundKind int

const (
	StartAuthTimer InboundKind = iota + 1
	StopAuthTimer
)

func (k InboundKind) String() string {
	switch k {
	case StartAuthTimer:
		return "startAuthTimer"
	case StopAuthTimer:
		return "stopAuthTimer"
	default:
		return "unknown"
	}
}

// Inbound is a message to the worker.
type Inbound struct {
	Kind InboundKind
}

// OutboundKind is a message sent by the worker.
type OutboundKind int

const (
	DelegationRemainingTime OutboundKind = iota + 1
	SignOutAuthTimer
)

func (k OutboundKind) String() string {
	switch k {
	case DelegationRemainingTime:
		return "delegationRemainingTime"
	case SignOutAuthTimer:
		return "signOutAuthTimer"
	default:
		return "unknown"
	}
}

// Outbound is a message from the worker. Remaining is set for
// DelegationRemainingTime.
type Outbound struct {
	Kind      OutboundKind
	Remaining time.Duration
}

// State is the timer state.
type State int

const (
	Stopped State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "stopped"
}

// Transition applies an inbound message.
func Transition(s State, in Inbound) State {
	switch in.Kind {
	case StartAuthTimer:
		return Running
	case StopAuthTimer:
		return Stopped
	default:
		return s
	}
}

// Check is what a tick observed in storage.
type Check struct {
	// Authenticated reports whether a session client built from storage
	// holds a delegated identity.
	Authenticated bool

	// Valid reports whether the persisted chain is well-formed and
	// unexpired.
	Valid bool

	Expiration time.Time
}

// Evaluate applies a tick. A running timer reports the remaining time of a
// valid session, or signals sign-out once and stops. A stopped timer emits
// nothing.
func Evaluate(s State, c Check, now time.Time) (State, []Outbound) {
	if s != Running {
		return s, nil
	}
	if c.Authenticated && c.Valid && c.Expiration.After(now) {
		return Running, []Outbound{{Kind: DelegationRemainingTime, Remaining: c.Expiration.Sub(now)}}
	}
	return Stopped, []Outbound{{Kind: SignOutAuthTimer}}
}

// Inspect derives a Check from storage alone, without writing to it. Any
// storage failure yields an invalid check.
func Inspect(ctx context.Context, s storage.Storage, now time.Time) Check {
	c, err := authclient.Open(ctx, s, authclient.WithClock(func() time.Time { return now }))
	if err != nil || !c.IsAuthenticated() {
		return Check{}
	}
	chain, err := authclient.ReadDelegation(ctx, s)
	if err != nil || chain == nil {
		return Check{Authenticated: true}
	}
	if err := identity.ValidateDelegation(chain, now); err != nil {
		return Check{Authenticated: true}
	}
	return Check{Authenticated: true, Valid: true, Expiration: chain.Expiration()}
}
