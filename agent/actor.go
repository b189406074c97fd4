package agent

import (
	"context"
	"encoding/json"
	"fmt"
)

// Caller calls methods of a satellite with JSON encoded arguments.
type Caller interface {
	Call(ctx context.Context, method string, arg, out any) error
}

// Actor calls one satellite through an Agent.
type Actor struct {
	agent       *Agent
	iface       Interface
	satelliteID string
	strategy    CallStrategy
}

// NewActor binds agent to a satellite and interface.
func NewActor(agent *Agent, satelliteID string, iface Interface, strategy CallStrategy) (*Actor, error) {
	if satelliteID == "" {
		return nil, ErrMissingSatellite
	}
	if strategy == "" {
		strategy = Uncertified
	}
	return &Actor{agent: agent, iface: iface, satelliteID: satelliteID, strategy: strategy}, nil
}

// Agent returns the underlying agent.
func (a *Actor) Agent() *Agent { return a.agent }

// SatelliteID returns the satellite the actor calls.
func (a *Actor) SatelliteID() string { return a.satelliteID }

// Interface returns the interface descriptor.
func (a *Actor) Interface() Interface { return a.iface }

// Strategy returns the call strategy.
func (a *Actor) Strategy() CallStrategy { return a.strategy }

// Call encodes arg as JSON, runs method and decodes the reply into out.
// A nil out discards the reply.
func (a *Actor) Call(ctx context.Context, method string, arg, out any) error {
	mode, err := a.iface.ModeFor(method, a.strategy)
	if err != nil {
		return fmt.Errorf("%w: %s", err, method)
	}
	payload, err := json.Marshal(arg)
	if err != nil {
		return fmt.Errorf("agent: encode %s argument: %w", method, err)
	}

	reply, err := a.agent.Call(ctx, a.satelliteID, method, mode, payload)
	if err != nil {
		return err
	}
	if out == nil || len(reply) == 0 {
		return nil
	}
	if err := json.Unmarshal(reply, out); err != nil {
		return fmt.Errorf("agent: decode %s reply: %w", method, err)
	}
	return nil
}

// Ensure Actor implements Caller
var _ Caller = (*Actor)(nil)
