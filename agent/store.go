package agent

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/jonwraymond/satauth/cache"
	"github.com/jonwraymond/satauth/identity"
)

// AgentFactory builds the agent for an identity and target.
type AgentFactory func(ctx context.Context, id identity.Identity, target Target) (*Agent, error)

// delegated is implemented by identities that sign with a session key on
// behalf of their principal.
type delegated interface {
	SessionKey() identity.Identity
}

// identityKey names id in cache keys. Delegated identities include their
// session key, so a new session for the same principal gets new handles.
func identityKey(id identity.Identity) string {
	text := id.Principal().Text()
	if d, ok := id.(delegated); ok {
		sum := sha256.Sum256(d.SessionKey().PublicKey())
		text += "@" + hex.EncodeToString(sum[:8])
	}
	return text
}

// AgentStore caches agents by identity and host.
//
// Contract:
//   - Concurrency: safe for concurrent use; concurrent first calls for a key
//     build one agent.
//   - Reset: agents built before Reset are never returned after it.
type AgentStore struct {
	factory AgentFactory
	agents  *cache.Memo[*Agent]
}

// NewAgentStore creates an AgentStore. A nil factory uses DefaultAgentFactory.
func NewAgentStore(factory AgentFactory) *AgentStore {
	if factory == nil {
		factory = DefaultAgentFactory
	}
	return &AgentStore{factory: factory, agents: cache.NewMemo[*Agent]()}
}

// DefaultAgentFactory builds an agent with default settings, fetching the
// root key for local targets only.
func DefaultAgentFactory(ctx context.Context, id identity.Identity, target Target) (*Agent, error) {
	return New(ctx, Config{
		Identity:     id,
		Host:         target.Host(),
		FetchRootKey: target.Local(),
	})
}

// GetAgent returns the agent for id and target, building it on first use.
func (s *AgentStore) GetAgent(ctx context.Context, id identity.Identity, target Target) (*Agent, error) {
	if id == nil {
		return nil, ErrNilIdentity
	}
	key, err := cache.Key(identityKey(id), target.Host())
	if err != nil {
		return nil, err
	}
	return s.agents.Get(ctx, key, func(ctx context.Context) (*Agent, error) {
		return s.factory(ctx, id, target)
	})
}

// Reset drops every cached agent.
func (s *AgentStore) Reset() {
	s.agents.Reset()
}

// Len returns the number of cached agents.
func (s *AgentStore) Len() int {
	return s.agents.Len()
}

// ActorParams identifies an actor.
type ActorParams struct {
	Identity  identity.Identity
	Target    Target
	Interface Interface
	Strategy  CallStrategy
}

// ActorStore caches actors by strategy, build variant, identity, satellite
// and interface.
//
// Contract:
//   - Concurrency: safe for concurrent use; concurrent first calls for a key
//     build one actor.
//   - Reset: actors built before Reset are never returned after it.
type ActorStore struct {
	agents *AgentStore
	actors *cache.Memo[*Actor]
}

// NewActorStore creates an ActorStore drawing agents from agents.
func NewActorStore(agents *AgentStore) *ActorStore {
	return &ActorStore{agents: agents, actors: cache.NewMemo[*Actor]()}
}

// GetActor returns the actor for p, building it and its agent on first use.
func (s *ActorStore) GetActor(ctx context.Context, p ActorParams) (*Actor, error) {
	if p.Identity == nil {
		return nil, ErrNilIdentity
	}
	if p.Target.SatelliteID == "" {
		return nil, ErrMissingSatellite
	}
	if p.Strategy == "" {
		p.Strategy = Uncertified
	}
	if p.Interface.Variant == "" {
		p.Interface.Variant = Stock
	}

	parts := []string{
		string(p.Strategy) + "#" + string(p.Interface.Variant),
		identityKey(p.Identity),
		p.Target.SatelliteID,
	}
	if p.Interface.Name != "" {
		parts = append(parts, p.Interface.Name)
	}
	key, err := cache.Key(parts...)
	if err != nil {
		return nil, err
	}
	return s.actors.Get(ctx, key, func(ctx context.Context) (*Actor, error) {
		a, err := s.agents.GetAgent(ctx, p.Identity, p.Target)
		if err != nil {
			return nil, err
		}
		return NewActor(a, p.Target.SatelliteID, p.Interface, p.Strategy)
	})
}

// Reset drops every cached actor. Agents are reset separately.
func (s *ActorStore) Reset() {
	s.actors.Reset()
}

// Len returns the number of cached actors.
func (s *ActorStore) Len() int {
	return s.actors.Len()
}
