package user

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonwraymond/satauth/agent"
	"github.com/jonwraymond/satauth/identity"
)

// Collection is the datastore collection holding user documents.
const Collection = "#user"

type getDocArg struct {
	Collection string `json:"collection"`
	Key        string `json:"key"`
}

type setDocArg struct {
	Collection string  `json:"collection"`
	Key        string  `json:"key"`
	Doc        docData `json:"doc"`
}

type docData struct {
	Provider Provider       `json:"provider,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

// ActorService reads and writes user documents through a satellite actor.
type ActorService struct {
	caller agent.Caller
}

// NewActorService creates an ActorService calling through c.
func NewActorService(c agent.Caller) *ActorService {
	return &ActorService{caller: c}
}

// GetUserDoc reads the document keyed by principal.
func (s *ActorService) GetUserDoc(ctx context.Context, principal identity.Principal) (*User, error) {
	var out *User
	err := s.caller.Call(ctx, "get_doc", getDocArg{Collection: Collection, Key: principal.Text()}, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CreateUserDoc writes a new document keyed by principal.
func (s *ActorService) CreateUserDoc(ctx context.Context, principal identity.Principal, provider Provider, data map[string]any) (*User, error) {
	var out User
	err := s.caller.Call(ctx, "set_doc", setDocArg{
		Collection: Collection,
		Key:        principal.Text(),
		Doc:        docData{Provider: provider, Data: data},
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// MemoryService keeps user documents in memory. Only the first principal
// to create a document may write it; later creates fail with
// ErrCannotUpdate like the backend does.
type MemoryService struct {
	mu   sync.Mutex
	docs map[string]*User
	now  func() time.Time
}

// NewMemoryService creates an empty MemoryService.
func NewMemoryService() *MemoryService {
	return &MemoryService{docs: make(map[string]*User), now: time.Now}
}

// GetUserDoc returns a copy of the stored document, or nil.
func (s *MemoryService) GetUserDoc(ctx context.Context, principal identity.Principal) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.docs[principal.Text()]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

// CreateUserDoc stores a new document.
func (s *MemoryService) CreateUserDoc(ctx context.Context, principal identity.Principal, provider Provider, data map[string]any) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if principal.IsAnonymous() {
		return nil, errors.New("user: anonymous principal cannot own a document")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := principal.Text()
	if _, ok := s.docs[key]; ok {
		return nil, ErrCannotUpdate
	}
	now := s.now()
	u := &User{
		Key:       key,
		Owner:     key,
		Provider:  provider,
		Data:      data,
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}
	s.docs[key] = u
	cp := *u
	return &cp, nil
}

// Ensure implementations satisfy Service
var (
	_ Service = (*ActorService)(nil)
	_ Service = (*MemoryService)(nil)
)
