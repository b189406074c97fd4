package authclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonwraymond/satauth/identity"
	"github.com/jonwraymond/satauth/storage"
)

// delegatingOpener answers like an identity provider holding root.
func delegatingOpener(t *testing.T, root identity.Identity) Opener {
	t.Helper()
	return OpenerFunc(func(ctx context.Context, req AuthorizeRequest) (*AuthorizeResponse, error) {
		chain, err := identity.CreateDelegationChain(ctx, root, req.SessionPublicKey, time.Now().Add(req.MaxTimeToLive), nil, nil)
		if err != nil {
			return nil, err
		}
		return &AuthorizeResponse{Delegations: chain.Delegations, UserPublicKey: chain.PublicKey}, nil
	})
}

func newRoot(t *testing.T) *identity.Ed25519Identity {
	t.Helper()
	root, err := identity.GenerateEd25519()
	if err != nil {
		t.Fatalf("GenerateEd25519() error = %v", err)
	}
	return root
}

func TestCreate_FreshStorageIsAnonymous(t *testing.T) {
	ctx := context.Background()
	s := storage.NewMemory()

	c, err := Create(ctx, s)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if c.IsAuthenticated() {
		t.Error("IsAuthenticated() = true on fresh storage")
	}
	if !identity.IsAnonymous(c.Identity()) {
		t.Error("Identity() should be anonymous")
	}
	if _, err := s.Get(ctx, storage.KeySessionKey); err != nil {
		t.Errorf("session key should be persisted, got %v", err)
	}
}

func TestClient_LoginPersistsDelegation(t *testing.T) {
	ctx := context.Background()
	s := storage.NewMemory()
	root := newRoot(t)

	c, err := Create(ctx, s, WithOpener(delegatingOpener(t, root)))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := c.Login(ctx, LoginOptions{IdentityProviderURL: "https://id.example"}); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if !c.IsAuthenticated() {
		t.Fatal("IsAuthenticated() = false after Login")
	}
	if !c.Identity().Principal().Equal(root.Principal()) {
		t.Errorf("Identity().Principal() = %s, want %s", c.Identity().Principal(), root.Principal())
	}

	// A second client reads the same session from storage.
	other, err := Create(ctx, s)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if !other.IsAuthenticated() {
		t.Fatal("client recreated from storage should be authenticated")
	}
	if !other.Identity().Principal().Equal(root.Principal()) {
		t.Errorf("recreated principal = %s, want %s", other.Identity().Principal(), root.Principal())
	}
}

func TestClient_LoginDefaultTTL(t *testing.T) {
	ctx := context.Background()
	var got time.Duration
	opener := OpenerFunc(func(ctx context.Context, req AuthorizeRequest) (*AuthorizeResponse, error) {
		got = req.MaxTimeToLive
		return nil, ErrUserInterrupt
	})
	c, err := Create(ctx, storage.NewMemory(), WithOpener(opener))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	_ = c.Login(ctx, LoginOptions{})
	if got != DefaultMaxTimeToLive {
		t.Errorf("MaxTimeToLive = %v, want %v", got, DefaultMaxTimeToLive)
	}
}

func TestClient_LoginInterruptLeavesNoState(t *testing.T) {
	ctx := context.Background()
	s := storage.NewMemory()
	opener := OpenerFunc(func(context.Context, AuthorizeRequest) (*AuthorizeResponse, error) {
		return nil, ErrUserInterrupt
	})
	c, err := Create(ctx, s, WithOpener(opener))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	err = c.Login(ctx, LoginOptions{})
	if !errors.Is(err, ErrUserInterrupt) {
		t.Fatalf("Login() error = %v, want ErrUserInterrupt", err)
	}
	if c.IsAuthenticated() {
		t.Error("IsAuthenticated() = true after interrupted login")
	}
	if _, err := s.Get(ctx, storage.KeyDelegation); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("delegation should not be persisted, got %v", err)
	}
}

func TestClient_LoginWithoutOpener(t *testing.T) {
	c, err := Create(context.Background(), storage.NewMemory())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := c.Login(context.Background(), LoginOptions{}); !errors.Is(err, ErrNoOpener) {
		t.Errorf("Login() error = %v, want ErrNoOpener", err)
	}
}

func TestCreate_ExpiredDelegationIsPurged(t *testing.T) {
	ctx := context.Background()
	s := storage.NewMemory()
	root := newRoot(t)

	session, err := identity.BuildSessionDelegation(ctx, root, identity.WithMaxTimeToLive(time.Minute))
	if err != nil {
		t.Fatalf("BuildSessionDelegation() error = %v", err)
	}
	if err := Persist(ctx, s, session.Chain, session.Key); err != nil {
		t.Fatalf("Persist() error = %v", err)
	}

	later := func() time.Time { return time.Now().Add(time.Hour) }
	c, err := Create(ctx, s, WithClock(later))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if c.IsAuthenticated() {
		t.Error("client with expired delegation should be anonymous")
	}
	if _, err := s.Get(ctx, storage.KeyDelegation); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expired delegation should be removed, got %v", err)
	}
}

func TestCreate_MalformedDelegationIsPurged(t *testing.T) {
	ctx := context.Background()
	s := storage.NewMemory()
	if _, err := Create(ctx, s); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := s.Set(ctx, storage.KeyDelegation, []byte("{not json")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	c, err := Create(ctx, s)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if c.IsAuthenticated() {
		t.Error("client with malformed delegation should be anonymous")
	}
	if _, err := s.Get(ctx, storage.KeyDelegation); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("malformed delegation should be removed, got %v", err)
	}
}

func TestClient_Logout(t *testing.T) {
	ctx := context.Background()
	s := storage.NewMemory()
	c, err := Create(ctx, s, WithOpener(delegatingOpener(t, newRoot(t))))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := c.Login(ctx, LoginOptions{}); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	if err := c.Logout(ctx); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if c.IsAuthenticated() {
		t.Error("IsAuthenticated() = true after Logout")
	}
	for _, key := range []string{storage.KeySessionKey, storage.KeyDelegation} {
		if _, err := s.Get(ctx, key); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("%s should be removed, got %v", key, err)
		}
	}
}

// failingStorage fails writes to one key.
type failingStorage struct {
	*storage.Memory
	failKey string
	err     error
}

func (f *failingStorage) Set(ctx context.Context, key string, value []byte) error {
	if key == f.failKey {
		return f.err
	}
	return f.Memory.Set(ctx, key, value)
}

func TestPersist_RollsBackKeyWhenChainWriteFails(t *testing.T) {
	ctx := context.Background()
	writeErr := errors.New("disk full")
	s := &failingStorage{Memory: storage.NewMemory(), failKey: storage.KeyDelegation, err: writeErr}

	if err := s.Memory.Set(ctx, storage.KeySessionKey, []byte("previous")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	session, err := identity.BuildSessionDelegation(ctx, newRoot(t))
	if err != nil {
		t.Fatalf("BuildSessionDelegation() error = %v", err)
	}
	err = Persist(ctx, s, session.Chain, session.Key)
	if !errors.Is(err, writeErr) {
		t.Fatalf("Persist() error = %v, want %v", err, writeErr)
	}

	got, err := s.Get(ctx, storage.KeySessionKey)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got) != "previous" {
		t.Errorf("session key = %q, want previous value restored", got)
	}
}

func TestPersist_RemovesKeyWhenNothingToRestore(t *testing.T) {
	ctx := context.Background()
	s := &failingStorage{Memory: storage.NewMemory(), failKey: storage.KeyDelegation, err: errors.New("boom")}

	session, err := identity.BuildSessionDelegation(ctx, newRoot(t))
	if err != nil {
		t.Fatalf("BuildSessionDelegation() error = %v", err)
	}
	if err := Persist(ctx, s, session.Chain, session.Key); err == nil {
		t.Fatal("Persist() error = nil, want failure")
	}
	if _, err := s.Get(ctx, storage.KeySessionKey); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("session key should not remain, got %v", err)
	}
}

func TestOpen_NeverWrites(t *testing.T) {
	ctx := context.Background()
	s := storage.NewMemory()

	c, err := Open(ctx, s)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if c.IsAuthenticated() {
		t.Error("IsAuthenticated() = true on empty storage")
	}
	if _, err := s.Get(ctx, storage.KeySessionKey); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Open() must not persist a session key, got %v", err)
	}
	if err := c.Login(ctx, LoginOptions{}); !errors.Is(err, ErrNoOpener) && !errors.Is(err, ErrNoSessionKey) {
		t.Errorf("Login() error = %v", err)
	}

	// An expired session is reported but left in place.
	session, err := identity.BuildSessionDelegation(ctx, newRoot(t), identity.WithMaxTimeToLive(time.Minute))
	if err != nil {
		t.Fatalf("BuildSessionDelegation() error = %v", err)
	}
	if err := Persist(ctx, s, session.Chain, session.Key); err != nil {
		t.Fatalf("Persist() error = %v", err)
	}
	later := func() time.Time { return time.Now().Add(time.Hour) }
	c, err = Open(ctx, s, WithClock(later))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if c.IsAuthenticated() {
		t.Error("IsAuthenticated() = true for an expired session")
	}
	if _, err := s.Get(ctx, storage.KeyDelegation); err != nil {
		t.Errorf("Open() must not purge the expired delegation, got %v", err)
	}

	c, err = Open(ctx, s)
	if err != nil || !c.IsAuthenticated() {
		t.Errorf("Open() = authenticated %v, %v; want authenticated", c != nil && c.IsAuthenticated(), err)
	}
}
