package session

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonwraymond/satauth/agent"
	"github.com/jonwraymond/satauth/auth"
	"github.com/jonwraymond/satauth/broadcast"
	"github.com/jonwraymond/satauth/identity"
	"github.com/jonwraymond/satauth/storage"
	"github.com/jonwraymond/satauth/user"
	"github.com/jonwraymond/satauth/worker"
)

const testOrigin = "http://localhost:5173"

var testEnv = auth.Environment{Container: "http://127.0.0.1:5987", Dev: true}

// fakeNavigator counts guards and reloads.
type fakeNavigator struct {
	guards   atomic.Int32
	released atomic.Int32
	reloads  atomic.Int32
}

func (n *fakeNavigator) GuardNavigation() func() {
	n.guards.Add(1)
	return func() { n.released.Add(1) }
}

func (n *fakeNavigator) Reload(context.Context) error {
	n.reloads.Add(1)
	return nil
}

// clock is a settable clock safe for concurrent use.
type clock struct {
	offset atomic.Int64
}

func (c *clock) now() time.Time { return time.Now().Add(time.Duration(c.offset.Load())) }

func (c *clock) advance(d time.Duration) { c.offset.Add(int64(d)) }

type fixture struct {
	storage storage.Storage
	users   *user.MemoryService
	bus     *broadcast.MemoryBus
}

func newFixture() *fixture {
	return &fixture{
		storage: storage.NewMemory(),
		users:   user.NewMemoryService(),
		bus:     broadcast.NewMemoryBus(),
	}
}

func (f *fixture) manager(t *testing.T, nav Navigator, now func() time.Time) *Manager {
	t.Helper()
	m, err := New(Config{
		Target:         agent.Target{SatelliteID: "sat"},
		Env:            testEnv,
		Origin:         testOrigin,
		WorkerInterval: 10 * time.Millisecond,
	}, Deps{
		Storage:   f.storage,
		Users:     f.users,
		Navigator: nav,
		Channel: func(context.Context) (broadcast.Channel, error) {
			return f.bus.Channel(broadcast.ChannelName, testOrigin), nil
		},
		Now: now,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	return m
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNew_RequiresStorage(t *testing.T) {
	if _, err := New(Config{}, Deps{}); !errors.Is(err, ErrNoStorage) {
		t.Errorf("New() error = %v, want ErrNoStorage", err)
	}
}

func TestManager_StartAnonymous(t *testing.T) {
	m := newFixture().manager(t, nil, nil)
	ctx := context.Background()

	if m.UnsafeIdentity() != nil {
		t.Error("UnsafeIdentity() before Start should be nil")
	}
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if m.UnsafeIdentity() == nil {
		t.Error("UnsafeIdentity() after Start should not be nil")
	}
	if _, err := m.GetIdentityOnce(ctx); !errors.Is(err, auth.ErrNoIdentity) {
		t.Errorf("GetIdentityOnce() error = %v, want ErrNoIdentity", err)
	}
	if m.User() != nil {
		t.Error("User() should be nil")
	}
}

func TestManager_SignInAndOut(t *testing.T) {
	nav := &fakeNavigator{}
	m := newFixture().manager(t, nav, nil)
	ctx := context.Background()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	var mu sync.Mutex
	var states []bool
	unsub := m.AuthStateChange(func(u *user.User) {
		mu.Lock()
		states = append(states, u != nil)
		mu.Unlock()
	})
	defer unsub()

	err := m.SignIn(ctx, auth.DevOptions{Identifier: "alice"}, auth.SignInContext{GuardNavigation: true})
	if err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	if nav.guards.Load() != 1 || nav.released.Load() != 1 {
		t.Errorf("guards = %d, released = %d, want 1 and 1", nav.guards.Load(), nav.released.Load())
	}

	id, err := m.GetIdentityOnce(ctx)
	if err != nil {
		t.Fatalf("GetIdentityOnce() error = %v", err)
	}
	if u := m.User(); u == nil || u.Owner != id.Principal().Text() || u.Provider != user.Dev {
		t.Fatalf("User() = %+v, want dev user owned by %s", u, id.Principal())
	}

	if err := m.SignOut(ctx, SignOutOptions{}); err != nil {
		t.Fatalf("SignOut() error = %v", err)
	}
	if nav.reloads.Load() != 1 {
		t.Errorf("reloads = %d, want 1", nav.reloads.Load())
	}
	if m.User() != nil {
		t.Error("User() after SignOut should be nil")
	}
	if _, err := m.GetIdentityOnce(ctx); !errors.Is(err, auth.ErrNoIdentity) {
		t.Errorf("GetIdentityOnce() after SignOut error = %v, want ErrNoIdentity", err)
	}
	if m.UnsafeIdentity() == nil {
		t.Error("SignOut should leave a fresh anonymous client")
	}
	a, err := m.Actor(ctx, agent.SatelliteInterface, agent.Uncertified)
	if err != nil {
		t.Fatalf("Actor() after SignOut error = %v", err)
	}
	if got := a.Agent().Identity(); !identity.IsAnonymous(got) {
		t.Errorf("actor after SignOut signs as %s, want anonymous", got.Principal())
	}

	mu.Lock()
	defer mu.Unlock()
	if len(states) < 3 || states[0] || states[len(states)-1] || !slices.Contains(states, true) {
		t.Errorf("auth states = %v, want anonymous, signed in, then anonymous", states)
	}
}

func TestManager_SignInAgainRefreshesActor(t *testing.T) {
	m := newFixture().manager(t, nil, nil)
	ctx := context.Background()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if err := m.SignIn(ctx, auth.DevOptions{Identifier: "alice", MaxTimeToLive: time.Hour}, auth.SignInContext{}); err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	first, err := m.Actor(ctx, agent.SatelliteInterface, agent.Uncertified)
	if err != nil {
		t.Fatalf("Actor() error = %v", err)
	}
	if first.Agent().Identity() != m.UnsafeIdentity() {
		t.Fatal("actor should sign with the current session")
	}
	principal := m.UnsafeIdentity().Principal()

	if err := m.SignIn(ctx, auth.DevOptions{Identifier: "alice", MaxTimeToLive: 2 * time.Hour}, auth.SignInContext{}); err != nil {
		t.Fatalf("second SignIn() error = %v", err)
	}
	if !m.UnsafeIdentity().Principal().Equal(principal) {
		t.Fatalf("principal = %s, want %s", m.UnsafeIdentity().Principal(), principal)
	}
	second, err := m.Actor(ctx, agent.SatelliteInterface, agent.Uncertified)
	if err != nil {
		t.Fatalf("Actor() error = %v", err)
	}
	if second.Agent().Identity() != m.UnsafeIdentity() {
		t.Error("actor should sign with the replacing session, not the first one")
	}
}

func TestManager_SignOutWithoutReload(t *testing.T) {
	nav := &fakeNavigator{}
	m := newFixture().manager(t, nav, nil)
	ctx := context.Background()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	noReload := false
	if err := m.SignOut(ctx, SignOutOptions{WindowReload: &noReload}); err != nil {
		t.Fatalf("SignOut() error = %v", err)
	}
	if nav.reloads.Load() != 0 {
		t.Errorf("reloads = %d, want 0", nav.reloads.Load())
	}
}

func TestManager_RestoresPersistedSession(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	first := f.manager(t, nil, nil)
	if err := first.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := first.SignIn(ctx, auth.DevOptions{}, auth.SignInContext{}); err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	want, _ := first.GetIdentityOnce(ctx)
	_ = first.Close()

	second := f.manager(t, nil, nil)
	if err := second.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	got, err := second.GetIdentityOnce(ctx)
	if err != nil {
		t.Fatalf("GetIdentityOnce() error = %v", err)
	}
	if !got.Principal().Equal(want.Principal()) {
		t.Errorf("principal = %s, want %s", got.Principal(), want.Principal())
	}
	if second.User() == nil {
		t.Error("restored session should publish its user")
	}
}

func TestManager_SyncsSiblingSessions(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	a := f.manager(t, nil, nil)
	b := f.manager(t, nil, nil)
	for _, m := range []*Manager{a, b} {
		if err := m.Start(ctx); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
	}

	if err := a.SignIn(ctx, auth.DevOptions{Identifier: "bob"}, auth.SignInContext{}); err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	waitFor(t, "sibling sign-in", func() bool { return b.User() != nil })

	want, _ := a.GetIdentityOnce(ctx)
	got, err := b.GetIdentityOnce(ctx)
	if err != nil {
		t.Fatalf("sibling GetIdentityOnce() error = %v", err)
	}
	if !got.Principal().Equal(want.Principal()) {
		t.Errorf("sibling principal = %s, want %s", got.Principal(), want.Principal())
	}
}

func TestManager_RedirectSignInDoesNotNotify(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	m := f.manager(t, nil, nil)
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	var redirects atomic.Int32
	m.deps.Redirector = auth.RedirectorFunc(func(context.Context, string) error {
		redirects.Add(1)
		return nil
	})

	listener := f.bus.Channel(broadcast.ChannelName, testOrigin)
	defer listener.Close()
	var notices, markers atomic.Int32
	cancel := listener.Subscribe(func(env broadcast.Envelope) {
		if string(env.Data) == "marker" {
			markers.Add(1)
			return
		}
		notices.Add(1)
	})
	defer cancel()

	if err := m.SignIn(ctx, auth.DevOptions{Identifier: "carol"}, auth.SignInContext{}); err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	if err := m.SignIn(ctx, auth.GoogleOptions{ClientID: "google-client"}, auth.SignInContext{}); err != nil {
		t.Fatalf("redirect SignIn() error = %v", err)
	}
	if redirects.Load() != 1 {
		t.Fatalf("redirects = %d, want 1", redirects.Load())
	}

	// Envelopes arrive in post order: once the marker is in, every earlier
	// notice has been counted.
	marker := f.bus.Channel(broadcast.ChannelName, testOrigin)
	defer marker.Close()
	if err := marker.Post(ctx, broadcast.Envelope{Data: []byte("marker")}); err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	waitFor(t, "marker", func() bool { return markers.Load() == 1 })
	if got := notices.Load(); got != 1 {
		t.Errorf("loginSuccess notices = %d, want 1", got)
	}
}

func TestManager_ExpirySignsOut(t *testing.T) {
	nav := &fakeNavigator{}
	c := &clock{}
	m := newFixture().manager(t, nav, c.now)
	ctx := context.Background()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	var remaining atomic.Int64
	unsub := m.OnRemainingTime(func(d time.Duration) { remaining.Store(int64(d)) })
	defer unsub()

	opts := auth.DevOptions{MaxTimeToLive: time.Hour}
	if err := m.SignIn(ctx, opts, auth.SignInContext{}); err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	waitFor(t, "remaining time", func() bool { return remaining.Load() > 0 })
	if d := time.Duration(remaining.Load()); d > time.Hour {
		t.Errorf("remaining = %s, want at most 1h", d)
	}

	c.advance(2 * time.Hour)
	waitFor(t, "expiry sign-out", func() bool { return m.User() == nil && nav.reloads.Load() == 1 })
	if _, err := m.GetIdentityOnce(ctx); !errors.Is(err, auth.ErrNoIdentity) {
		t.Errorf("GetIdentityOnce() after expiry error = %v, want ErrNoIdentity", err)
	}
}

func TestManager_SyncUnavailable(t *testing.T) {
	m, err := New(Config{Env: testEnv}, Deps{
		Storage: storage.NewMemory(),
		Users:   user.NewMemoryService(),
		Channel: func(context.Context) (broadcast.Channel, error) {
			return nil, errors.New("no channel")
		},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer m.Close()

	ctx := context.Background()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := m.SignIn(ctx, auth.DevOptions{}, auth.SignInContext{}); err != nil {
		t.Fatalf("SignIn() without sync error = %v", err)
	}
}

func TestManager_ActorBeforeStart(t *testing.T) {
	m := newFixture().manager(t, nil, nil)
	_, err := m.Actor(context.Background(), agent.SatelliteInterface, agent.Uncertified)
	if !errors.Is(err, ErrNotStarted) {
		t.Errorf("Actor() error = %v, want ErrNotStarted", err)
	}
}

func TestManager_StartAfterClose(t *testing.T) {
	m := newFixture().manager(t, nil, nil)
	if err := m.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := m.Start(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Start() error = %v, want ErrClosed", err)
	}
	if err := m.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestTimerMessage(t *testing.T) {
	if got := timerMessage(&user.User{}).Kind; got != worker.StartAuthTimer {
		t.Errorf("timerMessage(user) = %s, want %s", got, worker.StartAuthTimer)
	}
	if got := timerMessage(nil).Kind; got != worker.StopAuthTimer {
		t.Errorf("timerMessage(nil) = %s, want %s", got, worker.StopAuthTimer)
	}
}
