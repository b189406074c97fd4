package session

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/jonwraymond/satauth/agent"
	"github.com/jonwraymond/satauth/auth"
	"github.com/jonwraymond/satauth/authclient"
	"github.com/jonwraymond/satauth/broadcast"
	"github.com/jonwraymond/satauth/cache"
	"github.com/jonwraymond/satauth/identity"
	"github.com/jonwraymond/satauth/observe"
	"github.com/jonwraymond/satauth/passkey"
	"github.com/jonwraymond/satauth/user"
	"github.com/jonwraymond/satauth/worker"
)

// Manager runs one authenticated session.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Lifecycle: Start before any other call; Close releases the worker
//     and the sync channel. Storage and Observer stay owned by the caller.
type Manager struct {
	cfg  Config
	deps Deps

	clients   *authclient.Store
	authStore *user.Store
	agents    *agent.AgentStore
	actors    *agent.ActorStore
	users     user.Service
	keyStore  passkey.KeyStore
	openID    auth.OpenIDAuthenticator

	mw     *observe.Middleware
	logger observe.Logger

	mu        sync.Mutex
	started   bool
	closed    bool
	cancel    context.CancelFunc
	sync      *broadcast.Sync
	worker    *worker.Worker
	unsubs    []func()
	listeners map[int]func(time.Duration)
	nextID    int
	wg        sync.WaitGroup
}

// New wires a Manager. Nothing is read from storage until Start.
func New(cfg Config, deps Deps) (*Manager, error) {
	if deps.Storage == nil {
		return nil, ErrNoStorage
	}
	if deps.Observer == nil {
		deps.Observer = observe.Nop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	mw, err := observe.MiddlewareFromObserver(deps.Observer)
	if err != nil {
		return nil, err
	}

	var clientOpts []authclient.Option
	if deps.Opener != nil {
		clientOpts = append(clientOpts, authclient.WithOpener(deps.Opener))
	}
	clientOpts = append(clientOpts, authclient.WithClock(deps.Now))

	agents := agent.NewAgentStore(deps.Agents)
	m := &Manager{
		cfg:       cfg,
		deps:      deps,
		clients:   authclient.NewStore(deps.Storage, clientOpts...),
		authStore: user.NewStore(),
		agents:    agents,
		actors:    agent.NewActorStore(agents),
		mw:        mw,
		logger:    deps.Observer.Logger(),
		listeners: make(map[int]func(time.Duration)),
	}

	satellite := m.caller(agent.SatelliteInterface)
	m.users = deps.Users
	if m.users == nil {
		m.users = user.NewActorService(satellite)
	}
	m.keyStore = deps.KeyStore
	if m.keyStore == nil {
		ttl := cfg.KeyCacheTTL
		if ttl <= 0 {
			ttl = passkey.DefaultKeyTTL
		}
		m.keyStore = passkey.NewActorKeyStore(satellite, cache.NewMemoryCache(cache.DefaultPolicy()), ttl)
	}
	m.openID = deps.OpenID
	if m.openID == nil {
		m.openID = auth.NewActorOpenIDAuthenticator(satellite)
	}
	return m, nil
}

// Start restores the persisted session, starts the expiry worker and
// joins cross-session sync. A sync failure is logged and leaves the
// session without sync.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = true
	m.mu.Unlock()

	if err := m.restore(ctx); err != nil {
		m.mu.Lock()
		m.started = false
		m.mu.Unlock()
		return err
	}

	w, err := worker.New(worker.Config{
		Storage:  m.deps.Storage,
		Interval: m.cfg.WorkerInterval,
		Now:      m.deps.Now,
		Logger:   m.logger,
	})
	if err != nil {
		return err
	}
	bg, cancel := context.WithCancel(context.WithoutCancel(ctx))
	w.Start(bg)

	m.mu.Lock()
	m.cancel = cancel
	m.worker = w
	m.mu.Unlock()

	m.wg.Add(1)
	go m.bridge(bg, w)
	unsub := m.authStore.Subscribe(func(u *user.User) {
		w.Send(timerMessage(u))
	})

	s := m.joinSync(ctx, bg)

	m.mu.Lock()
	m.unsubs = append(m.unsubs, unsub)
	m.sync = s
	m.mu.Unlock()
	return nil
}

// timerMessage maps the current user to the worker command.
func timerMessage(u *user.User) worker.Inbound {
	if u == nil {
		return worker.Inbound{Kind: worker.StopAuthTimer}
	}
	return worker.Inbound{Kind: worker.StartAuthTimer}
}

// bridge handles worker messages until the outbox closes.
func (m *Manager) bridge(ctx context.Context, w *worker.Worker) {
	defer m.wg.Done()
	for msg := range w.Outbox() {
		switch msg.Kind {
		case worker.SignOutAuthTimer:
			if err := m.SignOut(ctx, SignOutOptions{}); err != nil {
				m.logger.Error(ctx, "sign-out after expiry failed", observe.F("error", err))
			}
		case worker.DelegationRemainingTime:
			m.emitRemaining(msg.Remaining)
		}
	}
}

func (m *Manager) joinSync(ctx, bg context.Context) *broadcast.Sync {
	if m.deps.Channel == nil {
		return nil
	}
	ch, err := m.deps.Channel(ctx)
	if err != nil {
		m.logger.Warn(ctx, "cross-session sync unavailable", observe.F("error", err))
		return nil
	}
	s := broadcast.New(ch, m.cfg.Origin)
	s.OnLoginSuccess(func() {
		if err := m.restore(bg); err != nil {
			m.logger.Warn(bg, "reloading session after sibling sign-in failed", observe.F("error", err))
		}
	})
	return s
}

// restore rebuilds the session client from storage and publishes the user
// of an authenticated session.
func (m *Manager) restore(ctx context.Context) error {
	c, err := m.clients.CreateAuthClient(ctx)
	if err != nil {
		return err
	}
	if !c.IsAuthenticated() {
		return nil
	}
	u, err := user.Initialize(ctx, m.users, c.Identity().Principal(), "", nil)
	if err != nil {
		return fmt.Errorf("session: load user: %w", err)
	}
	m.authStore.Set(u)
	return nil
}

func (m *Manager) authDeps() *auth.Deps {
	return &auth.Deps{
		Clients:    m.clients,
		Users:      m.users,
		AuthStore:  m.authStore,
		Progress:   m.deps.Progress,
		Env:        m.cfg.Env,
		Redirector: m.deps.Redirector,
		Passkeys:   m.deps.Passkeys,
		KeyStore:   m.keyStore,
		Signer:     m.deps.Signer,
		Logger:     m.logger,
		Now:        m.deps.Now,
	}
}

// SignIn signs in with the provider selected by opts.
func (m *Manager) SignIn(ctx context.Context, opts auth.Options, sc auth.SignInContext) error {
	return m.run(ctx, "signin", opts, sc, auth.SignIn)
}

// SignUp registers a user with the provider selected by opts.
func (m *Manager) SignUp(ctx context.Context, opts auth.Options, sc auth.SignInContext) error {
	return m.run(ctx, "signup", opts, sc, auth.SignUp)
}

type signInFunc func(ctx context.Context, deps *auth.Deps, opts auth.Options, sc auth.SignInContext) error

func (m *Manager) run(ctx context.Context, name string, opts auth.Options, sc auth.SignInContext, fn signInFunc) error {
	if sc.GuardNavigation && m.deps.Navigator != nil {
		release := m.deps.Navigator.GuardNavigation()
		defer release()
	}

	op := observe.Operation{Name: name}
	if opts != nil {
		op.Provider = string(opts.Provider())
	}
	err := m.mw.Run(ctx, op, func(ctx context.Context) error {
		return fn(ctx, m.authDeps(), opts, sc)
	})
	if err != nil {
		return err
	}
	// Redirect providers return before the session exists;
	// HandleRedirectCallback posts once it does.
	switch opts.(type) {
	case auth.GoogleOptions, auth.GitHubOptions:
		return nil
	}
	if c := m.clients.AuthClient(); c != nil && c.IsAuthenticated() {
		m.postLoginSuccess(ctx)
	}
	return nil
}

// HandleRedirectCallback completes a Google or GitHub sign-in.
func (m *Manager) HandleRedirectCallback(ctx context.Context, params url.Values) error {
	op := observe.Operation{Name: "redirect_callback"}
	err := m.mw.Run(ctx, op, func(ctx context.Context) error {
		return auth.HandleRedirectCallback(ctx, m.authDeps(), params, auth.CallbackConfig{
			Authenticator: m.openID,
			Keys:          m.deps.TokenKeys,
		})
	})
	if err != nil {
		return err
	}
	m.postLoginSuccess(ctx)
	return nil
}

func (m *Manager) postLoginSuccess(ctx context.Context) {
	m.mu.Lock()
	s := m.sync
	m.mu.Unlock()
	if s == nil {
		return
	}
	if err := s.PostLoginSuccess(ctx); err != nil {
		m.logger.Warn(ctx, "notifying sibling sessions failed", observe.F("error", err))
	}
}

// SignOut ends the session. The session client is logged out and the user,
// actor and agent stores are reset in that order; a fresh anonymous client
// is then created whatever the outcome, and the page is reloaded unless
// opts opt out.
func (m *Manager) SignOut(ctx context.Context, opts SignOutOptions) error {
	return m.mw.Run(ctx, observe.Operation{Name: "signout"}, func(ctx context.Context) error {
		resetErr := m.resetAuth(ctx)
		if _, err := m.clients.SafeCreateAuthClient(ctx); err != nil {
			return errors.Join(resetErr, err)
		}
		if resetErr != nil {
			return resetErr
		}
		if opts.reload() && m.deps.Navigator != nil {
			return m.deps.Navigator.Reload(ctx)
		}
		return nil
	})
}

func (m *Manager) resetAuth(ctx context.Context) error {
	err := m.clients.Logout(ctx)
	m.authStore.Reset()
	m.actors.Reset()
	m.agents.Reset()
	return err
}

// AuthStateChange calls fn with the current user, then on every change.
func (m *Manager) AuthStateChange(fn func(*user.User)) (unsubscribe func()) {
	return m.authStore.Subscribe(fn)
}

// User returns the signed-in user, or nil.
func (m *Manager) User() *user.User {
	return m.authStore.Get()
}

// GetIdentityOnce returns the identity of the authenticated session, or
// auth.ErrNoIdentity.
func (m *Manager) GetIdentityOnce(ctx context.Context) (identity.Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c := m.clients.AuthClient()
	if c == nil || !c.IsAuthenticated() {
		return nil, auth.ErrNoIdentity
	}
	return c.Identity(), nil
}

// UnsafeIdentity returns the identity of the current session client,
// anonymous or not, or nil before Start.
func (m *Manager) UnsafeIdentity() identity.Identity {
	c := m.clients.AuthClient()
	if c == nil {
		return nil
	}
	return c.Identity()
}

// OnRemainingTime calls fn with the remaining session validity on every
// worker tick.
func (m *Manager) OnRemainingTime(fn func(time.Duration)) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

func (m *Manager) emitRemaining(d time.Duration) {
	m.mu.Lock()
	fns := make([]func(time.Duration), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.mu.Unlock()
	for _, fn := range fns {
		fn(d)
	}
}

// Actor returns the actor of the current identity for iface on the
// configured satellite.
func (m *Manager) Actor(ctx context.Context, iface agent.Interface, strategy agent.CallStrategy) (*agent.Actor, error) {
	id := m.UnsafeIdentity()
	if id == nil {
		return nil, ErrNotStarted
	}
	return m.actors.GetActor(ctx, agent.ActorParams{
		Identity:  id,
		Target:    m.cfg.Target,
		Interface: iface,
		Strategy:  strategy,
	})
}

// caller resolves the actor of the current identity on every call.
func (m *Manager) caller(iface agent.Interface) agent.Caller {
	return callerFunc(func(ctx context.Context, method string, arg, out any) error {
		a, err := m.Actor(ctx, iface, agent.Uncertified)
		if err != nil {
			return err
		}
		return a.Call(ctx, method, arg, out)
	})
}

type callerFunc func(ctx context.Context, method string, arg, out any) error

func (f callerFunc) Call(ctx context.Context, method string, arg, out any) error {
	return f(ctx, method, arg, out)
}

// Close stops the worker and leaves cross-session sync.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	w, s, cancel, unsubs := m.worker, m.sync, m.cancel, m.unsubs
	m.unsubs = nil
	m.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	var errs []error
	if s != nil {
		errs = append(errs, s.Destroy())
	}
	if w != nil {
		errs = append(errs, w.Close())
	}
	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
	return errors.Join(errs...)
}
