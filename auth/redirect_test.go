package auth

import (
	"context"
	"errors"
	"net/url"
	"slices"
	"testing"

	"github.com/jonwraymond/satauth/storage"
	"github.com/jonwraymond/satauth/user"
)

// capturingRedirector records the URLs it is asked to open.
type capturingRedirector struct {
	urls []string
	err  error
}

func (r *capturingRedirector) Redirect(_ context.Context, u string) error {
	r.urls = append(r.urls, u)
	return r.err
}

func TestRedirectProvider_MissingClientID(t *testing.T) {
	deps, log := newTestDeps(t)
	deps.Redirector = &capturingRedirector{}

	for _, opts := range []Options{GoogleOptions{}, GitHubOptions{}} {
		if err := SignIn(context.Background(), deps, opts, SignInContext{}); !errors.Is(err, ErrMissingClientID) {
			t.Errorf("SignIn(%T) error = %v, want ErrMissingClientID", opts, err)
		}
	}
	if len(log.get()) != 0 {
		t.Errorf("no step should run, got %v", log.get())
	}
}

func TestRedirectProvider_Google(t *testing.T) {
	deps, log := newTestDeps(t)
	redirector := &capturingRedirector{}
	deps.Redirector = redirector
	deps.Env.GoogleClientID = "google-client"
	deps.Env.RedirectURL = "https://app.example/callback"

	if err := SignIn(context.Background(), deps, GoogleOptions{LoginHint: "alice@example.com"}, SignInContext{}); err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	if got, want := log.get(), okSteps(AuthorizingWithProvider); !slices.Equal(got, want) {
		t.Errorf("progress = %v, want %v", got, want)
	}
	if len(redirector.urls) != 1 {
		t.Fatalf("redirects = %v", redirector.urls)
	}

	rc, err := loadRedirectContext(context.Background(), deps.Clients.Storage())
	if err != nil {
		t.Fatalf("loadRedirectContext() error = %v", err)
	}
	if rc.Provider != user.Google || rc.ClientID != "google-client" || len(rc.Salt) != 32 {
		t.Errorf("redirect context = %+v", rc)
	}

	u, err := url.Parse(redirector.urls[0])
	if err != nil {
		t.Fatalf("url.Parse() error = %v", err)
	}
	if u.Host != "accounts.google.com" {
		t.Errorf("host = %q", u.Host)
	}
	q := u.Query()
	checks := map[string]string{
		"client_id":             "google-client",
		"redirect_uri":          "https://app.example/callback",
		"response_type":         "code",
		"state":                 rc.State,
		"scope":                 "openid profile email",
		"code_challenge_method": "S256",
		"login_hint":            "alice@example.com",
	}
	for k, want := range checks {
		if got := q.Get(k); got != want {
			t.Errorf("%s = %q, want %q", k, got, want)
		}
	}
	if q.Get("nonce") == "" || q.Get("code_challenge") == "" {
		t.Errorf("nonce and code_challenge must be set: %v", q)
	}

	// The session stays anonymous until the callback completes.
	if deps.Clients.AuthClient().IsAuthenticated() {
		t.Error("client should not be authenticated before the callback")
	}
}

func TestRedirectProvider_GitHubProxy(t *testing.T) {
	deps, _ := newTestDeps(t)
	redirector := &capturingRedirector{}
	deps.Redirector = redirector

	opts := GitHubOptions{ClientID: "gh", AuthURL: "https://auth.example/github/"}
	if err := SignIn(context.Background(), deps, opts, SignInContext{}); err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	u, _ := url.Parse(redirector.urls[0])
	if u.Host != "auth.example" || u.Path != "/github/authorize" {
		t.Errorf("authorization URL = %s", u)
	}
	if u.Query().Get("scope") != "read:user user:email" {
		t.Errorf("scope = %q", u.Query().Get("scope"))
	}
}

func TestRedirectProvider_RedirectFails(t *testing.T) {
	deps, _ := newTestDeps(t)
	deps.Redirector = &capturingRedirector{err: errors.New("no browser")}

	err := SignIn(context.Background(), deps, GitHubOptions{ClientID: "gh"}, SignInContext{})
	if !errors.Is(err, ErrSignIn) {
		t.Fatalf("SignIn() error = %v, want ErrSignIn", err)
	}
	if _, err := deps.Clients.Storage().Get(context.Background(), storage.KeyRedirectContext); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("redirect context should be removed, Get() error = %v", err)
	}
}

func TestRedirectProvider_MissingRedirector(t *testing.T) {
	deps, _ := newTestDeps(t)
	if err := SignIn(context.Background(), deps, GitHubOptions{ClientID: "gh"}, SignInContext{}); !errors.Is(err, ErrMissingDependency) {
		t.Errorf("SignIn() error = %v, want ErrMissingDependency", err)
	}
}
