package auth

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonwraymond/satauth/authclient"
	"github.com/jonwraymond/satauth/identity"
	"github.com/jonwraymond/satauth/user"
)

// popupOpener answers like an identity provider holding root and records
// the requests it receives.
type popupOpener struct {
	root identity.Identity
	err  error
	mu   sync.Mutex
	reqs []authclient.AuthorizeRequest
}

func (o *popupOpener) Authorize(ctx context.Context, req authclient.AuthorizeRequest) (*authclient.AuthorizeResponse, error) {
	o.mu.Lock()
	o.reqs = append(o.reqs, req)
	o.mu.Unlock()
	if o.err != nil {
		return nil, o.err
	}
	chain, err := identity.CreateDelegationChain(ctx, o.root, req.SessionPublicKey, time.Now().Add(req.MaxTimeToLive), nil, nil)
	if err != nil {
		return nil, err
	}
	return &authclient.AuthorizeResponse{Delegations: chain.Delegations, UserPublicKey: chain.PublicKey}, nil
}

func newPopupOpener(t *testing.T) *popupOpener {
	t.Helper()
	root, err := identity.GenerateEd25519()
	if err != nil {
		t.Fatalf("GenerateEd25519() error = %v", err)
	}
	return &popupOpener{root: root}
}

func TestPopupProvider_InternetIdentity(t *testing.T) {
	opener := newPopupOpener(t)
	deps, log := newTestDeps(t, authclient.WithOpener(opener))

	if err := SignIn(context.Background(), deps, InternetIdentityOptions{MaxTimeToLive: time.Hour}, SignInContext{}); err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	assertSignedIn(t, deps, opener.root.Principal(), user.InternetIdentity)

	req := opener.reqs[0]
	if req.IdentityProviderURL != "http://rdmx6-jaaaa-aaaaa-aaadq-cai.localhost:5987" {
		t.Errorf("IdentityProviderURL = %q", req.IdentityProviderURL)
	}
	if req.MaxTimeToLive != time.Hour {
		t.Errorf("MaxTimeToLive = %v, want 1h", req.MaxTimeToLive)
	}
	if !strings.Contains(req.WindowFeatures, "width=576, height=576") {
		t.Errorf("WindowFeatures = %q", req.WindowFeatures)
	}
	if got, want := log.get(), okSteps(AuthorizingWithProvider, CreatingOrRetrievingUser); !slices.Equal(got, want) {
		t.Errorf("progress = %v, want %v", got, want)
	}
}

func TestPopupProvider_NFID(t *testing.T) {
	p, err := NewProvider(NFIDOptions{AppName: "Demo", LogoURL: "https://demo.example/logo.png"}, Environment{})
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}
	popup := p.(*PopupProvider)
	if !strings.HasPrefix(popup.URL(), NFIDURL+"?") || !strings.Contains(popup.URL(), "applicationName=Demo") {
		t.Errorf("URL() = %q", popup.URL())
	}
	if !strings.Contains(popup.WindowFeatures(), "width=505, height=705") {
		t.Errorf("WindowFeatures() = %q", popup.WindowFeatures())
	}
	if popup.MaxTimeToLive() != authclient.DefaultMaxTimeToLive {
		t.Errorf("MaxTimeToLive() = %v, want default", popup.MaxTimeToLive())
	}
}

func TestPopupProvider_UserClosesWindow(t *testing.T) {
	opener := newPopupOpener(t)
	opener.err = authclient.ErrUserInterrupt
	deps, log := newTestDeps(t, authclient.WithOpener(opener))

	err := SignIn(context.Background(), deps, InternetIdentityOptions{}, SignInContext{})
	if !errors.Is(err, ErrUserInterrupt) {
		t.Fatalf("SignIn() error = %v, want ErrUserInterrupt", err)
	}
	assertSignedOut(t, deps)
	want := []string{"authorizing_with_provider:in_progress", "authorizing_with_provider:error"}
	if got := log.get(); !slices.Equal(got, want) {
		t.Errorf("progress = %v, want %v", got, want)
	}
}

func TestPopupProvider_ProviderFailure(t *testing.T) {
	opener := newPopupOpener(t)
	opener.err = errors.New("window blocked")
	deps, _ := newTestDeps(t, authclient.WithOpener(opener))

	err := SignIn(context.Background(), deps, NFIDOptions{}, SignInContext{})
	if !errors.Is(err, ErrSignIn) || errors.Is(err, ErrUserInterrupt) {
		t.Fatalf("SignIn() error = %v, want ErrSignIn", err)
	}
}
