package auth

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

const (
	// InternetIdentityURL is the production Internet Identity domain.
	InternetIdentityURL = "https://identity.internetcomputer.org"

	// DefaultInternetIdentityID is the canister id of Internet Identity in
	// local containers.
	DefaultInternetIdentityID = "rdmx6-jaaaa-aaaaa-aaadq-cai"

	// NFIDURL is the NFID authentication endpoint.
	NFIDURL = "https://nfid.one/authenticate/"
)

// Environment describes where the application runs.
type Environment struct {
	// Container is the base URL of a local container. Empty in production.
	Container string `json:"container,omitempty"`

	// InternetIdentityID is the Internet Identity canister of the container.
	InternetIdentityID string `json:"internet_identity_id,omitempty"`

	// Safari selects the query-parameter URL shape for local Internet
	// Identity, since Safari refuses *.localhost subdomain popups.
	Safari bool `json:"safari,omitempty"`

	// Dev enables the dev provider.
	Dev bool `json:"dev,omitempty"`

	DerivationOrigin string `json:"derivation_origin,omitempty"`

	GoogleClientID string `json:"google_client_id,omitempty"`
	GitHubClientID string `json:"github_client_id,omitempty"`

	// GitHubAuthURL is the base URL of the proxy issuing id tokens for
	// GitHub sign-ins. Empty uses github.com directly.
	GitHubAuthURL string `json:"github_auth_url,omitempty"`

	// RedirectURL is where OAuth providers send the browser back.
	RedirectURL string `json:"redirect_url,omitempty"`

	AppName string `json:"app_name,omitempty"`
	AppLogo string `json:"app_logo,omitempty"`

	// ScreenWidth and ScreenHeight center popups when known.
	ScreenWidth  int `json:"screen_width,omitempty"`
	ScreenHeight int `json:"screen_height,omitempty"`
}

// Local reports whether the application targets a local container.
func (e Environment) Local() bool {
	return e.Container != ""
}

// InternetIdentity returns the Internet Identity URL for e. domain
// overrides the production domain, e.g. "ic0.app".
func (e Environment) InternetIdentity(domain string) string {
	if !e.Local() {
		if domain == "" {
			return InternetIdentityURL
		}
		return "https://identity." + domain
	}

	iiID := e.InternetIdentityID
	if iiID == "" {
		iiID = DefaultInternetIdentityID
	}
	container := strings.TrimRight(e.Container, "/")
	if e.Safari {
		return container + "?canisterId=" + iiID
	}

	port := ""
	if u, err := url.Parse(container); err == nil {
		port = u.Port()
	}
	if port == "" {
		return fmt.Sprintf("http://%s.localhost", iiID)
	}
	return "http://" + net.JoinHostPort(iiID+".localhost", port)
}

// NFID returns the NFID URL announcing appName and logo.
func (e Environment) NFID(appName, logo string) string {
	if appName == "" {
		appName = e.AppName
	}
	if logo == "" {
		logo = e.AppLogo
	}
	q := url.Values{}
	q.Set("applicationName", appName)
	q.Set("applicationLogo", logo)
	return NFIDURL + "?" + q.Encode()
}

// PopupFeatures returns window features for a width by height popup,
// centered when the screen size is known.
func (e Environment) PopupFeatures(width, height int) string {
	features := fmt.Sprintf("toolbar=no, location=no, menubar=no, width=%d, height=%d", width, height)
	if e.ScreenWidth > 0 && e.ScreenHeight > 0 {
		top := max((e.ScreenHeight-height)/2, 0)
		left := max((e.ScreenWidth-width)/2, 0)
		features += fmt.Sprintf(", top=%d, left=%d", top, left)
	}
	return features
}
