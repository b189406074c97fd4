package agent

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/jonwraymond/satauth/identity"
	"github.com/jonwraymond/satauth/resilience"
)

// requestDomainSeparator prefixes the request id before it is signed.
var requestDomainSeparator = []byte("\x0Aic-request")

// Config configures an Agent.
type Config struct {
	// Identity signs every request. Required.
	Identity identity.Identity

	// Host is the base URL requests are sent to. Default: ProductionHost
	Host string

	// FetchRootKey fetches the root trust key on creation. Only local
	// containers need it: production keys are well known.
	FetchRootKey bool

	// IngressExpiry bounds how long a request stays valid. Default: 5m
	IngressExpiry time.Duration

	// HTTPClient sends requests. Default: a client with a 30s timeout.
	HTTPClient *http.Client

	// Executor wraps every call. Default: 10s timeout, 3 attempts and a
	// circuit breaker per agent.
	Executor *resilience.Executor

	// RootKeyRetry retries FetchRootKey. Default: 5 attempts.
	RootKeyRetry *resilience.Retry

	// Now is the clock. Default: time.Now
	Now func() time.Time
}

// Agent sends signed calls for one identity to one host.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Context: Call and FetchRootKey honor cancellation.
// - Errors: rejections match ErrRejected and are never retried.
type Agent struct {
	config Config

	mu      sync.RWMutex
	rootKey []byte
}

// New creates an Agent, fetching the root key when configured to.
func New(ctx context.Context, config Config) (*Agent, error) {
	if config.Identity == nil {
		return nil, ErrNilIdentity
	}
	if config.Host == "" {
		config.Host = ProductionHost
	}
	if config.IngressExpiry <= 0 {
		config.IngressExpiry = 5 * time.Minute
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if config.Executor == nil {
		config.Executor = resilience.NewExecutor(
			resilience.WithCircuitBreaker(resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{})),
			resilience.WithRetry(resilience.NewRetry(resilience.RetryConfig{Jitter: true})),
			resilience.WithTimeout(10*time.Second),
		)
	}
	if config.RootKeyRetry == nil {
		config.RootKeyRetry = resilience.NewRetry(resilience.RetryConfig{MaxAttempts: 5})
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	a := &Agent{config: config}
	if config.FetchRootKey {
		if err := a.FetchRootKey(ctx); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Identity returns the identity the agent signs with.
func (a *Agent) Identity() identity.Identity {
	return a.config.Identity
}

// Host returns the base URL of the agent.
func (a *Agent) Host() string {
	return a.config.Host
}

// RootKey returns the fetched root key, or nil.
func (a *Agent) RootKey() []byte {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.rootKey
}

type statusResponse struct {
	RootKey []byte `json:"root_key"`
}

// FetchRootKey loads the root trust key of the host.
func (a *Agent) FetchRootKey(ctx context.Context) error {
	var status statusResponse
	err := a.config.RootKeyRetry.Execute(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.config.Host+"/api/v2/status", nil)
		if err != nil {
			return resilience.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")
		return a.do(req, &status)
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRootKey, err)
	}
	if len(status.RootKey) == 0 {
		return fmt.Errorf("%w: empty root key", ErrRootKey)
	}

	a.mu.Lock()
	a.rootKey = status.RootKey
	a.mu.Unlock()
	return nil
}

type requestContent struct {
	RequestType   string `json:"request_type"`
	CanisterID    string `json:"canister_id"`
	MethodName    string `json:"method_name"`
	Arg           []byte `json:"arg"`
	Sender        string `json:"sender"`
	IngressExpiry int64  `json:"ingress_expiry"`
	Nonce         []byte `json:"nonce"`
}

type envelope struct {
	Content          requestContent            `json:"content"`
	SenderPubKey     []byte                    `json:"sender_pubkey,omitempty"`
	SenderSig        []byte                    `json:"sender_sig,omitempty"`
	SenderDelegation *identity.DelegationChain `json:"sender_delegation,omitempty"`
}

type callResponse struct {
	Status string `json:"status"`
	Reply  struct {
		Arg []byte `json:"arg"`
	} `json:"reply"`
	RejectCode    int    `json:"reject_code"`
	RejectMessage string `json:"reject_message"`
}

// Call runs method on canisterID and returns the reply payload.
func (a *Agent) Call(ctx context.Context, canisterID, method string, mode Mode, arg []byte) ([]byte, error) {
	body, err := a.sign(ctx, canisterID, method, mode, arg)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/api/v2/canister/%s/%s", a.config.Host, canisterID, requestType(mode))

	return resilience.ExecuteValue(ctx, a.config.Executor, func(ctx context.Context) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, resilience.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		var resp callResponse
		if err := a.do(req, &resp); err != nil {
			return nil, err
		}
		if resp.Status != "replied" {
			return nil, resilience.Permanent(&RejectError{Code: resp.RejectCode, Message: resp.RejectMessage})
		}
		return resp.Reply.Arg, nil
	})
}

func requestType(mode Mode) string {
	if mode == Update {
		return "call"
	}
	return "query"
}

// sign builds the request envelope once so retries resend the same
// request id.
func (a *Agent) sign(ctx context.Context, canisterID, method string, mode Mode, arg []byte) ([]byte, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("agent: nonce: %w", err)
	}

	id := a.config.Identity
	env := envelope{Content: requestContent{
		RequestType:   requestType(mode),
		CanisterID:    canisterID,
		MethodName:    method,
		Arg:           arg,
		Sender:        id.Principal().Text(),
		IngressExpiry: a.config.Now().Add(a.config.IngressExpiry).UnixNano(),
		Nonce:         nonce,
	}}

	if !identity.IsAnonymous(id) {
		content, err := json.Marshal(env.Content)
		if err != nil {
			return nil, fmt.Errorf("agent: encode request: %w", err)
		}
		requestID := sha256.Sum256(content)
		sig, err := id.Sign(ctx, append(append([]byte(nil), requestDomainSeparator...), requestID[:]...))
		if err != nil {
			return nil, err
		}
		env.SenderPubKey = id.PublicKey()
		env.SenderSig = sig
		if d, ok := id.(*identity.DelegationIdentity); ok {
			env.SenderDelegation = d.Chain()
		}
	}
	return json.Marshal(env)
}

func (a *Agent) do(req *http.Request, out any) error {
	resp, err := a.config.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("%w: status %d: %s", ErrTransport, resp.StatusCode, bytes.TrimSpace(msg))
		if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return resilience.Permanent(err)
		}
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resilience.Permanent(fmt.Errorf("%w: decode response: %w", ErrTransport, err))
	}
	return nil
}
