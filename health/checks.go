package health

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jonwraymond/satauth/storage"
	"github.com/jonwraymond/satauth/worker"
)

// SessionChecker reports on the persisted session without modifying it.
// Signed-out and expired sessions are degraded, as is a delegation
// expiring within the warning window. A session key whose delegation
// cannot be read back is unhealthy.
type SessionChecker struct {
	store storage.Storage
	warn  time.Duration
	now   func() time.Time
}

// NewSessionChecker creates a SessionChecker warning warn before expiry.
func NewSessionChecker(s storage.Storage, warn time.Duration) *SessionChecker {
	return &SessionChecker{store: s, warn: warn, now: time.Now}
}

func (c *SessionChecker) Name() string { return "session" }

func (c *SessionChecker) Check(ctx context.Context) Result {
	now := c.now()
	check := worker.Inspect(ctx, c.store, now)
	switch {
	case !check.Authenticated:
		return Degraded("signed out")
	case !check.Valid:
		return Unhealthy("delegation is invalid or expired", ErrCheckFailed)
	}

	remaining := check.Expiration.Sub(now)
	details := map[string]any{
		"expires_at": check.Expiration.UTC().Format(time.RFC3339),
		"remaining":  remaining.Round(time.Second).String(),
	}
	if remaining < c.warn {
		return Degraded("session expires soon").WithDetails(details)
	}
	return Healthy("signed in").WithDetails(details)
}

// StorageChecker reads a session key to prove the storage answers.
type StorageChecker struct {
	store storage.Storage
}

// NewStorageChecker creates a StorageChecker for s.
func NewStorageChecker(s storage.Storage) *StorageChecker {
	return &StorageChecker{store: s}
}

func (c *StorageChecker) Name() string { return "storage" }

func (c *StorageChecker) Check(ctx context.Context) Result {
	_, err := c.store.Get(ctx, storage.KeySessionKey)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return Unhealthy("storage unavailable", err)
	}
	return Healthy("storage reachable")
}

// SatelliteChecker queries the status endpoint of the satellite host.
type SatelliteChecker struct {
	host   string
	client *http.Client
}

// NewSatelliteChecker creates a checker for host. A nil client uses a
// client with a 5 second timeout.
func NewSatelliteChecker(host string, client *http.Client) *SatelliteChecker {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &SatelliteChecker{host: strings.TrimRight(host, "/"), client: client}
}

func (c *SatelliteChecker) Name() string { return "satellite" }

func (c *SatelliteChecker) Check(ctx context.Context) Result {
	details := map[string]any{"host": c.host}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+"/api/v2/status", nil)
	if err != nil {
		return Unhealthy("invalid host", err).WithDetails(details)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return Unhealthy("satellite unreachable", err).WithDetails(details)
	}
	defer resp.Body.Close()

	details["status_code"] = resp.StatusCode
	switch {
	case resp.StatusCode >= 500:
		return Unhealthy("satellite failing", fmt.Errorf("%w: status %d", ErrCheckFailed, resp.StatusCode)).WithDetails(details)
	case resp.StatusCode >= 300:
		return Degraded(fmt.Sprintf("unexpected status %d", resp.StatusCode)).WithDetails(details)
	}
	return Healthy("satellite reachable").WithDetails(details)
}

var (
	_ Checker = (*SessionChecker)(nil)
	_ Checker = (*StorageChecker)(nil)
	_ Checker = (*SatelliteChecker)(nil)
)
