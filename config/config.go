package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/jonwraymond/satauth/agent"
	"github.com/jonwraymond/satauth/auth"
	"github.com/jonwraymond/satauth/observe"
	"github.com/jonwraymond/satauth/secret"
	"github.com/jonwraymond/satauth/session"
)

// Prefix is prepended to every variable name.
const Prefix = "SATAUTH_"

// Storage backends.
const (
	StorageMemory = "memory"
	StorageBolt   = "bbolt"
	StorageRedis  = "redis"
)

// Broadcast backends. BroadcastNone disables cross-session sync.
const (
	BroadcastNone   = "none"
	BroadcastMemory = "memory"
	BroadcastRedis  = "redis"
)

var (
	storageBackends   = []string{StorageMemory, StorageBolt, StorageRedis}
	broadcastBackends = []string{BroadcastNone, BroadcastMemory, BroadcastRedis}
)

// Config is the complete satauth configuration.
type Config struct {
	SatelliteID string `env:"SATELLITE_ID"`

	// Container is the base URL of a local container. Empty targets
	// production.
	Container          string `env:"CONTAINER"`
	InternetIdentityID string `env:"INTERNET_IDENTITY_ID"`
	Dev                bool   `env:"DEV"`
	DerivationOrigin   string `env:"DERIVATION_ORIGIN"`

	GoogleClientID string `env:"GOOGLE_CLIENT_ID"`
	GitHubClientID string `env:"GITHUB_CLIENT_ID"`
	GitHubAuthURL  string `env:"GITHUB_AUTH_URL"`
	RedirectURL    string `env:"REDIRECT_URL" envDefault:"http://localhost:8080/auth/callback"`

	AppName string `env:"APP_NAME" envDefault:"satauth"`
	AppLogo string `env:"APP_LOGO"`

	// Origin scopes cross-session notifications.
	Origin string `env:"ORIGIN" envDefault:"http://localhost:8080"`

	Storage     string `env:"STORAGE" envDefault:"bbolt"`
	BoltPath    string `env:"BOLT_PATH" envDefault:"satauth.db"`
	BoltBucket  string `env:"BOLT_BUCKET"`
	RedisURL    string `env:"REDIS_URL"`
	RedisPrefix string `env:"REDIS_PREFIX"`
	Broadcast   string `env:"BROADCAST" envDefault:"memory"`

	WorkerInterval time.Duration `env:"WORKER_INTERVAL" envDefault:"1s"`
	KeyCacheTTL    time.Duration `env:"KEY_CACHE_TTL" envDefault:"10m"`

	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8080"`

	ServiceName     string  `env:"SERVICE_NAME" envDefault:"satauth"`
	Version         string  `env:"VERSION" envDefault:"dev"`
	TracingEnabled  bool    `env:"TRACING_ENABLED"`
	TracingExporter string  `env:"TRACING_EXPORTER" envDefault:"otlp"`
	SamplePct       float64 `env:"TRACING_SAMPLE_PCT" envDefault:"1"`
	MetricsEnabled  bool    `env:"METRICS_ENABLED"`
	MetricsExporter string  `env:"METRICS_EXPORTER" envDefault:"prometheus"`
	LogLevel        string  `env:"LOG_LEVEL" envDefault:"info"`
}

// LoadOptions tunes Load.
type LoadOptions struct {
	// Files are dotenv files loaded before parsing. Missing files are
	// skipped. Default: .env
	Files []string

	// Environ replaces the process environment when non-nil. Dotenv files
	// are not loaded in that case.
	Environ map[string]string

	// Resolver resolves secret references. Default: the env, file and
	// dotenv providers of secret.NewDefaultRegistry.
	Resolver *secret.Resolver
}

// Load reads, resolves and validates the configuration.
func Load(ctx context.Context, opts LoadOptions) (*Config, error) {
	if opts.Environ == nil {
		files := opts.Files
		if len(files) == 0 {
			files = []string{".env"}
		}
		for _, f := range files {
			if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config: load %s: %w", f, err)
			}
		}
	}

	var cfg Config
	envOpts := env.Options{Prefix: Prefix}
	if opts.Environ != nil {
		envOpts.Environment = opts.Environ
	}
	if err := env.ParseWithOptions(&cfg, envOpts); err != nil {
		return nil, errors.Join(ErrParse, err)
	}

	resolver := opts.Resolver
	if resolver == nil {
		var err error
		resolver, err = defaultResolver()
		if err != nil {
			return nil, err
		}
		defer resolver.Close()
	}
	if err := cfg.resolve(ctx, resolver); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func defaultResolver() (*secret.Resolver, error) {
	reg := secret.NewDefaultRegistry()
	var providers []secret.Provider
	for _, name := range reg.List() {
		p, err := reg.Create(name, nil)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	return secret.NewResolver(true, providers...), nil
}

// resolve expands references in the settings that may hold them.
func (c *Config) resolve(ctx context.Context, r *secret.Resolver) error {
	return r.ResolveAll(ctx, map[string]*string{
		"SATELLITE_ID":     &c.SatelliteID,
		"GOOGLE_CLIENT_ID": &c.GoogleClientID,
		"GITHUB_CLIENT_ID": &c.GitHubClientID,
		"GITHUB_AUTH_URL":  &c.GitHubAuthURL,
		"REDIRECT_URL":     &c.RedirectURL,
		"BOLT_PATH":        &c.BoltPath,
		"REDIS_URL":        &c.RedisURL,
	})
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if !slices.Contains(storageBackends, c.Storage) {
		return fmt.Errorf("%w: %q", ErrInvalidStorage, c.Storage)
	}
	if !slices.Contains(broadcastBackends, c.Broadcast) {
		return fmt.Errorf("%w: %q", ErrInvalidBus, c.Broadcast)
	}
	if c.Storage == StorageBolt && c.BoltPath == "" {
		return ErrMissingPath
	}
	if (c.Storage == StorageRedis || c.Broadcast == BroadcastRedis) && c.RedisURL == "" {
		return ErrMissingRedisURL
	}
	if c.WorkerInterval <= 0 || c.KeyCacheTTL <= 0 {
		return ErrInvalidInterval
	}
	if c.Dev && c.Container == "" {
		return ErrDevInProduction
	}
	obs := c.Observe()
	return obs.Validate()
}

// Environment returns the sign-in environment.
func (c *Config) Environment() auth.Environment {
	return auth.Environment{
		Container:          c.Container,
		InternetIdentityID: c.InternetIdentityID,
		Dev:                c.Dev,
		DerivationOrigin:   c.DerivationOrigin,
		GoogleClientID:     c.GoogleClientID,
		GitHubClientID:     c.GitHubClientID,
		GitHubAuthURL:      c.GitHubAuthURL,
		RedirectURL:        c.RedirectURL,
		AppName:            c.AppName,
		AppLogo:            c.AppLogo,
	}
}

// Target returns the configured satellite.
func (c *Config) Target() agent.Target {
	return agent.Target{SatelliteID: c.SatelliteID, Container: c.Container}
}

// Observe returns the observability settings. Logging is always enabled.
func (c *Config) Observe() observe.Config {
	return observe.Config{
		ServiceName: c.ServiceName,
		Version:     c.Version,
		Tracing: observe.TracingConfig{
			Enabled:   c.TracingEnabled,
			Exporter:  c.TracingExporter,
			SamplePct: c.SamplePct,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  c.MetricsEnabled,
			Exporter: c.MetricsExporter,
		},
		Logging: observe.LoggingConfig{Enabled: true, Level: c.LogLevel},
	}
}

// Session returns the session manager settings.
func (c *Config) Session() session.Config {
	return session.Config{
		Target:         c.Target(),
		Env:            c.Environment(),
		Origin:         c.Origin,
		WorkerInterval: c.WorkerInterval,
		KeyCacheTTL:    c.KeyCacheTTL,
	}
}
