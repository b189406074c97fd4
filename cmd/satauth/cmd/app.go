package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonwraymond/satauth/auth"
	"github.com/jonwraymond/satauth/config"
	"github.com/jonwraymond/satauth/observe"
	"github.com/jonwraymond/satauth/session"
)

// app is a started session manager with its backends.
type app struct {
	cfg      *config.Config
	backends *config.Backends
	obs      observe.Observer
	manager  *session.Manager
}

func openApp(ctx context.Context, opts *options) (*app, error) {
	cfg, err := config.Load(ctx, opts.loadOptions())
	if err != nil {
		return nil, err
	}

	obs, err := observe.NewObserver(ctx, cfg.Observe())
	if err != nil {
		return nil, err
	}
	backends, err := cfg.Open(ctx)
	if err != nil {
		_ = obs.Shutdown(ctx)
		return nil, err
	}

	deps := session.Deps{
		Storage:  backends.Storage,
		Channel:  backends.Channel,
		Observer: obs,
	}
	if cfg.GoogleClientID != "" {
		deps.TokenKeys = auth.NewJWKSKeyProvider(auth.JWKSConfig{URL: auth.GoogleJWKSURL})
	}

	if opts.configure != nil {
		opts.configure(&deps)
	}

	m, err := session.New(cfg.Session(), deps)
	if err == nil {
		err = m.Start(ctx)
	}
	if err != nil {
		_ = backends.Close()
		_ = obs.Shutdown(ctx)
		return nil, fmt.Errorf("start session: %w", err)
	}
	return &app{cfg: cfg, backends: backends, obs: obs, manager: m}, nil
}

func (a *app) Close(ctx context.Context) error {
	return errors.Join(
		a.manager.Close(),
		a.backends.Close(),
		a.obs.Shutdown(ctx),
	)
}
