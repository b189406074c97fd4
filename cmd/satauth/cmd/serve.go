package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/jonwraymond/satauth/auth"
	"github.com/jonwraymond/satauth/health"
	"github.com/jonwraymond/satauth/observe"
)

// CallbackPath receives OAuth redirects.
const CallbackPath = "/auth/callback"

func newServeCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the OAuth redirect callback and health endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := openApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close(context.WithoutCancel(ctx))

			server := &http.Server{
				Addr:              a.cfg.ListenAddr,
				Handler:           a.router(),
				ReadHeaderTimeout: 10 * time.Second,
				ReadTimeout:       15 * time.Second,
				WriteTimeout:      30 * time.Second,
				IdleTimeout:       60 * time.Second,
			}

			done := make(chan error, 1)
			go func() {
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					done <- fmt.Errorf("server failed: %w", err)
					return
				}
				done <- nil
			}()
			a.obs.Logger().Info(ctx, "serving", observe.F("addr", a.cfg.ListenAddr))

			select {
			case err := <-done:
				return err
			case <-ctx.Done():
			}
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			return <-done
		},
	}
}

// router serves the callback, the session state and health probes.
func (a *app) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get(CallbackPath, a.handleCallback)
	r.Get("/auth/session", a.handleSession)

	agg := health.NewAggregator()
	agg.Register(health.NewStorageChecker(a.backends.Storage))
	agg.Register(health.NewSessionChecker(a.backends.Storage, 5*time.Minute))
	agg.Register(health.NewSatelliteChecker(a.cfg.Target().Host(), nil))
	health.Mount(r, agg)

	if a.cfg.MetricsEnabled && a.cfg.MetricsExporter == "prometheus" {
		r.Handle("/metrics", promhttp.Handler())
	}
	return r
}

func (a *app) handleCallback(w http.ResponseWriter, r *http.Request) {
	err := a.manager.HandleRedirectCallback(r.Context(), r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), callbackStatus(err))
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("Signed in. You can close this window.\n"))
}

// callbackStatus maps a callback failure to an HTTP status.
func callbackStatus(err error) int {
	switch {
	case errors.Is(err, auth.ErrInvalidRedirectState):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrUserInterrupt):
		return http.StatusForbidden
	case errors.Is(err, auth.ErrTokenMalformed),
		errors.Is(err, auth.ErrTokenExpired),
		errors.Is(err, auth.ErrTokenInvalid):
		return http.StatusUnauthorized
	default:
		return http.StatusBadGateway
	}
}

type sessionResponse struct {
	Authenticated bool   `json:"authenticated"`
	Principal     string `json:"principal,omitempty"`
	Provider      string `json:"provider,omitempty"`
}

func (a *app) handleSession(w http.ResponseWriter, r *http.Request) {
	var resp sessionResponse
	if id, err := a.manager.GetIdentityOnce(r.Context()); err == nil {
		resp.Authenticated = true
		resp.Principal = id.Principal().Text()
		if u := a.manager.User(); u != nil {
			resp.Provider = string(u.Provider)
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
