package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/satauth/auth"
	"github.com/jonwraymond/satauth/identity"
	"github.com/jonwraymond/satauth/session"
	"github.com/jonwraymond/satauth/user"
	"github.com/jonwraymond/satauth/worker"
)

func newSignInCommand(opts *options) *cobra.Command {
	signin := &cobra.Command{
		Use:   "signin",
		Short: "Sign in with a provider",
	}

	var ttl time.Duration
	dev := &cobra.Command{
		Use:   "dev [identifier]",
		Short: "Sign in with a development identity (local containers only)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close(context.WithoutCancel(ctx))

			o := auth.DevOptions{MaxTimeToLive: ttl}
			if len(args) == 1 {
				o.Identifier = args[0]
			}
			if err := a.manager.SignIn(ctx, o, auth.SignInContext{}); err != nil {
				return err
			}
			id, err := a.manager.GetIdentityOnce(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id.Principal().Text())
			return nil
		},
	}
	dev.Flags().DurationVar(&ttl, "ttl", identity.DefaultSessionTTL, "session lifetime")

	signin.AddCommand(dev)
	return signin
}

func newWhoamiCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Print the signed-in principal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close(context.WithoutCancel(ctx))

			id, err := a.manager.GetIdentityOnce(ctx)
			if errors.Is(err, auth.ErrNoIdentity) {
				fmt.Fprintln(cmd.OutOrStdout(), "anonymous")
				return nil
			}
			if err != nil {
				return err
			}

			now := time.Now()
			check := worker.Inspect(ctx, a.backends.Storage, now)
			fmt.Fprintf(cmd.OutOrStdout(), "%s\texpires in %s\n", id.Principal().Text(), check.Expiration.Sub(now).Round(time.Second))
			return nil
		},
	}
}

func newSignOutCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "signout",
		Short: "End the session and drop its keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close(context.WithoutCancel(ctx))

			noReload := false
			if err := a.manager.SignOut(ctx, session.SignOutOptions{WindowReload: &noReload}); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "signed out")
			return nil
		},
	}
}

func newWatchCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Report the remaining session time until it expires",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := openApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close(context.WithoutCancel(ctx))

			if a.manager.User() == nil {
				return auth.ErrNoIdentity
			}

			out := cmd.OutOrStdout()
			var mu sync.Mutex
			unsubRemaining := a.manager.OnRemainingTime(func(d time.Duration) {
				mu.Lock()
				defer mu.Unlock()
				fmt.Fprintf(out, "session valid for %s\n", d.Round(time.Second))
			})
			defer unsubRemaining()

			expired := make(chan struct{})
			var once sync.Once
			unsubState := a.manager.AuthStateChange(func(u *user.User) {
				if u == nil {
					once.Do(func() { close(expired) })
				}
			})
			defer unsubState()

			select {
			case <-expired:
				mu.Lock()
				defer mu.Unlock()
				fmt.Fprintln(out, "session expired, signed out")
				return nil
			case <-ctx.Done():
				return nil
			}
		},
	}
}
