// Package cmd implements the satauth commands.
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/satauth/config"
	"github.com/jonwraymond/satauth/session"
)

// options are shared by every command.
type options struct {
	envFiles []string

	// environ replaces the process environment in tests.
	environ map[string]string

	// configure adjusts the session dependencies in tests.
	configure func(*session.Deps)
}

func (o *options) loadOptions() config.LoadOptions {
	return config.LoadOptions{Files: o.envFiles, Environ: o.environ}
}

// NewRootCommand builds the satauth command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&options{})
}

func newRootCommand(opts *options) *cobra.Command {
	root := &cobra.Command{
		Use:   "satauth",
		Short: "Sign in to a satellite and manage the session",
		Long: `satauth keeps a delegated session to a satellite in local storage.

Configuration is read from SATAUTH_* variables and an optional .env file.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", nil, "dotenv files to load (default .env)")

	root.AddCommand(
		newSignInCommand(opts),
		newWhoamiCommand(opts),
		newSignOutCommand(opts),
		newWatchCommand(opts),
		newServeCommand(opts),
	)
	return root
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
