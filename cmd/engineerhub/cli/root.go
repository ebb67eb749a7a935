// Package cli implements the engineerhub command line.
package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/engineerhub/engineerhub/internal/app"
)

// NewRootCmd creates the root command. Without a subcommand it serves HTTP.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "engineerhub",
		Short:         "engineerhub API server and operations tooling",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewJobsCmd())

	return cmd
}

// loadRuntimeConfig loads configuration and the logger every subcommand needs.
func loadRuntimeConfig() (*app.Config, *slog.Logger, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	return cfg, app.NewLogger(cfg), nil
}
