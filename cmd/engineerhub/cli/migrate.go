package cli

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/engineerhub/engineerhub/internal/app"
	"github.com/engineerhub/engineerhub/internal/platform/db"
)

type migrator interface {
	Up() error
	Down() error
	Version() (uint, bool, error)
	Close() error
}

var newMigrator = func(dsn string) (migrator, error) {
	return db.NewMigrator(dsn)
}

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: withMigrator(func(cmd *cobra.Command, m migrator) error {
			if err := m.Up(); err != nil {
				return err
			}
			return printVersion(cmd, m)
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back every migration",
		Args:  cobra.NoArgs,
		RunE: withMigrator(func(cmd *cobra.Command, m migrator) error {
			if err := m.Down(); err != nil {
				return err
			}
			cmd.Println("All migrations rolled back")
			return nil
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE:  withMigrator(printVersion),
	})
	return cmd
}

func withMigrator(fn func(cmd *cobra.Command, m migrator) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		cfg, err := app.LoadConfig()
		if err != nil {
			return oops.Code("CONFIG_INVALID").Wrap(err)
		}
		m, err := newMigrator(cfg.PGDSN)
		if err != nil {
			return oops.Code("MIGRATION_INIT_FAILED").With("operation", "open migrator").Wrap(err)
		}
		defer func() {
			if closeErr := m.Close(); closeErr != nil {
				cmd.PrintErrln("close migrator:", closeErr)
			}
		}()
		return fn(cmd, m)
	}
}

func printVersion(cmd *cobra.Command, m migrator) error {
	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	if dirty {
		cmd.Printf("Schema version %d (dirty)\n", version)
		return nil
	}
	cmd.Printf("Schema version %d\n", version)
	return nil
}
