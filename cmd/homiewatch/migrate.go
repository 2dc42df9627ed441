package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/homiewatch/internal/infrastructure/config"
	"github.com/nerrad567/homiewatch/internal/infrastructure/database"
)

type migrateOptions struct {
	down   bool
	status bool
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	mo := &migrateOptions{}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back history database migrations",
		Long: `Apply every pending migration to the history database.

Examples:
  homiewatch migrate            # apply pending migrations
  homiewatch migrate --status   # list applied and pending migrations
  homiewatch migrate --down     # roll back the latest migration`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			return runMigrate(cmd.Context(), cfg.Database, mo, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&mo.down, "down", false, "roll back the latest applied migration")
	cmd.Flags().BoolVar(&mo.status, "status", false, "show migration status without changing anything")
	cmd.MarkFlagsMutuallyExclusive("down", "status")
	return cmd
}

func runMigrate(ctx context.Context, cfg config.DatabaseConfig, mo *migrateOptions, out io.Writer) error {
	db, err := database.Open(cfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close() //nolint:errcheck // Best-effort close on exit

	switch {
	case mo.down:
		if err := db.MigrateDown(ctx); err != nil {
			return fmt.Errorf("rolling back migration: %w", err)
		}
		fmt.Fprintln(out, "rolled back latest migration")
	case !mo.status:
		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
	}

	applied, pending, err := db.MigrationStatus(ctx)
	if err != nil {
		return fmt.Errorf("reading migration status: %w", err)
	}
	for _, m := range applied {
		fmt.Fprintf(out, "%s  %s  %s\n", readyColor.Sprint("applied"), m.Version, dimColor.Sprint(m.AppliedAt.Format(time.RFC3339)))
	}
	for _, m := range pending {
		fmt.Fprintf(out, "%s  %s  %s\n", waitingColor.Sprint("pending"), m.Version, m.Name)
	}
	return nil
}
