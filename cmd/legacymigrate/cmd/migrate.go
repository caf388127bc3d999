package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sessionvault/legacymigrate/internal/etl"
	"github.com/sessionvault/legacymigrate/internal/legacy"
	"github.com/sessionvault/legacymigrate/internal/migration"
	"github.com/sessionvault/legacymigrate/internal/migrations"
	"github.com/sessionvault/legacymigrate/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending migrations, importing the legacy store",
	Long: `Apply every pending migration unit to the relational store.

The legacy import reads the bbolt store named by data.legacy_store_path
(opened read-only) and attributes outgoing messages to
migration.local_user_public_key. Each unit commits on its own; a failed
unit is rolled back and the run stops.

Examples:
  legacymigrate migrate
  legacymigrate --home /srv/session migrate`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		src, err := legacy.Open(cfg.LegacyStorePath(), legacy.Options{Timeout: cfg.Migration.OpenTimeout.Duration})
		if err != nil {
			return err
		}
		defer src.Close()

		s, err := store.Open(cfg.DatabasePath())
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer s.Close()

		var summary *etl.Summary
		deps := migrations.Deps{
			Legacy: src,
			Import: etl.Options{
				LocalUserPublicKey:       cfg.Migration.LocalUserPublicKey,
				HasHiddenMessageRequests: cfg.Migration.HasHiddenMessageRequests,
			},
			OnImport: func(imported *etl.Summary) { summary = imported },
		}
		runner, err := newRunner(s, deps,
			migration.WithProgress(newCLIProgress(out)),
			migration.WithConfigSyncer(configSyncNotice{out: out}))
		if err != nil {
			return err
		}

		pending, err := runner.Pending(cmd.Context())
		if err != nil {
			return fmt.Errorf("list pending migrations: %w", err)
		}
		if len(pending) == 0 {
			fmt.Fprintf(out, "Store %s is up to date.\n", cfg.DatabasePath())
			return nil
		}
		fmt.Fprintf(out, "Applying %d migration(s) to %s (at least %s)...\n",
			len(pending), cfg.DatabasePath(), migration.EstimatedDuration(pending))

		result, err := runner.Run(cmd.Context())
		if err != nil {
			if errors.Is(err, migration.ErrMigrationFailed) {
				fmt.Fprintln(cmd.ErrOrStderr(), "migration failed: do not use this data store")
			}
			return err
		}

		fmt.Fprintf(out, "Applied %d migration(s) in %s.\n", len(result.Applied), formatDuration(result.Duration))
		if summary != nil {
			printSummary(out, summary)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
