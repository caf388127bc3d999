package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sessionvault/legacymigrate/internal/migrations"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check the relational store for integrity violations",
	Long: `Check the migrated store: every foreign key must resolve and every
contact must have a profile. Exits non-zero when a violation is found.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openExistingStore()
		if err != nil {
			return err
		}
		defer s.Close()
		out := cmd.OutOrStdout()

		runner, err := newRunner(s, migrations.Deps{})
		if err != nil {
			return err
		}
		pending, err := runner.Pending(cmd.Context())
		if err != nil {
			return fmt.Errorf("list pending migrations: %w", err)
		}
		if len(pending) > 0 {
			fmt.Fprintf(out, "Warning: %d migration(s) pending, starting with %s.\n", len(pending), pending[0].Key())
		}

		violations, err := s.CheckIntegrity(cmd.Context())
		if err != nil {
			return fmt.Errorf("check integrity: %w", err)
		}
		if len(violations) == 0 {
			fmt.Fprintf(out, "Store %s is consistent.\n", cfg.DatabasePath())
			return nil
		}

		fmt.Fprintf(out, "Found %d integrity violation(s):\n", len(violations))
		for _, v := range violations {
			fmt.Fprintf(out, "  - %s\n", v)
		}
		return fmt.Errorf("%d integrity violation(s)", len(violations))
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}
