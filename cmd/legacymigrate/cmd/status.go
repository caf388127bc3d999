package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sessionvault/legacymigrate/internal/migration"
	"github.com/sessionvault/legacymigrate/internal/migrations"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show applied and pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openExistingStore()
		if err != nil {
			return err
		}
		defer s.Close()

		runner, err := newRunner(s, migrations.Deps{})
		if err != nil {
			return err
		}
		status, err := runner.Status(cmd.Context())
		if err != nil {
			return fmt.Errorf("migration status: %w", err)
		}

		out := cmd.OutOrStdout()
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TARGET\tMIGRATION\tSTATUS")
		var pending []migration.Unit
		for _, st := range status {
			state := "pending"
			if st.Applied {
				state = "applied " + st.AppliedAt.Local().Format(time.DateTime)
			} else {
				pending = append(pending, st.Unit)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", st.Unit.Target, st.Unit.Identifier, state)
		}
		w.Flush()

		fmt.Fprintln(out)
		if len(pending) == 0 {
			fmt.Fprintln(out, "All migrations applied.")
			return nil
		}
		fmt.Fprintf(out, "%d pending, estimated at least %s.\n", len(pending), migration.EstimatedDuration(pending))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
