package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show database statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openExistingStore()
		if err != nil {
			return err
		}
		defer s.Close()

		stats, err := s.GetStats(cmd.Context())
		if err != nil {
			return fmt.Errorf("get stats: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Database: %s\n", cfg.DatabasePath())
		fmt.Fprintf(out, "  Profiles:     %d\n", stats.ProfileCount)
		fmt.Fprintf(out, "  Contacts:     %d\n", stats.ContactCount)
		fmt.Fprintf(out, "  Threads:      %d\n", stats.ThreadCount)
		fmt.Fprintf(out, "  Interactions: %d\n", stats.InteractionCount)
		fmt.Fprintf(out, "  Attachments:  %d\n", stats.AttachmentCount)
		fmt.Fprintf(out, "  Jobs:         %d\n", stats.JobCount)
		fmt.Fprintf(out, "  Settings:     %d\n", stats.SettingCount)
		fmt.Fprintf(out, "  Size:         %.2f MB\n", float64(stats.DatabaseSize)/(1024*1024))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
