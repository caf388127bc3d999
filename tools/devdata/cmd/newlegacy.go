package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/sessionvault/legacymigrate/tools/devdata/dataset"
)

var (
	newLegacyDirFlag      string
	newLegacyNameFlag     string
	newLegacyContactsFlag int
	newLegacyGroupsFlag   int
	newLegacyMessagesFlag int
	newLegacySeedFlag     uint64
	newLegacyDryRun       bool
)

var newLegacyCmd = &cobra.Command{
	Use:   "new-legacy",
	Short: "Write a synthetic legacy store",
	Long:  "Creates <dir>/<name>.bolt holding contacts, closed groups and messages in the legacy record format, ready for 'legacymigrate migrate'.",
	RunE:  runNewLegacy,
}

func init() {
	newLegacyCmd.Flags().StringVar(&newLegacyDirFlag, "dir", ".", "directory to write the store into")
	newLegacyCmd.Flags().StringVar(&newLegacyNameFlag, "name", "", "dataset name (required)")
	newLegacyCmd.Flags().IntVar(&newLegacyContactsFlag, "contacts", 20, "number of contacts, each with a thread")
	newLegacyCmd.Flags().IntVar(&newLegacyGroupsFlag, "groups", 2, "number of closed groups")
	newLegacyCmd.Flags().IntVar(&newLegacyMessagesFlag, "messages", 50, "messages per thread")
	newLegacyCmd.Flags().Uint64Var(&newLegacySeedFlag, "seed", 1, "random seed for message bodies")
	newLegacyCmd.Flags().BoolVar(&newLegacyDryRun, "dry-run", false, "show what would be written without writing")
	_ = newLegacyCmd.MarkFlagRequired("name")
	rootCmd.AddCommand(newLegacyCmd)
}

func runNewLegacy(cmd *cobra.Command, args []string) error {
	if err := dataset.ValidateDatasetName(newLegacyNameFlag); err != nil {
		return fmt.Errorf("invalid --name: %w", err)
	}
	spec := dataset.Spec{
		Contacts:          newLegacyContactsFlag,
		ClosedGroups:      newLegacyGroupsFlag,
		MessagesPerThread: newLegacyMessagesFlag,
		Seed:              newLegacySeedFlag,
	}
	if err := spec.Validate(); err != nil {
		return err
	}

	dir, err := filepath.Abs(filepath.Clean(newLegacyDirFlag))
	if err != nil {
		return fmt.Errorf("resolve --dir: %w", err)
	}
	path := filepath.Join(dir, newLegacyNameFlag+".bolt")

	if newLegacyDryRun {
		fmt.Fprintf(os.Stdout, "Destination: %s\n", path)
		fmt.Fprintf(os.Stdout, "Contacts:    %d\n", spec.Contacts)
		fmt.Fprintf(os.Stdout, "Groups:      %d\n", spec.ClosedGroups)
		fmt.Fprintf(os.Stdout, "Messages:    %d per thread\n", spec.MessagesPerThread)
		fmt.Fprintf(os.Stderr, "devdata: dry run, no changes made\n")
		return nil
	}

	result, err := dataset.Generate(path, spec)
	if err != nil {
		return fmt.Errorf("generate dataset: %w", err)
	}

	fmt.Fprintf(os.Stderr, "devdata: created %s in %s\n", path, result.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(os.Stdout, "Contacts:     %d\n", result.Contacts)
	fmt.Fprintf(os.Stdout, "Threads:      %d\n", result.Threads)
	fmt.Fprintf(os.Stdout, "Interactions: %d\n", result.Interactions)
	fmt.Fprintf(os.Stdout, "Size:         %s\n", formatSize(result.Size))
	fmt.Fprintf(os.Stdout, "Local user:   %s\n", dataset.LocalKey)
	return nil
}

func formatSize(bytes int64) string {
	const (
		kb = 1024
		mb = 1024 * kb
		gb = 1024 * mb
	)
	switch {
	case bytes >= gb:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(gb))
	case bytes >= mb:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(mb))
	case bytes >= kb:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(kb))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
