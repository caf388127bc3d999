package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sessionvault/legacymigrate/internal/store"
	"github.com/sessionvault/legacymigrate/internal/textutil"
)

var (
	searchLimit int
	searchJSON  bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search migrated profiles, groups and messages",
	Long: `Search the migrated store. Every term must match; matching ignores case
and diacritics and treats each term as a prefix.

Examples:
  legacymigrate search alice
  legacymigrate search "lunch tomorrow" --limit 10`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		if strings.TrimSpace(query) == "" {
			return fmt.Errorf("empty search query")
		}

		s, err := openExistingStore()
		if err != nil {
			return err
		}
		defer s.Close()

		hits, err := s.Search(cmd.Context(), query, searchLimit)
		if err != nil {
			return fmt.Errorf("search: %w", err)
		}

		out := cmd.OutOrStdout()
		if searchJSON {
			return outputSearchHitsJSON(out, hits)
		}
		if len(hits) == 0 {
			fmt.Fprintln(out, "Nothing found.")
			return nil
		}
		return outputSearchHitsTable(out, hits)
	},
}

func outputSearchHitsTable(out io.Writer, hits []store.SearchHit) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KIND\tID\tTHREAD\tTEXT")
	for _, h := range hits {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			h.Kind,
			textutil.TruncateWidth(h.ID, 20),
			textutil.TruncateWidth(h.ThreadID, 20),
			textutil.TruncateWidth(textutil.SanitizeTerminal(h.Text), 60))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%d result(s)\n", len(hits))
	return nil
}

func outputSearchHitsJSON(out io.Writer, hits []store.SearchHit) error {
	output := make([]map[string]any, len(hits))
	for i, h := range hits {
		output[i] = map[string]any{
			"kind":      h.Kind,
			"id":        h.ID,
			"thread_id": h.ThreadID,
			"text":      h.Text,
		}
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(output)
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 50, "Maximum number of results per kind")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "Output as JSON")
}
