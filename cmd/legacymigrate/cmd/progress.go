package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sessionvault/legacymigrate/internal/etl"
)

// progressInterval throttles intermediate progress lines.
const progressInterval = 2 * time.Second

// CLIProgress prints migration progress. The first and last report of each
// unit are always printed; reports in between at most every two seconds.
type CLIProgress struct {
	out       io.Writer
	now       func() time.Time
	unit      string
	started   time.Time
	lastPrint time.Time
}

func newCLIProgress(out io.Writer) *CLIProgress {
	return &CLIProgress{out: out, now: time.Now}
}

func (p *CLIProgress) UnitProgress(target, identifier string, fraction float64) {
	now := p.now()
	key := target + "/" + identifier
	if key != p.unit {
		p.unit = key
		p.started = now
	} else if fraction < 1 && now.Sub(p.lastPrint) < progressInterval {
		return
	}
	p.lastPrint = now

	if fraction >= 1 {
		fmt.Fprintf(p.out, "  %-45s done (%s)\n", key, formatDuration(now.Sub(p.started)))
		return
	}
	fmt.Fprintf(p.out, "  %-45s %3.0f%%\n", key, fraction*100)
}

// configSyncNotice tells the user that the host must resync its distributed
// configuration before relying on the migrated store.
type configSyncNotice struct {
	out io.Writer
}

func (n configSyncNotice) ConfigSyncRequired(_ context.Context, units []string) {
	fmt.Fprintf(n.out, "Configuration resync required after: %s\n", strings.Join(units, ", "))
}

// maxPrintedWarnings bounds the warning list of the import summary.
const maxPrintedWarnings = 10

func printSummary(w io.Writer, s *etl.Summary) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Legacy import complete in %s:\n", formatDuration(s.Duration))
	fmt.Fprintf(w, "  Profiles:          %d\n", s.Profiles)
	fmt.Fprintf(w, "  Contacts:          %d\n", s.Contacts)
	fmt.Fprintf(w, "  Threads:           %d\n", s.Threads)
	fmt.Fprintf(w, "  Interactions:      %d\n", s.Interactions)
	if s.DuplicateInteractions > 0 {
		fmt.Fprintf(w, "    duplicates:      %d\n", s.DuplicateInteractions)
	}
	if s.OrphanedInteractions > 0 {
		fmt.Fprintf(w, "    orphaned:        %d\n", s.OrphanedInteractions)
	}
	fmt.Fprintf(w, "  Recipient states:  %d\n", s.RecipientStates)
	fmt.Fprintf(w, "  Attachments:       %d\n", s.Attachments)
	fmt.Fprintf(w, "  Quotes:            %d\n", s.Quotes)
	fmt.Fprintf(w, "  Link previews:     %d\n", s.LinkPreviews)
	fmt.Fprintf(w, "  Process records:   %d\n", s.ProcessRecords)
	fmt.Fprintf(w, "  Jobs:              %d", s.Jobs)
	if s.IgnoredJobs > 0 {
		fmt.Fprintf(w, " (%d ignored)", s.IgnoredJobs)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Settings:          %d\n", s.Settings)

	if len(s.Warnings) == 0 {
		return
	}
	fmt.Fprintf(w, "\nWarnings (%d):\n", len(s.Warnings))
	for i, warning := range s.Warnings {
		if i == maxPrintedWarnings {
			fmt.Fprintf(w, "  ... and %d more (see the log)\n", len(s.Warnings)-maxPrintedWarnings)
			break
		}
		fmt.Fprintf(w, "  - %s\n", warning)
	}
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	}
}
