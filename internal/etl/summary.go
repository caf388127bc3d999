package etl

import "time"

// Summary holds statistics from a completed import.
type Summary struct {
	Duration time.Duration

	Profiles              int64
	Contacts              int64
	Threads               int64
	Interactions          int64
	DuplicateInteractions int64
	OrphanedInteractions  int64
	RecipientStates       int64
	Attachments           int64
	Quotes                int64
	LinkPreviews          int64
	ProcessRecords        int64
	Jobs                  int64
	IgnoredJobs           int64
	Settings              int64

	// Warnings lists recoverable anomalies in the order they were met.
	Warnings []string
}
