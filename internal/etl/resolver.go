package etl

import (
	"strconv"
	"strings"
	"time"

	"github.com/sessionvault/legacymigrate/internal/store"
)

// resolver owns the legacy → relational identifier maps of one import.
//
// Legacy jobs reference messages only by a fingerprint built from the sent
// timestamp, a recipient and the thread. Jobs stored those timestamps with
// less precision than the messages themselves, so every interaction is
// registered under an exact fingerprint and a coarser fallback one.
//
// TODO: send jobs for message kinds other than expiration timer updates can
// only match the exact tier, because the fallback tier is keyed by variant.
// Add a variant-free third tier if unresolved send jobs show up in practice.
type resolver struct {
	// threads maps legacy thread keys to thread ids.
	threads map[string]string
	// interactions maps legacy interaction unique ids to interaction ids.
	interactions map[string]int64
	exact        map[string]int64
	fallback     map[string]int64
	// attachments maps legacy attachment keys to attachment ids.
	attachments map[string]string
	// sendJobs maps legacy send job ids to job ids and thread ids.
	sendJobs       map[string]int64
	sendJobThreads map[string]string
	// profiles holds every profile id inserted so far.
	profiles map[string]bool
	// received holds legacy received-message timestamps not yet covered by
	// a migrated interaction.
	received map[uint64]bool

	secondsDigits      int
	millisecondsDigits int
}

func newResolver(now time.Time) *resolver {
	return &resolver{
		threads:            make(map[string]string),
		interactions:       make(map[string]int64),
		exact:              make(map[string]int64),
		fallback:           make(map[string]int64),
		attachments:        make(map[string]string),
		sendJobs:           make(map[string]int64),
		sendJobThreads:     make(map[string]string),
		profiles:           make(map[string]bool),
		received:           make(map[uint64]bool),
		secondsDigits:      len(strconv.FormatInt(now.Unix(), 10)),
		millisecondsDigits: len(strconv.FormatInt(now.UnixMilli(), 10)),
	}
}

// exactFingerprint is "timestamp-recipient-thread".
func (res *resolver) exactFingerprint(threadID string, sentMs uint64, recipient string) string {
	return strings.Join([]string{strconv.FormatUint(sentMs, 10), recipient, threadID}, "-")
}

// fallbackFingerprint truncates the timestamp to second precision and adds
// the variant when there is one.
func (res *resolver) fallbackFingerprint(threadID string, sentMs uint64, variant *store.InteractionVariant, recipient string) string {
	ts := strconv.FormatUint(sentMs, 10)
	if len(ts) > res.secondsDigits {
		ts = ts[:res.secondsDigits]
	}
	parts := []string{ts}
	if variant != nil {
		parts = append(parts, variant.String())
	}
	parts = append(parts, recipient, threadID)
	return strings.Join(parts, "-")
}

// addInteraction registers an interaction under its legacy id and both
// fingerprints.
func (res *resolver) addInteraction(legacyID, threadID string, sentMs uint64, variant store.InteractionVariant, recipient string, id int64) {
	res.interactions[legacyID] = id
	res.exact[res.exactFingerprint(threadID, sentMs, recipient)] = id
	res.fallback[res.fallbackFingerprint(threadID, sentMs, &variant, recipient)] = id
}

// findInteraction looks a fingerprint up, exact tier first.
func (res *resolver) findInteraction(threadID string, sentMs uint64, variant *store.InteractionVariant, recipient string) (int64, bool) {
	if id, ok := res.exact[res.exactFingerprint(threadID, sentMs, recipient)]; ok {
		return id, true
	}
	id, ok := res.fallback[res.fallbackFingerprint(threadID, sentMs, variant, recipient)]
	return id, ok
}

// jobIDTimestamp recovers an approximate sent timestamp from a legacy job
// id, which was the enqueue time in milliseconds followed by a counter.
func (res *resolver) jobIDTimestamp(jobID string) uint64 {
	if len(jobID) > res.millisecondsDigits {
		jobID = jobID[:res.millisecondsDigits]
	}
	ts, err := strconv.ParseUint(jobID, 10, 64)
	if err != nil {
		return 0
	}
	return ts
}
