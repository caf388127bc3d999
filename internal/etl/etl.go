// Package etl imports a legacy collection store into the relational store.
//
// The import runs inside one migration unit: everything it writes goes
// through the unit's transaction and commits or rolls back as a whole. The
// legacy store is only read, never written.
package etl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/sessionvault/legacymigrate/internal/legacy"
	"github.com/sessionvault/legacymigrate/internal/migration"
	"github.com/sessionvault/legacymigrate/internal/store"
)

// ErrMigrationFailed wraps every error returned by Run. The legacy data is
// in a state the import cannot carry over faithfully and the relational
// store must not be used.
var ErrMigrationFailed = errors.New("legacy import failed")

// Options configures an import.
type Options struct {
	// LocalUserPublicKey is the identity of the device owner. Outgoing and
	// info messages are attributed to it.
	LocalUserPublicKey string

	// HasHiddenMessageRequests is a host-side flag copied into settings.
	HasHiddenMessageRequests bool

	// Now overrides the clock (tests). Defaults to time.Now.
	Now func() time.Time
}

// Transformer imports one legacy store.
type Transformer struct {
	reader legacy.Reader
	opts   Options
	logger *slog.Logger
}

// New creates a Transformer reading from reader.
func New(reader legacy.Reader, opts Options, logger *slog.Logger) (*Transformer, error) {
	if reader == nil {
		return nil, errors.New("etl: nil legacy reader")
	}
	if opts.LocalUserPublicKey == "" {
		return nil, errors.New("etl: local user public key is required")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Transformer{reader: reader, opts: opts, logger: logger}, nil
}

// run holds the state of one import. It is dropped when Run returns.
type run struct {
	reader   legacy.Reader
	tx       *store.Tx
	logger   *slog.Logger
	progress func(float64)
	localKey string
	opts     Options
	now      time.Time

	ids     *resolver
	summary *Summary

	// attachments caches decoded legacy attachments by key; a nil entry
	// means the key is absent from the legacy store.
	attachments map[string]*legacy.Attachment
}

// Run performs the import through env.Tx. Any error aborts the import and
// wraps ErrMigrationFailed; the caller must roll the transaction back. The
// import is not interruptible: ctx is not consulted once Run has started.
func (t *Transformer) Run(_ context.Context, env *migration.Env) (*Summary, error) {
	if env == nil || env.Tx == nil {
		return nil, fmt.Errorf("%w: no transaction", ErrMigrationFailed)
	}
	logger := t.logger
	if env.Logger != nil {
		logger = env.Logger
	}
	progress := env.Progress
	if progress == nil {
		progress = func(float64) {}
	}

	now := t.opts.Now()
	r := &run{
		reader:      t.reader,
		tx:          env.Tx,
		logger:      logger,
		progress:    progress,
		localKey:    t.opts.LocalUserPublicKey,
		opts:        t.opts,
		now:         now,
		ids:         newResolver(now),
		summary:     &Summary{},
		attachments: make(map[string]*legacy.Attachment),
	}

	start := time.Now()
	if err := r.execute(); err != nil {
		logger.Error("legacy import failed", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrMigrationFailed, err)
	}
	r.summary.Duration = time.Since(start)
	logger.Info("legacy import complete",
		"profiles", r.summary.Profiles,
		"threads", r.summary.Threads,
		"interactions", r.summary.Interactions,
		"attachments", r.summary.Attachments,
		"jobs", r.summary.Jobs,
		"warnings", len(r.summary.Warnings),
		"duration", r.summary.Duration.Round(time.Millisecond))
	return r.summary, nil
}

func (r *run) execute() error {
	data, err := r.read()
	if err != nil {
		return err
	}
	r.progress(0.1)

	if err := r.migrateContacts(data); err != nil {
		return err
	}
	r.progress(0.15)

	for i, plan := range data.threads {
		if err := r.migrateThread(plan, data.interactions[plan.key]); err != nil {
			return err
		}
		// Interactions of a finished thread are no longer needed.
		delete(data.interactions, plan.key)
		r.progress(0.15 + 0.7*float64(i+1)/float64(len(data.threads)))
	}
	for _, key := range slices.Sorted(maps.Keys(data.interactions)) {
		refs := data.interactions[key]
		r.warn("interactions without a thread were not migrated", "thread", key, "count", len(refs))
		r.summary.OrphanedInteractions += int64(len(refs))
	}

	if err := r.migrateLegacyProcessRecords(); err != nil {
		return err
	}
	r.progress(0.87)

	if err := r.migrateJobs(data); err != nil {
		return err
	}
	r.progress(0.95)

	return r.migratePreferences()
}

// warn logs a recoverable anomaly and records it in the summary.
func (r *run) warn(msg string, args ...any) {
	r.logger.Warn(msg, args...)
	r.summary.Warnings = append(r.summary.Warnings, msg)
}

// decodeRecord fetches and decodes collection/key. found is false when the
// key is absent.
func (r *run) decodeRecord(collection, key string) (obj legacy.Object, found bool, err error) {
	raw, err := r.reader.Get(collection, key)
	if errors.Is(err, legacy.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %s/%s: %w", collection, key, err)
	}
	obj, err = legacy.Decode(raw)
	if err != nil {
		return nil, true, fmt.Errorf("%s/%s: %w", collection, key, err)
	}
	return obj, true, nil
}

// optionalValue decodes an auxiliary value into dst. A missing or
// undecodable value leaves dst untouched and returns false.
func (r *run) optionalValue(collection, key string, dst any) (bool, error) {
	raw, err := r.reader.Get(collection, key)
	if errors.Is(err, legacy.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s/%s: %w", collection, key, err)
	}
	if err := legacy.DecodeValue(raw, dst); err != nil {
		r.logger.Debug("ignoring undecodable value", "collection", collection, "key", key, "error", err)
		return false, nil
	}
	return true, nil
}
