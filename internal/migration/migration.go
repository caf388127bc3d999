// Package migration applies an ordered list of versioned migration units to
// the relational store, each in its own transaction.
package migration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/sessionvault/legacymigrate/internal/store"
)

// ErrMigrationFailed is wrapped by every error returned from a failed run.
var ErrMigrationFailed = errors.New("migration failed")

// Unit is one versioned migration step.
type Unit struct {
	Target     string
	Identifier string
	// MinExpectedRunDuration is a hint for progress UIs only.
	MinExpectedRunDuration time.Duration
	// RequiresConfigSync marks units after which the host must resync its
	// distributed configuration.
	RequiresConfigSync bool
	Migrate            func(ctx context.Context, env *Env) error
}

// Key returns "target/identifier".
func (u Unit) Key() string {
	return u.Target + "/" + u.Identifier
}

// Env is what a unit gets to work with. Everything written through Tx
// commits together with the unit's applied marker.
type Env struct {
	Tx     *store.Tx
	Logger *slog.Logger
	// Progress reports intra-unit progress in [0, 1].
	Progress func(fraction float64)
}

// ProgressSink receives per-unit completion fractions. Calls are
// observational and never affect the run.
type ProgressSink interface {
	UnitProgress(target, identifier string, fraction float64)
}

// NullProgress discards progress.
type NullProgress struct{}

func (NullProgress) UnitProgress(string, string, float64) {}

// ProgressFunc adapts a function to ProgressSink.
type ProgressFunc func(target, identifier string, fraction float64)

func (f ProgressFunc) UnitProgress(target, identifier string, fraction float64) {
	f(target, identifier, fraction)
}

// ConfigSyncer is told which applied units require a configuration resync.
// The resync itself belongs to the host.
type ConfigSyncer interface {
	ConfigSyncRequired(ctx context.Context, units []string)
}

// UnitError reports the unit a run failed on.
type UnitError struct {
	Target     string
	Identifier string
	Err        error
}

func (e *UnitError) Error() string {
	return fmt.Sprintf("migration %s/%s failed: %v", e.Target, e.Identifier, e.Err)
}

func (e *UnitError) Unwrap() []error {
	return []error{ErrMigrationFailed, e.Err}
}

// Option is a functional option for Runner.
type Option func(*Runner)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

// WithProgress sets the progress sink.
func WithProgress(p ProgressSink) Option {
	return func(r *Runner) { r.progress = p }
}

// WithConfigSyncer sets the collaborator notified about config resyncs.
func WithConfigSyncer(s ConfigSyncer) Option {
	return func(r *Runner) { r.syncer = s }
}

// WithClock overrides the clock used for applied-at timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// Runner applies units in declared order.
type Runner struct {
	store    *store.Store
	units    []Unit
	logger   *slog.Logger
	progress ProgressSink
	syncer   ConfigSyncer
	now      func() time.Time
}

// New creates a Runner. Every unit needs a target, an identifier unique
// within its target, and a Migrate func.
func New(st *store.Store, units []Unit, opts ...Option) (*Runner, error) {
	seen := make(map[string]bool, len(units))
	for i, u := range units {
		if u.Target == "" || u.Identifier == "" {
			return nil, fmt.Errorf("unit %d: target and identifier are required", i)
		}
		if u.Migrate == nil {
			return nil, fmt.Errorf("unit %s: no migrate func", u.Key())
		}
		if seen[u.Key()] {
			return nil, fmt.Errorf("duplicate migration unit %s", u.Key())
		}
		seen[u.Key()] = true
	}

	r := &Runner{
		store:    st,
		units:    units,
		logger:   slog.Default(),
		progress: NullProgress{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.progress == nil {
		r.progress = NullProgress{}
	}
	return r, nil
}

// UnitStatus is one unit's applied state.
type UnitStatus struct {
	Unit      Unit
	Applied   bool
	AppliedAt time.Time
}

// Status returns every unit in declared order with its applied state.
func (r *Runner) Status(ctx context.Context) ([]UnitStatus, error) {
	applied := make(map[string]time.Time)
	for _, target := range r.targets() {
		rows, err := r.store.AppliedMigrations(ctx, target)
		if err != nil {
			return nil, err
		}
		for _, m := range rows {
			applied[m.Target+"/"+m.Identifier] = m.AppliedAt
		}
	}

	out := make([]UnitStatus, len(r.units))
	for i, u := range r.units {
		at, ok := applied[u.Key()]
		out[i] = UnitStatus{Unit: u, Applied: ok, AppliedAt: at}
	}
	return out, nil
}

// Pending returns the units not yet applied, in declared order.
func (r *Runner) Pending(ctx context.Context) ([]Unit, error) {
	status, err := r.Status(ctx)
	if err != nil {
		return nil, err
	}
	var pending []Unit
	for _, s := range status {
		if !s.Applied {
			pending = append(pending, s.Unit)
		}
	}
	return pending, nil
}

func (r *Runner) targets() []string {
	var targets []string
	seen := make(map[string]bool)
	for _, u := range r.units {
		if !seen[u.Target] {
			seen[u.Target] = true
			targets = append(targets, u.Target)
		}
	}
	return targets
}

// EstimatedDuration sums the duration hints of units.
func EstimatedDuration(units []Unit) time.Duration {
	var d time.Duration
	for _, u := range units {
		d += u.MinExpectedRunDuration
	}
	return d
}

// RunResult lists what a run applied.
type RunResult struct {
	Applied  []string
	Duration time.Duration
}

// Run applies every pending unit. A unit that fails is rolled back and the
// run stops there; the returned error is a *UnitError. Cancelling ctx stops
// the run before the next unit but never interrupts one in progress.
func (r *Runner) Run(ctx context.Context) (*RunResult, error) {
	start := time.Now()
	result := &RunResult{}

	if err := r.store.EnsureMigrationTable(ctx); err != nil {
		return result, err
	}
	pending, err := r.Pending(ctx)
	if err != nil {
		return result, err
	}
	if len(pending) == 0 {
		r.logger.Info("no pending migrations")
		return result, nil
	}

	var needsSync []string
	for _, u := range pending {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := r.apply(ctx, u); err != nil {
			return result, err
		}
		result.Applied = append(result.Applied, u.Key())
		if u.RequiresConfigSync {
			needsSync = append(needsSync, u.Key())
		}
	}

	if len(needsSync) > 0 && r.syncer != nil {
		r.syncer.ConfigSyncRequired(ctx, needsSync)
	}
	result.Duration = time.Since(start)
	return result, nil
}

func (r *Runner) apply(ctx context.Context, u Unit) error {
	unitCtx := context.WithoutCancel(ctx)
	logger := r.logger.With("target", u.Target, "identifier", u.Identifier)
	tracker := &progressTracker{sink: r.progress, target: u.Target, identifier: u.Identifier}

	logger.Info("applying migration")
	started := time.Now()
	err := r.store.WithTx(unitCtx, func(tx *store.Tx) error {
		env := &Env{Tx: tx, Logger: logger, Progress: tracker.report}
		if err := u.Migrate(unitCtx, env); err != nil {
			return err
		}
		return tx.MarkMigrationApplied(u.Target, u.Identifier, r.now())
	})
	if err != nil {
		logger.Error("migration failed, rolled back", "error", err)
		return &UnitError{Target: u.Target, Identifier: u.Identifier, Err: err}
	}

	tracker.report(1)
	logger.Info("applied migration", "duration", time.Since(started).Round(time.Millisecond))
	return nil
}

// progressTracker forwards fractions clamped to [0, 1] and only when they
// move forward.
type progressTracker struct {
	sink       ProgressSink
	target     string
	identifier string
	last       float64
	reported   bool
}

func (p *progressTracker) report(fraction float64) {
	if math.IsNaN(fraction) {
		return
	}
	fraction = min(max(fraction, 0), 1)
	if p.reported && fraction <= p.last {
		return
	}
	p.last = fraction
	p.reported = true
	p.sink.UnitProgress(p.target, p.identifier, fraction)
}
