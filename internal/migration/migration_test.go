package migration_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/sessionvault/legacymigrate/internal/migration"
	"github.com/sessionvault/legacymigrate/internal/store"
	"github.com/sessionvault/legacymigrate/internal/testutil"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	testutil.MustNoErr(t, err, "open store")
	t.Cleanup(func() { st.Close() })
	return st
}

func createTable(name string) func(context.Context, *migration.Env) error {
	return func(_ context.Context, env *migration.Env) error {
		return env.Tx.Schema().CreateTable(store.TableDef{
			Name: name,
			Columns: []store.Column{
				{Name: "id", Type: store.TypeInteger, PrimaryKey: true},
			},
		})
	}
}

func tableExists(t *testing.T, st *store.Store, name string) bool {
	t.Helper()
	var n int
	err := st.DB().QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name).Scan(&n)
	testutil.MustNoErr(t, err, "query sqlite_master")
	return n == 1
}

type recordingSink struct {
	events []string
	values []float64
}

func (s *recordingSink) UnitProgress(target, identifier string, fraction float64) {
	s.events = append(s.events, target+"/"+identifier)
	s.values = append(s.values, fraction)
}

type recordingSyncer struct {
	calls [][]string
}

func (s *recordingSyncer) ConfigSyncRequired(_ context.Context, units []string) {
	s.calls = append(s.calls, units)
}

func TestRun_AppliesInOrderOnce(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	var order []string
	track := func(name string, fn func(context.Context, *migration.Env) error) func(context.Context, *migration.Env) error {
		return func(ctx context.Context, env *migration.Env) error {
			order = append(order, name)
			return fn(ctx, env)
		}
	}
	units := []migration.Unit{
		{Target: "utilities", Identifier: "001_a", Migrate: track("u1", createTable("a"))},
		{Target: "messaging", Identifier: "001_b", Migrate: track("m1", createTable("b"))},
		{Target: "messaging", Identifier: "002_c", Migrate: track("m2", createTable("c"))},
	}
	r, err := migration.New(st, units)
	testutil.MustNoErr(t, err, "New")

	res, err := r.Run(ctx)
	testutil.MustNoErr(t, err, "first Run")
	testutil.AssertStrings(t, order, "u1", "m1", "m2")
	testutil.AssertStrings(t, res.Applied, "utilities/001_a", "messaging/001_b", "messaging/002_c")

	res, err = r.Run(ctx)
	testutil.MustNoErr(t, err, "second Run")
	if len(res.Applied) != 0 {
		t.Errorf("second run applied %v, want nothing", res.Applied)
	}
	testutil.AssertStrings(t, order, "u1", "m1", "m2")

	applied, err := st.AppliedMigrations(ctx, "messaging")
	testutil.MustNoErr(t, err, "AppliedMigrations")
	var ids []string
	for _, m := range applied {
		ids = append(ids, m.Identifier)
	}
	testutil.AssertStrings(t, ids, "001_b", "002_c")
}

func TestRun_FailureRollsBackAndStops(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()

	boom := errors.New("boom")
	fail := true
	ranLast := false
	units := []migration.Unit{
		{Target: "messaging", Identifier: "001_ok", Migrate: createTable("ok")},
		{Target: "messaging", Identifier: "002_bad", Migrate: func(ctx context.Context, env *migration.Env) error {
			if err := createTable("partial")(ctx, env); err != nil {
				return err
			}
			if fail {
				return boom
			}
			return nil
		}},
		{Target: "messaging", Identifier: "003_last", Migrate: func(context.Context, *migration.Env) error {
			ranLast = true
			return nil
		}},
	}
	r, err := migration.New(st, units)
	testutil.MustNoErr(t, err, "New")

	_, err = r.Run(ctx)
	if !errors.Is(err, migration.ErrMigrationFailed) {
		t.Fatalf("Run error = %v, want ErrMigrationFailed", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("Run error should wrap the unit's error: %v", err)
	}
	var ue *migration.UnitError
	if !errors.As(err, &ue) || ue.Identifier != "002_bad" {
		t.Errorf("UnitError = %+v, want identifier 002_bad", ue)
	}
	if !tableExists(t, st, "ok") {
		t.Error("table from the first unit should be committed")
	}
	if tableExists(t, st, "partial") {
		t.Error("table from the failed unit should be rolled back")
	}
	if ranLast {
		t.Error("units after a failure must not run")
	}

	pending, err := r.Pending(ctx)
	testutil.MustNoErr(t, err, "Pending")
	if len(pending) != 2 || pending[0].Identifier != "002_bad" {
		t.Errorf("pending = %v, want 002_bad and 003_last", pending)
	}

	fail = false
	res, err := r.Run(ctx)
	testutil.MustNoErr(t, err, "retry Run")
	testutil.AssertStrings(t, res.Applied, "messaging/002_bad", "messaging/003_last")
	if !tableExists(t, st, "partial") || !ranLast {
		t.Error("retry should apply the remaining units")
	}
}

func TestNew_RejectsInvalidUnits(t *testing.T) {
	st := openStore(t)
	noop := func(context.Context, *migration.Env) error { return nil }

	tests := []struct {
		name  string
		units []migration.Unit
	}{
		{"duplicate", []migration.Unit{
			{Target: "messaging", Identifier: "001", Migrate: noop},
			{Target: "messaging", Identifier: "001", Migrate: noop},
		}},
		{"missing identifier", []migration.Unit{{Target: "messaging", Migrate: noop}}},
		{"missing migrate", []migration.Unit{{Target: "messaging", Identifier: "001"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := migration.New(st, tt.units); err == nil {
				t.Error("New should fail")
			}
		})
	}

	_, err := migration.New(st, []migration.Unit{
		{Target: "utilities", Identifier: "001", Migrate: noop},
		{Target: "messaging", Identifier: "001", Migrate: noop},
	})
	testutil.MustNoErr(t, err, "same identifier in different targets")
}

func TestRun_ProgressIsClampedAndMonotonic(t *testing.T) {
	st := openStore(t)
	sink := &recordingSink{}
	units := []migration.Unit{
		{Target: "messaging", Identifier: "001", Migrate: func(_ context.Context, env *migration.Env) error {
			env.Progress(0.5)
			env.Progress(0.3)
			env.Progress(-1)
			env.Progress(0.75)
			return nil
		}},
		{Target: "messaging", Identifier: "002", Migrate: func(_ context.Context, env *migration.Env) error {
			env.Progress(2)
			return nil
		}},
	}
	r, err := migration.New(st, units, migration.WithProgress(sink))
	testutil.MustNoErr(t, err, "New")
	_, err = r.Run(context.Background())
	testutil.MustNoErr(t, err, "Run")

	if diff := cmp.Diff([]float64{0.5, 0.75, 1, 1}, sink.values); diff != "" {
		t.Errorf("progress values (-want +got):\n%s", diff)
	}
	testutil.AssertStrings(t, sink.events, "messaging/001", "messaging/001", "messaging/001", "messaging/002")
}

func TestRun_ConfigSync(t *testing.T) {
	st := openStore(t)
	syncer := &recordingSyncer{}
	noop := func(context.Context, *migration.Env) error { return nil }
	units := []migration.Unit{
		{Target: "messaging", Identifier: "001", Migrate: noop},
		{Target: "messaging", Identifier: "002", Migrate: noop, RequiresConfigSync: true},
	}
	r, err := migration.New(st, units, migration.WithConfigSyncer(syncer))
	testutil.MustNoErr(t, err, "New")

	_, err = r.Run(context.Background())
	testutil.MustNoErr(t, err, "Run")
	if diff := cmp.Diff([][]string{{"messaging/002"}}, syncer.calls); diff != "" {
		t.Errorf("sync calls (-want +got):\n%s", diff)
	}

	_, err = r.Run(context.Background())
	testutil.MustNoErr(t, err, "second Run")
	if len(syncer.calls) != 1 {
		t.Errorf("syncer called again on a no-op run: %v", syncer.calls)
	}
}

func TestRun_CancelStopsBetweenUnits(t *testing.T) {
	st := openStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	units := []migration.Unit{
		{Target: "messaging", Identifier: "001", Migrate: func(ctx context.Context, env *migration.Env) error {
			cancel()
			if ctx.Err() != nil {
				t.Error("unit context should not be cancelled mid-unit")
			}
			return createTable("first")(ctx, env)
		}},
		{Target: "messaging", Identifier: "002", Migrate: createTable("second")},
	}
	r, err := migration.New(st, units)
	testutil.MustNoErr(t, err, "New")

	res, err := r.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run error = %v, want context.Canceled", err)
	}
	testutil.AssertStrings(t, res.Applied, "messaging/001")
	if !tableExists(t, st, "first") || tableExists(t, st, "second") {
		t.Error("first unit should commit and second should not run")
	}
}

func TestStatusAndEstimatedDuration(t *testing.T) {
	st := openStore(t)
	noop := func(context.Context, *migration.Env) error { return nil }
	applied := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	units := []migration.Unit{
		{Target: "messaging", Identifier: "001", Migrate: noop, MinExpectedRunDuration: time.Second},
		{Target: "messaging", Identifier: "002", Migrate: noop, MinExpectedRunDuration: 5 * time.Second},
	}

	r, err := migration.New(st, units[:1], migration.WithClock(func() time.Time { return applied }))
	testutil.MustNoErr(t, err, "New")
	_, err = r.Run(context.Background())
	testutil.MustNoErr(t, err, "Run")

	r, err = migration.New(st, units)
	testutil.MustNoErr(t, err, "New full")
	status, err := r.Status(context.Background())
	testutil.MustNoErr(t, err, "Status")
	if len(status) != 2 {
		t.Fatalf("len(status) = %d, want 2", len(status))
	}
	if !status[0].Applied || !status[0].AppliedAt.Equal(applied) {
		t.Errorf("status[0] = %+v, want applied at %v", status[0], applied)
	}
	if status[1].Applied {
		t.Error("status[1] should be pending")
	}

	pending, err := r.Pending(context.Background())
	testutil.MustNoErr(t, err, "Pending")
	if got := migration.EstimatedDuration(pending); got != 5*time.Second {
		t.Errorf("EstimatedDuration = %v, want 5s", got)
	}
}

func TestStatus_FreshStore(t *testing.T) {
	st := openStore(t)
	r, err := migration.New(st, []migration.Unit{
		{Target: "messaging", Identifier: "001", Migrate: func(context.Context, *migration.Env) error { return nil }},
	})
	testutil.MustNoErr(t, err, "New")
	pending, err := r.Pending(context.Background())
	testutil.MustNoErr(t, err, "Pending")
	if len(pending) != 1 {
		t.Errorf("pending = %d, want 1", len(pending))
	}
}
