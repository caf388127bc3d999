package migrations_test

import (
	"context"
	"testing"
	"time"

	"github.com/sessionvault/legacymigrate/internal/etl"
	"github.com/sessionvault/legacymigrate/internal/migration"
	"github.com/sessionvault/legacymigrate/internal/migrations"
	"github.com/sessionvault/legacymigrate/internal/store"
	"github.com/sessionvault/legacymigrate/internal/testutil"
	"github.com/sessionvault/legacymigrate/internal/testutil/ptr"
)

func TestAllOrder(t *testing.T) {
	units := migrations.All(migrations.Deps{})
	var keys []string
	for _, u := range units {
		keys = append(keys, u.Key())
		if u.Migrate == nil {
			t.Errorf("%s has no Migrate func", u.Key())
		}
	}
	testutil.AssertStrings(t, keys,
		"utilities/001_CreateSettings",
		"messaging/001_InitialSchema",
		"messaging/002_LegacyStoreImport",
		"messaging/003_AddThreadMarkedAsUnread",
		"messaging/004_ResetOpenGroupInfoUpdates",
		"messaging/005_RebuildInteractionSearch",
	)

	for _, u := range units {
		isImport := u.Identifier == "002_LegacyStoreImport"
		if u.RequiresConfigSync != isImport {
			t.Errorf("%s RequiresConfigSync = %v", u.Key(), u.RequiresConfigSync)
		}
	}
	if got := migration.EstimatedDuration(units); got != 5*time.Second {
		t.Errorf("EstimatedDuration = %v, want 5s", got)
	}
}

func TestImportWithoutLegacyStore(t *testing.T) {
	st := testutil.OpenTestStore(t)
	called := false
	result := testutil.MustMigrate(t, st, migrations.Deps{
		OnImport: func(*etl.Summary) { called = true },
	})
	if len(result.Applied) != 6 {
		t.Errorf("applied %v, want 6 units", result.Applied)
	}
	if called {
		t.Error("OnImport called without a legacy store")
	}
}

func TestAddThreadMarkedAsUnread(t *testing.T) {
	st := testutil.NewTestStore(t)

	var n int
	err := st.DB().QueryRow(
		"SELECT COUNT(*) FROM pragma_table_info('thread') WHERE name = 'marked_as_unread'").Scan(&n)
	testutil.MustNoErr(t, err, "query table info")
	if n != 1 {
		t.Fatal("thread.marked_as_unread missing")
	}

	testutil.MustNoErr(t, st.WithTx(context.Background(), func(tx *store.Tx) error {
		return tx.InsertThread(&store.Thread{ID: "05alice"})
	}), "insert thread")
	var unread bool
	err = st.DB().QueryRow("SELECT marked_as_unread FROM thread WHERE id = '05alice'").Scan(&unread)
	testutil.MustNoErr(t, err, "read marked_as_unread")
	if unread {
		t.Error("marked_as_unread defaults to true")
	}
}

// runThrough applies the units up to and including identifier, then returns
// so a test can seed rows the later units operate on.
func runThrough(t *testing.T, st *store.Store, identifier string) {
	t.Helper()
	all := migrations.All(migrations.Deps{})
	for i, u := range all {
		if u.Identifier != identifier {
			continue
		}
		runner, err := migration.New(st, all[:i+1], migration.WithLogger(testutil.TestLogger()))
		testutil.MustNoErr(t, err, "create runner")
		_, err = runner.Run(context.Background())
		testutil.MustNoErr(t, err, "run partial migrations")
		return
	}
	t.Fatalf("no unit %s", identifier)
}

func TestResetOpenGroupInfoUpdates(t *testing.T) {
	st := testutil.OpenTestStore(t)
	runThrough(t, st, "003_AddThreadMarkedAsUnread")

	testutil.MustNoErr(t, st.WithTx(context.Background(), func(tx *store.Tx) error {
		return tx.InsertOpenGroup(&store.OpenGroup{
			ThreadID:    "https://chat.example/lobby",
			Server:      "https://chat.example",
			RoomToken:   "lobby",
			PublicKey:   "abcd",
			Name:        "Lobby",
			IsActive:    true,
			InfoUpdates: 7,
		})
	}), "insert open group")

	testutil.MustMigrate(t, st, migrations.Deps{})

	var updates int64
	err := st.DB().QueryRow("SELECT info_updates FROM open_group").Scan(&updates)
	testutil.MustNoErr(t, err, "read info_updates")
	testutil.MustCount(t, "info_updates", updates, 0)
}

func TestRebuildInteractionSearch(t *testing.T) {
	st := testutil.OpenTestStore(t)
	runThrough(t, st, "004_ResetOpenGroupInfoUpdates")

	testutil.MustNoErr(t, st.WithTx(context.Background(), func(tx *store.Tx) error {
		if err := tx.InsertThread(&store.Thread{ID: "05alice"}); err != nil {
			return err
		}
		_, err := tx.InsertInteraction(&store.Interaction{
			ThreadID:    "05alice",
			AuthorID:    "05alice",
			Variant:     store.VariantStandardIncoming,
			TimestampMs: 1646136000000,
			Body:        ptr.String("see you at the harbour"),
		})
		return err
	}), "insert interaction")

	testutil.MustMigrate(t, st, migrations.Deps{})

	hits, err := st.Search(context.Background(), "harbour", 10)
	testutil.MustNoErr(t, err, "search")
	if len(hits) != 1 || hits[0].Kind != store.HitInteraction {
		t.Errorf("hits = %+v, want one interaction", hits)
	}
}
