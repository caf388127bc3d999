package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sessionvault/legacymigrate/internal/legacy"
	"github.com/sessionvault/legacymigrate/internal/legacy/legacytest"
	"github.com/sessionvault/legacymigrate/internal/migration"
	"github.com/sessionvault/legacymigrate/internal/testutil"
)

const (
	testLocalKey = "05local"
	testAliceKey = "05alice"
)

// cliEnv is a home directory with a config pointing at a legacy bbolt file.
type cliEnv struct {
	t    *testing.T
	home string
}

func newCLIEnv(t *testing.T, populate func(src *legacytest.Store)) *cliEnv {
	t.Helper()
	home := t.TempDir()

	src := legacytest.New()
	src.PutRecord(t, legacy.ContactCollection, testAliceKey, legacytest.Contact(testAliceKey))
	src.PutRecord(t, legacy.ThreadCollection, legacy.ContactThreadKey(testAliceKey), legacytest.ContactThread(testAliceKey))
	src.PutRecord(t, legacy.InteractionCollection, "m1",
		legacytest.IncomingMessage("m1", legacy.ContactThreadKey(testAliceKey), 1, 1646136000000, testAliceKey, "Lunch tomorrow?"))
	if populate != nil {
		populate(src)
	}
	legacyPath := filepath.Join(home, "legacy", "session.bolt")
	testutil.MustNoErr(t, src.WriteBolt(legacyPath), "write legacy store")

	testutil.WriteFile(t, home, "config.toml", []byte(fmt.Sprintf(`
[data]
legacy_store_path = %q

[migration]
local_user_public_key = %q
open_timeout = "1s"
`, legacyPath, testLocalKey)))
	return &cliEnv{t: t, home: home}
}

// run executes the CLI against the environment's home and returns stdout
// and stderr. Package-level flag variables are reset first, so tests using
// it must not run in parallel.
func (e *cliEnv) run(args ...string) (stdout, stderr string, err error) {
	e.t.Helper()
	cfgFile, homeDir, verbose = "", "", false
	searchLimit, searchJSON = 50, false

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(append([]string{"--home", e.home}, args...))
	defer func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	}()

	err = rootCmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestMigrateEndToEnd(t *testing.T) {
	env := newCLIEnv(t, nil)

	out, _, err := env.run("migrate")
	testutil.MustNoErr(t, err, "migrate")
	testutil.AssertContainsAll(t, out, []string{
		"Applying 6 migration(s)",
		"messaging/002_LegacyStoreImport",
		"Configuration resync required after: messaging/002_LegacyStoreImport",
		"Applied 6 migration(s)",
		"Legacy import complete",
		"Interactions:      1",
	})
	testutil.MustExist(t, filepath.Join(env.home, "legacymigrate.db"))

	out, _, err = env.run("migrate")
	testutil.MustNoErr(t, err, "second migrate")
	testutil.AssertContainsAll(t, out, []string{"is up to date"})

	out, _, err = env.run("status")
	testutil.MustNoErr(t, err, "status")
	testutil.AssertContainsAll(t, out, []string{"utilities", "001_CreateSettings", "005_RebuildInteractionSearch", "All migrations applied."})
	if strings.Contains(out, "pending") {
		t.Errorf("status reports pending units:\n%s", out)
	}

	out, _, err = env.run("verify")
	testutil.MustNoErr(t, err, "verify")
	testutil.AssertContainsAll(t, out, []string{"is consistent"})

	out, _, err = env.run("stats")
	testutil.MustNoErr(t, err, "stats")
	testutil.AssertContainsAll(t, out, []string{"Threads:      1", "Interactions: 1"})

	out, _, err = env.run("search", "lunch")
	testutil.MustNoErr(t, err, "search")
	testutil.AssertContainsAll(t, out, []string{"interaction", testAliceKey, "Lunch tomorrow?", "1 result(s)"})

	out, _, err = env.run("search", "--json", "nothing-like-this")
	testutil.MustNoErr(t, err, "search json")
	if strings.TrimSpace(out) != "[]" {
		t.Errorf("empty JSON search = %q, want []", out)
	}
}

func TestMigrateFailureLeavesStorePending(t *testing.T) {
	env := newCLIEnv(t, func(src *legacytest.Store) {
		src.Put(legacy.ThreadCollection, "broken", []byte("not a plist"))
	})

	_, stderr, err := env.run("migrate")
	if !errors.Is(err, migration.ErrMigrationFailed) {
		t.Fatalf("migrate error = %v, want ErrMigrationFailed", err)
	}
	testutil.AssertContainsAll(t, stderr, []string{"migration failed: do not use this data store"})

	out, _, err := env.run("status")
	testutil.MustNoErr(t, err, "status")
	testutil.AssertContainsAll(t, out, []string{"4 pending"})
}

func TestMigrateRequiresConfig(t *testing.T) {
	home := t.TempDir()
	env := &cliEnv{t: t, home: home}

	_, _, err := env.run("migrate")
	if err == nil {
		t.Fatal("migrate without config should fail")
	}
	testutil.AssertContainsAll(t, err.Error(), []string{"legacy_store_path", "local_user_public_key"})
	testutil.MustNotExist(t, filepath.Join(home, "legacymigrate.db"))
}

func TestReadCommandsRequireStore(t *testing.T) {
	env := &cliEnv{t: t, home: t.TempDir()}
	for _, args := range [][]string{{"status"}, {"verify"}, {"stats"}, {"search", "x"}} {
		_, _, err := env.run(args...)
		if !errors.Is(err, errNoStore) {
			t.Errorf("%v: error = %v, want errNoStore", args, err)
		}
	}
	if _, err := os.Stat(filepath.Join(env.home, "legacymigrate.db")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("a read command created the store: %v", err)
	}
}
