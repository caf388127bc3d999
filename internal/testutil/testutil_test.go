package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sessionvault/legacymigrate/internal/migrations"
)

func TestNewTestStore(t *testing.T) {
	st := NewTestStore(t)

	stats, err := st.GetStats(context.Background())
	MustNoErr(t, err, "get stats")
	if stats.ThreadCount != 0 || stats.InteractionCount != 0 {
		t.Errorf("fresh store is not empty: %+v", stats)
	}

	// Every unit is already applied, so a second run is a no-op.
	result := MustMigrate(t, st, migrations.Deps{})
	if len(result.Applied) != 0 {
		t.Errorf("second run applied %v", result.Applied)
	}
}

func TestOpenTestStoreHasNoSchema(t *testing.T) {
	st := OpenTestStore(t)

	var n int
	err := st.DB().QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'thread'").Scan(&n)
	MustNoErr(t, err, "query sqlite_master")
	if n != 0 {
		t.Errorf("thread table exists before migrating")
	}
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	for _, rel := range []string{"simple.txt", "subdir/file.txt", "a/b/c/deep.txt"} {
		path := WriteFile(t, dir, rel, []byte("content"))
		if path != filepath.Join(dir, rel) {
			t.Errorf("WriteFile(%q) = %q", rel, path)
		}
		MustExist(t, path)
	}
	MustNotExist(t, filepath.Join(dir, "missing.txt"))
}

func TestAssertStrings(t *testing.T) {
	AssertStrings(t, []string{"a", "b"}, "a", "b")
	AssertEqualSlices(t, []int{1, 2, 3}, 1, 2, 3)
	AssertContainsAll(t, "legacy store import", []string{"legacy", "import"})
	MustCount(t, "rows", 3, 3)
}
