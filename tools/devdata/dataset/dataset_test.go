package dataset

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sessionvault/legacymigrate/internal/etl"
	"github.com/sessionvault/legacymigrate/internal/legacy"
	"github.com/sessionvault/legacymigrate/internal/migrations"
	"github.com/sessionvault/legacymigrate/internal/testutil"
)

func TestValidateDatasetName(t *testing.T) {
	valid := []string{"gold", "dev", "test-data", "my_dataset", "v2", "A", "foo123", "a-b_c"}
	for _, name := range valid {
		if err := ValidateDatasetName(name); err != nil {
			t.Errorf("ValidateDatasetName(%q) = %v, want nil", name, err)
		}
	}

	invalid := []string{
		"",             // empty
		"../etc",       // path traversal
		"test db",      // space
		"foo/bar",      // slash
		"test\x00name", // null byte
		"a.b",          // dot
		"name\nline",   // newline
	}
	for _, name := range invalid {
		if err := ValidateDatasetName(name); err == nil {
			t.Errorf("ValidateDatasetName(%q) = nil, want error", name)
		}
	}
}

func TestSpecValidate(t *testing.T) {
	tests := []struct {
		name    string
		spec    Spec
		wantErr string
	}{
		{"ok", Spec{Contacts: 3, ClosedGroups: 1, MessagesPerThread: 4}, ""},
		{"no contacts", Spec{}, "contacts must be positive"},
		{"negative groups", Spec{Contacts: 2, ClosedGroups: -1}, "closed groups"},
		{"negative messages", Spec{Contacts: 2, MessagesPerThread: -1}, "messages per thread"},
		{"group needs two contacts", Spec{Contacts: 1, ClosedGroups: 1}, "at least two contacts"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	spec := Spec{Contacts: 2, MessagesPerThread: 3, Seed: 42}
	a, _, err := Build(spec)
	testutil.MustNoErr(t, err, "Build")
	b, _, err := Build(spec)
	testutil.MustNoErr(t, err, "Build again")

	rawA, err := a.Get(legacy.InteractionCollection, "msg-3")
	testutil.MustNoErr(t, err, "get")
	rawB, err := b.Get(legacy.InteractionCollection, "msg-3")
	testutil.MustNoErr(t, err, "get again")
	if !bytes.Equal(rawA, rawB) {
		t.Error("same seed produced different records")
	}
}

func TestGeneratedStoreMigrates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gen", "legacy.bolt")
	spec := Spec{Contacts: 6, ClosedGroups: 2, MessagesPerThread: 5, Seed: 7}

	result, err := Generate(path, spec)
	testutil.MustNoErr(t, err, "Generate")
	if result.Threads != 8 || result.Contacts != 6 {
		t.Errorf("result = %+v", result)
	}
	// Contact threads carry 5 messages each; groups add a creation notice.
	if want := 6*5 + 2*(5+1); result.Interactions != want {
		t.Errorf("interactions = %d, want %d", result.Interactions, want)
	}
	if result.Size == 0 {
		t.Error("size not reported")
	}

	if _, err := Generate(path, spec); err == nil {
		t.Error("Generate over an existing file: want error")
	}

	src, err := legacy.Open(path, legacy.Options{Timeout: time.Second})
	testutil.MustNoErr(t, err, "open generated store")
	defer src.Close()

	var summary *etl.Summary
	st := testutil.OpenTestStore(t)
	testutil.MustMigrate(t, st, migrations.Deps{
		Legacy:   src,
		Import:   etl.Options{LocalUserPublicKey: LocalKey},
		OnImport: func(s *etl.Summary) { summary = s },
	})
	if summary == nil {
		t.Fatal("import did not run")
	}
	testutil.MustCount(t, "threads", summary.Threads, int64(result.Threads))
	testutil.MustCount(t, "interactions", summary.Interactions, int64(result.Interactions))

	violations, err := st.CheckIntegrity(t.Context())
	testutil.MustNoErr(t, err, "check integrity")
	if len(violations) > 0 {
		t.Errorf("violations: %v", violations)
	}
}
