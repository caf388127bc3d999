package legacy_test

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/sessionvault/legacymigrate/internal/legacy"
	"github.com/sessionvault/legacymigrate/internal/legacy/legacytest"
)

func openBolt(t *testing.T, src *legacytest.Store) *legacy.BoltStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "legacy", "store.db")
	if err := src.WriteBolt(path); err != nil {
		t.Fatalf("WriteBolt: %v", err)
	}
	st, err := legacy.Open(path, legacy.Options{Timeout: time.Second})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestBoltStore_Enumerate(t *testing.T) {
	src := legacytest.New()
	src.Put(legacy.ThreadCollection, "cb", []byte("2"))
	src.Put(legacy.ThreadCollection, "ca", []byte("1"))
	src.Put(legacy.ThreadCollection, "gx", []byte("3"))
	st := openBolt(t, src)

	var keys []string
	var values []string
	err := st.Enumerate(legacy.ThreadCollection, func(key string, raw []byte) bool {
		keys = append(keys, key)
		values = append(values, string(raw))
		return true
	})
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}
	if diff := cmp.Diff([]string{"ca", "cb", "gx"}, keys); diff != "" {
		t.Errorf("keys mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"1", "2", "3"}, values); diff != "" {
		t.Errorf("values mismatch (-want +got):\n%s", diff)
	}
}

func TestBoltStore_EnumeratePrefixAndStop(t *testing.T) {
	src := legacytest.New()
	for _, k := range []string{"ca", "cb", "cc", "gx"} {
		src.Put("c", k, []byte(k))
	}
	st := openBolt(t, src)

	var keys []string
	err := st.EnumeratePrefix("c", "c", func(key string, _ []byte) bool {
		keys = append(keys, key)
		return len(keys) < 2
	})
	if err != nil {
		t.Fatalf("EnumeratePrefix: %v", err)
	}
	if diff := cmp.Diff([]string{"ca", "cb"}, keys); diff != "" {
		t.Errorf("keys mismatch (-want +got):\n%s", diff)
	}
}

func TestBoltStore_MissingCollection(t *testing.T) {
	st := openBolt(t, legacytest.New())

	called := false
	if err := st.Enumerate("nope", func(string, []byte) bool { called = true; return true }); err != nil {
		t.Fatalf("Enumerate: %v", err)
	}
	if called {
		t.Error("callback invoked for missing collection")
	}
	if _, err := st.Get("nope", "k"); !errors.Is(err, legacy.ErrNotFound) {
		t.Errorf("Get missing collection err = %v, want ErrNotFound", err)
	}
}

func TestBoltStore_GetAndCollections(t *testing.T) {
	src := legacytest.New()
	src.Put(legacy.ClosedGroupKeyPairCollectionPrefix+"g1", "100", []byte("kp1"))
	src.Put(legacy.ClosedGroupKeyPairCollectionPrefix+"g2", "200", []byte("kp2"))
	src.Put(legacy.ContactCollection, "05a", []byte("contact"))
	st := openBolt(t, src)

	got, err := st.Get(legacy.ContactCollection, "05a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "contact" {
		t.Errorf("Get = %q", got)
	}
	if _, err := st.Get(legacy.ContactCollection, "05b"); !errors.Is(err, legacy.ErrNotFound) {
		t.Errorf("Get missing key err = %v, want ErrNotFound", err)
	}

	names, err := st.Collections(legacy.ClosedGroupKeyPairCollectionPrefix)
	if err != nil {
		t.Fatalf("Collections: %v", err)
	}
	want := []string{
		legacy.ClosedGroupKeyPairCollectionPrefix + "g1",
		legacy.ClosedGroupKeyPairCollectionPrefix + "g2",
	}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("collections mismatch (-want +got):\n%s", diff)
	}
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := legacy.Open(filepath.Join(t.TempDir(), "missing.db"), legacy.Options{})
	if err == nil {
		t.Fatal("expected error opening missing file")
	}
}
