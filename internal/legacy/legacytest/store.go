// Package legacytest provides an in-memory legacy store and record builders
// for tests. Records are encoded as binary plists so they go through the
// same decoding path as a real store.
package legacytest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	bolt "go.etcd.io/bbolt"
	"howett.net/plist"

	"github.com/sessionvault/legacymigrate/internal/legacy"
)

// Store is an in-memory legacy.Reader.
type Store struct {
	collections map[string]map[string][]byte
}

var _ legacy.Reader = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{collections: make(map[string]map[string][]byte)}
}

// Put stores raw bytes under collection/key.
func (s *Store) Put(collection, key string, raw []byte) {
	c, ok := s.collections[collection]
	if !ok {
		c = make(map[string][]byte)
		s.collections[collection] = c
	}
	c[key] = raw
}

// PutRecord encodes rec and stores it under collection/key.
func (s *Store) PutRecord(t testing.TB, collection, key string, rec Record) {
	t.Helper()
	s.Put(collection, key, Encode(t, rec))
}

// PutValue encodes a plain value (number, string, list, data) and stores it.
func (s *Store) PutValue(t testing.TB, collection, key string, v any) {
	t.Helper()
	raw, err := plist.Marshal(v, plist.BinaryFormat)
	if err != nil {
		t.Fatalf("encode %s/%s: %v", collection, key, err)
	}
	s.Put(collection, key, raw)
}

// Delete removes collection/key.
func (s *Store) Delete(collection, key string) {
	delete(s.collections[collection], key)
}

// Enumerate implements legacy.Reader.
func (s *Store) Enumerate(collection string, fn func(key string, raw []byte) bool) error {
	return s.EnumeratePrefix(collection, "", fn)
}

// EnumeratePrefix implements legacy.Reader.
func (s *Store) EnumeratePrefix(collection, prefix string, fn func(key string, raw []byte) bool) error {
	c := s.collections[collection]
	keys := make([]string, 0, len(c))
	for k := range c {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !fn(k, c[k]) {
			return nil
		}
	}
	return nil
}

// Get implements legacy.Reader.
func (s *Store) Get(collection, key string) ([]byte, error) {
	v, ok := s.collections[collection][key]
	if !ok {
		return nil, legacy.ErrNotFound
	}
	return v, nil
}

// Collections implements legacy.Reader.
func (s *Store) Collections(prefix string) ([]string, error) {
	var names []string
	for name := range s.collections {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// WriteBolt writes the store's contents to a bbolt file at path, one bucket
// per collection.
func (s *Store) WriteBolt(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return fmt.Errorf("open bolt: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for name, c := range s.collections {
			b, err := tx.CreateBucketIfNotExists([]byte(name))
			if err != nil {
				return err
			}
			for k, v := range c {
				if err := b.Put([]byte(k), v); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return fmt.Errorf("write bolt: %w", err)
	}
	return db.Close()
}
