package legacy

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Options configures how a BoltStore is opened.
type Options struct {
	// Timeout bounds the wait for the file lock. Zero waits forever.
	Timeout time.Duration
}

// BoltStore is a Reader over a bbolt file. Each top-level bucket is one
// legacy collection. The file is opened read-only and never modified.
type BoltStore struct {
	db   *bolt.DB
	path string
}

// Open opens the legacy store at path read-only.
func Open(path string, opts Options) (*BoltStore, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("stat legacy store: %w", err)
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{ReadOnly: true, Timeout: opts.Timeout})
	if err != nil {
		return nil, fmt.Errorf("open legacy store: %w", err)
	}
	return &BoltStore{db: db, path: path}, nil
}

// Close releases the underlying file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Path returns the file the store was opened from.
func (s *BoltStore) Path() string {
	return s.path
}

// Enumerate implements Reader.
func (s *BoltStore) Enumerate(collection string, fn func(key string, raw []byte) bool) error {
	return s.EnumeratePrefix(collection, "", fn)
}

// EnumeratePrefix implements Reader.
func (s *BoltStore) EnumeratePrefix(collection, prefix string, fn func(key string, raw []byte) bool) error {
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(collection))
		if b == nil {
			return nil
		}

		p := []byte(prefix)
		c := b.Cursor()
		for k, v := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, v = c.Next() {
			// Nested buckets have nil values and are not records.
			if v == nil {
				continue
			}
			// bbolt memory is only valid inside the transaction.
			if !fn(string(k), bytes.Clone(v)) {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("enumerate %s: %w", collection, err)
	}
	return nil
}

// Get implements Reader.
func (s *BoltStore) Get(collection, key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(collection))
		if b == nil {
			return ErrNotFound
		}
		v := b.Get([]byte(key))
		if v == nil {
			return ErrNotFound
		}
		out = bytes.Clone(v)
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get %s/%s: %w", collection, key, err)
	}
	return out, nil
}

// Collections implements Reader.
func (s *BoltStore) Collections(prefix string) ([]string, error) {
	var names []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.ForEach(func(name []byte, _ *bolt.Bucket) error {
			if strings.HasPrefix(string(name), prefix) {
				names = append(names, string(name))
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	return names, nil
}
