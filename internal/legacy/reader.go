// Package legacy reads the legacy key-value collection store and decodes its
// archived records into typed models.
package legacy

import "errors"

// ErrNotFound is returned by Reader.Get when a key is absent.
var ErrNotFound = errors.New("legacy record not found")

// Reader is read-only access to a legacy collection store.
//
// Implementations must return values the caller may retain after the
// callback returns.
type Reader interface {
	// Enumerate visits every key/value in collection in key order. fn returns
	// false to stop early. A missing collection is empty, not an error.
	Enumerate(collection string, fn func(key string, raw []byte) bool) error
	// EnumeratePrefix is Enumerate limited to keys with the given prefix.
	EnumeratePrefix(collection, prefix string, fn func(key string, raw []byte) bool) error
	// Get returns the value stored under key, or ErrNotFound.
	Get(collection, key string) ([]byte, error)
	// Collections lists collection names starting with prefix.
	Collections(prefix string) ([]string, error)
}
