//go:build !windows

// Package fileutil creates the directories and files that hold migrated
// message data with owner-only access.
//
// On Unix the helpers are thin wrappers around os.* and rely on the mode
// bits. On Windows, owner-only modes (perm & 0077 == 0) additionally get a
// DACL granting access to the current user alone.
package fileutil

import "os"

// SecureMkdirAll creates path and any missing parents.
func SecureMkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

// RestrictFile sets perm on an existing file. A missing file is not an
// error, which lets callers restrict optional sidecars such as a SQLite
// write-ahead log.
func RestrictFile(path string, perm os.FileMode) error {
	err := os.Chmod(path, perm)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
