// Package testutil provides helpers shared by the package tests.
//
//   - assert.go: assertion helpers (MustNoErr, AssertStrings, ...)
//   - store_helpers.go: temporary stores with the schema applied
//   - fs_helpers.go: filesystem helpers
package testutil
