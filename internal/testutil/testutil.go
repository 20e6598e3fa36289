// Package testutil provides test helpers for mailindex tests.
//
//   - assert.go: assertion helpers (MustNoErr, AssertStrings)
//   - fs_helpers.go: corpus fixtures on disk (WriteFile, WriteCorpus)
//
// Database fixtures live in the storetest subpackage.
package testutil
