// Package storetest opens throwaway databases for tests that exercise the
// store through its public API. It lives apart from testutil so that
// packages the store depends on can still use testutil in their own tests.
package storetest

import (
	"path/filepath"
	"testing"

	"github.com/wesm/mailindex/internal/store"
)

// New opens a fresh database with the schema applied. It is closed when the
// test completes.
func New(t testing.TB) *store.Store {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	if err := st.InitSchema(); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	return st
}
