package testsupport

import (
	"context"
	"testing"

	"playarr/internal/config"
	"playarr/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewLibraryPath registers a library root for tests using the provided store.
func NewLibraryPath(t testing.TB, st *store.Store, path string) *store.LibraryPath {
	t.Helper()

	lp, err := st.AddLibraryPath(context.Background(), path, "", store.SourceManual)
	if err != nil {
		t.Fatalf("store.AddLibraryPath: %v", err)
	}
	return lp
}
