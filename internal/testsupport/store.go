package testsupport

import (
	"context"
	"testing"

	"pressline/internal/cache"
	"pressline/internal/config"
)

// MustOpenStore opens a cache.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *cache.Store {
	t.Helper()

	store, err := cache.Open(cfg)
	if err != nil {
		t.Fatalf("cache.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// AdvanceEntry moves a fingerprint to the given stage for tests.
func AdvanceEntry(t testing.TB, store *cache.Store, fingerprint string, stage cache.Stage, mutate func(*cache.Entry)) *cache.Entry {
	t.Helper()

	entry, err := store.Advance(context.Background(), fingerprint, stage, mutate)
	if err != nil {
		t.Fatalf("store.Advance(%s): %v", stage, err)
	}
	return entry
}
