package testsupport

import (
	"context"
	"testing"

	"trackmeta/internal/cache"
	"trackmeta/internal/config"
)

// MustOpenCache opens a cache.Store for tests and registers cleanup.
func MustOpenCache(t testing.TB, cfg *config.Config) *cache.Store {
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

// PutCached seeds a cache entry for tests.
func PutCached(t testing.TB, store *cache.Store, key cache.Key, result []byte) {
	t.Helper()

	if err := store.Put(context.Background(), key, "", result); err != nil {
		t.Fatalf("store.Put: %v", err)
	}
}
