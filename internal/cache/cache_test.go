package cache_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"trackmeta/internal/cache"
	"trackmeta/internal/testsupport"
)

func writeBytes(t *testing.T, path, content string) string {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestKeyForHashesContentAndOptions(t *testing.T) {
	dir := t.TempDir()
	a := writeBytes(t, filepath.Join(dir, "a.bin"), "same bytes")
	b := writeBytes(t, filepath.Join(dir, "b.bin"), "same bytes")
	c := writeBytes(t, filepath.Join(dir, "c.bin"), "other bytes")

	ka, err := cache.KeyFor(a, "Thorough", false)
	if err != nil {
		t.Fatalf("KeyFor: %v", err)
	}
	kb, _ := cache.KeyFor(b, "thorough", false)
	kc, _ := cache.KeyFor(c, "thorough", false)
	kl, _ := cache.KeyFor(a, "thorough", true)

	if ka.String() != kb.String() {
		t.Fatalf("identical content should share a key: %s vs %s", ka, kb)
	}
	if ka.String() == kc.String() {
		t.Fatal("different content should not share a key")
	}
	if ka.String() == kl.String() {
		t.Fatal("lyrics flag should change the key")
	}
	if ka.Mode != "thorough" {
		t.Fatalf("expected lowercased mode, got %q", ka.Mode)
	}
	if len(ka.FileHash) != 64 {
		t.Fatalf("expected hex sha256, got %q", ka.FileHash)
	}
}

func TestKeyForMissingFile(t *testing.T) {
	if _, err := cache.KeyFor(filepath.Join(t.TempDir(), "missing.mp3"), "fast", false); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCache(t, cfg)
	ctx := context.Background()
	key := cache.Key{FileHash: "abc", Mode: "fast"}

	if _, ok, err := store.Get(ctx, key); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
	if err := store.Put(ctx, key, "/music/song.mp3", []byte(`{"main_genre":"House"}`)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	entry, ok, err := store.Get(ctx, key)
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if string(entry.Result) != `{"main_genre":"House"}` {
		t.Fatalf("unexpected result %s", entry.Result)
	}
	if entry.SourcePath != "/music/song.mp3" {
		t.Fatalf("unexpected source path %q", entry.SourcePath)
	}
	if entry.HitCount != 1 {
		t.Fatalf("expected hit count 1, got %d", entry.HitCount)
	}
	if entry.CreatedAt.IsZero() {
		t.Fatal("expected created_at to parse")
	}

	if _, ok, _ := store.Get(ctx, cache.Key{FileHash: "abc", Mode: "thorough"}); ok {
		t.Fatal("mode should be part of the key")
	}
}

func TestPutReplacesExisting(t *testing.T) {
	store := testsupport.MustOpenCache(t, testsupport.NewConfig(t))
	ctx := context.Background()
	key := cache.Key{FileHash: "abc", Mode: "fast", Lyrics: true}

	testsupport.PutCached(t, store, key, []byte(`{"v":1}`))
	testsupport.PutCached(t, store, key, []byte(`{"v":2}`))

	entry, ok, err := store.Get(ctx, key)
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if string(entry.Result) != `{"v":2}` {
		t.Fatalf("expected replaced value, got %s", entry.Result)
	}
	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Entries != 1 {
		t.Fatalf("expected 1 entry after replace, got %d", stats.Entries)
	}
}

func TestPutRejectsEmptyResult(t *testing.T) {
	store := testsupport.MustOpenCache(t, testsupport.NewConfig(t))
	if err := store.Put(context.Background(), cache.Key{FileHash: "x", Mode: "fast"}, "", nil); err == nil {
		t.Fatal("expected error for empty result")
	}
}

func TestStatsAndClear(t *testing.T) {
	store := testsupport.MustOpenCache(t, testsupport.NewConfig(t))
	ctx := context.Background()

	testsupport.PutCached(t, store, cache.Key{FileHash: "a", Mode: "fast"}, []byte(`{}`))
	testsupport.PutCached(t, store, cache.Key{FileHash: "a", Mode: "thorough"}, []byte(`{}`))
	testsupport.PutCached(t, store, cache.Key{FileHash: "b", Mode: "thorough"}, []byte(`{}`))
	if _, _, err := store.Get(ctx, cache.Key{FileHash: "b", Mode: "thorough"}); err != nil {
		t.Fatalf("Get: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Entries != 3 || stats.Tracks != 2 || stats.Hits != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.ByMode["thorough"] != 2 || stats.ByMode["fast"] != 1 {
		t.Fatalf("unexpected per-mode counts: %+v", stats.ByMode)
	}
	if stats.SizeBytes <= 0 {
		t.Fatal("expected non-zero database size")
	}
	if stats.Oldest.IsZero() || stats.Newest.Before(stats.Oldest) {
		t.Fatalf("unexpected timestamps: %s %s", stats.Oldest, stats.Newest)
	}

	removed, err := store.Clear(ctx)
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if removed != 3 {
		t.Fatalf("expected 3 removed, got %d", removed)
	}
	stats, _ = store.Stats(ctx)
	if stats.Entries != 0 {
		t.Fatalf("expected empty cache, got %d", stats.Entries)
	}
}

func TestPruneKeepsRecentEntries(t *testing.T) {
	store := testsupport.MustOpenCache(t, testsupport.NewConfig(t))
	ctx := context.Background()
	testsupport.PutCached(t, store, cache.Key{FileHash: "a", Mode: "fast"}, []byte(`{}`))

	removed, err := store.Prune(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 0 {
		t.Fatalf("expected nothing pruned, got %d", removed)
	}
	removed, err = store.Prune(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 pruned, got %d", removed)
	}
}

func TestReopenKeepsEntries(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := cache.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	testsupport.PutCached(t, store, cache.Key{FileHash: "a", Mode: "fast"}, []byte(`{}`))
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened := testsupport.MustOpenCache(t, cfg)
	if _, ok, err := reopened.Get(context.Background(), cache.Key{FileHash: "a", Mode: "fast"}); err != nil || !ok {
		t.Fatalf("expected entry after reopen, got ok=%v err=%v", ok, err)
	}
}

func TestOpenRejectsNewerSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCache(t, cfg)
	if err := store.SetLayoutVersionForTest(99); err != nil {
		t.Fatalf("set version: %v", err)
	}
	store.Close()

	_, err := cache.Open(cfg)
	if !errors.Is(err, cache.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestOpenRebuildsOlderLayout(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCache(t, cfg)
	testsupport.PutCached(t, store, cache.Key{FileHash: "a", Mode: "fast"}, []byte(`{"mainGenre":"House"}`))
	if err := store.SetLayoutVersionForTest(0); err != nil {
		t.Fatalf("set version: %v", err)
	}
	store.Close()

	reopened := testsupport.MustOpenCache(t, cfg)
	if _, ok, err := reopened.Get(context.Background(), cache.Key{FileHash: "a", Mode: "fast"}); err != nil || ok {
		t.Fatalf("expected stale entry dropped, got ok=%v err=%v", ok, err)
	}
	testsupport.PutCached(t, reopened, cache.Key{FileHash: "b", Mode: "fast"}, []byte(`{"mainGenre":"Techno"}`))
	reopened.Close()

	again := testsupport.MustOpenCache(t, cfg)
	if _, ok, err := again.Get(context.Background(), cache.Key{FileHash: "b", Mode: "fast"}); err != nil || !ok {
		t.Fatalf("expected entry to survive reopen at current layout, got ok=%v err=%v", ok, err)
	}
}

func TestOpenPathRejectsEmpty(t *testing.T) {
	if _, err := cache.OpenPath("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}
