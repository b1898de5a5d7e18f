package analyzer_test

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"trackmeta/internal/analyzer"
	"trackmeta/internal/audio"
	"trackmeta/internal/consensus"
	"trackmeta/internal/testsupport"
)

type countingRunner struct {
	method consensus.Method
	calls  atomic.Int32
}

func (r *countingRunner) Analyze(context.Context, audio.Source, analyzer.Options) (analyzer.TrackMetadata, error) {
	r.calls.Add(1)
	md := analyzer.TrackMetadata{BPM: 128, Language: "Instrumental"}
	md.MainGenre = "House"
	md.Tech.Method = r.method
	md.Tech.Sources = []string{"groq"}
	return md, nil
}

func writeTrack(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "track.mp3")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write track: %v", err)
	}
	return path
}

func TestCachedAnalyzerServesRepeatRequests(t *testing.T) {
	store := testsupport.MustOpenCache(t, testsupport.NewConfig(t))
	inner := &countingRunner{method: consensus.MethodConsensus}
	cached := analyzer.NewCached(inner, store, nil)
	src := fakeSource{name: "track", path: writeTrack(t, "audio-bytes")}
	opts := analyzer.Options{Mode: consensus.ModeFast, Budget: time.Second}

	first, err := cached.Analyze(context.Background(), src, opts)
	if err != nil {
		t.Fatalf("first Analyze: %v", err)
	}
	if first.Tech.Cached {
		t.Fatal("first result must not be marked cached")
	}
	var done bool
	opts.Progress = func(percent float64, label string) { done = percent == 100 && label == "done" }
	second, err := cached.Analyze(context.Background(), src, opts)
	if err != nil {
		t.Fatalf("second Analyze: %v", err)
	}
	if inner.calls.Load() != 1 {
		t.Fatalf("expected one pipeline run, got %d", inner.calls.Load())
	}
	if !second.Tech.Cached || second.MainGenre != "House" || second.BPM != 128 {
		t.Fatalf("unexpected cached result %+v", second)
	}
	if !done {
		t.Fatal("cache hit should report completion")
	}

	opts.IncludeLyrics = true
	if _, err := cached.Analyze(context.Background(), src, opts); err != nil {
		t.Fatalf("lyrics Analyze: %v", err)
	}
	if inner.calls.Load() != 2 {
		t.Fatal("different options must miss the cache")
	}
}

func TestCachedAnalyzerSkipsFallbackResults(t *testing.T) {
	store := testsupport.MustOpenCache(t, testsupport.NewConfig(t))
	inner := &countingRunner{method: consensus.MethodFallback}
	cached := analyzer.NewCached(inner, store, nil)
	src := fakeSource{name: "track", path: writeTrack(t, "more-bytes")}

	for range 2 {
		if _, err := cached.Analyze(context.Background(), src, analyzer.Options{}); err != nil {
			t.Fatalf("Analyze: %v", err)
		}
	}
	if inner.calls.Load() != 2 {
		t.Fatalf("fallback results must not be cached, got %d runs", inner.calls.Load())
	}
}

func TestCachedAnalyzerPassesThroughWithoutPath(t *testing.T) {
	store := testsupport.MustOpenCache(t, testsupport.NewConfig(t))
	inner := &countingRunner{method: consensus.MethodConsensus}
	cached := analyzer.NewCached(inner, store, nil)
	for range 2 {
		if _, err := cached.Analyze(context.Background(), fakeSource{name: "pcm"}, analyzer.Options{}); err != nil {
			t.Fatalf("Analyze: %v", err)
		}
	}
	if inner.calls.Load() != 2 {
		t.Fatalf("in-memory sources bypass the cache, got %d runs", inner.calls.Load())
	}
}
