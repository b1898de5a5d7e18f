package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"trackmeta/internal/analyzer"
	"trackmeta/internal/audio"
	"trackmeta/internal/logging"
)

type fakeRunner struct {
	mu       sync.Mutex
	seen     []string
	active   atomic.Int32
	peak     atomic.Int32
	failures map[string]bool
}

func (r *fakeRunner) Analyze(ctx context.Context, src audio.Source, opts analyzer.Options) (analyzer.TrackMetadata, error) {
	now := r.active.Add(1)
	defer r.active.Add(-1)
	for {
		peak := r.peak.Load()
		if now <= peak || r.peak.CompareAndSwap(peak, now) {
			break
		}
	}
	time.Sleep(10 * time.Millisecond)

	r.mu.Lock()
	r.seen = append(r.seen, src.Name())
	r.mu.Unlock()

	if r.failures[src.Name()] {
		return analyzer.TrackMetadata{}, errors.New("decode failed")
	}
	var md analyzer.TrackMetadata
	md.MainGenre = "Genre " + src.Name()
	md.Tech.Method = "consensus"
	return md, nil
}

func pcmSource(path string) audio.Source {
	return audio.NewPCMSource(path, nil, 22050)
}

func TestRunBatchKeepsInputOrder(t *testing.T) {
	runner := &fakeRunner{failures: map[string]bool{"b": true}}
	paths := []string{"a", "b", "c", "d", "e"}

	results := runBatch(context.Background(), runner, pcmSource, paths, analyzer.Options{}, 2, logging.NewNop())

	if len(results) != len(paths) {
		t.Fatalf("expected %d results, got %d", len(paths), len(results))
	}
	for i, r := range results {
		if r.File != paths[i] {
			t.Fatalf("result %d: expected %q, got %q", i, paths[i], r.File)
		}
	}
	if results[1].Error == "" || results[1].Metadata != nil {
		t.Fatalf("expected failure for b, got %+v", results[1])
	}
	if results[4].Metadata == nil || results[4].Metadata.MainGenre != "Genre e" {
		t.Fatalf("unexpected metadata for e: %+v", results[4])
	}
	if countFailed(results) != 1 {
		t.Fatalf("expected one failure, got %d", countFailed(results))
	}
	if peak := runner.peak.Load(); peak > 2 {
		t.Fatalf("expected at most 2 concurrent analyses, saw %d", peak)
	}
	if len(runner.seen) != len(paths) {
		t.Fatalf("expected every file analyzed, got %v", runner.seen)
	}
}

func TestRunBatchClampsWorkers(t *testing.T) {
	runner := &fakeRunner{}
	results := runBatch(context.Background(), runner, pcmSource, []string{"only"}, analyzer.Options{}, 8, logging.NewNop())
	if len(results) != 1 || results[0].Metadata == nil {
		t.Fatalf("unexpected results %+v", results)
	}
}

func TestRunBatchCancelledContext(t *testing.T) {
	runner := &fakeRunner{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := runBatch(ctx, runner, pcmSource, []string{"a", "b"}, analyzer.Options{}, 1, logging.NewNop())
	for _, r := range results {
		if !strings.Contains(r.Error, "canceled") {
			t.Fatalf("expected cancellation error, got %+v", r)
		}
	}
	if len(runner.seen) != 0 {
		t.Fatalf("expected no analyses after cancellation, got %v", runner.seen)
	}
}

func TestWriteBatchFormats(t *testing.T) {
	md := analyzer.TrackMetadata{}
	md.MainGenre = "House"
	md.BPM = 124
	results := []batchResult{
		{File: "/music/a.mp3", Metadata: &md},
		{File: "/music/b.mp3", Error: "decode failed"},
	}

	render := func(format string) string {
		var out bytes.Buffer
		cmd := &cobra.Command{}
		cmd.SetOut(&out)
		if err := writeBatch(cmd, format, results); err != nil {
			t.Fatalf("writeBatch %s: %v", format, err)
		}
		return out.String()
	}

	table := render(formatTable)
	for _, want := range []string{"a.mp3", "House", "124.0", "failed: decode failed"} {
		if !strings.Contains(table, want) {
			t.Fatalf("expected %q in table:\n%s", want, table)
		}
	}
	if yaml := render(formatYAML); !strings.Contains(yaml, "mainGenre: House") || !strings.Contains(yaml, "error: decode failed") {
		t.Fatalf("unexpected yaml:\n%s", yaml)
	}
	if js := render(formatJSON); !strings.Contains(js, `"mainGenre": "House"`) {
		t.Fatalf("unexpected json:\n%s", js)
	}
}
