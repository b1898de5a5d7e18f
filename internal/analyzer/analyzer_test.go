package analyzer_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"trackmeta/internal/analyzer"
	"trackmeta/internal/audio"
	"trackmeta/internal/consensus"
	"trackmeta/internal/fallback"
	"trackmeta/internal/features"
	"trackmeta/internal/language"
	"trackmeta/internal/lyrics"
	"trackmeta/internal/services"
	"trackmeta/internal/services/llm"
	"trackmeta/internal/testsupport"
)

type fakeSource struct {
	name string
	path string
}

func (s fakeSource) Name() string { return s.name }
func (s fakeSource) Path() string { return s.path }
func (s fakeSource) Duration(context.Context) (float64, error) {
	return 0, errors.New("not decodable")
}
func (s fakeSource) Decode(context.Context, int, audio.Span) ([]float64, error) {
	return nil, errors.New("not decodable")
}

type fakeExtractor struct {
	bundle features.Bundle
	err    error
	delay  time.Duration
	calls  atomic.Int32
}

func (f *fakeExtractor) Extract(ctx context.Context, _ audio.Source) (features.Bundle, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return features.Bundle{}, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	return f.bundle, f.err
}

type fakeEnricher struct {
	result lyrics.Enrichment
	err    error
	calls  atomic.Int32
}

func (f *fakeEnricher) Enrich(context.Context, string, features.Bundle) (lyrics.Enrichment, error) {
	f.calls.Add(1)
	return f.result, f.err
}

type progressLog struct {
	mu       sync.Mutex
	events   []string
	percents []float64
}

func (p *progressLog) hook(percent float64, label string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, label)
	p.percents = append(p.percents, percent)
}

func (p *progressLog) labels() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

func sampleBundle() features.Bundle {
	return features.Bundle{
		Rhythm:    features.Rhythm{Tempo: 124.46, BeatCount: 250, BeatRegularity: 0.9},
		Harmonic:  features.Harmonic{HarmonicPercussiveRatio: 1.2, Key: "A", Mode: "Minor"},
		Spectral:  features.Spectral{CentroidMean: 2500, FlatnessMean: 0.2},
		Energy:    features.Energy{RMSMean: 0.2, ZCRMean: 0.06, DynamicRange: 0.2},
		Structure: features.Structure{SegmentCount: 4, SegmentDurations: []float64{30, 30, 30, 30}, AvgSegmentLength: 30},
		Meta:      features.Meta{DurationSeconds: 120, SampleRate: 22050, SourceDurationSeconds: 215.337, OffsetSeconds: 30},
	}
}

func newEngine(fast []consensus.Backend, thorough []consensus.Backend) *consensus.Engine {
	return consensus.New(fallback.Classify,
		consensus.WithBackends(consensus.ModeFast, fast...),
		consensus.WithBackends(consensus.ModeThorough, thorough...),
		consensus.WithRetryPolicy(llm.RetryPolicy{Attempts: 1}),
	)
}

func fixedID() string { return "req-1" }

func TestAnalyzeThoroughConsensus(t *testing.T) {
	a := testsupport.NewFakeBackend("groq", testsupport.Reply{Raw: testsupport.VoteJSON(t, testsupport.SampleFields("House", 0.9))})
	b := testsupport.NewFakeBackend("gemini", testsupport.Reply{Raw: testsupport.VoteJSON(t, testsupport.SampleFields("House", 0.8))})
	ext := &fakeExtractor{bundle: sampleBundle()}
	an := analyzer.New(ext, newEngine(nil, []consensus.Backend{a, b}), analyzer.WithRequestIDs(fixedID))

	progress := &progressLog{}
	md, err := an.Analyze(context.Background(), fakeSource{name: "mem"}, analyzer.Options{
		Mode:     consensus.ModeThorough,
		Budget:   10 * time.Second,
		Progress: progress.hook,
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if md.MainGenre != "House" || md.Tech.Method != consensus.MethodConsensus {
		t.Fatalf("unexpected classification: %s via %s", md.MainGenre, md.Tech.Method)
	}
	if strings.Join(md.Tech.Sources, ",") != "groq,gemini" {
		t.Fatalf("unexpected sources %v", md.Tech.Sources)
	}
	if md.BPM != 124.5 || md.Key != "A" || md.Mode != "Minor" {
		t.Fatalf("unexpected musical fields: bpm=%v key=%s mode=%s", md.BPM, md.Key, md.Mode)
	}
	if md.Duration != 215.34 {
		t.Fatalf("expected source duration, got %v", md.Duration)
	}
	if md.Structure.SegmentCount != 4 {
		t.Fatalf("unexpected structure %+v", md.Structure)
	}
	if md.Language != language.Instrumental {
		t.Fatalf("expected Instrumental language, got %q", md.Language)
	}
	if md.Tech.LayerCount != 2 || !md.Tech.BudgetMet || md.Tech.RequestID != "req-1" {
		t.Fatalf("unexpected sidecar %+v", md.Tech)
	}
	if md.Tech.Mode != consensus.ModeThorough {
		t.Fatalf("unexpected mode %q", md.Tech.Mode)
	}
	want := []string{"extracting_features", "classifying", "merging", "done"}
	if got := progress.labels(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected progress %v", got)
	}
	wantPercents := []float64{5, 40, 90, 100}
	for i, p := range wantPercents {
		if progress.percents[i] != p {
			t.Fatalf("unexpected progress percents %v", progress.percents)
		}
	}
	if ext.calls.Load() != 1 {
		t.Fatalf("expected one extraction, got %d", ext.calls.Load())
	}
}

func TestAnalyzeDecodeFailureIsFatal(t *testing.T) {
	ext := &fakeExtractor{err: services.Wrap(services.ErrDecode, "features", "decode", "bad file", nil)}
	an := analyzer.New(ext, newEngine(nil, nil))
	progress := &progressLog{}

	_, err := an.Analyze(context.Background(), fakeSource{name: "bad"}, analyzer.Options{Budget: time.Second, Progress: progress.hook})
	if !errors.Is(err, services.ErrDecode) {
		t.Fatalf("expected decode error, got %v", err)
	}
	labels := progress.labels()
	if labels[len(labels)-1] != "failed" {
		t.Fatalf("expected failed state, got %v", labels)
	}
}

func TestAnalyzeRejectsNilSource(t *testing.T) {
	an := analyzer.New(&fakeExtractor{}, newEngine(nil, nil))
	if _, err := an.Analyze(context.Background(), nil, analyzer.Options{}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAnalyzeAbandonsSlowExtraction(t *testing.T) {
	backend := testsupport.NewFakeBackend("groq", testsupport.Reply{Raw: testsupport.VoteJSON(t, testsupport.SampleFields("Techno", 0.9))})
	ext := &fakeExtractor{bundle: sampleBundle(), delay: 30 * time.Second}
	limits := analyzer.DefaultLimits()
	limits.ExtractionGrace = 100 * time.Millisecond
	an := analyzer.New(ext, newEngine([]consensus.Backend{backend}, nil), analyzer.WithLimits(limits))

	started := time.Now()
	md, err := an.Analyze(context.Background(), fakeSource{name: "slow"}, analyzer.Options{
		Mode:   consensus.ModeFast,
		Budget: 300 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if elapsed := time.Since(started); elapsed > 2*time.Second {
		t.Fatalf("analysis ran %s, expected to stop near the budget", elapsed)
	}
	if md.Tech.Method != consensus.MethodFallback {
		t.Fatalf("expected fallback, got %s", md.Tech.Method)
	}
	if md.Tech.BudgetMet {
		t.Fatal("overrun must not report budget met")
	}
	if md.MainGenre == "" || len(md.Moods) == 0 || len(md.UseCases) == 0 {
		t.Fatalf("fallback result incomplete: %+v", md.Fields)
	}
	if backend.Calls() != 0 {
		t.Fatalf("backends must not run after an abandoned extraction, got %d calls", backend.Calls())
	}
}

func TestAnalyzeLowBudgetSkipsBackends(t *testing.T) {
	backend := testsupport.NewFakeBackend("groq", testsupport.Reply{Raw: testsupport.VoteJSON(t, testsupport.SampleFields("Techno", 0.9))})
	an := analyzer.New(&fakeExtractor{bundle: sampleBundle()}, newEngine([]consensus.Backend{backend}, nil))

	md, err := an.Analyze(context.Background(), fakeSource{name: "tight"}, analyzer.Options{
		Mode:   consensus.ModeFast,
		Budget: 2 * time.Second,
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if md.Tech.Method != consensus.MethodFallback {
		t.Fatalf("expected fallback under low budget, got %s", md.Tech.Method)
	}
	if backend.Calls() != 0 {
		t.Fatalf("expected no backend calls, got %d", backend.Calls())
	}
	if md.MainGenre != fallback.Classify(sampleBundle()).MainGenre {
		t.Fatalf("expected fallback genre, got %s", md.MainGenre)
	}
}

func TestAnalyzeClassificationTimeoutFallsBack(t *testing.T) {
	slow := testsupport.NewFakeBackend("groq", testsupport.Reply{
		Raw:   testsupport.VoteJSON(t, testsupport.SampleFields("Techno", 0.9)),
		Delay: 30 * time.Second,
	})
	limits := analyzer.DefaultLimits()
	limits.LowWater = 0
	limits.ClassifyFloor = 100 * time.Millisecond
	limits.StageMargin = 900 * time.Millisecond
	an := analyzer.New(&fakeExtractor{bundle: sampleBundle()}, newEngine([]consensus.Backend{slow}, nil), analyzer.WithLimits(limits))

	started := time.Now()
	md, err := an.Analyze(context.Background(), fakeSource{name: "timeout"}, analyzer.Options{
		Mode:   consensus.ModeFast,
		Budget: time.Second,
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if elapsed := time.Since(started); elapsed > 2*time.Second {
		t.Fatalf("classification was not bounded: %s", elapsed)
	}
	if md.Tech.Method != consensus.MethodFallback {
		t.Fatalf("expected fallback after timeout, got %s", md.Tech.Method)
	}
}

func TestAnalyzeStageTimeoutDiscardsPartialVotes(t *testing.T) {
	tests := []struct {
		name string
		fast int
	}{
		{"one early vote", 1},
		{"two early votes", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var backends []consensus.Backend
			for i, name := range []string{"groq", "gemini", "anthropic"} {
				reply := testsupport.Reply{Raw: testsupport.VoteJSON(t, testsupport.SampleFields("Polka", 0.95))}
				if i >= tt.fast {
					reply.Delay = 30 * time.Second
				}
				backends = append(backends, testsupport.NewFakeBackend(name, reply))
			}
			limits := analyzer.DefaultLimits()
			limits.LowWater = 0
			limits.ClassifyFloor = 100 * time.Millisecond
			limits.StageMargin = 900 * time.Millisecond
			an := analyzer.New(&fakeExtractor{bundle: sampleBundle()}, newEngine(nil, backends), analyzer.WithLimits(limits))

			started := time.Now()
			md, err := an.Analyze(context.Background(), fakeSource{name: "partial"}, analyzer.Options{
				Mode:   consensus.ModeThorough,
				Budget: time.Second,
			})
			if err != nil {
				t.Fatalf("Analyze: %v", err)
			}
			if elapsed := time.Since(started); elapsed > 2*time.Second {
				t.Fatalf("classification was not bounded: %s", elapsed)
			}
			if md.Tech.Method != consensus.MethodFallback {
				t.Fatalf("expected fallback after stage timeout, got %s (%s from %v)", md.Tech.Method, md.MainGenre, md.Tech.Sources)
			}
			if md.MainGenre == "Polka" || len(md.Tech.Sources) != 0 {
				t.Fatalf("expected early votes discarded, got %s from %v", md.MainGenre, md.Tech.Sources)
			}
		})
	}
}

func TestAnalyzeBackfillsSingleVote(t *testing.T) {
	fields := testsupport.SampleFields("Trance", 0.7)
	fields.Moods = nil
	fields.UseCases = nil
	fields.Instrumentation = []string{}
	backend := testsupport.NewFakeBackend("groq", testsupport.Reply{Raw: testsupport.VoteJSON(t, fields)})
	an := analyzer.New(&fakeExtractor{bundle: sampleBundle()}, newEngine([]consensus.Backend{backend}, nil))

	md, err := an.Analyze(context.Background(), fakeSource{name: "single"}, analyzer.Options{
		Mode:   consensus.ModeFast,
		Budget: 10 * time.Second,
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if md.Tech.Method != consensus.MethodSingle || md.MainGenre != "Trance" {
		t.Fatalf("expected single Trance vote, got %s via %s", md.MainGenre, md.Tech.Method)
	}
	fb := fallback.Classify(sampleBundle())
	if strings.Join(md.Moods, ",") != strings.Join(fb.Moods, ",") {
		t.Fatalf("expected moods backfilled from fallback, got %v", md.Moods)
	}
	if len(md.UseCases) == 0 || len(md.Instrumentation) == 0 {
		t.Fatalf("expected list fields backfilled: %+v", md.Fields)
	}
	if strings.Join(md.Keywords, ",") != strings.Join(fields.Keywords, ",") {
		t.Fatalf("vote keywords should be kept, got %v", md.Keywords)
	}
}

func TestAnalyzeUnknownGenreUsesFallback(t *testing.T) {
	backend := testsupport.NewFakeBackend("groq", testsupport.Reply{Raw: testsupport.VoteJSON(t, testsupport.SampleFields("Unknown", 0.9))})
	an := analyzer.New(&fakeExtractor{bundle: sampleBundle()}, newEngine([]consensus.Backend{backend}, nil))

	md, err := an.Analyze(context.Background(), fakeSource{name: "unknown"}, analyzer.Options{
		Mode:   consensus.ModeFast,
		Budget: 10 * time.Second,
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if md.MainGenre == consensus.Unknown || md.Tech.Method != consensus.MethodFallback {
		t.Fatalf("expected fallback instead of Unknown, got %s via %s", md.MainGenre, md.Tech.Method)
	}
}

func TestAnalyzePassesHintsAndTags(t *testing.T) {
	backend := testsupport.NewFakeBackend("groq", testsupport.Reply{Raw: testsupport.VoteJSON(t, testsupport.SampleFields("House", 0.9))})
	tags := func(path string) (audio.Tags, error) {
		return audio.Tags{Title: "Night Drive", Artist: "Nobody", Genre: "Deep House"}, nil
	}
	an := analyzer.New(&fakeExtractor{bundle: sampleBundle()}, newEngine([]consensus.Backend{backend}, nil), analyzer.WithTagReader(tags))

	if _, err := an.Analyze(context.Background(), fakeSource{name: "tagged", path: "/music/night.mp3"}, analyzer.Options{
		Mode:   consensus.ModeFast,
		Budget: 10 * time.Second,
	}); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	prompt := backend.LastPrompt().User
	for _, want := range []string{"Night Drive", "Nobody", "Deep House"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestAnalyzeMergesLyrics(t *testing.T) {
	fields := testsupport.SampleFields("House", 0.9)
	backend := testsupport.NewFakeBackend("groq", testsupport.Reply{Raw: testsupport.VoteJSON(t, fields)})
	enricher := &fakeEnricher{result: lyrics.Enrichment{
		Present: true,
		Lyrics:  "we dance until the morning light",
		Insights: lyrics.Insights{
			Themes:         []string{"Night", "dance", "Freedom"},
			Language:       "English",
			Explicit:       true,
			MoodFromLyrics: []string{"uplifting", "Nostalgic", "Hopeful", "Dreamy", "Warm"},
		},
	}}
	an := analyzer.New(&fakeExtractor{bundle: sampleBundle()}, newEngine([]consensus.Backend{backend}, nil), analyzer.WithEnricher(enricher))
	progress := &progressLog{}

	md, err := an.Analyze(context.Background(), fakeSource{name: "vocal", path: "/music/vocal.mp3"}, analyzer.Options{
		Mode:          consensus.ModeFast,
		Budget:        30 * time.Second,
		IncludeLyrics: true,
		Progress:      progress.hook,
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if md.Tech.LayerCount != 3 || md.Language != "English" || !md.Explicit {
		t.Fatalf("lyrics not merged: layers=%d language=%q explicit=%v", md.Tech.LayerCount, md.Language, md.Explicit)
	}
	wantMoods := "Groovy,Uplifting,Nostalgic,Hopeful,Dreamy,Warm"
	if strings.Join(md.Moods, ",") != wantMoods {
		t.Fatalf("unexpected merged moods %v", md.Moods)
	}
	wantKeywords := "dance,club,night,groove,energy,Freedom"
	if strings.Join(md.Keywords, ",") != wantKeywords {
		t.Fatalf("unexpected merged keywords %v", md.Keywords)
	}
	if md.Lyrics == "" || len(md.Themes) != 3 {
		t.Fatalf("expected lyrics and themes, got %q %v", md.Lyrics, md.Themes)
	}
	if !strings.Contains(strings.Join(progress.labels(), ","), "enriching_lyrics") {
		t.Fatalf("expected lyrics progress, got %v", progress.labels())
	}
}

func TestAnalyzeLyricsSkips(t *testing.T) {
	vote := testsupport.Reply{Raw: testsupport.VoteJSON(t, testsupport.SampleFields("House", 0.9))}
	tests := []struct {
		name       string
		source     audio.Source
		budget     time.Duration
		enricher   *fakeEnricher
		wantSkip   string
		wantCalled bool
	}{
		{"in-memory source", fakeSource{name: "pcm"}, 30 * time.Second, &fakeEnricher{}, "no_file", false},
		{"low budget", fakeSource{name: "f", path: "/f.mp3"}, 5 * time.Second, &fakeEnricher{}, "budget", false},
		{"enricher error", fakeSource{name: "f", path: "/f.mp3"}, 30 * time.Second, &fakeEnricher{err: errors.New("asr down")}, "error", true},
		{"instrumental gate", fakeSource{name: "f", path: "/f.mp3"}, 30 * time.Second, &fakeEnricher{result: lyrics.Enrichment{Reason: lyrics.ReasonInstrumental}}, lyrics.ReasonInstrumental, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := testsupport.NewFakeBackend("groq", vote)
			an := analyzer.New(&fakeExtractor{bundle: sampleBundle()}, newEngine([]consensus.Backend{backend}, nil), analyzer.WithEnricher(tt.enricher))
			md, err := an.Analyze(context.Background(), tt.source, analyzer.Options{
				Mode:          consensus.ModeFast,
				Budget:        tt.budget,
				IncludeLyrics: true,
			})
			if err != nil {
				t.Fatalf("Analyze: %v", err)
			}
			if md.Tech.LyricsSkipped != tt.wantSkip {
				t.Fatalf("expected skip %q, got %q", tt.wantSkip, md.Tech.LyricsSkipped)
			}
			if (tt.enricher.calls.Load() > 0) != tt.wantCalled {
				t.Fatalf("enricher called=%d, want called=%v", tt.enricher.calls.Load(), tt.wantCalled)
			}
			if md.Tech.LayerCount != 2 || md.Language != language.Instrumental {
				t.Fatalf("skipped lyrics must not change layers or language: %+v", md.Tech)
			}
		})
	}
}

func TestAnalyzeWithoutEnricherReportsNotConfigured(t *testing.T) {
	backend := testsupport.NewFakeBackend("groq", testsupport.Reply{Raw: testsupport.VoteJSON(t, testsupport.SampleFields("House", 0.9))})
	an := analyzer.New(&fakeExtractor{bundle: sampleBundle()}, newEngine([]consensus.Backend{backend}, nil))
	md, err := an.Analyze(context.Background(), fakeSource{name: "f", path: "/f.mp3"}, analyzer.Options{
		Mode:          consensus.ModeFast,
		Budget:        30 * time.Second,
		IncludeLyrics: true,
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if md.Tech.LyricsSkipped != "not_configured" {
		t.Fatalf("unexpected skip reason %q", md.Tech.LyricsSkipped)
	}
}

func TestAnalyzeKeepsCallerRequestID(t *testing.T) {
	an := analyzer.New(&fakeExtractor{bundle: sampleBundle()}, newEngine(nil, nil), analyzer.WithRequestIDs(fixedID))
	ctx := services.WithRequestID(context.Background(), "caller-7")
	md, err := an.Analyze(ctx, fakeSource{name: "id"}, analyzer.Options{Budget: 10 * time.Second})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if md.Tech.RequestID != "caller-7" {
		t.Fatalf("expected caller request id, got %q", md.Tech.RequestID)
	}
}
