package consensus_test

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"trackmeta/internal/consensus"
	"trackmeta/internal/features"
	"trackmeta/internal/services"
	"trackmeta/internal/services/llm"
	"trackmeta/internal/testsupport"
)

func stubFallback(features.Bundle) consensus.Result {
	return consensus.Result{Fields: consensus.Fields{
		MainGenre:        "Downtempo",
		AdditionalGenres: []string{"Electronic"},
		Moods:            []string{"Relaxed"},
		MainInstrument:   "Synthesizer",
		Instrumentation:  []string{"Synthesizer"},
		VocalStyle:       consensus.NoVocals(),
		Keywords:         []string{"downtempo"},
		UseCases:         []string{"Background Music"},
		Confidence:       0.6,
	}}
}

func fastRetry() llm.RetryPolicy {
	return llm.RetryPolicy{
		Attempts:       3,
		BaseDelay:      time.Millisecond,
		MaxDelay:       time.Millisecond,
		AttemptTimeout: time.Second,
		Sleeper:        func(time.Duration) {},
	}
}

func newEngine(mode consensus.Mode, backends ...consensus.Backend) *consensus.Engine {
	return consensus.New(stubFallback,
		consensus.WithBackends(mode, backends...),
		consensus.WithRetryPolicy(fastRetry()),
	)
}

func TestClassifyThoroughVotesAcrossBackends(t *testing.T) {
	a := testsupport.NewFakeBackend("groq", testsupport.Reply{Raw: testsupport.VoteJSON(t, testsupport.SampleFields("House", 0.9))})
	b := testsupport.NewFakeBackend("gemini", testsupport.Reply{Raw: testsupport.VoteJSON(t, testsupport.SampleFields("House", 0.8))})
	c := testsupport.NewFakeBackend("anthropic", testsupport.Reply{Raw: testsupport.VoteJSON(t, testsupport.SampleFields("Techno", 0.7))})
	engine := newEngine(consensus.ModeThorough, a, b, c)

	r := engine.Classify(context.Background(), features.Bundle{}, consensus.Hints{}, consensus.ModeThorough)
	if r.MainGenre != "House" {
		t.Fatalf("expected House, got %q", r.MainGenre)
	}
	if r.Method != consensus.MethodConsensus || r.VoteCount != 3 {
		t.Fatalf("unexpected method %q votes %d", r.Method, r.VoteCount)
	}
	if strings.Join(r.Sources, ",") != "groq,gemini,anthropic" {
		t.Fatalf("unexpected sources %v", r.Sources)
	}
	if a.LastPrompt().User != b.LastPrompt().User {
		t.Fatal("every backend must receive the same prompt")
	}
}

func TestClassifyFastSingleSuccessIsVerbatim(t *testing.T) {
	fields := testsupport.SampleFields("deep house", 0.42)
	fields.Moods = []string{"hypnotic"}
	ok := testsupport.NewFakeBackend("groq", testsupport.Reply{Raw: testsupport.VoteJSON(t, fields)})
	failing := testsupport.NewFakeBackend("gemini", testsupport.Reply{Err: &llm.StatusError{Provider: "gemini", StatusCode: http.StatusServiceUnavailable}})
	engine := newEngine(consensus.ModeFast, ok, failing)

	r := engine.Classify(context.Background(), features.Bundle{}, consensus.Hints{}, consensus.ModeFast)
	if r.Method != consensus.MethodSingle {
		t.Fatalf("expected single method, got %q", r.Method)
	}
	if r.MainGenre != "deep house" || r.Moods[0] != "hypnotic" {
		t.Fatalf("expected verbatim vote, got %q %v", r.MainGenre, r.Moods)
	}
	if r.Confidence != 0.42 {
		t.Fatalf("expected self-reported confidence preserved, got %v", r.Confidence)
	}
	if failing.Calls() != 3 {
		t.Fatalf("expected transient failure retried 3 times, got %d", failing.Calls())
	}
}

func TestClassifySingleVoteWithoutConfidenceUsesDefault(t *testing.T) {
	ok := testsupport.NewFakeBackend("groq", testsupport.Reply{Raw: `{"mainGenre":"Ambient","moods":["Calm"]}`})
	engine := newEngine(consensus.ModeFast, ok)

	r := engine.Classify(context.Background(), features.Bundle{}, consensus.Hints{}, consensus.ModeFast)
	if r.Method != consensus.MethodSingle || r.MainGenre != "Ambient" {
		t.Fatalf("expected single Ambient vote, got %q %q", r.Method, r.MainGenre)
	}
	if r.Confidence != 0.8 {
		t.Fatalf("expected default confidence for unreported vote, got %v", r.Confidence)
	}
}

func TestClassifyThoroughBelowQuorumReturnsSoleVote(t *testing.T) {
	ok := testsupport.NewFakeBackend("groq", testsupport.Reply{Raw: testsupport.VoteJSON(t, testsupport.SampleFields("Trap", 0.7))})
	down := testsupport.NewFakeBackend("gemini", testsupport.Reply{Err: errors.New("connection reset")})
	engine := newEngine(consensus.ModeThorough, ok, down)
	r := engine.Classify(context.Background(), features.Bundle{}, consensus.Hints{}, consensus.ModeThorough)
	if r.Method != consensus.MethodSingle || r.MainGenre != "Trap" {
		t.Fatalf("expected sole vote passthrough, got %q %q", r.Method, r.MainGenre)
	}
}

func TestClassifyAllFailingUsesFallback(t *testing.T) {
	var backends []consensus.Backend
	for _, name := range []string{"groq", "gemini", "anthropic", "openrouter", "deepseek"} {
		backends = append(backends, testsupport.NewFakeBackend(name, testsupport.Reply{Err: errors.New("boom")}))
	}
	engine := newEngine(consensus.ModeThorough, backends...)
	r := engine.Classify(context.Background(), features.Bundle{}, consensus.Hints{}, consensus.ModeThorough)
	if r.Method != consensus.MethodFallback {
		t.Fatalf("expected fallback, got %q", r.Method)
	}
	if len(r.Sources) != 0 {
		t.Fatalf("expected no sources, got %v", r.Sources)
	}
	if r.MainGenre != "Downtempo" {
		t.Fatalf("unexpected fallback genre %q", r.MainGenre)
	}
}

func TestClassifyUnknownGenreUsesFallback(t *testing.T) {
	a := testsupport.NewFakeBackend("groq", testsupport.Reply{Raw: testsupport.VoteJSON(t, testsupport.SampleFields("Unknown", 0.5))})
	b := testsupport.NewFakeBackend("gemini", testsupport.Reply{Raw: testsupport.VoteJSON(t, testsupport.SampleFields("unknown", 0.5))})
	engine := newEngine(consensus.ModeThorough, a, b)
	r := engine.Classify(context.Background(), features.Bundle{}, consensus.Hints{}, consensus.ModeThorough)
	if r.Method != consensus.MethodFallback || r.MainGenre == consensus.Unknown {
		t.Fatalf("expected fallback over Unknown, got %q %q", r.Method, r.MainGenre)
	}
}

func TestClassifyRetriesParseFailures(t *testing.T) {
	b := testsupport.NewFakeBackend("groq",
		testsupport.Reply{Raw: "I think this is house music"},
		testsupport.Reply{Raw: "```json\n" + testsupport.VoteJSON(t, testsupport.SampleFields("House", 0.9)) + "\n```"},
	)
	engine := newEngine(consensus.ModeFast, b)
	r := engine.Classify(context.Background(), features.Bundle{}, consensus.Hints{}, consensus.ModeFast)
	if r.MainGenre != "House" {
		t.Fatalf("expected House after retry, got %q (%q)", r.MainGenre, r.Method)
	}
	if b.Calls() != 2 {
		t.Fatalf("expected 2 calls, got %d", b.Calls())
	}
}

func TestClassifyDoesNotRetryPermanentErrors(t *testing.T) {
	b := testsupport.NewFakeBackend("anthropic", testsupport.Reply{
		Err: services.Wrap(services.ErrConfiguration, "anthropic", "classify", "api key missing", nil),
	})
	engine := newEngine(consensus.ModeFast, b)
	votes := engine.Dispatch(context.Background(), []consensus.Backend{b}, consensus.Prompt{})
	if b.Calls() != 1 {
		t.Fatalf("expected a single attempt, got %d", b.Calls())
	}
	if votes[0].Valid() || !errors.Is(votes[0].Err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error vote, got %v", votes[0].Err)
	}
}

func TestDispatchAbandonsCallsAtStageDeadline(t *testing.T) {
	fast := testsupport.NewFakeBackend("groq", testsupport.Reply{Raw: testsupport.VoteJSON(t, testsupport.SampleFields("House", 0.9))})
	stuck := testsupport.NewFakeBackend("gemini", testsupport.Reply{
		Raw:           testsupport.VoteJSON(t, testsupport.SampleFields("Techno", 0.9)),
		Delay:         3 * time.Second,
		IgnoreContext: true,
	})
	engine := consensus.New(stubFallback, consensus.WithRetryPolicy(llm.RetryPolicy{Attempts: 1}))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	started := time.Now()
	votes := engine.Dispatch(ctx, []consensus.Backend{fast, stuck}, consensus.Prompt{})
	if elapsed := time.Since(started); elapsed > time.Second {
		t.Fatalf("dispatch blocked for %s past the stage deadline", elapsed)
	}
	if !votes[0].Valid() || votes[0].MainGenre != "House" {
		t.Fatalf("expected completed vote kept, got %+v", votes[0])
	}
	if votes[1].Valid() || !errors.Is(votes[1].Err, services.ErrTimeout) {
		t.Fatalf("expected timed-out vote, got %v", votes[1].Err)
	}
}

func TestPerCallTimeoutBoundsEachAttempt(t *testing.T) {
	slow := testsupport.NewFakeBackend("groq", testsupport.Reply{Delay: time.Second})
	policy := fastRetry()
	policy.Attempts = 2
	policy.AttemptTimeout = 20 * time.Millisecond
	engine := consensus.New(stubFallback, consensus.WithRetryPolicy(policy))
	votes := engine.Dispatch(context.Background(), []consensus.Backend{slow}, consensus.Prompt{})
	if !errors.Is(votes[0].Err, services.ErrTimeout) {
		t.Fatalf("expected per-call timeout, got %v", votes[0].Err)
	}
	if votes[0].Attempts != 2 {
		t.Fatalf("expected timeout retried once, got %d attempts", votes[0].Attempts)
	}
}

type panicBackend struct{}

func (panicBackend) Name() string { return "panicky" }
func (panicBackend) Classify(context.Context, consensus.Prompt) (string, error) {
	panic("unexpected nil")
}

func TestPanickingBackendBecomesErroredVote(t *testing.T) {
	engine := newEngine(consensus.ModeFast)
	votes := engine.Dispatch(context.Background(), []consensus.Backend{panicBackend{}}, consensus.Prompt{})
	if votes[0].Valid() || !errors.Is(votes[0].Err, services.ErrBackend) {
		t.Fatalf("expected backend error vote, got %v", votes[0].Err)
	}
}

func TestClassifyWithoutBackendsUsesFallback(t *testing.T) {
	engine := consensus.New(stubFallback)
	r := engine.Classify(context.Background(), features.Bundle{}, consensus.Hints{}, consensus.ModeFast)
	if r.Method != consensus.MethodFallback {
		t.Fatalf("expected fallback, got %q", r.Method)
	}
}
