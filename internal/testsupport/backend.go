package testsupport

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"trackmeta/internal/consensus"
)

// Reply is one scripted backend answer.
type Reply struct {
	Raw   string
	Err   error
	Delay time.Duration
	// IgnoreContext keeps the reply blocked for Delay even after cancellation.
	IgnoreContext bool
}

// FakeBackend is a scripted consensus.Backend. Replies are consumed in order;
// the last one repeats once the script is exhausted.
type FakeBackend struct {
	ID      string
	Replies []Reply

	mu      sync.Mutex
	calls   int
	prompts []consensus.Prompt
}

// NewFakeBackend returns a backend answering with the given replies.
func NewFakeBackend(id string, replies ...Reply) *FakeBackend {
	return &FakeBackend{ID: id, Replies: replies}
}

func (f *FakeBackend) Name() string { return f.ID }

func (f *FakeBackend) Classify(ctx context.Context, prompt consensus.Prompt) (string, error) {
	f.mu.Lock()
	idx := f.calls
	f.calls++
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()

	if len(f.Replies) == 0 {
		return "", context.Canceled
	}
	reply := f.Replies[min(idx, len(f.Replies)-1)]
	if reply.Delay > 0 {
		if reply.IgnoreContext {
			time.Sleep(reply.Delay)
		} else {
			timer := time.NewTimer(reply.Delay)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-timer.C:
			}
		}
	}
	return reply.Raw, reply.Err
}

// Calls reports how many times Classify ran.
func (f *FakeBackend) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// LastPrompt returns the most recent prompt, or a zero Prompt.
func (f *FakeBackend) LastPrompt() consensus.Prompt {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return consensus.Prompt{}
	}
	return f.prompts[len(f.prompts)-1]
}

// VoteJSON encodes fields the way a well-behaved backend answers.
func VoteJSON(t testing.TB, fields consensus.Fields) string {
	t.Helper()
	data, err := json.Marshal(fields)
	if err != nil {
		t.Fatalf("marshal vote: %v", err)
	}
	return string(data)
}

// SampleFields returns a complete, plausible vote for genre.
func SampleFields(genre string, confidence float64) consensus.Fields {
	return consensus.Fields{
		MainGenre:         genre,
		AdditionalGenres:  []string{"Electronic", "Club"},
		Moods:             []string{"Groovy", "Uplifting"},
		MainInstrument:    "Synthesizer",
		Instrumentation:   []string{"Synthesizer", "Drum Machine"},
		VocalStyle:        consensus.NoVocals(),
		Keywords:          []string{"dance", "club", "night", "groove", "energy"},
		UseCases:          []string{"Nightclub", "Fitness", "Advertising"},
		TrackDescription:  "A driving " + genre + " cut with rolling bass and bright stabs.",
		MoodVibe:          "Late-night warehouse energy",
		EnergyLevel:       "High",
		MusicalEra:        "Modern",
		ProductionQuality: "Studio Polished",
		Dynamics:          "Compressed",
		TargetAudience:    "Clubgoers",
		SimilarArtists:    []string{"Artist A", "Artist B"},
		Confidence:        confidence,
	}
}
