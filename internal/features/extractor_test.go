package features

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"

	"trackmeta/internal/audio"
	"trackmeta/internal/services"
)

const testRate = 22050

func sine(freq, seconds float64, rate int, amp float64) []float64 {
	n := int(seconds * float64(rate))
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/float64(rate))
	}
	return out
}

// clickTrack places a short 1 kHz burst every period samples.
func clickTrack(seconds float64, period int) []float64 {
	out := make([]float64, int(seconds*testRate))
	for start := 0; start < len(out); start += period {
		for i := 0; i < 300 && start+i < len(out); i++ {
			decay := math.Exp(-float64(i) / 60)
			out[start+i] = 0.9 * decay * math.Sin(2*math.Pi*1000*float64(i)/testRate)
		}
	}
	return out
}

type failingSource struct{}

func (failingSource) Name() string { return "broken" }
func (failingSource) Path() string { return "" }
func (failingSource) Duration(context.Context) (float64, error) {
	return 10, nil
}
func (failingSource) Decode(context.Context, int, audio.Span) ([]float64, error) {
	return nil, errors.New("corrupt stream")
}

func TestExtractTempoFromClickTrack(t *testing.T) {
	// 22 hops between clicks is 117.45 BPM at 22050 Hz.
	samples := clickTrack(20, 22*hopLength)
	b := New().FromSamples(context.Background(), samples)
	if len(b.Meta.DegradedGroups) != 0 {
		t.Fatalf("unexpected degraded groups %v", b.Meta.DegradedGroups)
	}
	if b.Rhythm.Tempo < 110 || b.Rhythm.Tempo > 125 {
		t.Fatalf("expected tempo near 117, got %.1f", b.Rhythm.Tempo)
	}
	if b.Rhythm.BeatCount < 30 {
		t.Fatalf("expected roughly 39 beats, got %d", b.Rhythm.BeatCount)
	}
	if b.Rhythm.OnsetStrengthMean <= 0 {
		t.Fatal("expected positive onset strength")
	}
}

func TestExtractIsDeterministic(t *testing.T) {
	src := audio.NewPCMSource("tone", sine(440, 4, testRate, 0.5), testRate)
	ex := New()
	first, err := ex.Extract(context.Background(), src)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	second, err := ex.Extract(context.Background(), src)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatal("expected identical bundles for identical input")
	}
	if first.Meta.SampleRate != testRate || first.Meta.DurationSeconds != 4 {
		t.Fatalf("unexpected meta %+v", first.Meta)
	}
	if first.Harmonic.Key != "A" {
		t.Fatalf("expected A as dominant pitch class for a 440 Hz tone, got %s", first.Harmonic.Key)
	}
	if first.Harmonic.ChromaMean[9] != 1 {
		t.Fatalf("expected chroma A to be the per-frame maximum, got %v", first.Harmonic.ChromaMean)
	}
	wantRMS := 0.5 / math.Sqrt2
	if math.Abs(first.Energy.RMSMean-wantRMS) > 0.05 {
		t.Fatalf("expected rms near %.3f, got %.3f", wantRMS, first.Energy.RMSMean)
	}
	if first.Spectral.CentroidMean < 300 || first.Spectral.CentroidMean > 700 {
		t.Fatalf("expected centroid near 440 Hz, got %.1f", first.Spectral.CentroidMean)
	}
}

func TestExtractAppliesWindowPlan(t *testing.T) {
	const rate = 4000
	src := audio.NewPCMSource("long", sine(220, 200, rate, 0.3), rate)
	b, err := New(WithSampleRate(rate)).Extract(context.Background(), src)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if b.Meta.OffsetSeconds != 30 {
		t.Fatalf("expected 30s lead-in skip, got %v", b.Meta.OffsetSeconds)
	}
	if b.Meta.DurationSeconds != 120 {
		t.Fatalf("expected 120s analyzed window, got %v", b.Meta.DurationSeconds)
	}
	if b.Meta.SourceDurationSeconds != 200 {
		t.Fatalf("expected source duration 200, got %v", b.Meta.SourceDurationSeconds)
	}
}

func TestExtractDecodeFailureIsFatal(t *testing.T) {
	_, err := New().Extract(context.Background(), failingSource{})
	if !errors.Is(err, services.ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestTinyInputDegradesInsteadOfFailing(t *testing.T) {
	b := New().FromSamples(context.Background(), sine(440, 0.005, testRate, 0.5))
	if !b.Degraded(GroupRhythm) {
		t.Fatalf("expected rhythm to degrade, got %v", b.Meta.DegradedGroups)
	}
	if b.Rhythm != (Rhythm{}) {
		t.Fatalf("expected zeroed rhythm, got %+v", b.Rhythm)
	}
	if b.Structure.SegmentCount != 0 {
		t.Fatalf("expected no structure, got %d", b.Structure.SegmentCount)
	}
}

func TestRunGroupRecoversPanics(t *testing.T) {
	err := runGroup(context.Background(), func() error {
		var m map[string]int
		m["boom"]++
		return nil
	})
	if err == nil {
		t.Fatal("expected panic to surface as error")
	}
}

func TestStructureShortClipHasNoSegments(t *testing.T) {
	samples := sine(261.63, 3, testRate, 0.5)
	s, err := computeStructure(newSpectrogram(samples, testRate), 3)
	if err != nil {
		t.Fatalf("computeStructure: %v", err)
	}
	if s.SegmentCount != 0 || len(s.SegmentDurations) != 0 || s.AvgSegmentLength != 0 {
		t.Fatalf("expected empty structure, got %+v", s)
	}
}

func TestStructureSilenceHasNoSegments(t *testing.T) {
	samples := make([]float64, 30*testRate)
	s, err := computeStructure(newSpectrogram(samples, testRate), 30)
	if err != nil {
		t.Fatalf("computeStructure: %v", err)
	}
	if s.SegmentCount != 0 {
		t.Fatalf("expected no segments for silence, got %d", s.SegmentCount)
	}
}

func TestStructureFindsFiveSections(t *testing.T) {
	var samples []float64
	for _, freq := range []float64{261.63, 329.63, 392.00, 466.16, 293.66} {
		samples = append(samples, sine(freq, 12, testRate, 0.5)...)
	}
	s, err := computeStructure(newSpectrogram(samples, testRate), 60)
	if err != nil {
		t.Fatalf("computeStructure: %v", err)
	}
	if s.SegmentCount != 5 {
		t.Fatalf("expected 5 segments, got %d (%v)", s.SegmentCount, s.SegmentDurations)
	}
	var total float64
	for _, d := range s.SegmentDurations {
		if d < 10 || d > 14 {
			t.Fatalf("segment duration %.2f out of range: %v", d, s.SegmentDurations)
		}
		total += d
	}
	if math.Abs(total-60) > 0.1 {
		t.Fatalf("expected durations to cover the clip, got %.2f", total)
	}
}

func TestEstimateKey(t *testing.T) {
	if key, mode := estimateKey(majorProfile); key != "C" || mode != "Major" {
		t.Fatalf("expected C Major, got %s %s", key, mode)
	}
	var aMinor [12]float64
	for i := 0; i < 12; i++ {
		aMinor[(9+i)%12] = minorProfile[i]
	}
	if key, mode := estimateKey(aMinor); key != "A" || mode != "Minor" {
		t.Fatalf("expected A Minor, got %s %s", key, mode)
	}
	if key, mode := estimateKey([12]float64{}); key != "C" || mode != "Major" {
		t.Fatalf("expected C Major default for silence, got %s %s", key, mode)
	}
}

func TestClusterContiguousMergesSimilarNeighbours(t *testing.T) {
	// Two blocks of three identical rows.
	a := []float64{1, 0}
	b := []float64{0, 1}
	affinity := recurrence([][]float64{a, a, a, b, b, b})
	segs := clusterContiguous(affinity, 2)
	want := [][2]int{{0, 3}, {3, 6}}
	if !reflect.DeepEqual(segs, want) {
		t.Fatalf("expected %v, got %v", want, segs)
	}
}
