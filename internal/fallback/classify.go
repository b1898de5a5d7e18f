package fallback

import (
	"fmt"
	"math"
	"strings"

	"trackmeta/internal/consensus"
	"trackmeta/internal/features"
)

// Values assumed when the feature group that provides them is unavailable.
const (
	defaultTempo    = 120.0
	defaultRMS      = 0.1
	defaultZCR      = 0.1
	defaultCentroid = 2000.0
	defaultFlatness = 0.5
)

// InputsFrom reads the rule inputs from a bundle, substituting neutral values
// for degraded or missing groups.
func InputsFrom(b features.Bundle) Inputs {
	in := Inputs{
		Tempo:    b.Rhythm.Tempo,
		RMS:      b.Energy.RMSMean,
		ZCR:      b.Energy.ZCRMean,
		Centroid: b.Spectral.CentroidMean,
		Flatness: b.Spectral.FlatnessMean,
		HPRatio:  b.Harmonic.HarmonicPercussiveRatio,
		Duration: b.Meta.SourceDurationSeconds,
		DynRange: b.Energy.DynamicRange,
		Key:      b.Harmonic.Key,
		Mode:     b.Harmonic.Mode,
	}
	if in.Duration <= 0 {
		in.Duration = b.Meta.DurationSeconds
	}
	if b.Empty() || b.Degraded(features.GroupRhythm) || !(in.Tempo > 0) {
		in.Tempo = defaultTempo
	}
	if b.Empty() || b.Degraded(features.GroupEnergy) {
		in.RMS, in.ZCR, in.DynRange = defaultRMS, defaultZCR, 0
	}
	if b.Empty() || b.Degraded(features.GroupSpectral) {
		in.Centroid, in.Flatness = defaultCentroid, defaultFlatness
	}
	if b.Empty() || b.Degraded(features.GroupHarmonic) {
		in.HPRatio, in.Key, in.Mode = 0, "", ""
	}
	return in
}

// Match returns the first rule matching in, or false when none does.
func Match(in Inputs) (Rule, bool) {
	for _, r := range Rules {
		if r.matches(in) {
			return r, true
		}
	}
	return Rule{}, false
}

// Classify produces a fallback classification for the bundle. The result is a
// function of the bundle only.
func Classify(b features.Bundle) consensus.Result {
	return ClassifyInputs(InputsFrom(b))
}

// ClassifyInputs applies the rule table to precomputed inputs.
func ClassifyInputs(in Inputs) consensus.Result {
	outcome := defaultOutcome
	if r, ok := Match(in); ok {
		outcome = r.Outcome
	}
	fam := familyFor(outcome.Genre)
	moods := append([]string(nil), outcome.Moods...)

	fields := consensus.Fields{
		MainGenre:         outcome.Genre,
		AdditionalGenres:  append([]string(nil), fam.additionalGenres...),
		Moods:             moods,
		MoodVibe:          outcome.Vibe,
		MainInstrument:    fam.mainInstrument,
		Instrumentation:   append([]string(nil), fam.instrumentation...),
		VocalStyle:        consensus.NoVocals(),
		EnergyLevel:       outcome.Energy,
		Keywords:          keywords(outcome, fam),
		UseCases:          useCases(in.Duration, outcome.Energy),
		MusicalEra:        "Modern",
		ProductionQuality: "Studio Polished",
		Dynamics:          dynamics(in.DynRange),
		TargetAudience:    "General",
		SimilarArtists:    []string{},
		TrackDescription:  describe(in, outcome, fam),
		Confidence:        outcome.Confidence,
	}
	return consensus.Result{
		Fields:        fields,
		Method:        consensus.MethodFallback,
		Sources:       []string{},
		VoteCount:     0,
		AgreementRate: 0,
	}
}

func keywords(o Outcome, fam family) []string {
	out := []string{strings.ToLower(o.Genre)}
	for i := 0; i < 2 && i < len(o.Moods); i++ {
		out = append(out, strings.ToLower(o.Moods[i]))
	}
	out = append(out,
		strings.ReplaceAll(strings.ToLower(fam.mainInstrument), " ", ""),
		strings.ToLower(o.Energy),
	)
	return out
}

func useCases(duration float64, energy string) []string {
	out := []string{"Background Music", "Advertising", "Social Media"}
	switch {
	case duration > 0 && duration < 60:
		out = append(out, "Short-Form Video")
	case duration >= 180:
		out = append(out, "Film & TV")
	}
	if energy == "High" || energy == "Very High" {
		out = append(out, "Fitness")
	}
	return out
}

func dynamics(dynRange float64) string {
	switch {
	case dynRange > 0.3:
		return "High"
	case dynRange > 0 && dynRange < 0.1:
		return "Low"
	default:
		return "Medium"
	}
}

func describe(in Inputs, o Outcome, fam family) string {
	mood := "distinctive"
	if len(o.Moods) > 0 {
		mood = strings.ToLower(o.Moods[0])
	}
	text := fmt.Sprintf("A %s energy %s track featuring %s and %s atmosphere. %s",
		strings.ToLower(o.Energy), o.Genre, strings.ToLower(fam.mainInstrument), mood, o.Vibe)
	if in.Key != "" && in.Mode != "" {
		text += fmt.Sprintf(" Centered on %s %s at around %d BPM.", in.Key, strings.ToLower(in.Mode), int(math.Round(in.Tempo)))
	}
	return text
}
