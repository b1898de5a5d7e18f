package consensus

import (
	"fmt"
	"math"
	"strings"

	"trackmeta/internal/features"
	"trackmeta/internal/services/llm"
)

// Prompt is the shared request every backend receives for one track.
type Prompt struct {
	System string
	User   string
}

const systemPrompt = `You are a music supervisor tagging UNRELEASED tracks for a sync licensing catalog.
You only see signal measurements, never the audio. Answer with a single JSON object and nothing else.`

// BuildPrompt renders the feature context and the tagging instructions.
func BuildPrompt(b features.Bundle, hints Hints) Prompt {
	return Prompt{System: systemPrompt, User: BuildContext(b, hints) + "\n" + instructions()}
}

// BuildContext describes the bundle and hints in plain text.
func BuildContext(b features.Bundle, hints Hints) string {
	var sb strings.Builder
	sb.WriteString("# UNRELEASED MUSIC TRACK ANALYSIS\n\n## Audio Signal Characteristics\n\n")

	sb.WriteString("### Rhythm & Tempo\n")
	fmt.Fprintf(&sb, "- BPM: %s\n", formatTempo(b.Rhythm.Tempo))
	fmt.Fprintf(&sb, "- Beats detected: %d\n", b.Rhythm.BeatCount)
	fmt.Fprintf(&sb, "- Beat regularity: %.3f (lower = more regular)\n", b.Rhythm.BeatRegularity)
	fmt.Fprintf(&sb, "- Onset strength: %.3f\n\n", b.Rhythm.OnsetStrengthMean)

	sb.WriteString("### Harmony & Tonality\n")
	fmt.Fprintf(&sb, "- Estimated key: %s %s\n", orDefault(b.Harmonic.Key, "C"), orDefault(b.Harmonic.Mode, "Major"))
	fmt.Fprintf(&sb, "- Harmonic/Percussive ratio: %.2f\n", b.Harmonic.HarmonicPercussiveRatio)
	fmt.Fprintf(&sb, "- Harmonic change rate: %.3f\n", b.Harmonic.HarmonicChangeRate)
	fmt.Fprintf(&sb, "- Strongest pitch classes: %s\n\n", strongestPitches(b.Harmonic.ChromaMean, 3))

	sb.WriteString("### Spectral Profile\n")
	fmt.Fprintf(&sb, "- Spectral centroid: %.0f Hz (brightness)\n", b.Spectral.CentroidMean)
	fmt.Fprintf(&sb, "- Spectral flatness: %.3f (0=tonal, 1=noise)\n", b.Spectral.FlatnessMean)
	fmt.Fprintf(&sb, "- Bandwidth: %.0f Hz\n", b.Spectral.BandwidthMean)
	fmt.Fprintf(&sb, "- Rolloff: %.0f Hz\n\n", b.Spectral.RolloffMean)

	sb.WriteString("### Energy & Dynamics\n")
	fmt.Fprintf(&sb, "- RMS energy: %.4f\n", b.Energy.RMSMean)
	fmt.Fprintf(&sb, "- Dynamic range: %.4f\n", b.Energy.DynamicRange)
	fmt.Fprintf(&sb, "- Zero crossing rate: %.4f\n", b.Energy.ZCRMean)
	fmt.Fprintf(&sb, "- Band energies dB (sub, bass, mid, upper-mid, high): %s\n\n", formatBands(b.Energy.BandEnergies))

	sb.WriteString("### Structure\n")
	fmt.Fprintf(&sb, "- Sections: %d (average %.1f s)\n", b.Structure.SegmentCount, b.Structure.AvgSegmentLength)
	fmt.Fprintf(&sb, "- Duration analyzed: %.1f seconds\n", b.Meta.DurationSeconds)
	if b.Meta.SourceDurationSeconds > 0 {
		fmt.Fprintf(&sb, "- Full track length: %.1f seconds\n", b.Meta.SourceDurationSeconds)
	}

	if !hints.Empty() {
		sb.WriteString("\n## Hints (may be wrong)\n")
		if len(hints.GenreHints) > 0 {
			fmt.Fprintf(&sb, "- Heuristic genre hints: %s\n", strings.Join(hints.GenreHints, ", "))
		}
		if len(hints.MoodHints) > 0 {
			fmt.Fprintf(&sb, "- Heuristic mood hints: %s\n", strings.Join(hints.MoodHints, ", "))
		}
		if hints.Title != "" {
			fmt.Fprintf(&sb, "- Embedded title: %s\n", hints.Title)
		}
		if hints.Artist != "" {
			fmt.Fprintf(&sb, "- Embedded artist: %s\n", hints.Artist)
		}
		if hints.TagGenre != "" {
			fmt.Fprintf(&sb, "- Embedded genre tag: %s\n", hints.TagGenre)
		}
	}
	sb.WriteString("\n---\nBased on these technical audio features, classify this UNRELEASED track.\n")
	return sb.String()
}

func instructions() string {
	return fmt.Sprintf(`STRICT INSTRUCTIONS:
1. Use these reference lists as a guide (choose from them when applicable, but stay accurate):
   - GENRES: %s
   - SUB-GENRES: %s
   - MOODS: %s
   - INSTRUMENTS: %s
   - VOCAL STYLES: %s

2. Quantities:
   - mainGenre: exactly 1 tag, never "Unknown"
   - additionalGenres: 1-2 tags
   - moods: 2-3 tags
   - instrumentation: 2-3 tags
   - mainInstrument: exactly 1 tag, never "Vocals"; for vocal-heavy tracks name the backing instrument
   - keywords: exactly 5 tags
   - useCases: exactly 3 examples
   - trackDescription: at least 400 characters, emotional and marketing-ready, not technical

3. Vocal style:
   - Instrumental: "gender": "Instrumental" and every other field "none".
   - With vocals: never "none"; choose Male, Female, Duet or Processed and fill timbre, delivery and emotionalTone.

4. Never return empty arrays or placeholders.

Return JSON:
{
  "mainGenre": "primary genre",
  "additionalGenres": ["sub1", "sub2"],
  "moods": ["mood1", "mood2", "mood3"],
  "mainInstrument": "dominant instrument",
  "instrumentation": ["inst1", "inst2", "inst3"],
  "vocalStyle": {"gender": "Male/Female/Duet/Instrumental", "timbre": "Warm/Bright/Raspy/none", "delivery": "Melodic/Rap/Spoken/none", "emotionalTone": "Happy/Sad/Aggressive/none"},
  "keywords": ["tag1", "tag2", "tag3", "tag4", "tag5"],
  "useCases": ["use 1", "use 2", "use 3"],
  "moodVibe": "atmospheric description",
  "energyLevel": "Low/Medium/High/Very High",
  "musicalEra": "e.g. 80s Retro, Modern",
  "productionQuality": "e.g. Lo-Fi, Studio Polished, Raw",
  "dynamics": "e.g. Compressed, Explosive",
  "targetAudience": "e.g. Clubgoers, Relaxing at home",
  "trackDescription": "market-ready description",
  "similarArtists": ["artist1", "artist2"],
  "confidence": 0.0
}`,
		strings.Join(MainGenres, ", "),
		strings.Join(SubGenres, ", "),
		strings.Join(Moods, ", "),
		strings.Join(Instruments, ", "),
		strings.Join(VocalStyles, ", "),
	)
}

// voteWire accepts both the camelCase keys requested in the prompt and the
// snake_case variants some models return.
type voteWire struct {
	MainGenre          string         `json:"mainGenre"`
	AdditionalGenres   llm.StringList `json:"additionalGenres"`
	Moods              llm.StringList `json:"moods"`
	MainInstrument     string         `json:"mainInstrument"`
	Instrumentation    llm.StringList `json:"instrumentation"`
	VocalStyle         *VocalStyle    `json:"vocalStyle"`
	Keywords           llm.StringList `json:"keywords"`
	UseCases           llm.StringList `json:"useCases"`
	TrackDescription   string         `json:"trackDescription"`
	MoodVibe           string         `json:"moodVibe"`
	MoodVibeSnake      string         `json:"mood_vibe"`
	EnergyLevel        string         `json:"energyLevel"`
	EnergyLevelSnake   string         `json:"energy_level"`
	MusicalEra         string         `json:"musicalEra"`
	ProductionQuality  string         `json:"productionQuality"`
	Dynamics           string         `json:"dynamics"`
	TargetAudience     string         `json:"targetAudience"`
	SimilarArtists     llm.StringList `json:"similarArtists"`
	SimilarArtistSnake llm.StringList `json:"similar_artists"`
	Confidence         *float64       `json:"confidence"`
}

// ParseVote decodes a backend's raw JSON answer into a Vote.
func ParseVote(provider, raw string) (Vote, error) {
	var wire voteWire
	if err := llm.DecodeLLMJSON(raw, &wire); err != nil {
		return Vote{}, err
	}
	if strings.TrimSpace(wire.MainGenre) == "" {
		return Vote{}, fmt.Errorf("response missing mainGenre (payload snippet: %s)", llm.SummarizeSnippet(raw))
	}
	v := Vote{
		Provider: provider,
		Fields: Fields{
			MainGenre:         strings.TrimSpace(wire.MainGenre),
			AdditionalGenres:  wire.AdditionalGenres.Clean(),
			Moods:             wire.Moods.Clean(),
			MainInstrument:    strings.TrimSpace(wire.MainInstrument),
			Instrumentation:   wire.Instrumentation.Clean(),
			Keywords:          wire.Keywords.Clean(),
			UseCases:          wire.UseCases.Clean(),
			TrackDescription:  strings.TrimSpace(wire.TrackDescription),
			MoodVibe:          strings.TrimSpace(firstNonEmpty(wire.MoodVibe, wire.MoodVibeSnake)),
			EnergyLevel:       strings.TrimSpace(firstNonEmpty(wire.EnergyLevel, wire.EnergyLevelSnake)),
			MusicalEra:        strings.TrimSpace(wire.MusicalEra),
			ProductionQuality: strings.TrimSpace(wire.ProductionQuality),
			Dynamics:          strings.TrimSpace(wire.Dynamics),
			TargetAudience:    strings.TrimSpace(wire.TargetAudience),
			SimilarArtists:    append(wire.SimilarArtists.Clean(), wire.SimilarArtistSnake.Clean()...),
		},
	}
	if wire.VocalStyle != nil {
		v.VocalStyle = VocalStyle{
			Gender:        orDefault(strings.TrimSpace(wire.VocalStyle.Gender), None),
			Timbre:        orDefault(strings.TrimSpace(wire.VocalStyle.Timbre), None),
			Delivery:      orDefault(strings.TrimSpace(wire.VocalStyle.Delivery), None),
			EmotionalTone: orDefault(strings.TrimSpace(wire.VocalStyle.EmotionalTone), None),
		}
	} else {
		v.VocalStyle = NoVocals()
	}
	if wire.Confidence != nil && !math.IsNaN(*wire.Confidence) {
		v.Confidence = math.Min(1, math.Max(0, *wire.Confidence))
		v.ConfidenceReported = true
	}
	return v, nil
}

func formatTempo(tempo float64) string {
	if tempo <= 0 {
		return "unknown"
	}
	return fmt.Sprintf("%.1f", tempo)
}

func formatBands(bands [5]float64) string {
	parts := make([]string, len(bands))
	for i, v := range bands {
		parts[i] = fmt.Sprintf("%.1f", v)
	}
	return strings.Join(parts, ", ")
}

var pitchClassNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

func strongestPitches(chroma [12]float64, n int) string {
	idx := make([]int, 12)
	for i := range idx {
		idx[i] = i
	}
	for i := 0; i < n; i++ {
		best := i
		for j := i + 1; j < 12; j++ {
			if chroma[idx[j]] > chroma[idx[best]] {
				best = j
			}
		}
		idx[i], idx[best] = idx[best], idx[i]
	}
	if chroma[idx[0]] == 0 {
		return "none detected"
	}
	names := make([]string, 0, n)
	for _, i := range idx[:n] {
		names = append(names, pitchClassNames[i])
	}
	return strings.Join(names, ", ")
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
