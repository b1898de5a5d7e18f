package analyzer

import (
	"math"
	"strings"

	"trackmeta/internal/consensus"
	"trackmeta/internal/features"
	"trackmeta/internal/language"
	"trackmeta/internal/lyrics"
)

const (
	maxMergedMoods    = 6
	maxMergedKeywords = 15
)

// backfill fills list and scalar fields a single passthrough vote left empty
// with the fallback classification, keeping the vote's own values otherwise.
func backfill(r consensus.Result, fb consensus.Result) consensus.Result {
	fill := func(dst *[]string, src []string) {
		if len(*dst) == 0 {
			*dst = append([]string(nil), src...)
		}
	}
	fill(&r.AdditionalGenres, fb.AdditionalGenres)
	fill(&r.Moods, fb.Moods)
	fill(&r.Instrumentation, fb.Instrumentation)
	fill(&r.Keywords, fb.Keywords)
	fill(&r.UseCases, fb.UseCases)

	text := func(dst *string, src string) {
		if strings.TrimSpace(*dst) == "" {
			*dst = src
		}
	}
	text(&r.MainInstrument, fb.MainInstrument)
	text(&r.TrackDescription, fb.TrackDescription)
	text(&r.MoodVibe, fb.MoodVibe)
	text(&r.EnergyLevel, fb.EnergyLevel)
	text(&r.MusicalEra, fb.MusicalEra)
	text(&r.ProductionQuality, fb.ProductionQuality)
	text(&r.Dynamics, fb.Dynamics)
	text(&r.TargetAudience, fb.TargetAudience)
	if strings.TrimSpace(r.VocalStyle.Gender) == "" {
		r.VocalStyle = fb.VocalStyle
	}
	if r.SimilarArtists == nil {
		r.SimilarArtists = []string{}
	}
	return r
}

// needsBackfill reports whether r violates the non-empty list rule.
func needsBackfill(r consensus.Result) bool {
	return len(r.AdditionalGenres) == 0 || len(r.Moods) == 0 || len(r.Instrumentation) == 0 ||
		len(r.Keywords) == 0 || len(r.UseCases) == 0 || strings.TrimSpace(r.MainInstrument) == "" ||
		strings.TrimSpace(r.TrackDescription) == "" || strings.TrimSpace(r.EnergyLevel) == "" ||
		strings.TrimSpace(r.VocalStyle.Gender) == ""
}

// unusable reports whether r cannot be returned as-is.
func unusable(r consensus.Result) bool {
	genre := strings.TrimSpace(r.MainGenre)
	return genre == "" || strings.EqualFold(genre, consensus.Unknown)
}

func merge(b features.Bundle, r consensus.Result, e lyrics.Enrichment) TrackMetadata {
	md := TrackMetadata{
		Fields:    r.Fields,
		BPM:       round(b.Rhythm.Tempo, 1),
		Key:       b.Harmonic.Key,
		Mode:      b.Harmonic.Mode,
		Duration:  round(trackDuration(b), 2),
		Structure: b.Structure,
		Language:  language.Instrumental,
	}
	md.Fields.AdditionalGenres = clone(r.AdditionalGenres)
	md.Fields.Moods = clone(r.Moods)
	md.Fields.Keywords = clone(r.Keywords)
	if md.Structure.SegmentDurations == nil {
		md.Structure.SegmentDurations = []float64{}
	}

	if e.Present {
		if lang := strings.TrimSpace(e.Insights.Language); lang != "" {
			md.Language = lang
		}
		md.Moods = union(md.Moods, e.Insights.MoodFromLyrics, maxMergedMoods)
		md.Keywords = union(md.Keywords, e.Insights.Themes, maxMergedKeywords)
		md.Themes = clone(e.Insights.Themes)
		md.Explicit = e.Insights.Explicit
		md.Lyrics = e.Lyrics
	}

	layers := layersBase
	if e.Present {
		layers = layersLyrics
	}
	md.Tech = Tech{
		Confidence:     r.Confidence,
		LayerCount:     layers,
		Sources:        nonNil(r.Sources),
		SimilarArtists: nonNil(r.SimilarArtists),
		Method:         r.Method,
		VoteCount:      r.VoteCount,
		AgreementRate:  r.AgreementRate,
		DegradedGroups: b.Meta.DegradedGroups,
	}
	return md
}

// union appends extra values not already present (case-insensitive) and caps
// the result at limit. Existing values keep their order and come first.
func union(base, extra []string, limit int) []string {
	out := make([]string, 0, min(len(base)+len(extra), limit))
	seen := make(map[string]struct{}, len(base)+len(extra))
	for _, list := range [][]string{base, extra} {
		for _, v := range list {
			v = strings.TrimSpace(v)
			key := strings.ToLower(v)
			if v == "" {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			if len(out) == limit {
				return out
			}
			seen[key] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}

func trackDuration(b features.Bundle) float64 {
	if b.Meta.SourceDurationSeconds > 0 {
		return b.Meta.SourceDurationSeconds
	}
	return b.Meta.DurationSeconds
}

func round(v float64, places int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func clone(values []string) []string {
	return append([]string{}, values...)
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
