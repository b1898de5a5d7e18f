package analyzer

import (
	"trackmeta/internal/audio"
	"trackmeta/internal/consensus"
	"trackmeta/internal/fallback"
	"trackmeta/internal/features"
)

const maxHints = 3

// QuickHints derives coarse genre and mood cues from the bundle. The cues are
// passed to backends as suggestions only.
func QuickHints(b features.Bundle) consensus.Hints {
	if b.Empty() {
		return consensus.Hints{}
	}
	in := fallback.InputsFrom(b)
	hp := in.HPRatio
	if b.Degraded(features.GroupHarmonic) || hp <= 0 {
		hp = 1
	}

	var genres []string
	if in.Tempo > 140 && in.RMS > 0.18 {
		genres = append(genres, "electronic")
	}
	if in.Tempo > 160 && in.Flatness > 0.6 {
		genres = append(genres, "edm")
	}
	if in.Tempo < 80 && hp > 2 {
		genres = append(genres, "jazz")
	}
	if hp > 3 && in.Centroid < 1500 {
		genres = append(genres, "classical")
	}
	if in.Tempo > 120 && in.Tempo < 140 && in.RMS > 0.15 && hp < 1.5 {
		genres = append(genres, "rock")
	}
	if in.Centroid > 3000 && in.Tempo > 120 {
		genres = append(genres, "pop")
	}

	var moods []string
	if in.RMS > 0.18 && in.Tempo > 130 {
		moods = append(moods, "energetic")
	}
	if in.RMS < 0.08 {
		moods = append(moods, "calm")
	}
	if in.Tempo > 140 && in.DynRange > 0.3 {
		moods = append(moods, "aggressive")
	}
	if in.Centroid > 3500 && in.RMS > 0.12 {
		moods = append(moods, "happy")
	}

	return consensus.Hints{
		GenreHints: genres[:min(len(genres), maxHints)],
		MoodHints:  moods[:min(len(moods), maxHints)],
	}
}

// withTags adds embedded-tag cues to hints.
func withTags(h consensus.Hints, tags audio.Tags) consensus.Hints {
	h.Title = tags.Title
	h.Artist = tags.Artist
	h.TagGenre = tags.Genre
	return h
}
