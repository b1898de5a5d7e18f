// Package lyrics adds best-effort lyric analysis to a track.
//
// Enrich applies two gates before spending time on transcription: the track
// must be loud enough to plausibly carry vocals, and the transcript must be
// long enough to analyze. A passing transcript is sent to a theme extractor
// that returns themes, language, explicitness, lyric moods and genre hints.
// Callers treat every error as "no enrichment".
package lyrics
