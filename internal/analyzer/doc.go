// Package analyzer runs one fresh-track analysis end to end.
//
// An Analyze call walks a fixed sequence of states: features are extracted
// once, classified by the consensus engine (or the rule-based fallback when
// time is short), optionally enriched with lyric insights, and merged into a
// TrackMetadata with a technical sidecar. Every stage is bounded by the
// remaining share of the caller's time budget. Only a decode failure during
// extraction is returned as an error; every other failure degrades the
// result instead.
//
// CachedAnalyzer wraps an Analyzer with the SQLite result cache so repeated
// requests for identical audio skip the pipeline entirely.
package analyzer
