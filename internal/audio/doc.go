// Package audio turns audio inputs into mono float samples at a fixed rate.
//
// A Source reports its duration and decodes a requested Span. FileSource
// shells out to ffprobe and ffmpeg, falling back to a pure-Go MP3 decoder when
// ffmpeg is not installed. PCMSource wraps samples already in memory (tests,
// embedding callers). PlanSpan applies the lead-in skip and window cap that
// keep analysis cost independent of track length.
//
// ReadTags pulls embedded title/artist/genre tags, which the analyzer passes
// to classifiers as hints.
package audio
