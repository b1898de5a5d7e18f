// Package ffprobe provides a typed wrapper around ffprobe JSON output for
// audio files.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Stream: audio stream properties (codec, sample rate, channels)
//   - Format: container-level metadata (duration, bitrate, tags)
//
// Inspect executes ffprobe; Parse decodes captured output for tests.
package ffprobe
