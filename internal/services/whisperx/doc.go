// Package whisperx runs a local WhisperX transcription through uvx.
//
// A transcription extracts a mono 16 kHz clip of the track with ffmpeg, runs
// WhisperX on it in a scratch directory, and reads the transcript and detected
// language back from the JSON output. Runs sharing a model directory are
// serialized with a file lock so parallel batch workers do not download the
// same model twice.
package whisperx
