// Package services defines shared utilities consumed by the analysis pipeline
// and its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp correlation identifiers, stage names, and
//     backend names for logging.
//   - Structured error markers plus the Wrap helper so callers can tell fatal
//     decode failures apart from recoverable backend and timeout errors.
//
// Provider clients live in subpackages (llm, gemini, anthropic, transcribe,
// whisperx) and report failures through these markers.
package services
