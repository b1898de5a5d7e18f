// Package config loads, normalizes, and validates trackmeta configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks for provider
// credentials such as GROQ_API_KEY and ANTHROPIC_API_KEY. The Config type
// centralizes every knob the analyzer and CLI need: time budget apportioning,
// consensus retry policy, provider endpoints, lyric transcription, and the
// result cache.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
