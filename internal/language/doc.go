// Package language maps the language labels produced by transcription and
// lyric analysis (ISO 639 codes, English names, free text) onto one display
// form and onto the ISO 639-1 codes WhisperX accepts.
package language
