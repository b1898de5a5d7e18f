// Package features computes the numeric signal descriptors fed to the
// classifiers.
//
// Extractor decodes a Source exactly once at a fixed mono rate, computes a
// shared short-time Fourier transform, then derives the rhythm, harmonic,
// spectral, timbre, energy and structure groups on separate goroutines. A
// group that fails degrades to zero values and is recorded in
// Meta.DegradedGroups; only a decode failure aborts extraction.
package features
