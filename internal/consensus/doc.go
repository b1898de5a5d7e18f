// Package consensus classifies a track by polling several classifier
// backends concurrently and voting over their answers.
//
// Every backend receives the same prompt built from a features.Bundle and
// optional Hints. Each call is retried on transient failure and bounded by a
// per-call timeout; calls that still fail become errored Votes and are left
// out of the tally. Scalars are resolved by plurality, lists by a two-pass
// agreement threshold, vocal style hierarchically. When too few backends
// answer, or the vote lands on "Unknown", the engine defers to the injected
// fallback classifier.
package consensus
