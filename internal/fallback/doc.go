// Package fallback derives a complete classification from extracted audio
// features alone.
//
// The classifier is a pure function over an ordered rule table: the first
// rule whose tempo band and predicate match the bundle decides genre, moods,
// energy and confidence, and the remaining fields are derived from the genre
// family. It never fails and never performs I/O, so the orchestrator can call
// it whenever the classifier backends are unavailable, disagree on nothing
// usable, or the time budget runs out.

package fallback
