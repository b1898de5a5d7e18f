// Package cache persists finished analyses in SQLite so re-running a track
// with the same options returns instantly.
//
// Entries are keyed by the SHA-256 of the audio bytes together with the
// classification mode and the lyrics flag, so renaming or moving a file keeps
// its entry while any change to the audio invalidates it. Values are opaque
// JSON documents; callers choose the shape. Clear and Prune take an exclusive
// file lock next to the database so concurrent processes never race a
// maintenance pass.
package cache
