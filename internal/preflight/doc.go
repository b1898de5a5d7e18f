// Package preflight provides readiness checks for the external binaries,
// directories and classifier providers trackmeta depends on.
//
// These checks run in two contexts:
//   - The CLI "trackmeta deps" and "trackmeta providers check" commands
//     display them.
//   - "trackmeta analyze" and "trackmeta batch" call RunAll before the first
//     track so a missing ffmpeg or unwritable cache fails fast.
//
// Provider checks are gated by credentials: providers without an API key are
// reported as skipped rather than failed.
package preflight
