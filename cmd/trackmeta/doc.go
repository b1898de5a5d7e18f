// Package main hosts the trackmeta CLI entrypoint and command graph.
//
// The Cobra-based command tree analyzes single files or batches, inspects
// and clears the result cache, checks provider credentials and external
// binaries, and scaffolds configuration. It centralizes configuration
// resolution, logging setup, and output formatting so subcommands stay
// declarative while the analysis itself lives in internal/analyzer.
package main
