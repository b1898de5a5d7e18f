package preflight

import (
	"context"
	"net/http"

	"trackmeta/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name    string
	Passed  bool
	Skipped bool
	Detail  string
}

// RunAll executes the local checks for the given config: writable cache and
// log directories plus required binaries. Provider checks make network calls
// and are left to CheckProviders.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	results = append(results, CheckDirectoryAccess("Cache directory", cfg.Paths.CacheDir))
	if cfg.Paths.LogDir != "" && cfg.Paths.LogDir != cfg.Paths.CacheDir {
		results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	}
	for _, status := range CheckSystemDeps(ctx, cfg) {
		if status.Optional {
			continue
		}
		result := Result{Name: status.Name, Passed: status.Available, Detail: status.Detail}
		if status.Available {
			result.Detail = status.Path
		}
		results = append(results, result)
	}
	return results
}

// Failed returns the results that did not pass and were not skipped.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed && !r.Skipped {
			failed = append(failed, r)
		}
	}
	return failed
}

// CheckProviders health-checks every provider, in dispatch order. Providers
// without an API key are skipped.
func CheckProviders(ctx context.Context, cfg *config.Config, httpClient *http.Client) []Result {
	if cfg == nil {
		return nil
	}
	results := make([]Result, 0, len(config.ProviderNames()))
	for _, name := range config.ProviderNames() {
		results = append(results, CheckProvider(ctx, cfg, name, httpClient))
	}
	return results
}
