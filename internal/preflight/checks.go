package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"trackmeta/internal/backends"
	"trackmeta/internal/config"
	"trackmeta/internal/deps"
)

const providerCheckTimeout = 30 * time.Second

// CheckProvider verifies that a classifier provider is reachable and its key
// is valid. It uses a single attempt and a 30-second timeout.
func CheckProvider(ctx context.Context, cfg *config.Config, name string, httpClient *http.Client) Result {
	settings, ok := cfg.Provider(name)
	if !ok {
		return Result{Name: name, Detail: "unknown provider"}
	}
	if strings.TrimSpace(settings.APIKey) == "" {
		return Result{Name: name, Skipped: true, Detail: "API key missing"}
	}
	client, err := backends.NewCompleter(cfg, name, backends.Options{HTTPClient: httpClient})
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}

	checkCtx, cancel := context.WithTimeout(ctx, providerCheckTimeout)
	defer cancel()
	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeProviderError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable"}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "path not configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSystemDeps evaluates the external binaries needed for the given config.
// uvx is required only when lyrics use the local WhisperX transcriber.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.FFmpegBinary(),
			Description: "Required for decoding audio",
			VersionArgs: []string{"-version"},
		},
		{
			Name:        "FFprobe",
			Command:     cfg.FFprobeBinary(),
			Description: "Required for measuring track duration",
			VersionArgs: []string{"-version"},
		},
		{
			Name:        "uvx",
			Command:     "uvx",
			Description: "Runs WhisperX for local lyric transcription",
			Optional:    !strings.EqualFold(cfg.Lyrics.Transcriber, config.TranscriberWhisperX),
			VersionArgs: []string{"--version"},
		},
	}
	return deps.CheckBinaries(ctx, requirements)
}

// summarizeProviderError produces a human-readable summary for health check failures.
func summarizeProviderError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (API unreachable)"
	}
	return err.Error()
}
