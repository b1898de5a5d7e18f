package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"trackmeta/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Provider keys are left empty so no test reaches a real endpoint by accident.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.CacheDir = filepath.Join(base, "cache")
	cfgVal.Paths.WhisperXCacheDir = filepath.Join(base, "cache", "whisperx")
	cfgVal.Cache.Path = filepath.Join(base, "cache", "analysis_cache.db")
	cfgVal.Consensus.BackoffInitialMillis = 1
	cfgVal.Consensus.BackoffMaxMillis = 2

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithProviderKey sets the API key of a named provider.
func WithProviderKey(name, key string) ConfigOption {
	return func(b *configBuilder) {
		switch name {
		case config.ProviderGroq:
			b.cfg.Providers.Groq.APIKey = key
		case config.ProviderGemini:
			b.cfg.Providers.Gemini.APIKey = key
		case config.ProviderAnthropic:
			b.cfg.Providers.Anthropic.APIKey = key
		case config.ProviderOpenRouter:
			b.cfg.Providers.OpenRouter.APIKey = key
		case config.ProviderDeepSeek:
			b.cfg.Providers.DeepSeek.APIKey = key
		default:
			b.t.Fatalf("unknown provider %q", name)
		}
	}
}

// WithProviderURL points a named provider at a test server.
func WithProviderURL(name, url string) ConfigOption {
	return func(b *configBuilder) {
		switch name {
		case config.ProviderGroq:
			b.cfg.Providers.Groq.BaseURL = url
		case config.ProviderGemini:
			b.cfg.Providers.Gemini.BaseURL = url
		case config.ProviderAnthropic:
			b.cfg.Providers.Anthropic.BaseURL = url
		case config.ProviderOpenRouter:
			b.cfg.Providers.OpenRouter.BaseURL = url
		case config.ProviderDeepSeek:
			b.cfg.Providers.DeepSeek.BaseURL = url
		default:
			b.t.Fatalf("unknown provider %q", name)
		}
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, ffmpeg and ffprobe are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.LogDir)
}
