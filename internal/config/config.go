package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	LogDir           string `toml:"log_dir"`
	CacheDir         string `toml:"cache_dir"`
	WhisperXCacheDir string `toml:"whisperx_cache_dir"`
}

// Analysis controls the time budget and the analyzed audio window.
type Analysis struct {
	Mode          string  `toml:"mode"`
	BudgetSeconds float64 `toml:"budget_seconds"`
	IncludeLyrics bool    `toml:"include_lyrics"`
	SampleRate    int     `toml:"sample_rate"`
	// Tracks longer than LeadInThresholdSeconds skip LeadInSeconds of intro.
	LeadInSeconds          float64 `toml:"lead_in_seconds"`
	LeadInThresholdSeconds float64 `toml:"lead_in_threshold_seconds"`
	// Tracks longer than WindowThresholdSeconds are capped to WindowSeconds.
	WindowSeconds          float64 `toml:"window_seconds"`
	WindowThresholdSeconds float64 `toml:"window_threshold_seconds"`
	LowWaterSeconds        float64 `toml:"low_water_seconds"`
	ClassifyFloorSeconds   float64 `toml:"classify_floor_seconds"`
	LyricsMinSeconds       float64 `toml:"lyrics_min_seconds"`
	StageMarginSeconds     float64 `toml:"stage_margin_seconds"`
	ExtractionGraceSeconds float64 `toml:"extraction_grace_seconds"`
}

// Consensus controls backend dispatch and retry policy.
type Consensus struct {
	RequestTimeoutSeconds int `toml:"request_timeout_seconds"`
	MaxAttempts           int `toml:"max_attempts"`
	BackoffInitialMillis  int `toml:"backoff_initial_ms"`
	BackoffMaxMillis      int `toml:"backoff_max_ms"`
	MinVotesFast          int `toml:"min_votes_fast"`
	MinVotesThorough      int `toml:"min_votes_thorough"`
}

// Provider holds connection settings for one classifier backend.
type Provider struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
	Model   string `toml:"model"`
	Referer string `toml:"referer"`
	Title   string `toml:"title"`
}

// Providers lists every supported classifier backend.
type Providers struct {
	Groq       Provider `toml:"groq"`
	Gemini     Provider `toml:"gemini"`
	Anthropic  Provider `toml:"anthropic"`
	OpenRouter Provider `toml:"openrouter"`
	DeepSeek   Provider `toml:"deepseek"`
}

// Lyrics contains configuration for best-effort lyric enrichment.
type Lyrics struct {
	// Transcriber selects "api" (Whisper HTTP endpoint) or "whisperx" (local uvx run).
	Transcriber         string  `toml:"transcriber"`
	APIKey              string  `toml:"api_key"`
	BaseURL             string  `toml:"base_url"`
	Model               string  `toml:"model"`
	MaxUploadMB         int     `toml:"max_upload_mb"`
	WhisperXModel       string  `toml:"whisperx_model"`
	WhisperXCUDAEnabled bool    `toml:"whisperx_cuda_enabled"`
	WhisperXHuggingFace string  `toml:"whisperx_hf_token"`
	ThemeProvider       string  `toml:"theme_provider"`
	MinVocalRMS         float64 `toml:"min_vocal_rms"`
	MinTranscriptLength int     `toml:"min_transcript_length"`
}

// Cache contains configuration for the analysis result cache.
type Cache struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"` // Default: <cache_dir>/analysis_cache.db
}

// Batch controls the CLI batch worker pool.
type Batch struct {
	Workers int `toml:"workers"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for trackmeta.
//
// Configuration sections by subsystem:
//   - Paths: log, cache, and WhisperX model directories
//   - Analysis: total budget, stage thresholds, analyzed window
//   - Consensus: per-call timeout, retries, minimum vote counts
//   - Providers: classifier backend credentials and endpoints
//   - Lyrics: transcription and theme extraction
//   - Cache: SQLite result cache
//   - Batch: CLI worker pool
//   - Logging: log format and level
type Config struct {
	Paths     Paths     `toml:"paths"`
	Analysis  Analysis  `toml:"analysis"`
	Consensus Consensus `toml:"consensus"`
	Providers Providers `toml:"providers"`
	Lyrics    Lyrics    `toml:"lyrics"`
	Cache     Cache     `toml:"cache"`
	Batch     Batch     `toml:"batch"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/trackmeta/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("trackmeta.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the log and cache directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.LogDir, c.Paths.CacheDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable name used for decoding.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable name used for duration probing.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

// Provider returns the settings for a named backend.
func (c *Config) Provider(name string) (Provider, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case ProviderGroq:
		return c.Providers.Groq, true
	case ProviderGemini:
		return c.Providers.Gemini, true
	case ProviderAnthropic:
		return c.Providers.Anthropic, true
	case ProviderOpenRouter:
		return c.Providers.OpenRouter, true
	case ProviderDeepSeek:
		return c.Providers.DeepSeek, true
	default:
		return Provider{}, false
	}
}

// ProviderNames lists backends in dispatch order.
func ProviderNames() []string {
	return []string{ProviderGroq, ProviderGemini, ProviderAnthropic, ProviderOpenRouter, ProviderDeepSeek}
}

// Budget returns the configured total analysis budget.
func (a Analysis) Budget() time.Duration {
	return seconds(a.BudgetSeconds)
}

// RequestTimeout returns the per-call backend timeout.
func (c Consensus) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// BackoffInitial returns the delay before the second attempt.
func (c Consensus) BackoffInitial() time.Duration {
	return time.Duration(c.BackoffInitialMillis) * time.Millisecond
}

// BackoffMax returns the retry delay ceiling.
func (c Consensus) BackoffMax() time.Duration {
	return time.Duration(c.BackoffMaxMillis) * time.Millisecond
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// SampleConfig returns the embedded sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
