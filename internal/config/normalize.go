package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeAnalysis()
	c.normalizeConsensus()
	c.normalizeProviders()
	c.normalizeLyrics()
	if err := c.normalizeCache(); err != nil {
		return err
	}
	if c.Batch.Workers <= 0 {
		c.Batch.Workers = defaultBatchWorkers
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		c.Paths.CacheDir = defaultCacheDir
	}
	if c.Paths.CacheDir, err = expandPath(c.Paths.CacheDir); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.WhisperXCacheDir) == "" {
		c.Paths.WhisperXCacheDir = defaultWhisperXCacheDir
	}
	if c.Paths.WhisperXCacheDir, err = expandPath(c.Paths.WhisperXCacheDir); err != nil {
		return fmt.Errorf("paths.whisperx_cache_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeAnalysis() {
	c.Analysis.Mode = strings.ToLower(strings.TrimSpace(c.Analysis.Mode))
	if c.Analysis.Mode == "" {
		c.Analysis.Mode = defaultMode
	}
	if c.Analysis.BudgetSeconds <= 0 {
		c.Analysis.BudgetSeconds = defaultBudgetSeconds
	}
	if c.Analysis.SampleRate <= 0 {
		c.Analysis.SampleRate = defaultSampleRate
	}
	if c.Analysis.WindowSeconds <= 0 {
		c.Analysis.WindowSeconds = defaultWindowSeconds
	}
	if c.Analysis.LowWaterSeconds <= 0 {
		c.Analysis.LowWaterSeconds = defaultLowWaterSeconds
	}
	if c.Analysis.ClassifyFloorSeconds <= 0 {
		c.Analysis.ClassifyFloorSeconds = defaultClassifyFloorSeconds
	}
	if c.Analysis.LyricsMinSeconds <= 0 {
		c.Analysis.LyricsMinSeconds = defaultLyricsMinSeconds
	}
	if c.Analysis.StageMarginSeconds < 0 {
		c.Analysis.StageMarginSeconds = 0
	}
	if c.Analysis.ExtractionGraceSeconds < 0 {
		c.Analysis.ExtractionGraceSeconds = 0
	}
}

func (c *Config) normalizeConsensus() {
	if c.Consensus.RequestTimeoutSeconds <= 0 {
		c.Consensus.RequestTimeoutSeconds = defaultRequestTimeoutSeconds
	}
	if c.Consensus.MaxAttempts <= 0 {
		c.Consensus.MaxAttempts = defaultMaxAttempts
	}
	if c.Consensus.BackoffInitialMillis <= 0 {
		c.Consensus.BackoffInitialMillis = defaultBackoffInitialMillis
	}
	if c.Consensus.BackoffMaxMillis < c.Consensus.BackoffInitialMillis {
		c.Consensus.BackoffMaxMillis = max(defaultBackoffMaxMillis, c.Consensus.BackoffInitialMillis)
	}
	if c.Consensus.MinVotesFast <= 0 {
		c.Consensus.MinVotesFast = defaultMinVotesFast
	}
	if c.Consensus.MinVotesThorough <= 0 {
		c.Consensus.MinVotesThorough = defaultMinVotesThorough
	}
}

func (c *Config) normalizeProviders() {
	normalizeProvider(&c.Providers.Groq, defaultGroqBaseURL, defaultGroqModel, "GROQ_API_KEY")
	normalizeProvider(&c.Providers.Gemini, defaultGeminiBaseURL, defaultGeminiModel, "GEMINI_API_KEY", "GOOGLE_API_KEY")
	normalizeProvider(&c.Providers.Anthropic, defaultAnthropicBaseURL, defaultAnthropicModel, "ANTHROPIC_API_KEY", "CLAUDE_API_KEY")
	normalizeProvider(&c.Providers.OpenRouter, defaultOpenRouterBaseURL, defaultOpenRouterModel, "OPENROUTER_API_KEY")
	normalizeProvider(&c.Providers.DeepSeek, defaultDeepSeekBaseURL, defaultDeepSeekModel, "DEEPSEEK_API_KEY")
	if c.Providers.OpenRouter.Referer == "" {
		c.Providers.OpenRouter.Referer = defaultOpenRouterReferer
	}
	if c.Providers.OpenRouter.Title == "" {
		c.Providers.OpenRouter.Title = defaultOpenRouterTitle
	}
}

func normalizeProvider(p *Provider, baseURL, model string, envKeys ...string) {
	p.APIKey = strings.TrimSpace(p.APIKey)
	if p.APIKey == "" {
		p.APIKey = lookupEnv(envKeys...)
	}
	p.BaseURL = strings.TrimSpace(p.BaseURL)
	if p.BaseURL == "" {
		p.BaseURL = baseURL
	}
	p.Model = strings.TrimSpace(p.Model)
	if p.Model == "" {
		p.Model = model
	}
	p.Referer = strings.TrimSpace(p.Referer)
	p.Title = strings.TrimSpace(p.Title)
}

func (c *Config) normalizeLyrics() {
	c.Lyrics.Transcriber = strings.ToLower(strings.TrimSpace(c.Lyrics.Transcriber))
	if c.Lyrics.Transcriber == "" {
		c.Lyrics.Transcriber = defaultTranscriber
	}
	c.Lyrics.APIKey = strings.TrimSpace(c.Lyrics.APIKey)
	if c.Lyrics.APIKey == "" {
		// The default endpoint is Groq's Whisper deployment.
		c.Lyrics.APIKey = c.Providers.Groq.APIKey
	}
	c.Lyrics.BaseURL = strings.TrimSpace(c.Lyrics.BaseURL)
	if c.Lyrics.BaseURL == "" {
		c.Lyrics.BaseURL = defaultTranscriptionBaseURL
	}
	c.Lyrics.Model = strings.TrimSpace(c.Lyrics.Model)
	if c.Lyrics.Model == "" {
		c.Lyrics.Model = defaultTranscriptionModel
	}
	if c.Lyrics.MaxUploadMB <= 0 {
		c.Lyrics.MaxUploadMB = defaultTranscriptionMaxMB
	}
	c.Lyrics.WhisperXModel = strings.TrimSpace(c.Lyrics.WhisperXModel)
	if c.Lyrics.WhisperXModel == "" {
		c.Lyrics.WhisperXModel = defaultWhisperXModel
	}
	c.Lyrics.WhisperXHuggingFace = strings.TrimSpace(c.Lyrics.WhisperXHuggingFace)
	if c.Lyrics.WhisperXHuggingFace == "" {
		c.Lyrics.WhisperXHuggingFace = lookupEnv("HUGGING_FACE_HUB_TOKEN", "HF_TOKEN")
	}
	c.Lyrics.ThemeProvider = strings.ToLower(strings.TrimSpace(c.Lyrics.ThemeProvider))
	if c.Lyrics.ThemeProvider == "" {
		c.Lyrics.ThemeProvider = defaultThemeProvider
	}
	if c.Lyrics.MinVocalRMS < 0 {
		c.Lyrics.MinVocalRMS = 0
	}
	if c.Lyrics.MinTranscriptLength <= 0 {
		c.Lyrics.MinTranscriptLength = defaultLyricsMinTranscriptLen
	}
}

func (c *Config) normalizeCache() error {
	var err error
	if strings.TrimSpace(c.Cache.Path) == "" {
		c.Cache.Path = filepath.Join(c.Paths.CacheDir, defaultCacheFile)
	}
	if c.Cache.Path, err = expandPath(c.Cache.Path); err != nil {
		return fmt.Errorf("cache.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func lookupEnv(keys ...string) string {
	for _, key := range keys {
		if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
