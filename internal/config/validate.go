package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateAnalysis(); err != nil {
		return err
	}
	if err := c.validateConsensus(); err != nil {
		return err
	}
	if err := c.validateLyrics(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if c.Batch.Workers <= 0 {
		return errors.New("batch.workers must be positive")
	}
	return nil
}

func (c *Config) validateAnalysis() error {
	switch c.Analysis.Mode {
	case "fast", "thorough":
	default:
		return fmt.Errorf("analysis.mode: unsupported value %q (expected fast or thorough)", c.Analysis.Mode)
	}
	if c.Analysis.BudgetSeconds <= 0 {
		return errors.New("analysis.budget_seconds must be positive")
	}
	if c.Analysis.SampleRate < 8000 {
		return errors.New("analysis.sample_rate must be at least 8000")
	}
	if c.Analysis.LeadInSeconds < 0 {
		return errors.New("analysis.lead_in_seconds must not be negative")
	}
	if c.Analysis.LeadInThresholdSeconds < c.Analysis.LeadInSeconds {
		return errors.New("analysis.lead_in_threshold_seconds must be at least analysis.lead_in_seconds")
	}
	if c.Analysis.WindowThresholdSeconds < c.Analysis.WindowSeconds {
		return errors.New("analysis.window_threshold_seconds must be at least analysis.window_seconds")
	}
	if c.Analysis.LyricsMinSeconds < c.Analysis.LowWaterSeconds {
		return errors.New("analysis.lyrics_min_seconds must be at least analysis.low_water_seconds")
	}
	return nil
}

func (c *Config) validateConsensus() error {
	if err := ensurePositiveMap(map[string]int{
		"consensus.request_timeout_seconds": c.Consensus.RequestTimeoutSeconds,
		"consensus.max_attempts":            c.Consensus.MaxAttempts,
		"consensus.backoff_initial_ms":      c.Consensus.BackoffInitialMillis,
		"consensus.min_votes_fast":          c.Consensus.MinVotesFast,
		"consensus.min_votes_thorough":      c.Consensus.MinVotesThorough,
	}); err != nil {
		return err
	}
	if c.Consensus.MinVotesFast > 2 {
		return errors.New("consensus.min_votes_fast cannot exceed the 2 fast-mode providers")
	}
	if c.Consensus.MinVotesThorough > len(ProviderNames()) {
		return fmt.Errorf("consensus.min_votes_thorough cannot exceed the %d thorough-mode providers", len(ProviderNames()))
	}
	return nil
}

func (c *Config) validateLyrics() error {
	switch c.Lyrics.Transcriber {
	case TranscriberAPI, TranscriberWhisperX:
	default:
		return fmt.Errorf("lyrics.transcriber: unsupported value %q (expected api or whisperx)", c.Lyrics.Transcriber)
	}
	if _, ok := c.Provider(c.Lyrics.ThemeProvider); !ok {
		return fmt.Errorf("lyrics.theme_provider: unknown provider %q", c.Lyrics.ThemeProvider)
	}
	if c.Lyrics.MaxUploadMB <= 0 {
		return errors.New("lyrics.max_upload_mb must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
