package analyzer

import (
	"log/slog"
	"net/http"

	"trackmeta/internal/audio"
	"trackmeta/internal/backends"
	"trackmeta/internal/config"
	"trackmeta/internal/consensus"
	"trackmeta/internal/fallback"
	"trackmeta/internal/features"
	"trackmeta/internal/logging"
	"trackmeta/internal/lyrics"
)

// NewFromConfig wires an Analyzer with the configured providers. Lyric
// enrichment is attached when its collaborators can be built; a failure there
// only disables lyrics.
func NewFromConfig(cfg *config.Config, logger *slog.Logger, httpClient *http.Client) (*Analyzer, error) {
	engine, err := backends.NewEngine(cfg, fallback.Classify, logger, backends.Options{HTTPClient: httpClient})
	if err != nil {
		return nil, err
	}
	opts := []Option{
		WithLogger(logger),
		WithLimits(LimitsFromConfig(cfg.Analysis)),
		WithTagReader(audio.ReadTags),
	}
	enricher, err := lyrics.NewFromConfig(cfg, logger, httpClient)
	if err != nil {
		logging.WarnWithContext(logging.NewComponentLogger(logger, "analyzer"), "lyric enrichment unavailable", "lyrics_unavailable",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check [lyrics] transcriber and theme_provider settings"),
		)
	} else {
		opts = append(opts, WithEnricher(enricher))
	}
	return New(features.NewFromConfig(cfg.Analysis, logger), engine, opts...), nil
}

// FileSource opens path with the configured ffmpeg binaries.
func FileSource(cfg *config.Config, path string) audio.Source {
	return audio.NewFileSource(path, audio.WithBinaries(cfg.FFmpegBinary(), cfg.FFprobeBinary()))
}

// OptionsFromConfig returns the per-call defaults from [analysis].
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		IncludeLyrics: cfg.Analysis.IncludeLyrics,
		Mode:          consensus.ParseMode(cfg.Analysis.Mode),
		Budget:        cfg.Analysis.Budget(),
	}
}
