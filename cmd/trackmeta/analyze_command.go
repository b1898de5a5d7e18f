package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"trackmeta/internal/analyzer"
	"trackmeta/internal/cache"
	"trackmeta/internal/config"
	"trackmeta/internal/consensus"
	"trackmeta/internal/logging"
	"trackmeta/internal/preflight"
)

type analyzeFlags struct {
	mode    string
	lyrics  bool
	budget  float64
	format  string
	noCache bool
}

func (f *analyzeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.mode, "mode", "m", "", "Classification mode: fast or thorough (default from config)")
	cmd.Flags().BoolVar(&f.lyrics, "lyrics", false, "Transcribe and analyze lyrics when time allows")
	cmd.Flags().Float64Var(&f.budget, "budget", 0, "Total time budget in seconds (default from config)")
	cmd.Flags().StringVarP(&f.format, "format", "f", "", "Output format: json, yaml or table (default: table on a terminal, json otherwise)")
	cmd.Flags().BoolVar(&f.noCache, "no-cache", false, "Bypass the analysis result cache")
}

// options merges flags over the [analysis] defaults.
func (f *analyzeFlags) options(cmd *cobra.Command, cfg *config.Config) (analyzer.Options, error) {
	opts := analyzer.OptionsFromConfig(cfg)
	if mode := strings.ToLower(strings.TrimSpace(f.mode)); mode != "" {
		if mode != string(consensus.ModeFast) && mode != string(consensus.ModeThorough) {
			return analyzer.Options{}, fmt.Errorf("unsupported --mode %q (expected fast or thorough)", f.mode)
		}
		opts.Mode = consensus.Mode(mode)
	}
	if cmd.Flags().Changed("lyrics") {
		opts.IncludeLyrics = f.lyrics
	}
	if f.budget < 0 {
		return analyzer.Options{}, fmt.Errorf("--budget must be positive, got %v", f.budget)
	}
	if f.budget > 0 {
		opts.Budget = time.Duration(f.budget * float64(time.Second))
	}
	return opts, nil
}

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	var flags analyzeFlags

	cmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Analyze one audio file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			format, err := resolveFormat(flags.format, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			opts, err := flags.options(cmd, cfg)
			if err != nil {
				return err
			}
			path, err := resolveInput(args[0])
			if err != nil {
				return err
			}

			warnPreflight(cmd, preflight.RunAll(cmd.Context(), cfg))
			runner, cleanup, err := buildRunner(cfg, logger, flags.noCache)
			if err != nil {
				return err
			}
			defer cleanup()

			opts.Progress = progressLogger(logger, path)
			md, err := runner.Analyze(cmd.Context(), analyzer.FileSource(cfg, path), opts)
			if err != nil {
				return fmt.Errorf("analyze %s: %w", path, err)
			}
			return writeMetadata(cmd, format, md)
		},
	}
	flags.register(cmd)
	return cmd
}

// buildRunner wires the analyzer and, unless disabled, the result cache. A
// cache that cannot be opened only disables caching.
func buildRunner(cfg *config.Config, logger *slog.Logger, noCache bool) (analyzer.Runner, func(), error) {
	an, err := analyzer.NewFromConfig(cfg, logger, nil)
	if err != nil {
		return nil, nil, err
	}
	if noCache || !cfg.Cache.Enabled {
		return an, func() {}, nil
	}
	store, err := cache.Open(cfg)
	if err != nil {
		logging.WarnWithContext(logger, "analysis cache unavailable", "cache_open_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "results will not be cached"),
			logging.String(logging.FieldErrorHint, "pass --no-cache, or delete "+cfg.Cache.Path),
		)
		return an, func() {}, nil
	}
	return analyzer.NewCached(an, store, logger), func() { _ = store.Close() }, nil
}

func progressLogger(logger *slog.Logger, path string) analyzer.ProgressFunc {
	sampler := logging.NewProgressSampler(25)
	return func(percent float64, label string) {
		if !sampler.ShouldLog(percent, label) {
			return
		}
		logger.Debug("analysis progress",
			logging.String("file", path),
			logging.String("state", label),
			logging.Float64("percent", percent),
		)
	}
}

func warnPreflight(cmd *cobra.Command, results []preflight.Result) {
	for _, r := range preflight.Failed(results) {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s: %s\n", r.Name, r.Detail)
	}
}

func resolveInput(arg string) (string, error) {
	path, err := config.ExpandPath(strings.TrimSpace(arg))
	if err != nil {
		return "", err
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("inspect %q: %w", path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", path)
	}
	return path, nil
}
