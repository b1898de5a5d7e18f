package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"trackmeta/internal/analyzer"
	"trackmeta/internal/audio"
	"trackmeta/internal/config"
	"trackmeta/internal/logging"
	"trackmeta/internal/preflight"
)

// batchResult is one file's outcome in input order.
type batchResult struct {
	File     string                  `json:"file"`
	Metadata *analyzer.TrackMetadata `json:"metadata,omitempty"`
	Error    string                  `json:"error,omitempty"`
}

type sourceFunc func(path string) audio.Source

func newBatchCommand(ctx *commandContext) *cobra.Command {
	var flags analyzeFlags
	var workers int

	cmd := &cobra.Command{
		Use:   "batch <file>...",
		Short: "Analyze several audio files concurrently",
		Args:  cobra.MinimumNArgs(1),
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
			if !cmd.Flags().Changed("workers") {
				workers = cfg.Batch.Workers
			}
			if workers <= 0 {
				return fmt.Errorf("--workers must be positive, got %d", workers)
			}

			paths := make([]string, 0, len(args))
			for _, arg := range args {
				path, err := config.ExpandPath(strings.TrimSpace(arg))
				if err != nil {
					return err
				}
				paths = append(paths, path)
			}

			warnPreflight(cmd, preflight.RunAll(cmd.Context(), cfg))
			runner, cleanup, err := buildRunner(cfg, logger, flags.noCache)
			if err != nil {
				return err
			}
			defer cleanup()

			source := func(path string) audio.Source { return analyzer.FileSource(cfg, path) }
			results := runBatch(cmd.Context(), runner, source, paths, opts, workers, logger)
			if err := writeBatch(cmd, format, results); err != nil {
				return err
			}
			if failed := countFailed(results); failed > 0 {
				return fmt.Errorf("%d of %d files failed", failed, len(results))
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Concurrent analyses (default from batch.workers)")
	return cmd
}

// runBatch analyzes paths on a fixed pool of workers. Each worker owns its
// own time budget; results keep the input order.
func runBatch(ctx context.Context, runner analyzer.Runner, source sourceFunc, paths []string, opts analyzer.Options, workers int, logger *slog.Logger) []batchResult {
	logger = logging.NewComponentLogger(logger, "batch")
	results := make([]batchResult, len(paths))
	if workers > len(paths) {
		workers = len(paths)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = analyzeOne(ctx, runner, source, paths[idx], opts, logger)
			}
		}()
	}

	for idx := range paths {
		if ctx.Err() != nil {
			results[idx] = batchResult{File: paths[idx], Error: ctx.Err().Error()}
			continue
		}
		jobs <- idx
	}
	close(jobs)
	wg.Wait()
	return results
}

func analyzeOne(ctx context.Context, runner analyzer.Runner, source sourceFunc, path string, opts analyzer.Options, logger *slog.Logger) batchResult {
	result := batchResult{File: path}
	fileOpts := opts
	if opts.Progress == nil {
		fileOpts.Progress = progressLogger(logger, path)
	}
	md, err := runner.Analyze(ctx, source(path), fileOpts)
	if err != nil {
		logging.WarnWithContext(logger, "batch file failed", "batch_file_failed",
			logging.String("file", path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "file omitted from batch output"),
		)
		result.Error = err.Error()
		return result
	}
	logger.Info("batch file analyzed",
		logging.String("file", path),
		logging.String("genre", md.MainGenre),
		logging.String("method", string(md.Tech.Method)),
		logging.Float64("analysis_time", md.Tech.AnalysisTimeSeconds),
	)
	result.Metadata = &md
	return result
}

func countFailed(results []batchResult) int {
	failed := 0
	for _, r := range results {
		if r.Error != "" {
			failed++
		}
	}
	return failed
}

func writeBatch(cmd *cobra.Command, format string, results []batchResult) error {
	switch format {
	case formatYAML:
		return writeYAML(cmd, results)
	case formatTable:
		fmt.Fprintln(cmd.OutOrStdout(), renderTable(
			[]string{"File", "Genre", "Energy", "BPM", "Method", "Time", "Status"},
			batchRows(results),
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignLeft},
		))
		return nil
	default:
		return writeJSON(cmd, results)
	}
}

func batchRows(results []batchResult) [][]string {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		name := filepath.Base(r.File)
		if r.Metadata == nil {
			rows = append(rows, []string{name, "", "", "", "", "", "failed: " + r.Error})
			continue
		}
		md := r.Metadata
		status := "ok"
		if md.Tech.Cached {
			status = "cached"
		}
		rows = append(rows, []string{
			name,
			md.MainGenre,
			md.EnergyLevel,
			formatFloat(md.BPM, 1),
			string(md.Tech.Method),
			formatFloat(md.Tech.AnalysisTimeSeconds, 2) + "s",
			status,
		})
	}
	return rows
}
