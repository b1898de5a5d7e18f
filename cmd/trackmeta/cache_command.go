package main

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"trackmeta/internal/cache"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the analysis result cache",
	}
	cacheCmd.AddCommand(newCacheStatsCommand(ctx))
	cacheCmd.AddCommand(newCacheClearCommand(ctx))
	cacheCmd.AddCommand(newCachePruneCommand(ctx))
	return cacheCmd
}

func openCache(ctx *commandContext) (*cache.Store, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	store, err := cache.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	return store, nil
}

func newCacheStatsCommand(ctx *commandContext) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache entry counts and size",
		RunE: func(cmd *cobra.Command, args []string) error {
			resolved, err := resolveFormat(format, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			store, err := openCache(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}
			switch resolved {
			case formatJSON:
				return writeJSON(cmd, stats)
			case formatYAML:
				return writeYAML(cmd, stats)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderKeyValues(statsPairs(stats)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format: json, yaml or table")
	return cmd
}

func statsPairs(stats cache.Stats) [][2]string {
	pairs := [][2]string{
		{"Path", stats.Path},
		{"Entries", strconv.Itoa(stats.Entries)},
		{"Tracks", strconv.Itoa(stats.Tracks)},
		{"Hits", strconv.Itoa(stats.Hits)},
		{"Size", formatBytes(stats.SizeBytes)},
	}
	modes := make([]string, 0, len(stats.ByMode))
	for mode := range stats.ByMode {
		modes = append(modes, mode)
	}
	sort.Strings(modes)
	for _, mode := range modes {
		pairs = append(pairs, [2]string{"Mode " + mode, strconv.Itoa(stats.ByMode[mode])})
	}
	if !stats.Oldest.IsZero() {
		pairs = append(pairs,
			[2]string{"Oldest", stats.Oldest.Local().Format(time.DateTime)},
			[2]string{"Newest", stats.Newest.Local().Format(time.DateTime)},
		)
	}
	return pairs
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached analysis",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openCache(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			removed, err := store.Clear(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached analyses\n", removed)
			return nil
		},
	}
}

func newCachePruneCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove cached analyses older than a cutoff",
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive, got %s", olderThan)
			}
			store, err := openCache(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			removed, err := store.Prune(cmd.Context(), time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached analyses older than %s\n", removed, olderThan)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Age cutoff (e.g. 72h)")
	return cmd
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
