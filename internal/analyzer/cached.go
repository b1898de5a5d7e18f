package analyzer

import (
	"context"
	"encoding/json"
	"log/slog"

	"trackmeta/internal/audio"
	"trackmeta/internal/cache"
	"trackmeta/internal/consensus"
	"trackmeta/internal/logging"
)

// Runner is anything that analyzes a source.
type Runner interface {
	Analyze(ctx context.Context, src audio.Source, opts Options) (TrackMetadata, error)
}

// CachedAnalyzer serves repeated requests from the result cache. Results
// produced by the fallback are not stored so a transient provider outage is
// not remembered.
type CachedAnalyzer struct {
	inner  Runner
	store  *cache.Store
	logger *slog.Logger
}

// NewCached wraps inner with store. A nil store disables caching.
func NewCached(inner Runner, store *cache.Store, logger *slog.Logger) *CachedAnalyzer {
	return &CachedAnalyzer{inner: inner, store: store, logger: logging.NewComponentLogger(logger, "analysis-cache")}
}

// Analyze returns a cached result for identical audio and options, or runs
// the pipeline and stores its result.
func (c *CachedAnalyzer) Analyze(ctx context.Context, src audio.Source, opts Options) (TrackMetadata, error) {
	if c.store == nil || src == nil || src.Path() == "" {
		return c.inner.Analyze(ctx, src, opts)
	}
	logger := logging.WithContext(ctx, c.logger)
	mode := normalizeMode(opts.Mode)
	key, err := cache.KeyFor(src.Path(), string(mode), opts.IncludeLyrics)
	if err != nil {
		logger.Debug("cache key unavailable", logging.Error(err))
		return c.inner.Analyze(ctx, src, opts)
	}

	entry, ok, err := c.store.Get(ctx, key)
	if err != nil {
		logging.WarnWithContext(logger, "cache lookup failed", "cache_read_failed", logging.Error(err))
	}
	if ok {
		var md TrackMetadata
		decodeErr := json.Unmarshal(entry.Result, &md)
		if decodeErr == nil {
			md.Tech.Cached = true
			logger.Info("analysis served from cache",
				logging.String("source", src.Name()),
				logging.Int("hits", entry.HitCount),
			)
			if opts.Progress != nil {
				opts.Progress(progressDone, string(StateDone))
			}
			return md, nil
		}
		logging.WarnWithContext(logger, "cached analysis unreadable; recomputing", "cache_decode_failed", logging.Error(decodeErr))
	}

	md, err := c.inner.Analyze(ctx, src, opts)
	if err != nil {
		return md, err
	}
	if md.Tech.Method == consensus.MethodFallback {
		return md, nil
	}
	data, err := json.Marshal(md)
	if err == nil {
		err = c.store.Put(ctx, key, src.Path(), data)
	}
	if err != nil {
		logging.WarnWithContext(logger, "cache write failed", "cache_write_failed", logging.Error(err))
	}
	return md, nil
}
