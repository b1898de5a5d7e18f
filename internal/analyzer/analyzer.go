package analyzer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"trackmeta/internal/audio"
	"trackmeta/internal/budget"
	"trackmeta/internal/config"
	"trackmeta/internal/consensus"
	"trackmeta/internal/features"
	"trackmeta/internal/logging"
	"trackmeta/internal/lyrics"
	"trackmeta/internal/services"
)

// Extractor computes the feature bundle of a source.
type Extractor interface {
	Extract(ctx context.Context, src audio.Source) (features.Bundle, error)
}

// Classifier turns a bundle into a classification. Classify never fails;
// Fallback is the feature-only answer.
type Classifier interface {
	Classify(ctx context.Context, bundle features.Bundle, hints consensus.Hints, mode consensus.Mode) consensus.Result
	Fallback(bundle features.Bundle) consensus.Result
}

// Enricher adds lyric insights for a file on disk.
type Enricher interface {
	Enrich(ctx context.Context, path string, bundle features.Bundle) (lyrics.Enrichment, error)
}

// TagReader reads embedded tags used as classification hints.
type TagReader func(path string) (audio.Tags, error)

// ProgressFunc receives (percent, label) on every state transition.
type ProgressFunc func(percent float64, label string)

// Options are the per-call inputs of Analyze.
type Options struct {
	IncludeLyrics bool
	Mode          consensus.Mode
	// Budget is the total wall-clock allowance. Zero selects the default.
	Budget   time.Duration
	Progress ProgressFunc
}

// Limits are the stage thresholds applied against the remaining budget.
type Limits struct {
	DefaultBudget   time.Duration
	LowWater        time.Duration
	ClassifyFloor   time.Duration
	LyricsMin       time.Duration
	StageMargin     time.Duration
	ExtractionGrace time.Duration
}

// DefaultLimits returns a 30 s budget, a 3 s low-water mark, a 5 s
// classification floor, a 10 s lyric minimum, a 1 s stage margin and a 1 s
// extraction grace.
func DefaultLimits() Limits {
	return Limits{
		DefaultBudget:   30 * time.Second,
		LowWater:        3 * time.Second,
		ClassifyFloor:   5 * time.Second,
		LyricsMin:       10 * time.Second,
		StageMargin:     time.Second,
		ExtractionGrace: time.Second,
	}
}

// LimitsFromConfig reads the [analysis] thresholds.
func LimitsFromConfig(cfg config.Analysis) Limits {
	sec := func(v float64) time.Duration { return time.Duration(v * float64(time.Second)) }
	return Limits{
		DefaultBudget:   cfg.Budget(),
		LowWater:        sec(cfg.LowWaterSeconds),
		ClassifyFloor:   sec(cfg.ClassifyFloorSeconds),
		LyricsMin:       sec(cfg.LyricsMinSeconds),
		StageMargin:     sec(cfg.StageMarginSeconds),
		ExtractionGrace: sec(cfg.ExtractionGraceSeconds),
	}
}

// Analyzer runs the analysis pipeline. It keeps no per-call state and serves
// concurrent calls.
type Analyzer struct {
	extractor  Extractor
	classifier Classifier
	enricher   Enricher
	tags       TagReader
	limits     Limits
	clock      budget.Clock
	newID      func() string
	logger     *slog.Logger
}

// Option customizes an Analyzer.
type Option func(*Analyzer)

// WithEnricher enables lyric enrichment.
func WithEnricher(e Enricher) Option {
	return func(a *Analyzer) { a.enricher = e }
}

// WithTagReader enables embedded-tag hints for file sources.
func WithTagReader(r TagReader) Option {
	return func(a *Analyzer) { a.tags = r }
}

// WithLimits overrides the stage thresholds.
func WithLimits(l Limits) Option {
	return func(a *Analyzer) { a.limits = l }
}

// WithClock substitutes the budget clock.
func WithClock(c budget.Clock) Option {
	return func(a *Analyzer) { a.clock = c }
}

// WithRequestIDs substitutes the request id generator.
func WithRequestIDs(fn func() string) Option {
	return func(a *Analyzer) {
		if fn != nil {
			a.newID = fn
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Analyzer) { a.logger = logging.NewComponentLogger(logger, "analyzer") }
}

// New builds an Analyzer from its two required collaborators.
func New(extractor Extractor, classifier Classifier, opts ...Option) *Analyzer {
	a := &Analyzer{
		extractor:  extractor,
		classifier: classifier,
		limits:     DefaultLimits(),
		clock:      time.Now,
		newID:      uuid.NewString,
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze produces the metadata of src within opts.Budget. The returned
// error is non-nil only when the audio cannot be decoded or ctx ends.
func (a *Analyzer) Analyze(ctx context.Context, src audio.Source, opts Options) (TrackMetadata, error) {
	if src == nil {
		return TrackMetadata{}, services.Wrap(services.ErrValidation, "analyze", "analyze", "audio source required", nil)
	}
	total := opts.Budget
	if total <= 0 {
		total = a.limits.DefaultBudget
	}
	mode := normalizeMode(opts.Mode)
	b := budget.NewWithClock(total, a.clock)

	requestID, ok := services.RequestIDFromContext(ctx)
	if !ok {
		requestID = a.newID()
		ctx = services.WithRequestID(ctx, requestID)
	}
	logger := logging.WithContext(ctx, a.logger)
	report := func(percent float64, state State) {
		logger.Debug("analysis state", logging.String("state", string(state)), logging.Float64("percent", percent))
		if opts.Progress != nil {
			opts.Progress(percent, string(state))
		}
	}

	logger.Info("analysis started",
		logging.String("source", src.Name()),
		logging.String("mode", string(mode)),
		logging.Duration("budget", total),
		logging.Bool("include_lyrics", opts.IncludeLyrics),
	)

	report(progressExtracting, StateExtracting)
	bundle, abandoned, err := a.extract(ctx, src, b)
	if err != nil {
		report(progressExtracting, StateFailed)
		logger.Error("analysis failed",
			logging.String("source", src.Name()),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check that the file is a readable audio format and ffmpeg is installed"),
		)
		return TrackMetadata{}, err
	}

	report(progressClassifying, StateClassifying)
	result := a.classify(ctx, src, bundle, b, mode, abandoned, logger)

	enrichment, skipped := a.enrich(ctx, src, bundle, b, opts.IncludeLyrics, abandoned, report, logger)

	report(progressMerging, StateMerging)
	md := merge(bundle, result, enrichment)
	md.Tech.RequestID = requestID
	md.Tech.Mode = mode
	md.Tech.BudgetSeconds = round(total.Seconds(), 2)
	md.Tech.AnalysisTimeSeconds = round(b.Elapsed().Seconds(), 2)
	md.Tech.BudgetMet = b.Met() && !abandoned
	md.Tech.LyricsSkipped = skipped

	report(progressDone, StateDone)
	logger.Info("analysis completed",
		logging.String("source", src.Name()),
		logging.String("main_genre", md.MainGenre),
		logging.String("method", string(md.Tech.Method)),
		logging.Strings("sources", md.Tech.Sources),
		logging.Float64("confidence", md.Tech.Confidence),
		logging.Float64("elapsed_seconds", md.Tech.AnalysisTimeSeconds),
		logging.Bool("budget_met", md.Tech.BudgetMet),
		logging.Int("layers", md.Tech.LayerCount),
	)
	return md, nil
}

// extract runs the extractor on its own goroutine and waits up to the whole
// budget plus the grace period. An overrun abandons the extraction and
// reports abandoned=true with an empty bundle.
func (a *Analyzer) extract(ctx context.Context, src audio.Source, b budget.Budget) (features.Bundle, bool, error) {
	extractCtx, cancel := context.WithCancel(services.WithStage(ctx, "extract"))
	defer cancel()

	type outcome struct {
		bundle features.Bundle
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		bundle, err := a.extractor.Extract(extractCtx, src)
		done <- outcome{bundle: bundle, err: err}
	}()

	timer := time.NewTimer(b.Remaining() + a.limits.ExtractionGrace)
	defer timer.Stop()

	select {
	case out := <-done:
		if out.err == nil {
			return out.bundle, false, nil
		}
		if services.IsFatal(out.err) {
			return features.Bundle{}, false, out.err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return features.Bundle{}, false, ctxErr
		}
		logging.WarnWithContext(logging.WithContext(ctx, a.logger), "feature extraction failed; using defaults", "extract_failed",
			logging.Error(out.err),
			logging.String(logging.FieldImpact, "classification uses rule-based defaults"),
		)
		return features.Bundle{}, true, nil
	case <-timer.C:
		logging.WarnWithContext(logging.WithContext(ctx, a.logger), "feature extraction overran the budget", "extract_timeout",
			logging.Duration("elapsed", b.Elapsed()),
			logging.String(logging.FieldImpact, "classification uses rule-based defaults"),
			logging.String(logging.FieldErrorHint, "raise the budget or shorten analysis.window_seconds"),
		)
		return features.Bundle{}, true, nil
	case <-ctx.Done():
		return features.Bundle{}, false, ctx.Err()
	}
}

func (a *Analyzer) classify(ctx context.Context, src audio.Source, bundle features.Bundle, b budget.Budget, mode consensus.Mode, abandoned bool, logger *slog.Logger) consensus.Result {
	if abandoned {
		return a.classifier.Fallback(bundle)
	}
	if remaining := b.Remaining(); remaining < a.limits.LowWater {
		logging.WarnWithContext(logger, "time budget low; skipping classifier backends", "budget_low",
			logging.Duration("remaining", remaining),
			logging.String(logging.FieldImpact, "rule-based classification used"),
		)
		return a.classifier.Fallback(bundle)
	}

	hints := QuickHints(bundle)
	if path := src.Path(); path != "" && a.tags != nil {
		tags, err := a.tags(path)
		if err != nil {
			logger.Debug("no embedded tags", logging.String("source", src.Name()), logging.Error(err))
		} else {
			hints = withTags(hints, tags)
		}
	}

	timeout := b.StageTimeout(a.limits.StageMargin, a.limits.ClassifyFloor)
	stageCtx, cancel := budget.WithStage(services.WithStage(ctx, "classify"), timeout)
	defer cancel()
	result := a.classifier.Classify(stageCtx, bundle, hints, mode)
	if errors.Is(stageCtx.Err(), context.DeadlineExceeded) {
		logging.WarnWithContext(logger, "classification hit its stage timeout; using fallback", "classify_timeout",
			logging.Duration("timeout", timeout),
			logging.Int("votes", result.VoteCount),
			logging.String(logging.FieldImpact, "partial votes discarded"),
		)
		return a.classifier.Fallback(bundle)
	}

	if unusable(result) {
		logging.WarnWithContext(logger, "classification unusable; using fallback", "classify_unusable",
			logging.String("main_genre", result.MainGenre),
		)
		return a.classifier.Fallback(bundle)
	}
	if needsBackfill(result) {
		result = backfill(result, a.classifier.Fallback(bundle))
	}
	return result
}

// Lyric skip reasons recorded in the sidecar.
const (
	skipNotConfigured = "not_configured"
	skipNoFile        = "no_file"
	skipBudget        = "budget"
	skipError         = "error"
)

func (a *Analyzer) enrich(ctx context.Context, src audio.Source, bundle features.Bundle, b budget.Budget, requested, abandoned bool, report func(float64, State), logger *slog.Logger) (lyrics.Enrichment, string) {
	if !requested {
		return lyrics.Enrichment{}, ""
	}
	switch remaining := b.Remaining(); {
	case a.enricher == nil:
		return lyrics.Enrichment{}, skipNotConfigured
	case src.Path() == "":
		return lyrics.Enrichment{}, skipNoFile
	case abandoned || remaining <= a.limits.LyricsMin:
		logger.Info("skipping lyrics; budget too low", logging.Duration("remaining", remaining))
		return lyrics.Enrichment{}, skipBudget
	}

	report(progressLyrics, StateLyrics)
	stageCtx, cancel := budget.WithStage(services.WithStage(ctx, "lyrics"), b.Remaining()-a.limits.StageMargin)
	defer cancel()
	enrichment, err := a.enricher.Enrich(stageCtx, src.Path(), bundle)
	if err != nil {
		logging.WarnWithContext(logger, "lyric enrichment failed", "lyrics_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "result carries no lyric insights"),
		)
		return lyrics.Enrichment{}, skipError
	}
	if !enrichment.Present {
		return lyrics.Enrichment{}, enrichment.Reason
	}
	return enrichment, ""
}

func normalizeMode(m consensus.Mode) consensus.Mode {
	return consensus.ParseMode(string(m))
}
