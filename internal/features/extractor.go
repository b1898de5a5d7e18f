package features

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"trackmeta/internal/audio"
	"trackmeta/internal/config"
	"trackmeta/internal/logging"
	"trackmeta/internal/services"
)

// Extractor computes Bundles from audio sources. It holds no per-track state
// and is safe for concurrent use.
type Extractor struct {
	sampleRate int
	window     audio.Window
	logger     *slog.Logger
}

// Option customizes an Extractor.
type Option func(*Extractor)

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) {
		e.logger = logging.NewComponentLogger(logger, "features")
	}
}

// WithSampleRate overrides the analysis sample rate.
func WithSampleRate(rate int) Option {
	return func(e *Extractor) {
		if rate > 0 {
			e.sampleRate = rate
		}
	}
}

// WithWindow overrides the lead-in skip and window cap.
func WithWindow(w audio.Window) Option {
	return func(e *Extractor) { e.window = w }
}

// New returns an Extractor using 22050 Hz, a 30 s lead-in skip above 60 s and
// a 120 s window above 180 s.
func New(opts ...Option) *Extractor {
	e := &Extractor{
		sampleRate: 22050,
		window: audio.Window{
			LeadInSeconds:          30,
			LeadInThresholdSeconds: 60,
			WindowSeconds:          120,
			WindowThresholdSeconds: 180,
		},
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewFromConfig builds an Extractor from the [analysis] settings.
func NewFromConfig(cfg config.Analysis, logger *slog.Logger) *Extractor {
	return New(
		WithLogger(logger),
		WithSampleRate(cfg.SampleRate),
		WithWindow(audio.Window{
			LeadInSeconds:          cfg.LeadInSeconds,
			LeadInThresholdSeconds: cfg.LeadInThresholdSeconds,
			WindowSeconds:          cfg.WindowSeconds,
			WindowThresholdSeconds: cfg.WindowThresholdSeconds,
		}),
	)
}

// Extract decodes src once and computes every feature group. Only decoding
// errors are returned; failing groups are zeroed and listed in
// Meta.DegradedGroups.
func (e *Extractor) Extract(ctx context.Context, src audio.Source) (Bundle, error) {
	started := time.Now()
	sourceDuration, err := src.Duration(ctx)
	if err != nil {
		return Bundle{}, decodeError(ctx, "duration", err)
	}
	span := audio.PlanSpan(sourceDuration, e.window)
	samples, err := src.Decode(ctx, e.sampleRate, span)
	if err != nil {
		return Bundle{}, decodeError(ctx, "decode", err)
	}
	if len(samples) == 0 {
		return Bundle{}, services.Wrap(services.ErrDecode, "features", "decode", "no samples decoded", nil)
	}

	bundle := e.FromSamples(ctx, samples)
	bundle.Meta.SourceDurationSeconds = sourceDuration
	bundle.Meta.OffsetSeconds = span.Offset
	if err := ctx.Err(); err != nil {
		return Bundle{}, err
	}
	e.logger.Debug("features extracted",
		logging.String("source", src.Name()),
		logging.Float64("analyzed_seconds", bundle.Meta.DurationSeconds),
		logging.Float64("tempo", bundle.Rhythm.Tempo),
		logging.Int("segments", bundle.Structure.SegmentCount),
		logging.Strings("degraded", bundle.Meta.DegradedGroups),
		logging.Duration("elapsed", time.Since(started)),
	)
	return bundle, nil
}

// FromSamples computes a Bundle from mono samples already at the extractor's
// sample rate.
func (e *Extractor) FromSamples(ctx context.Context, samples []float64) Bundle {
	duration := float64(len(samples)) / float64(e.sampleRate)
	spec := newSpectrogram(samples, e.sampleRate)

	var b Bundle
	b.Meta = Meta{DurationSeconds: roundTo(duration, 3), SampleRate: e.sampleRate}

	groups := []struct {
		name string
		run  func() error
	}{
		{GroupRhythm, func() (err error) { b.Rhythm, err = computeRhythm(spec); return }},
		{GroupHarmonic, func() (err error) { b.Harmonic, err = computeHarmonic(spec); return }},
		{GroupSpectral, func() (err error) { b.Spectral, err = computeSpectral(spec); return }},
		{GroupTimbre, func() (err error) { b.Timbre, err = computeTimbre(spec); return }},
		{GroupEnergy, func() (err error) { b.Energy, err = computeEnergy(samples, spec); return }},
		{GroupStructure, func() (err error) { b.Structure, err = computeStructure(spec, duration); return }},
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		degraded []string
	)
	for _, g := range groups {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := runGroup(ctx, g.run); err != nil {
				e.logger.Debug("feature group degraded",
					logging.String("group", g.name),
					logging.Error(err),
				)
				mu.Lock()
				degraded = append(degraded, g.name)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	for _, name := range degraded {
		resetGroup(&b, name)
	}
	slices.Sort(degraded)
	b.Meta.DegradedGroups = degraded
	if b.Structure.SegmentDurations == nil {
		b.Structure.SegmentDurations = []float64{}
	}
	return b
}

func runGroup(ctx context.Context, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn()
}

func resetGroup(b *Bundle, name string) {
	switch name {
	case GroupRhythm:
		b.Rhythm = Rhythm{}
	case GroupHarmonic:
		b.Harmonic = Harmonic{Key: "C", Mode: "Major"}
	case GroupSpectral:
		b.Spectral = Spectral{}
	case GroupTimbre:
		b.Timbre = Timbre{}
	case GroupEnergy:
		b.Energy = Energy{}
	case GroupStructure:
		b.Structure = Structure{}
	}
}

func decodeError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, services.ErrDecode) {
		return err
	}
	return services.Wrap(services.ErrDecode, "features", op, "audio could not be decoded", err)
}
