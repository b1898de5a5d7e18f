package lyrics

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"trackmeta/internal/features"
	"trackmeta/internal/language"
	"trackmeta/internal/logging"
	"trackmeta/internal/services"
)

const (
	defaultMinVocalRMS      = 0.1
	defaultMinTranscriptLen = 20
	// themeExcerptRunes bounds the lyric excerpt sent for theme analysis.
	themeExcerptRunes = 1000
)

// Skip reasons reported when a gate rejects the track.
const (
	ReasonInstrumental = "instrumental_detected"
	ReasonNoText       = "no_text_detected"
)

// Transcript is the text recognized in a track.
type Transcript struct {
	Text     string
	Language string
}

// Transcriber turns an audio file into text.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (Transcript, error)
}

// Insights are the secondary classification of a transcript.
type Insights struct {
	Themes         []string `json:"themes"`
	Language       string   `json:"language"`
	Explicit       bool     `json:"explicit"`
	MoodFromLyrics []string `json:"moodFromLyrics"`
	GenreHints     []string `json:"genreHints"`
}

// ThemeExtractor classifies lyric content.
type ThemeExtractor interface {
	ExtractThemes(ctx context.Context, lyrics string) (Insights, error)
}

// Enrichment is the outcome of one Enrich call. Present is false when a gate
// rejected the track; Reason says which.
type Enrichment struct {
	Present  bool
	Reason   string
	Lyrics   string
	Insights Insights
}

// Enricher runs the lyric pipeline.
type Enricher struct {
	transcriber      Transcriber
	themes           ThemeExtractor
	minVocalRMS      float64
	minTranscriptLen int
	logger           *slog.Logger
}

// Option customizes an Enricher.
type Option func(*Enricher)

// WithMinVocalRMS sets the loudness gate.
func WithMinVocalRMS(v float64) Option {
	return func(e *Enricher) {
		if v > 0 {
			e.minVocalRMS = v
		}
	}
}

// WithMinTranscriptLength sets the transcript length gate, in characters.
func WithMinTranscriptLength(n int) Option {
	return func(e *Enricher) {
		if n > 0 {
			e.minTranscriptLen = n
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Enricher) { e.logger = logging.NewComponentLogger(logger, "lyrics") }
}

// NewEnricher builds an Enricher from its two collaborators.
func NewEnricher(transcriber Transcriber, themes ThemeExtractor, opts ...Option) *Enricher {
	e := &Enricher{
		transcriber:      transcriber,
		themes:           themes,
		minVocalRMS:      defaultMinVocalRMS,
		minTranscriptLen: defaultMinTranscriptLen,
		logger:           logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enrich transcribes path and analyzes its lyrics. Gate rejections return a
// non-present Enrichment and no error.
func (e *Enricher) Enrich(ctx context.Context, path string, bundle features.Bundle) (Enrichment, error) {
	const op = "lyrics enrich"
	if e == nil || e.transcriber == nil || e.themes == nil {
		return Enrichment{}, services.Wrap(services.ErrConfiguration, "lyrics", op, "transcriber and theme extractor required", nil)
	}
	logger := logging.WithContext(ctx, e.logger)
	if !(bundle.Energy.RMSMean > e.minVocalRMS) {
		logger.Debug("lyrics skipped", logging.String("reason", ReasonInstrumental),
			logging.Float64("rms_mean", bundle.Energy.RMSMean))
		return Enrichment{Reason: ReasonInstrumental}, nil
	}

	transcript, err := e.transcriber.Transcribe(ctx, path)
	if err != nil {
		return Enrichment{}, services.Wrap(services.ErrBackend, "lyrics", op, "transcription failed", err)
	}
	text := strings.TrimSpace(transcript.Text)
	if utf8.RuneCountInString(text) < e.minTranscriptLen {
		logger.Debug("lyrics skipped", logging.String("reason", ReasonNoText),
			logging.Int("transcript_chars", utf8.RuneCountInString(text)))
		return Enrichment{Reason: ReasonNoText}, nil
	}

	insights, err := e.themes.ExtractThemes(ctx, excerpt(text, themeExcerptRunes))
	if err != nil {
		return Enrichment{}, services.Wrap(services.ErrBackend, "lyrics", op, "theme extraction failed", err)
	}
	insights.Language = language.Resolve(insights.Language, transcript.Language)

	logger.Debug("lyrics analyzed",
		logging.Int("transcript_chars", utf8.RuneCountInString(text)),
		logging.Strings("themes", insights.Themes),
		logging.String("language", insights.Language),
	)
	return Enrichment{Present: true, Lyrics: text, Insights: insights}, nil
}

func excerpt(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit])
}
