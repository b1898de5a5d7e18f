package lyrics

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"trackmeta/internal/backends"
	"trackmeta/internal/config"
	"trackmeta/internal/services"
	"trackmeta/internal/services/transcribe"
	"trackmeta/internal/services/whisperx"
)

// Transcriber names accepted in lyrics.transcriber.
const (
	TranscriberAPI      = config.TranscriberAPI
	TranscriberWhisperX = config.TranscriberWhisperX
)

type apiTranscriber struct {
	client *transcribe.Client
}

func (t apiTranscriber) Transcribe(ctx context.Context, path string) (Transcript, error) {
	result, err := t.client.Transcribe(ctx, path)
	if err != nil {
		return Transcript{}, err
	}
	return Transcript{Text: result.Text, Language: result.Language}, nil
}

type whisperxTranscriber struct {
	svc *whisperx.Service
}

func (t whisperxTranscriber) Transcribe(ctx context.Context, path string) (Transcript, error) {
	result, err := t.svc.Transcribe(ctx, path)
	if err != nil {
		return Transcript{}, err
	}
	return Transcript{Text: result.Text, Language: result.Language}, nil
}

// NewTranscriber builds the configured transcriber.
func NewTranscriber(cfg *config.Config, httpClient *http.Client) (Transcriber, error) {
	lc := cfg.Lyrics
	switch strings.ToLower(strings.TrimSpace(lc.Transcriber)) {
	case TranscriberWhisperX:
		return whisperxTranscriber{svc: whisperx.NewService(whisperx.Config{
			Model:       lc.WhisperXModel,
			CUDAEnabled: lc.WhisperXCUDAEnabled,
			HFToken:     lc.WhisperXHuggingFace,
			VADMethod:   vadMethod(lc.WhisperXHuggingFace),
			ModelDir:    cfg.Paths.WhisperXCacheDir,
		}, cfg.FFmpegBinary())}, nil
	case TranscriberAPI, "":
		opts := []transcribe.Option{
			transcribe.WithModel(lc.Model),
			transcribe.WithMaxUploadMB(lc.MaxUploadMB),
		}
		if httpClient != nil {
			opts = append(opts, transcribe.WithHTTPClient(httpClient))
		}
		return apiTranscriber{client: transcribe.NewClient(lc.APIKey, lc.BaseURL, opts...)}, nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "lyrics", "new transcriber", "unknown transcriber "+lc.Transcriber, nil)
	}
}

func vadMethod(hfToken string) string {
	if strings.TrimSpace(hfToken) != "" {
		return whisperx.VADMethodPyannote
	}
	return whisperx.VADMethodSilero
}

// NewFromConfig wires an Enricher from configuration. Theme extraction uses
// the provider named in lyrics.theme_provider.
func NewFromConfig(cfg *config.Config, logger *slog.Logger, httpClient *http.Client) (*Enricher, error) {
	transcriber, err := NewTranscriber(cfg, httpClient)
	if err != nil {
		return nil, err
	}
	client, err := backends.NewCompleter(cfg, cfg.Lyrics.ThemeProvider, backends.Options{HTTPClient: httpClient})
	if err != nil {
		return nil, err
	}
	return NewEnricher(transcriber, NewLLMThemeExtractor(client),
		WithMinVocalRMS(cfg.Lyrics.MinVocalRMS),
		WithMinTranscriptLength(cfg.Lyrics.MinTranscriptLength),
		WithLogger(logger),
	), nil
}
