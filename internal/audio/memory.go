package audio

import (
	"context"
	"errors"

	"trackmeta/internal/services"
)

// PCMSource serves samples already held in memory.
type PCMSource struct {
	Label      string
	Samples    []float64
	SampleRate int
}

// NewPCMSource wraps mono samples recorded at sampleRate.
func NewPCMSource(label string, samples []float64, sampleRate int) *PCMSource {
	return &PCMSource{Label: label, Samples: samples, SampleRate: sampleRate}
}

func (s *PCMSource) Name() string { return s.Label }

func (s *PCMSource) Path() string { return "" }

func (s *PCMSource) Duration(context.Context) (float64, error) {
	if s.SampleRate <= 0 {
		return 0, services.Wrap(services.ErrDecode, "audio", "duration", "sample rate must be positive", nil)
	}
	return float64(len(s.Samples)) / float64(s.SampleRate), nil
}

func (s *PCMSource) Decode(ctx context.Context, sampleRate int, span Span) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.SampleRate <= 0 {
		return nil, services.Wrap(services.ErrDecode, "audio", "decode", "sample rate must be positive", nil)
	}
	window := Slice(s.Samples, s.SampleRate, span)
	if len(window) == 0 {
		return nil, services.Wrap(services.ErrDecode, "audio", "decode", s.Label, errors.New("no samples"))
	}
	out := make([]float64, len(window))
	copy(out, window)
	return Resample(out, s.SampleRate, sampleRate), nil
}
