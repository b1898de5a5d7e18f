package audio

import (
	"context"
	"math"
)

// Source is a decodable audio input.
type Source interface {
	// Name is a human label used in logs.
	Name() string
	// Path is the backing file, or "" for in-memory sources.
	Path() string
	// Duration reports the full length in seconds.
	Duration(ctx context.Context) (float64, error)
	// Decode returns mono samples in [-1, 1] at sampleRate covering span.
	Decode(ctx context.Context, sampleRate int, span Span) ([]float64, error)
}

// Span selects part of a source. A zero Length means "to the end".
type Span struct {
	Offset float64
	Length float64
}

// Window configures PlanSpan.
type Window struct {
	LeadInSeconds          float64
	LeadInThresholdSeconds float64
	WindowSeconds          float64
	WindowThresholdSeconds float64
}

// PlanSpan skips the lead-in on tracks longer than the lead-in threshold and
// caps the analyzed length on tracks longer than the window threshold.
func PlanSpan(duration float64, w Window) Span {
	var span Span
	if duration > w.LeadInThresholdSeconds && w.LeadInSeconds > 0 {
		span.Offset = w.LeadInSeconds
	}
	if duration > w.WindowThresholdSeconds && w.WindowSeconds > 0 {
		span.Length = w.WindowSeconds
	}
	return span
}

// Slice returns the samples covered by span at the given rate.
func Slice(samples []float64, rate int, span Span) []float64 {
	if rate <= 0 || len(samples) == 0 {
		return nil
	}
	start := min(int(math.Round(span.Offset*float64(rate))), len(samples))
	end := len(samples)
	if span.Length > 0 {
		end = min(start+int(math.Round(span.Length*float64(rate))), len(samples))
	}
	return samples[start:end]
}

// Resample converts samples between rates with linear interpolation.
func Resample(samples []float64, from, to int) []float64 {
	if from <= 0 || to <= 0 || from == to || len(samples) == 0 {
		return samples
	}
	ratio := float64(from) / float64(to)
	n := int(float64(len(samples)) / ratio)
	out := make([]float64, n)
	last := len(samples) - 1
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= last {
			out[i] = samples[last]
			continue
		}
		frac := pos - float64(idx)
		out[i] = samples[idx]*(1-frac) + samples[idx+1]*frac
	}
	return out
}
