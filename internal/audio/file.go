package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"trackmeta/internal/media/ffprobe"
	"trackmeta/internal/services"
)

// FileSource decodes an audio file through ffmpeg.
type FileSource struct {
	path    string
	ffmpeg  string
	ffprobe string
}

// FileOption customizes a FileSource.
type FileOption func(*FileSource)

// WithBinaries overrides the ffmpeg and ffprobe executables.
func WithBinaries(ffmpegBinary, ffprobeBinary string) FileOption {
	return func(s *FileSource) {
		if ffmpegBinary = strings.TrimSpace(ffmpegBinary); ffmpegBinary != "" {
			s.ffmpeg = ffmpegBinary
		}
		if ffprobeBinary = strings.TrimSpace(ffprobeBinary); ffprobeBinary != "" {
			s.ffprobe = ffprobeBinary
		}
	}
}

// NewFileSource returns a Source for path.
func NewFileSource(path string, opts ...FileOption) *FileSource {
	s := &FileSource{path: path, ffmpeg: "ffmpeg", ffprobe: "ffprobe"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *FileSource) Name() string { return filepath.Base(s.path) }

func (s *FileSource) Path() string { return s.path }

// Duration probes the file with ffprobe, or the MP3 decoder when ffprobe is missing.
func (s *FileSource) Duration(ctx context.Context) (float64, error) {
	if _, err := os.Stat(s.path); err != nil {
		return 0, services.Wrap(services.ErrDecode, "audio", "stat", s.path, err)
	}
	result, err := ffprobe.Inspect(ctx, s.ffprobe, s.path)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) && isMP3(s.path) {
			return mp3Duration(s.path)
		}
		return 0, services.Wrap(services.ErrDecode, "audio", "ffprobe", s.path, err)
	}
	duration := result.DurationSeconds()
	if duration <= 0 {
		return 0, services.Wrap(services.ErrDecode, "audio", "ffprobe", "no duration reported", nil)
	}
	return duration, nil
}

// Decode runs ffmpeg to produce mono 32-bit float PCM at sampleRate.
func (s *FileSource) Decode(ctx context.Context, sampleRate int, span Span) ([]float64, error) {
	args := []string{"-hide_banner", "-v", "error", "-nostdin"}
	if span.Offset > 0 {
		args = append(args, "-ss", formatSeconds(span.Offset))
	}
	if span.Length > 0 {
		args = append(args, "-t", formatSeconds(span.Length))
	}
	args = append(args,
		"-i", s.path,
		"-vn",
		"-ac", "1",
		"-ar", strconv.Itoa(sampleRate),
		"-f", "f32le",
		"pipe:1",
	)
	cmd := exec.CommandContext(ctx, s.ffmpeg, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) && isMP3(s.path) {
			return decodeMP3(ctx, s.path, sampleRate, span)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, services.Wrap(services.ErrDecode, "audio", "ffmpeg", strings.TrimSpace(stderr.String()), err)
	}
	samples, err := parseF32LE(stdout.Bytes())
	if err != nil {
		return nil, services.Wrap(services.ErrDecode, "audio", "ffmpeg", "parse pcm", err)
	}
	if len(samples) == 0 {
		return nil, services.Wrap(services.ErrDecode, "audio", "ffmpeg", "decoder produced no samples", nil)
	}
	return samples, nil
}

func parseF32LE(raw []byte) ([]float64, error) {
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("unexpected byte length %d", len(raw))
	}
	samples := make([]float64, len(raw)/4)
	for i := range samples {
		v := math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			v = 0
		}
		samples[i] = float64(v)
	}
	return samples, nil
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func isMP3(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".mp3")
}
