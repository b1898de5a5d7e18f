package whisperx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	langpkg "trackmeta/internal/language"
	"trackmeta/internal/services"
)

const lockRetryDelay = 250 * time.Millisecond

// Service provides WhisperX transcription capabilities.
type Service struct {
	cfg           Config
	ffmpegBinary  string
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewService creates a WhisperX service with the given configuration.
func NewService(cfg Config, ffmpegBinary string) *Service {
	if ffmpegBinary == "" {
		ffmpegBinary = FFmpegCommand
	}
	return &Service{
		cfg:          cfg,
		ffmpegBinary: ffmpegBinary,
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Service) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	s.commandRunner = runner
}

// Model returns the configured model name for logging.
func (s *Service) Model() string {
	if s.cfg.Model != "" {
		return s.cfg.Model
	}
	return DefaultModel
}

// CUDAEnabled returns whether CUDA is enabled.
func (s *Service) CUDAEnabled() bool {
	return s.cfg.CUDAEnabled
}

// run executes a command, using the custom runner if set.
func (s *Service) run(ctx context.Context, name string, args ...string) error {
	if s.commandRunner != nil {
		return s.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec

	// Torch 2.6 changed torch.load default to weights_only=true, breaking WhisperX/pyannote.
	if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
		cmd.Env = append(os.Environ(), "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
	}

	if output, err := cmd.CombinedOutput(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return services.Wrap(services.ErrExternalTool, "lyrics", name, "binary not found", err)
		}
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// Result contains the transcript of one clip.
type Result struct {
	// Text is the plain text transcription.
	Text string
	// Language is the ISO 639-1 code WhisperX detected, if any.
	Language string
	// Segments are the timed transcript segments.
	Segments []Segment
}

// Transcribe extracts the leading clip of source and transcribes it.
func (s *Service) Transcribe(ctx context.Context, source string) (Result, error) {
	if strings.TrimSpace(source) == "" {
		return Result{}, services.Wrap(services.ErrValidation, "lyrics", "whisperx", "source path required", nil)
	}
	workDir, err := os.MkdirTemp("", "trackmeta-whisperx-*")
	if err != nil {
		return Result{}, fmt.Errorf("whisperx: create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	clip := filepath.Join(workDir, "clip.wav")
	clipSeconds := s.cfg.ClipSeconds
	if clipSeconds <= 0 {
		clipSeconds = DefaultClipSeconds
	}
	if err := s.run(ctx, s.ffmpegBinary, buildClipArgs(source, 0, clipSeconds, clip)...); err != nil {
		return Result{}, fmt.Errorf("whisperx: extract clip: %w", err)
	}

	unlock, err := s.lockModelDir(ctx)
	if err != nil {
		return Result{}, err
	}
	defer unlock()

	if err := s.run(ctx, UVXCommand, s.buildArgs(clip, workDir, "")...); err != nil {
		return Result{}, fmt.Errorf("whisperx: %w", err)
	}
	return loadResult(filepath.Join(workDir, "clip.json"))
}

// lockModelDir serializes runs that share a model directory.
func (s *Service) lockModelDir(ctx context.Context) (func(), error) {
	dir := strings.TrimSpace(s.cfg.ModelDir)
	if dir == "" {
		return func() {}, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("whisperx: ensure model dir: %w", err)
	}
	lock := flock.New(filepath.Join(dir, lockFileName))
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("whisperx: acquire model lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("whisperx: model lock %s busy", lock.Path())
	}
	return func() { _ = lock.Unlock() }, nil
}

// buildArgs constructs the uvx command arguments for WhisperX.
func (s *Service) buildArgs(source, outputDir, language string) []string {
	args := make([]string, 0, 40)

	if s.cfg.CUDAEnabled {
		args = append(args,
			"--index-url", CUDAIndexURL,
			"--extra-index-url", PypiIndexURL,
		)
	} else {
		args = append(args, "--index-url", PypiIndexURL)
	}

	args = append(args,
		"whisperx",
		source,
		"--model", s.Model(),
		"--batch_size", BatchSize,
		"--output_dir", outputDir,
		"--output_format", OutputFormat,
		"--chunk_size", ChunkSize,
		"--vad_onset", VADOnset,
		"--vad_offset", VADOffset,
		"--beam_size", BeamSize,
		"--temperature", Temperature,
		"--no_align",
	)
	if dir := strings.TrimSpace(s.cfg.ModelDir); dir != "" {
		args = append(args, "--model_dir", dir)
	}

	vadMethod := s.cfg.VADMethod
	if vadMethod == "" {
		vadMethod = VADMethodSilero
	}
	args = append(args, "--vad_method", vadMethod)
	if vadMethod == VADMethodPyannote && s.cfg.HFToken != "" {
		args = append(args, "--hf_token", s.cfg.HFToken)
	}

	if lang := langpkg.ToISO2(language); lang != "" {
		args = append(args, "--language", lang)
	}

	if s.cfg.CUDAEnabled {
		args = append(args, "--device", CUDADevice)
	} else {
		args = append(args, "--device", CPUDevice, "--compute_type", CPUComputeType)
	}

	return args
}

// Segment represents a transcribed segment from WhisperX JSON output.
type Segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// whisperXPayload is the JSON structure from WhisperX output.
type whisperXPayload struct {
	Segments []Segment `json:"segments"`
	Language string    `json:"language"`
}

// loadResult reads a WhisperX JSON file.
func loadResult(jsonPath string) (Result, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return Result{}, fmt.Errorf("whisperx: read output: %w", err)
	}
	var payload whisperXPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return Result{}, fmt.Errorf("parse whisperx json: %w", err)
	}
	parts := make([]string, 0, len(payload.Segments))
	for _, seg := range payload.Segments {
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return Result{
		Text:     strings.Join(parts, " "),
		Language: langpkg.ToISO2(payload.Language),
		Segments: payload.Segments,
	}, nil
}
