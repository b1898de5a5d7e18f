package whisperx

// Config captures runtime settings for WhisperX operations.
type Config struct {
	// Model is the WhisperX model to use (e.g., "large-v3-turbo").
	Model string
	// CUDAEnabled enables GPU acceleration.
	CUDAEnabled bool
	// VADMethod selects the voice activity detection method ("silero" or "pyannote").
	VADMethod string
	// HFToken is the Hugging Face token for pyannote VAD.
	HFToken string
	// ModelDir holds downloaded models. Concurrent runs serialize on a lock file inside it.
	ModelDir string
	// ClipSeconds bounds how much of a track is transcribed. Zero uses DefaultClipSeconds.
	ClipSeconds int
}

// WhisperX configuration constants.
const (
	DefaultModel       = "large-v3-turbo"
	DefaultClipSeconds = 180
	CUDAIndexURL       = "https://download.pytorch.org/whl/cu128"
	PypiIndexURL       = "https://pypi.org/simple"
	BatchSize          = "4"
	ChunkSize          = "15"
	VADOnset           = "0.08"
	VADOffset          = "0.07"
	BeamSize           = "5"
	Temperature        = "0.0"
	OutputFormat       = "json"
	CPUDevice          = "cpu"
	CUDADevice         = "cuda"
	CPUComputeType     = "int8"
	VADMethodPyannote  = "pyannote"
	VADMethodSilero    = "silero"
	lockFileName       = ".whisperx.lock"
)

// Command names for external tools.
const (
	UVXCommand    = "uvx"
	FFmpegCommand = "ffmpeg"
)
