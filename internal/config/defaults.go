package config

const (
	defaultLogDir           = "~/.local/share/trackmeta/logs"
	defaultCacheDir         = "~/.cache/trackmeta"
	defaultWhisperXCacheDir = "~/.cache/trackmeta/whisperx"
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"

	defaultMode                   = "thorough"
	defaultBudgetSeconds          = 30.0
	defaultSampleRate             = 22050
	defaultLeadInSeconds          = 30.0
	defaultLeadInThresholdSeconds = 60.0
	defaultWindowSeconds          = 120.0
	defaultWindowThresholdSeconds = 180.0
	defaultLowWaterSeconds        = 3.0
	defaultClassifyFloorSeconds   = 5.0
	defaultLyricsMinSeconds       = 10.0
	defaultStageMarginSeconds     = 1.0
	defaultExtractionGraceSeconds = 1.0

	defaultRequestTimeoutSeconds = 20
	defaultMaxAttempts           = 3
	defaultBackoffInitialMillis  = 1000
	defaultBackoffMaxMillis      = 8000
	defaultMinVotesFast          = 1
	defaultMinVotesThorough      = 2

	defaultGroqBaseURL       = "https://api.groq.com/openai/v1/chat/completions"
	defaultGroqModel         = "llama-3.3-70b-versatile"
	defaultGeminiBaseURL     = "https://generativelanguage.googleapis.com/v1beta"
	defaultGeminiModel       = "gemini-2.0-flash"
	defaultAnthropicBaseURL  = "https://api.anthropic.com/v1/messages"
	defaultAnthropicModel    = "claude-sonnet-4-5"
	defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1/chat/completions"
	defaultOpenRouterModel   = "meta-llama/llama-3.3-70b-instruct"
	defaultOpenRouterReferer = "https://github.com/trackmeta/trackmeta"
	defaultOpenRouterTitle   = "trackmeta"
	defaultDeepSeekBaseURL   = "https://api.deepseek.com/chat/completions"
	defaultDeepSeekModel     = "deepseek-chat"

	defaultTranscriber            = TranscriberAPI
	defaultTranscriptionBaseURL   = "https://api.groq.com/openai/v1/audio/transcriptions"
	defaultTranscriptionModel     = "whisper-large-v3"
	defaultTranscriptionMaxMB     = 24
	defaultWhisperXModel          = "large-v3-turbo"
	defaultThemeProvider          = ProviderGroq
	defaultLyricsMinVocalRMS      = 0.1
	defaultLyricsMinTranscriptLen = 20

	defaultCacheFile    = "analysis_cache.db"
	defaultBatchWorkers = 2
)

// Provider names recognised in the [providers] table.
const (
	ProviderGroq       = "groq"
	ProviderGemini     = "gemini"
	ProviderAnthropic  = "anthropic"
	ProviderOpenRouter = "openrouter"
	ProviderDeepSeek   = "deepseek"
)

// Transcriber names accepted in lyrics.transcriber.
const (
	TranscriberAPI      = "api"
	TranscriberWhisperX = "whisperx"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir:           defaultLogDir,
			CacheDir:         defaultCacheDir,
			WhisperXCacheDir: defaultWhisperXCacheDir,
		},
		Analysis: Analysis{
			Mode:                   defaultMode,
			BudgetSeconds:          defaultBudgetSeconds,
			SampleRate:             defaultSampleRate,
			LeadInSeconds:          defaultLeadInSeconds,
			LeadInThresholdSeconds: defaultLeadInThresholdSeconds,
			WindowSeconds:          defaultWindowSeconds,
			WindowThresholdSeconds: defaultWindowThresholdSeconds,
			LowWaterSeconds:        defaultLowWaterSeconds,
			ClassifyFloorSeconds:   defaultClassifyFloorSeconds,
			LyricsMinSeconds:       defaultLyricsMinSeconds,
			StageMarginSeconds:     defaultStageMarginSeconds,
			ExtractionGraceSeconds: defaultExtractionGraceSeconds,
		},
		Consensus: Consensus{
			RequestTimeoutSeconds: defaultRequestTimeoutSeconds,
			MaxAttempts:           defaultMaxAttempts,
			BackoffInitialMillis:  defaultBackoffInitialMillis,
			BackoffMaxMillis:      defaultBackoffMaxMillis,
			MinVotesFast:          defaultMinVotesFast,
			MinVotesThorough:      defaultMinVotesThorough,
		},
		Providers: Providers{
			Groq:      Provider{BaseURL: defaultGroqBaseURL, Model: defaultGroqModel},
			Gemini:    Provider{BaseURL: defaultGeminiBaseURL, Model: defaultGeminiModel},
			Anthropic: Provider{BaseURL: defaultAnthropicBaseURL, Model: defaultAnthropicModel},
			OpenRouter: Provider{
				BaseURL: defaultOpenRouterBaseURL,
				Model:   defaultOpenRouterModel,
				Referer: defaultOpenRouterReferer,
				Title:   defaultOpenRouterTitle,
			},
			DeepSeek: Provider{BaseURL: defaultDeepSeekBaseURL, Model: defaultDeepSeekModel},
		},
		Lyrics: Lyrics{
			Transcriber:         defaultTranscriber,
			BaseURL:             defaultTranscriptionBaseURL,
			Model:               defaultTranscriptionModel,
			MaxUploadMB:         defaultTranscriptionMaxMB,
			WhisperXModel:       defaultWhisperXModel,
			ThemeProvider:       defaultThemeProvider,
			MinVocalRMS:         defaultLyricsMinVocalRMS,
			MinTranscriptLength: defaultLyricsMinTranscriptLen,
		},
		Cache: Cache{
			Enabled: true,
		},
		Batch: Batch{
			Workers: defaultBatchWorkers,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
