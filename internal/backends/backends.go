package backends

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"trackmeta/internal/config"
	"trackmeta/internal/consensus"
	"trackmeta/internal/logging"
	"trackmeta/internal/services"
	"trackmeta/internal/services/anthropic"
	"trackmeta/internal/services/gemini"
	"trackmeta/internal/services/llm"
)

// Completer is the provider surface shared by every client package.
type Completer interface {
	Name() string
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	HealthCheck(ctx context.Context) error
}

// Backend adapts a Completer to consensus.Backend.
type Backend struct {
	client Completer
}

// Wrap adapts client.
func Wrap(client Completer) *Backend {
	return &Backend{client: client}
}

// Name returns the provider label.
func (b *Backend) Name() string { return b.client.Name() }

// Classify sends the prompt and returns the raw answer.
func (b *Backend) Classify(ctx context.Context, prompt consensus.Prompt) (string, error) {
	return b.client.CompleteJSON(ctx, prompt.System, prompt.User)
}

// HealthCheck pings the provider.
func (b *Backend) HealthCheck(ctx context.Context) error {
	return b.client.HealthCheck(ctx)
}

// fastProviders are polled in fast mode, in tie-break order.
var fastProviders = []string{config.ProviderGroq, config.ProviderGemini}

// IsFast reports whether the named provider is polled in fast mode.
func IsFast(name string) bool {
	return slices.Contains(fastProviders, strings.ToLower(strings.TrimSpace(name)))
}

// Options tune how clients are constructed.
type Options struct {
	HTTPClient *http.Client
}

// NewCompleter builds the client for a named provider. Providers without an
// API key return a client whose calls fail with services.ErrConfiguration.
func NewCompleter(cfg *config.Config, name string, opts Options) (Completer, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	settings, ok := cfg.Provider(name)
	if !ok {
		return nil, services.Wrap(services.ErrConfiguration, "", "backends", "unknown provider "+name, nil)
	}
	single := llm.RetryPolicy{Attempts: 1}
	switch name {
	case config.ProviderGemini:
		geminiOpts := []gemini.Option{
			gemini.WithBaseURL(settings.BaseURL),
			gemini.WithModel(settings.Model),
			gemini.WithRetryPolicy(single),
		}
		if opts.HTTPClient != nil {
			geminiOpts = append(geminiOpts, gemini.WithHTTPClient(opts.HTTPClient))
		}
		return gemini.NewClient(settings.APIKey, geminiOpts...), nil
	case config.ProviderAnthropic:
		anthropicOpts := []anthropic.Option{
			anthropic.WithBaseURL(settings.BaseURL),
			anthropic.WithModel(settings.Model),
			anthropic.WithRetryPolicy(single),
		}
		if opts.HTTPClient != nil {
			anthropicOpts = append(anthropicOpts, anthropic.WithHTTPClient(opts.HTTPClient))
		}
		return anthropic.NewClient(settings.APIKey, anthropicOpts...), nil
	default:
		llmOpts := []llm.Option{llm.WithRetryPolicy(single)}
		if opts.HTTPClient != nil {
			llmOpts = append(llmOpts, llm.WithHTTPClient(opts.HTTPClient))
		}
		return llm.NewClient(llm.Config{
			Provider:       name,
			APIKey:         settings.APIKey,
			BaseURL:        settings.BaseURL,
			Model:          settings.Model,
			Referer:        settings.Referer,
			Title:          settings.Title,
			TimeoutSeconds: cfg.Consensus.RequestTimeoutSeconds,
			Temperature:    0.3,
		}, llmOpts...), nil
	}
}

// Configured lists the providers that have an API key, in dispatch order.
func Configured(cfg *config.Config) []string {
	var names []string
	for _, name := range config.ProviderNames() {
		if settings, _ := cfg.Provider(name); strings.TrimSpace(settings.APIKey) != "" {
			names = append(names, name)
		}
	}
	return names
}

// Set is the backends available to one engine, keyed by mode.
type Set struct {
	Fast     []consensus.Backend
	Thorough []consensus.Backend
	Disabled []string
}

// Build constructs backends for every configured provider. Providers without
// credentials are reported in Disabled and left out of both modes.
func Build(cfg *config.Config, opts Options) (Set, error) {
	var set Set
	configured := make(map[string]bool)
	for _, name := range Configured(cfg) {
		configured[name] = true
	}
	for _, name := range config.ProviderNames() {
		if !configured[name] {
			set.Disabled = append(set.Disabled, name)
			continue
		}
		client, err := NewCompleter(cfg, name, opts)
		if err != nil {
			return Set{}, err
		}
		backend := Wrap(client)
		set.Thorough = append(set.Thorough, backend)
		if IsFast(name) {
			set.Fast = append(set.Fast, backend)
		}
	}
	return set, nil
}

// RetryPolicy derives the per-call retry policy from the consensus settings.
func RetryPolicy(c config.Consensus) llm.RetryPolicy {
	return llm.RetryPolicy{
		Attempts:       c.MaxAttempts,
		BaseDelay:      c.BackoffInitial(),
		MaxDelay:       c.BackoffMax(),
		AttemptTimeout: c.RequestTimeout(),
	}
}

// NewEngine wires a consensus engine from configuration.
func NewEngine(cfg *config.Config, fallback consensus.FallbackFunc, logger *slog.Logger, opts Options) (*consensus.Engine, error) {
	set, err := Build(cfg, opts)
	if err != nil {
		return nil, err
	}
	logger = logging.NewComponentLogger(logger, "backends")
	if len(set.Disabled) > 0 {
		logger.Info("classifier backends without credentials skipped",
			logging.Strings("providers", set.Disabled),
			logging.Int("enabled", len(set.Thorough)),
		)
	}
	return consensus.New(fallback,
		consensus.WithBackends(consensus.ModeFast, set.Fast...),
		consensus.WithBackends(consensus.ModeThorough, set.Thorough...),
		consensus.WithMinVotes(consensus.ModeFast, cfg.Consensus.MinVotesFast),
		consensus.WithMinVotes(consensus.ModeThorough, cfg.Consensus.MinVotesThorough),
		consensus.WithRetryPolicy(RetryPolicy(cfg.Consensus)),
		consensus.WithLogger(logger),
	), nil
}
