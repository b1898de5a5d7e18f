package consensus

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"trackmeta/internal/features"
	"trackmeta/internal/logging"
	"trackmeta/internal/services"
	"trackmeta/internal/services/llm"
)

// Backend is one external classification provider. Classify returns the raw
// JSON answer; the engine owns parsing and retries.
type Backend interface {
	Name() string
	Classify(ctx context.Context, prompt Prompt) (string, error)
}

// FallbackFunc classifies from features alone.
type FallbackFunc func(features.Bundle) Result

const defaultCallTimeout = 20 * time.Second

// Engine dispatches backends and votes over their answers. It keeps no
// per-call state, so one Engine serves concurrent analyses.
type Engine struct {
	sets     map[Mode][]Backend
	minVotes map[Mode]int
	retry    llm.RetryPolicy
	fallback FallbackFunc
	logger   *slog.Logger
}

// Option customizes an Engine.
type Option func(*Engine)

// WithBackends sets the backends polled in mode, in tie-break order.
func WithBackends(mode Mode, backends ...Backend) Option {
	return func(e *Engine) { e.sets[mode] = backends }
}

// WithMinVotes sets how many valid votes mode needs before voting.
func WithMinVotes(mode Mode, n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.minVotes[mode] = n
		}
	}
}

// WithRetryPolicy overrides per-call retry and timeout behaviour.
func WithRetryPolicy(policy llm.RetryPolicy) Option {
	return func(e *Engine) { e.retry = policy }
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logging.NewComponentLogger(logger, "consensus") }
}

// New builds an Engine. fallback is required and is used whenever voting
// cannot produce a usable answer.
func New(fallback FallbackFunc, opts ...Option) *Engine {
	retry := llm.DefaultRetryPolicy()
	retry.AttemptTimeout = defaultCallTimeout
	e := &Engine{
		sets:     make(map[Mode][]Backend),
		minVotes: map[Mode]int{ModeFast: 1, ModeThorough: 2},
		retry:    retry,
		fallback: fallback,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Backends returns the backends polled in mode.
func (e *Engine) Backends(mode Mode) []Backend {
	return e.sets[mode]
}

// Classify polls every backend for mode and returns the voted Result. It
// never fails: errors reduce the vote count and, in the limit, select the
// fallback.
func (e *Engine) Classify(ctx context.Context, bundle features.Bundle, hints Hints, mode Mode) Result {
	backends := e.sets[mode]
	logger := logging.WithContext(ctx, e.logger)
	if len(backends) == 0 {
		logging.WarnWithContext(logger, "no classifier backends configured", "consensus_no_backends",
			logging.String("mode", string(mode)),
			logging.String(logging.FieldErrorHint, "set provider API keys in config or environment"),
		)
		return e.useFallback(bundle)
	}
	votes := e.Dispatch(ctx, backends, BuildPrompt(bundle, hints))
	return e.Decide(ctx, bundle, votes, mode)
}

// Dispatch runs every backend concurrently and returns one Vote per backend in
// input order. Calls still running when ctx ends are reported as timed out;
// their late answers are dropped.
func (e *Engine) Dispatch(ctx context.Context, backends []Backend, prompt Prompt) []Vote {
	type indexed struct {
		idx  int
		vote Vote
	}
	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan indexed, len(backends))
	for i, b := range backends {
		go func() {
			results <- indexed{idx: i, vote: e.call(callCtx, b, prompt)}
		}()
	}

	votes := make([]Vote, len(backends))
	done := make([]bool, len(backends))
	for received := 0; received < len(backends); received++ {
		select {
		case r := <-results:
			votes[r.idx] = r.vote
			done[r.idx] = true
		case <-ctx.Done():
			for i, b := range backends {
				if !done[i] {
					votes[i] = Vote{
						Provider: b.Name(),
						Err:      services.Wrap(services.ErrTimeout, "consensus", "dispatch", "stage deadline reached", ctx.Err()),
					}
				}
			}
			return votes
		}
	}
	return votes
}

func (e *Engine) call(ctx context.Context, b Backend, prompt Prompt) (vote Vote) {
	name := b.Name()
	ctx = services.WithProvider(ctx, name)
	logger := logging.WithContext(ctx, e.logger)
	started := time.Now()
	attempts := 0
	defer func() {
		if r := recover(); r != nil {
			vote = Vote{Provider: name, Attempts: attempts, Err: services.Wrap(services.ErrBackend, "consensus", "classify", fmt.Sprintf("backend panic: %v", r), nil)}
		}
	}()

	policy := e.retry
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		logger.Debug("retrying classifier call",
			logging.Int("attempt", attempt),
			logging.Duration("delay", delay),
			logging.Error(err),
		)
	}
	err := policy.Do(ctx, func(attemptCtx context.Context) error {
		attempts++
		raw, err := b.Classify(attemptCtx, prompt)
		if err != nil {
			return err
		}
		parsed, err := ParseVote(name, raw)
		if err != nil {
			return services.Wrap(services.ErrTransient, "consensus", "parse", name, err)
		}
		vote = parsed
		return nil
	})
	if err != nil {
		logger.Info("classifier call failed",
			logging.Int("attempts", attempts),
			logging.Duration("elapsed", time.Since(started)),
			logging.Error(err),
		)
		return Vote{Provider: name, Attempts: attempts, Err: err}
	}
	vote.Attempts = attempts
	logger.Debug("classifier vote received",
		logging.String("main_genre", vote.MainGenre),
		logging.Int("attempts", attempts),
		logging.Duration("elapsed", time.Since(started)),
	)
	return vote
}

// Decide turns votes into a Result following the quorum rules for mode.
func (e *Engine) Decide(ctx context.Context, bundle features.Bundle, votes []Vote, mode Mode) Result {
	logger := logging.WithContext(ctx, e.logger)
	var valid []Vote
	for _, v := range votes {
		if v.Valid() {
			valid = append(valid, v)
		}
	}
	minVotes := e.minVotes[mode]
	if minVotes <= 0 {
		minVotes = 1
	}

	var result Result
	switch {
	case len(valid) == 0:
		logging.WarnWithContext(logger, "no classifier produced a vote", "consensus_no_votes",
			logging.Int("backends", len(votes)),
			logging.String(logging.FieldImpact, "using feature-based fallback classification"),
		)
		return e.useFallback(bundle)
	case len(valid) == 1 || len(valid) < minVotes:
		logger.Info("using single classifier vote",
			logging.String(logging.FieldProvider, valid[0].Provider),
			logging.Int("valid_votes", len(valid)),
			logging.Int("min_votes", minVotes),
		)
		result = FromVote(valid[0])
	default:
		result = Tally(valid)
	}

	if strings.EqualFold(strings.TrimSpace(result.MainGenre), Unknown) {
		logging.WarnWithContext(logger, "classifiers settled on Unknown genre", "consensus_unknown_genre",
			logging.Int("valid_votes", len(valid)),
			logging.String(logging.FieldImpact, "using feature-based fallback classification"),
		)
		return e.useFallback(bundle)
	}
	logger.Info("consensus reached",
		logging.String("main_genre", result.MainGenre),
		logging.String("method", string(result.Method)),
		logging.Int("valid_votes", len(valid)),
		logging.Float64("agreement", result.AgreementRate),
		logging.Float64("confidence", result.Confidence),
	)
	return result
}

// Fallback runs the fallback classifier directly.
func (e *Engine) Fallback(bundle features.Bundle) Result {
	return e.useFallback(bundle)
}

func (e *Engine) useFallback(bundle features.Bundle) Result {
	r := e.fallback(bundle)
	r.Method = MethodFallback
	r.Sources = []string{}
	r.VoteCount = 0
	return r
}
