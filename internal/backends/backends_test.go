package backends_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"trackmeta/internal/backends"
	"trackmeta/internal/config"
	"trackmeta/internal/consensus"
	"trackmeta/internal/fallback"
	"trackmeta/internal/features"
	"trackmeta/internal/services"
	"trackmeta/internal/testsupport"
)

func chatServer(t *testing.T, answer string, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Header.Get("Authorization") != "Bearer groq-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Messages) != 2 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		resp := map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": answer}}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func geminiServer(t *testing.T, answer string, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if !strings.HasSuffix(r.URL.Path, ":generateContent") || r.Header.Get("x-goog-api-key") != "gem-key" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		resp := map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{"parts": []any{map[string]any{"text": answer}}},
			}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestBuildSkipsProvidersWithoutKeys(t *testing.T) {
	cfg := testsupport.NewConfig(t,
		testsupport.WithProviderKey(config.ProviderGroq, "groq-key"),
		testsupport.WithProviderKey(config.ProviderAnthropic, "anthropic-key"),
	)
	set, err := backends.Build(cfg, backends.Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(set.Fast) != 1 || set.Fast[0].Name() != config.ProviderGroq {
		t.Fatalf("unexpected fast set: %v", names(set.Fast))
	}
	if got := names(set.Thorough); strings.Join(got, ",") != "groq,anthropic" {
		t.Fatalf("unexpected thorough set: %v", got)
	}
	if strings.Join(set.Disabled, ",") != "gemini,openrouter,deepseek" {
		t.Fatalf("unexpected disabled list: %v", set.Disabled)
	}
}

func TestNewCompleterRejectsUnknownProvider(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	_, err := backends.NewCompleter(cfg, "mistral", backends.Options{})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestUnconfiguredCompleterFailsPermanently(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	client, err := backends.NewCompleter(cfg, config.ProviderDeepSeek, backends.Options{})
	if err != nil {
		t.Fatalf("NewCompleter: %v", err)
	}
	_, err = backends.Wrap(client).Classify(context.Background(), consensus.Prompt{System: "s", User: "u"})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestEngineFromConfigVotesAcrossProviders(t *testing.T) {
	var groqCalls, geminiCalls atomic.Int32
	vote := testsupport.VoteJSON(t, testsupport.SampleFields("Deep House", 0.9))
	groq := chatServer(t, vote, &groqCalls)
	gem := geminiServer(t, vote, &geminiCalls)

	cfg := testsupport.NewConfig(t,
		testsupport.WithProviderKey(config.ProviderGroq, "groq-key"),
		testsupport.WithProviderURL(config.ProviderGroq, groq.URL),
		testsupport.WithProviderKey(config.ProviderGemini, "gem-key"),
		testsupport.WithProviderURL(config.ProviderGemini, gem.URL),
	)
	engine, err := backends.NewEngine(cfg, fallback.Classify, nil, backends.Options{})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	result := engine.Classify(context.Background(), features.Bundle{}, consensus.Hints{}, consensus.ModeThorough)
	if result.Method != consensus.MethodConsensus {
		t.Fatalf("expected consensus, got %s (%+v)", result.Method, result)
	}
	if result.MainGenre != "Deep House" || result.VoteCount != 2 {
		t.Fatalf("unexpected result: genre=%q votes=%d", result.MainGenre, result.VoteCount)
	}
	if strings.Join(result.Sources, ",") != "groq,gemini" {
		t.Fatalf("unexpected sources: %v", result.Sources)
	}
	if groqCalls.Load() != 1 || geminiCalls.Load() != 1 {
		t.Fatalf("expected one call per provider, got groq=%d gemini=%d", groqCalls.Load(), geminiCalls.Load())
	}
}

func TestEngineFromConfigRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	vote := testsupport.VoteJSON(t, testsupport.SampleFields("Techno", 0.7))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": vote}}},
		})
	}))
	defer srv.Close()

	cfg := testsupport.NewConfig(t,
		testsupport.WithProviderKey(config.ProviderGroq, "groq-key"),
		testsupport.WithProviderURL(config.ProviderGroq, srv.URL),
	)
	engine, err := backends.NewEngine(cfg, fallback.Classify, nil, backends.Options{})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	result := engine.Classify(context.Background(), features.Bundle{}, consensus.Hints{}, consensus.ModeFast)
	if result.Method != consensus.MethodSingle || result.MainGenre != "Techno" {
		t.Fatalf("unexpected result: %s %q", result.Method, result.MainGenre)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected engine-level retry, got %d calls", calls.Load())
	}
}

func TestEngineWithoutCredentialsFallsBack(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	engine, err := backends.NewEngine(cfg, fallback.Classify, nil, backends.Options{})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	result := engine.Classify(context.Background(), features.Bundle{}, consensus.Hints{}, consensus.ModeThorough)
	if result.Method != consensus.MethodFallback {
		t.Fatalf("expected fallback, got %s", result.Method)
	}
}

func TestRetryPolicyFromConfig(t *testing.T) {
	policy := backends.RetryPolicy(config.Default().Consensus)
	if policy.Attempts != 3 || policy.BaseDelay.Seconds() != 1 || policy.MaxDelay.Seconds() != 8 || policy.AttemptTimeout.Seconds() != 20 {
		t.Fatalf("unexpected policy: %+v", policy)
	}
}

func names(list []consensus.Backend) []string {
	out := make([]string, 0, len(list))
	for _, b := range list {
		out = append(out, b.Name())
	}
	return out
}

func TestIsFast(t *testing.T) {
	for name, want := range map[string]bool{
		config.ProviderGroq:      true,
		" Gemini ":               true,
		config.ProviderAnthropic: false,
		config.ProviderDeepSeek:  false,
		"mistral":                false,
	} {
		if got := backends.IsFast(name); got != want {
			t.Fatalf("IsFast(%q) = %v, want %v", name, got, want)
		}
	}
}
