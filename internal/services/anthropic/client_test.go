package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"trackmeta/internal/services/llm"
)

func TestCompleteJSONSendsHeadersAndJoinsText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "key" || r.Header.Get("anthropic-version") != apiVersion {
			t.Errorf("unexpected headers %v", r.Header)
		}
		var req messagesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.System != "system" || req.Messages[0].Content != "user" || req.Model != "claude-test" {
			t.Errorf("unexpected request %+v", req)
		}
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"{\"ok\":"},{"type":"text","text":"true}"}],"stop_reason":"end_turn"}`))
	}))
	defer server.Close()

	client := NewClient("key", WithBaseURL(server.URL), WithModel("claude-test"))
	content, err := client.CompleteJSON(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("CompleteJSON returned error: %v", err)
	}
	if content != `{"ok":true}` {
		t.Fatalf("expected joined text blocks, got %q", content)
	}
}

func TestHealthCheckAsksForOK(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req messagesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Messages) != 1 || !strings.Contains(req.Messages[0].Content, `{"ok":true}`) {
			t.Errorf("unexpected health request %+v", req)
		}
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"{\"ok\":true}"}],"stop_reason":"end_turn"}`))
	}))
	defer server.Close()

	client := NewClient("key", WithBaseURL(server.URL), WithModel("claude-test"))
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}

func TestOverloadedIsTransient(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(529)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"overloaded_error"}}`))
	}))
	defer server.Close()

	client := NewClient("key", WithBaseURL(server.URL), WithRetryPolicy(llm.RetryPolicy{Attempts: 2, Sleeper: func(time.Duration) {}}))
	_, err := client.CompleteJSON(context.Background(), "s", "u")
	var statusErr *llm.StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != 529 {
		t.Fatalf("expected 529 status error, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected retry on overload, got %d calls", calls)
	}
}

func TestEmptyContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"content":[],"stop_reason":"max_tokens"}`))
	}))
	defer server.Close()

	client := NewClient("key", WithBaseURL(server.URL), WithRetryPolicy(llm.RetryPolicy{Attempts: 1}))
	_, err := client.CompleteJSON(context.Background(), "s", "u")
	var emptyErr *llm.EmptyContentError
	if !errors.As(err, &emptyErr) || emptyErr.FinishReason != "max_tokens" {
		t.Fatalf("expected empty content error, got %v", err)
	}
}
