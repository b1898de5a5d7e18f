package transcribe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"trackmeta/internal/services"
	"trackmeta/internal/services/llm"
)

func writeAudio(t *testing.T, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "track.mp3")
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	return path
}

func TestTranscribeUploadsMultipartForm(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("missing bearer token")
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse form: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if got := r.FormValue("model"); got != "whisper-test" {
			t.Errorf("unexpected model %q", got)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("missing file part: %v", err)
		} else {
			file.Close()
			if header.Filename != "track.mp3" || header.Size != 512 {
				t.Errorf("unexpected file part %s (%d bytes)", header.Filename, header.Size)
			}
		}
		_, _ = w.Write([]byte(`{"text":"  we ride all night under neon lights  ","language":"english"}`))
	}))
	defer server.Close()

	client := NewClient("key", server.URL, WithModel("whisper-test"))
	result, err := client.Transcribe(context.Background(), writeAudio(t, 512))
	if err != nil {
		t.Fatalf("Transcribe returned error: %v", err)
	}
	if result.Text != "we ride all night under neon lights" || result.Language != "english" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestTranscribeRejectsLargeFiles(t *testing.T) {
	client := NewClient("key", "http://127.0.0.1:1", WithMaxUploadMB(1))
	_, err := client.Transcribe(context.Background(), writeAudio(t, 2<<20))
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestTranscribeRequiresKey(t *testing.T) {
	client := NewClient("", "http://127.0.0.1:1")
	_, err := client.Transcribe(context.Background(), writeAudio(t, 8))
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestTranscribeRetriesServerErrors(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"text":"hello there from the chorus line"}`))
	}))
	defer server.Close()

	client := NewClient("key", server.URL, WithRetryPolicy(llm.RetryPolicy{Attempts: 2, Sleeper: func(_ time.Duration) {}}))
	result, err := client.Transcribe(context.Background(), writeAudio(t, 16))
	if err != nil {
		t.Fatalf("Transcribe returned error: %v", err)
	}
	if calls != 2 || result.Text != "hello there from the chorus line" {
		t.Fatalf("calls=%d result=%+v", calls, result)
	}
}
