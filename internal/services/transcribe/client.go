// Package transcribe wraps OpenAI-compatible Whisper transcription endpoints
// (Groq by default).
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"trackmeta/internal/services"
	"trackmeta/internal/services/llm"
)

const (
	providerName       = "whisper-api"
	defaultModel       = "whisper-large-v3"
	defaultMaxBytes    = 24 << 20
	defaultHTTPTimeout = 60 * time.Second
)

// Result is one transcription.
type Result struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

// Client uploads audio files for transcription.
type Client struct {
	apiKey     string
	endpoint   string
	model      string
	maxBytes   int64
	httpClient *http.Client
	retry      llm.RetryPolicy
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithModel selects the transcription model.
func WithModel(model string) Option {
	return func(c *Client) {
		if model = strings.TrimSpace(model); model != "" {
			c.model = model
		}
	}
}

// WithMaxUploadMB caps the accepted file size.
func WithMaxUploadMB(mb int) Option {
	return func(c *Client) {
		if mb > 0 {
			c.maxBytes = int64(mb) << 20
		}
	}
}

// WithRetryPolicy overrides the retry policy.
func WithRetryPolicy(policy llm.RetryPolicy) Option {
	return func(c *Client) { c.retry = policy }
}

// NewClient constructs a client posting to endpoint.
func NewClient(apiKey, endpoint string, opts ...Option) *Client {
	c := &Client{
		apiKey:     strings.TrimSpace(apiKey),
		endpoint:   strings.TrimSpace(endpoint),
		model:      defaultModel,
		maxBytes:   defaultMaxBytes,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		retry:      llm.RetryPolicy{Attempts: 2},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Transcribe uploads the file at path and returns its text.
func (c *Client) Transcribe(ctx context.Context, path string) (Result, error) {
	const op = "transcribe"
	if c.apiKey == "" {
		return Result{}, services.Wrap(services.ErrConfiguration, "lyrics", op, "api key required", nil)
	}
	if c.endpoint == "" {
		return Result{}, services.Wrap(services.ErrConfiguration, "lyrics", op, "endpoint required", nil)
	}
	info, err := os.Stat(path)
	if err != nil {
		return Result{}, services.Wrap(services.ErrNotFound, "lyrics", op, "stat audio", err)
	}
	if info.Size() > c.maxBytes {
		return Result{}, services.Wrap(services.ErrValidation, "lyrics", op,
			fmt.Sprintf("file too large for transcription (%.1f MB > %d MB)", float64(info.Size())/(1<<20), c.maxBytes>>20), nil)
	}
	audio, err := os.ReadFile(path)
	if err != nil {
		return Result{}, services.Wrap(services.ErrNotFound, "lyrics", op, "read audio", err)
	}
	body, contentType, err := c.buildForm(filepath.Base(path), audio)
	if err != nil {
		return Result{}, fmt.Errorf("transcribe: build form: %w", err)
	}

	var result Result
	err = c.retry.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return services.Wrap(services.ErrConfiguration, "lyrics", op, "build request", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", contentType)
		payload, err := llm.Do(c.httpClient, req, providerName)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(payload, &result); err != nil {
			return services.Wrap(services.ErrTransient, "lyrics", op, "decode response", err)
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	result.Text = strings.TrimSpace(result.Text)
	result.Language = strings.TrimSpace(result.Language)
	return result, nil
}

func (c *Client) buildForm(filename string, audio []byte) ([]byte, string, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("file", filename)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, bytes.NewReader(audio)); err != nil {
		return nil, "", err
	}
	for key, value := range map[string]string{
		"model":           c.model,
		"response_format": "verbose_json",
		"temperature":     "0",
	} {
		if err := form.WriteField(key, value); err != nil {
			return nil, "", err
		}
	}
	if err := form.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), form.FormDataContentType(), nil
}
