// Package gemini wraps the Google Generative Language generateContent API.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"trackmeta/internal/services"
	"trackmeta/internal/services/llm"
)

const (
	providerName       = "gemini"
	defaultBaseURL     = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel       = "gemini-2.0-flash"
	defaultHTTPTimeout = 30 * time.Second
)

// Client wraps the Gemini generateContent endpoint.
type Client struct {
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	httpClient  *http.Client
	retry       llm.RetryPolicy
}

// Option customizes the Gemini client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the default API base (useful for tests/mocks).
func WithBaseURL(base string) Option {
	return func(c *Client) {
		if base = strings.TrimSpace(base); base != "" {
			c.baseURL = strings.TrimRight(base, "/")
		}
	}
}

// WithModel selects the model name.
func WithModel(model string) Option {
	return func(c *Client) {
		if model = strings.TrimSpace(model); model != "" {
			c.model = model
		}
	}
}

// WithRetryPolicy overrides the retry policy.
func WithRetryPolicy(policy llm.RetryPolicy) Option {
	return func(c *Client) {
		c.retry = policy
	}
}

// NewClient constructs a Gemini API client.
func NewClient(apiKey string, opts ...Option) *Client {
	client := &Client{
		apiKey:      strings.TrimSpace(apiKey),
		baseURL:     defaultBaseURL,
		model:       defaultModel,
		temperature: 0.2,
		httpClient:  &http.Client{Timeout: defaultHTTPTimeout},
		retry:       llm.DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Name returns the provider label.
func (c *Client) Name() string { return providerName }

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	Contents          []content        `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type generationConfig struct {
	Temperature      float64 `json:"temperature"`
	ResponseMimeType string  `json:"responseMimeType"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// CompleteJSON sends the prompts and returns the model's JSON text.
func (c *Client) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if c.apiKey == "" {
		return "", services.Wrap(services.ErrConfiguration, "", providerName, "api key required", nil)
	}
	payload := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: strings.TrimSpace(userPrompt)}}}},
		GenerationConfig: generationConfig{
			Temperature:      c.temperature,
			ResponseMimeType: "application/json",
		},
	}
	if system := strings.TrimSpace(systemPrompt); system != "" {
		payload.SystemInstruction = &content{Parts: []part{{Text: system}}}
	}
	var text string
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		text, err = c.generate(ctx, payload)
		return err
	})
	return text, err
}

// HealthCheck verifies the key and model respond.
func (c *Client) HealthCheck(ctx context.Context) error {
	text, err := c.CompleteJSON(ctx, "You must respond with JSON only.", `Respond with {"ok":true}`)
	if err != nil {
		return err
	}
	var parsed struct {
		OK bool `json:"ok"`
	}
	if err := llm.DecodeLLMJSON(text, &parsed); err != nil || !parsed.OK {
		return fmt.Errorf("gemini health: unexpected response %s", llm.SummarizeSnippet(text))
	}
	return nil
}

func (c *Client) generate(ctx context.Context, payload generateRequest) (string, error) {
	endpoint, err := url.JoinPath(c.baseURL, "models", c.model+":generateContent")
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "", providerName, "build url", err)
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("gemini request: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "", providerName, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	body, err := llm.Do(c.httpClient, req, providerName)
	if err != nil {
		var statusErr *llm.StatusError
		if errors.As(err, &statusErr) && statusErr.RetryAfter == 0 {
			statusErr.RetryAfter = quotaRetryDelay(body)
		}
		return "", err
	}

	var resp generateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", services.Wrap(services.ErrTransient, "", providerName, "decode response", err)
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", services.Wrap(services.ErrValidation, "", providerName, "prompt blocked: "+resp.PromptFeedback.BlockReason, nil)
	}
	var finishReason string
	for _, candidate := range resp.Candidates {
		if finishReason == "" {
			finishReason = candidate.FinishReason
		}
		var sb strings.Builder
		for _, p := range candidate.Content.Parts {
			sb.WriteString(p.Text)
		}
		if text := strings.TrimSpace(sb.String()); text != "" {
			return text, nil
		}
	}
	return "", &llm.EmptyContentError{
		Op:           "gemini generate",
		FinishReason: finishReason,
		Snippet:      llm.SummarizeSnippet(string(body)),
	}
}

// quotaRetryDelay extracts the RetryInfo delay Gemini attaches to 429 bodies.
func quotaRetryDelay(body []byte) time.Duration {
	var envelope struct {
		Error struct {
			Details []struct {
				Type       string `json:"@type"`
				RetryDelay string `json:"retryDelay"`
			} `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return 0
	}
	for _, detail := range envelope.Error.Details {
		if !strings.HasSuffix(detail.Type, "RetryInfo") {
			continue
		}
		if delay, err := time.ParseDuration(detail.RetryDelay); err == nil && delay > 0 {
			return delay
		}
	}
	return 0
}
