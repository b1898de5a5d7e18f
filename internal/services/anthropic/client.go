// Package anthropic wraps the Anthropic Messages API.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"trackmeta/internal/services"
	"trackmeta/internal/services/llm"
)

const (
	providerName       = "anthropic"
	defaultBaseURL     = "https://api.anthropic.com/v1/messages"
	defaultModel       = "claude-sonnet-4-5"
	apiVersion         = "2023-06-01"
	defaultMaxTokens   = 1500
	defaultHTTPTimeout = 30 * time.Second
)

// Client wraps the Messages endpoint.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	maxTokens  int
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

// WithBaseURL overrides the messages endpoint (useful for tests/mocks).
func WithBaseURL(base string) Option {
	return func(c *Client) {
		if base = strings.TrimSpace(base); base != "" {
			c.baseURL = base
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

// NewClient constructs an Anthropic API client.
func NewClient(apiKey string, opts ...Option) *Client {
	client := &Client{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    defaultBaseURL,
		model:      defaultModel,
		maxTokens:  defaultMaxTokens,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		retry:      llm.DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Name returns the provider label.
func (c *Client) Name() string { return providerName }

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	System      string    `json:"system,omitempty"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

// CompleteJSON sends the prompts and returns the model's text reply, which the
// system prompt instructs to be a single JSON object.
func (c *Client) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if c.apiKey == "" {
		return "", services.Wrap(services.ErrConfiguration, "", providerName, "api key required", nil)
	}
	payload := messagesRequest{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		System:      strings.TrimSpace(systemPrompt),
		Messages:    []message{{Role: "user", Content: strings.TrimSpace(userPrompt)}},
		Temperature: 0.2,
	}
	var text string
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		text, err = c.send(ctx, payload)
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
		return fmt.Errorf("anthropic health: unexpected response %s", llm.SummarizeSnippet(text))
	}
	return nil
}

func (c *Client) send(ctx context.Context, payload messagesRequest) (string, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("anthropic request: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(encoded))
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "", providerName, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	body, err := llm.Do(c.httpClient, req, providerName)
	if err != nil {
		return "", err
	}
	var resp messagesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", services.Wrap(services.ErrTransient, "", providerName, "decode response", err)
	}
	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if text := strings.TrimSpace(sb.String()); text != "" {
		return text, nil
	}
	return "", &llm.EmptyContentError{
		Op:           "anthropic messages",
		FinishReason: resp.StopReason,
		Snippet:      llm.SummarizeSnippet(string(body)),
	}
}
