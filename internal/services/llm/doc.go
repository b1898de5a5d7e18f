// Package llm provides the shared HTTP plumbing for model-backed classifiers.
//
// It contains three pieces:
//
//   - Client: an OpenAI-compatible chat completion client used for Groq,
//     OpenRouter, and DeepSeek. CompleteJSON sends a system and user prompt
//     and returns the raw JSON text produced by the model. HealthCheck pings
//     the configured model.
//   - RetryPolicy: exponential backoff with a cap, Retry-After support, and an
//     injectable sleeper. The consensus engine drives every backend through
//     the same policy so retries behave identically across providers.
//   - DecodeLLMJSON: tolerant decoding of model output (code fences, prose
//     around a JSON object).
//
// # Retry Behaviour
//
// Transient failures are HTTP 408/429/5xx, network errors, per-attempt
// timeouts, empty completions, and errors tagged services.ErrTransient.
// Configuration errors and other 4xx responses are permanent. Cancellation of
// the caller's context aborts retries immediately.
package llm
