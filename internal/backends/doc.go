// Package backends builds classifier backends and the consensus engine from
// configuration.
//
// Each provider client (OpenAI-compatible chat endpoints for Groq, OpenRouter
// and DeepSeek; native Gemini and Anthropic clients) is wrapped so it satisfies
// consensus.Backend. Clients are built with a single attempt because the
// consensus engine owns retries and per-call timeouts.
package backends
