// Package llmfactory creates chat models from provider configuration.
// All providers are served by OpenAI-compatible chat completions endpoints.
package llmfactory
