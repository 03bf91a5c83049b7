// Package llms provides the chat model abstraction used by the assistants:
// messages with text, tool call and tool response parts, per-call options
// and the response types.
//
// The `openai` subpackage implements Model for OpenAI-compatible
// chat completions endpoints.
package llms
