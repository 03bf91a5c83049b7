// Package openai implements llms.Model on top of the chat completions API
// of OpenAI and compatible servers, such as LM Studio, vLLM or Ollama.
package openai
