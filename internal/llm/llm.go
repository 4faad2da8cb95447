// Package llm generates assistant replies with a hosted chat model.
package llm

import (
	"context"
	"errors"
	"fmt"

	"minddock/internal/config"
)

// ErrNoCredential is returned by New when the configured provider has no API key.
var ErrNoCredential = errors.New("llm: provider credential not configured")

// Message is one turn of a conversation. Role is "user" or "assistant".
type Message struct {
	Role    string
	Content string
}

// LLM completes a conversation under a system prompt.
type LLM interface {
	Name() string
	Chat(ctx context.Context, systemPrompt string, messages []Message) (string, error)
}

// New returns the chat model selected by cfg.Assistant.Provider. The OpenAI
// provider shares the embedder's API key and base URL.
func New(cfg *config.AppConfig) (LLM, error) {
	a := cfg.Assistant
	switch a.Provider {
	case "anthropic":
		if a.AnthropicAPIKey == "" {
			return nil, ErrNoCredential
		}
		return newClaude(a.AnthropicAPIKey, "", a.AnthropicModel, a.MaxTokens), nil
	case "openai", "":
		o := cfg.Embedder.OpenAI
		if o.APIKey == "" {
			return nil, ErrNoCredential
		}
		return newOpenAI(o.APIKey, o.BaseURL, a.OpenAIModel, a.MaxTokens), nil
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", a.Provider)
	}
}
