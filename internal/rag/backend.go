package rag

import (
	"fmt"
	"time"

	"minddock/internal/config"
	"minddock/internal/embedding"
	"minddock/internal/embedding/ollama"
	"minddock/internal/embedding/openai"
)

// RemoteFactory builds the remote embedding backend named by cfg.Provider.
type RemoteFactory func(cfg config.EmbedderConfig) (embedding.Backend, error)

// NewRemoteBackend is the default RemoteFactory.
func NewRemoteBackend(cfg config.EmbedderConfig) (embedding.Backend, error) {
	switch cfg.Provider {
	case "openai", "":
		return openai.NewClient(openai.Config{
			APIKey:     cfg.OpenAI.APIKey,
			BaseURL:    cfg.OpenAI.BaseURL,
			Model:      cfg.OpenAI.EmbeddingModel,
			Timeout:    time.Duration(cfg.OpenAI.TimeoutSecs) * time.Second,
			MaxRetries: cfg.OpenAI.MaxRetries,
		})
	case "ollama":
		return ollama.NewClient(ollama.Config{
			BaseURL: cfg.Ollama.BaseURL,
			Model:   cfg.Ollama.Model,
			Timeout: time.Duration(cfg.Ollama.TimeoutSecs) * time.Second,
		})
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
}
