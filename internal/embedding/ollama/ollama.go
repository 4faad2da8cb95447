package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ollama/ollama/api"

	"minddock/internal/embedding"
)

// Client embeds text with a model served by Ollama.
type Client struct {
	api       *api.Client
	model     string
	dimension atomic.Int64
}

// Config configures the Ollama embeddings client.
type Config struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// NewClient validates the base URL and builds the API client.
func NewClient(cfg Config) (*Client, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("ollama: parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("ollama: base url %q must include scheme and host", cfg.BaseURL)
	}
	if cfg.Model == "" {
		cfg.Model = "nomic-embed-text"
	}
	t := cfg.Timeout
	if t == 0 {
		t = 30 * time.Second
	}
	return &Client{
		api:   api.NewClient(u, &http.Client{Timeout: t}),
		model: cfg.Model,
	}, nil
}

func (c *Client) Name() string { return "ollama::" + c.model }

func (c *Client) Dimension() int { return int(c.dimension.Load()) }

func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return make([]float32, 1), nil
	}
	resp, err := c.api.Embed(ctx, &api.EmbedRequest{Model: c.model, Input: text})
	if err != nil {
		return nil, &embedding.ProviderError{Provider: "ollama", Model: c.model, Err: err}
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0]) == 0 {
		return nil, &embedding.ProviderError{Provider: "ollama", Model: c.model, Err: embedding.ErrNoEmbedding}
	}
	v := resp.Embeddings[0]
	c.dimension.CompareAndSwap(0, int64(len(v)))
	return v, nil
}
