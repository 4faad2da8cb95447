package openai

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"minddock/internal/embedding"
)

// Client is an OpenAI-compatible embeddings client implementing embedding.Backend.
type Client struct {
	api       openai.Client
	model     string
	dimension atomic.Int64
}

// Config configures the OpenAI embeddings client.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	MaxRetries int
}

// NewClient creates a new embeddings client using the provided configuration.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: missing API key")
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	t := cfg.Timeout
	if t == 0 {
		t = 30 * time.Second
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithRequestTimeout(t),
		option.WithMaxRetries(max(cfg.MaxRetries, 0)),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Client{
		api:   openai.NewClient(opts...),
		model: cfg.Model,
	}, nil
}

// Name returns the identifier of this embedder implementation.
func (c *Client) Name() string { return "openai::" + c.model }

// Dimension is known after the first successful embed.
func (c *Client) Dimension() int { return int(c.dimension.Load()) }

// Embed returns an embedding vector for the given text. Blank text returns a
// length-1 zero vector without calling the API.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return make([]float32, 1), nil
	}
	resp, err := c.api.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(c.model),
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: []string{text}},
	})
	if err != nil {
		return nil, &embedding.ProviderError{Provider: "openai", Model: c.model, Err: err}
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, &embedding.ProviderError{Provider: "openai", Model: c.model, Err: embedding.ErrNoEmbedding}
	}
	raw := resp.Data[0].Embedding
	v := make([]float32, len(raw))
	for i, f := range raw {
		v[i] = float32(f)
	}
	c.dimension.CompareAndSwap(0, int64(len(v)))
	return v, nil
}
