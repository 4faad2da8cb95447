package embedding

import (
	"context"
	"errors"
	"fmt"
)

// Backend converts free text into a numeric vector representation.
// Blank text yields a degenerate zero vector instead of an error.
type Backend interface {
	Name() string
	// Dimension is the output length, or 0 while it is not yet known.
	Dimension() int
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ErrNoEmbedding is wrapped in a ProviderError when a provider answers without a vector.
var ErrNoEmbedding = errors.New("no embedding returned")

// ProviderError reports a failed call to a remote embedding provider.
type ProviderError struct {
	Provider string
	Model    string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s embeddings (%s) failed: %v", e.Provider, e.Model, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }
