package hashing

import (
	"context"
	"hash/fnv"
	"regexp"
	"strconv"
	"strings"

	"minddock/internal/vector"
)

// Embedder is a bag-of-words hashing embedder. Every token is hashed with
// 32-bit FNV-1a into one of dim buckets and the counts are L2-normalised.
// FNV has no per-process seed, so vectors are identical across restarts.
type Embedder struct {
	dim          int
	tokenPattern *regexp.Regexp
}

// NewEmbedder creates a hashing embedder with dim buckets. Non-positive dims fall back to 512.
func NewEmbedder(dim int) *Embedder {
	if dim <= 0 {
		dim = 512
	}
	return &Embedder{
		dim:          dim,
		tokenPattern: regexp.MustCompile(`[\p{L}\p{M}\p{N}_]+`),
	}
}

// Name returns the identifier stored alongside produced vectors.
func (e *Embedder) Name() string { return "local-hash-" + strconv.Itoa(e.dim) }

// Dimension returns the dimensionality of the produced embedding vectors.
func (e *Embedder) Dimension() int { return e.dim }

// Embed computes the hashed embedding for the given text. Text without
// tokens yields the zero vector.
func (e *Embedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dim)
	for _, tok := range e.tokenize(text) {
		vec[bucket(tok, e.dim)]++
	}
	vector.Normalize(vec)
	return vec, nil
}

func (e *Embedder) tokenize(text string) []string {
	return e.tokenPattern.FindAllString(strings.ToLower(text), -1)
}

func bucket(token string, dim int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(token))
	return int(h.Sum32() % uint32(dim))
}
