// Package rag indexes memories as vectors and ranks them against free-text queries.
package rag

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"minddock/internal/config"
	"minddock/internal/domain"
	"minddock/internal/embedding"
	"minddock/internal/embedding/hashing"
	"minddock/internal/vector"
)

const fallbackTopK = 3

// Engine ties an embedding backend to the memory and embedding stores.
// The backend is chosen on first use and kept for the lifetime of the engine.
type Engine struct {
	cfg        config.RAGConfig
	embedder   config.EmbedderConfig
	memories   domain.MemoryStore
	embeddings domain.EmbeddingStore
	remote     RemoteFactory
	logger     *log.Logger

	once    sync.Once
	backend embedding.Backend
}

// Option configures an Engine.
type Option func(*Engine)

// WithBackend pins the backend and skips selection.
func WithBackend(b embedding.Backend) Option {
	return func(e *Engine) { e.backend = b }
}

// WithRemoteFactory replaces the constructor used for remote backends.
func WithRemoteFactory(f RemoteFactory) Option {
	return func(e *Engine) { e.remote = f }
}

func WithLogger(l *log.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates an engine over the given stores.
func New(cfg config.RAGConfig, embedder config.EmbedderConfig, memories domain.MemoryStore, embeddings domain.EmbeddingStore, opts ...Option) *Engine {
	e := &Engine{
		cfg:        cfg,
		embedder:   embedder,
		memories:   memories,
		embeddings: embeddings,
		remote:     NewRemoteBackend,
		logger:     log.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enabled reports whether retrieval is switched on.
func (e *Engine) Enabled() bool { return e.cfg.Enabled }

// Backend returns the active embedding backend, selecting it on first call.
// Without a provider credential the local hashing backend is used. With one,
// the remote backend is preferred and a construction failure falls back to local.
func (e *Engine) Backend() embedding.Backend {
	e.once.Do(func() {
		if e.backend != nil {
			return
		}
		local := hashing.NewEmbedder(e.cfg.LocalVectorSize)
		if !e.embedder.HasCredential() {
			e.logger.Info("rag using local hashing embeddings", "dim", local.Dimension())
			e.backend = local
			return
		}
		remote, err := e.remote(e.embedder)
		if err != nil {
			e.logger.Warn("falling back to local embeddings", "provider", e.embedder.Provider, "err", err)
			e.backend = local
			return
		}
		e.logger.Info("rag using remote embeddings", "backend", remote.Name())
		e.backend = remote
	})
	return e.backend
}

// IndexMemory embeds m and upserts its record. It returns (nil, nil) when
// retrieval is disabled or the backend produced an empty vector.
func (e *Engine) IndexMemory(ctx context.Context, m *domain.Memory) (*domain.EmbeddingRecord, error) {
	if !e.cfg.Enabled {
		e.logger.Debug("rag disabled; skipping index", "memory_id", m.ID)
		return nil, nil
	}
	backend := e.Backend()
	vec, err := backend.Embed(ctx, composeText(m))
	if err != nil {
		return nil, fmt.Errorf("embed memory %s: %w", m.ID, err)
	}
	if len(vec) == 0 {
		e.logger.Debug("empty embedding produced", "memory_id", m.ID)
		return nil, nil
	}
	return e.embeddings.Upsert(ctx, domain.EmbeddingInput{
		MemoryID: m.ID,
		OwnerID:  m.OwnerID,
		Vector:   vector.Encode(vec),
		Dim:      len(vec),
		DType:    vector.Float32,
		Model:    backend.Name(),
	})
}

// DeleteMemoryEmbedding removes the record for memoryID if there is one.
func (e *Engine) DeleteMemoryEmbedding(ctx context.Context, memoryID uuid.UUID) error {
	if !e.cfg.Enabled {
		return nil
	}
	return e.embeddings.Delete(ctx, memoryID)
}

type scored struct {
	id    uuid.UUID
	score float64
}

// Search ranks the owner's indexed memories by cosine similarity to query and
// returns at most topK of them. Equal scores are ordered by memory id.
// A non-positive topK uses the configured default.
func (e *Engine) Search(ctx context.Context, query string, ownerID uuid.UUID, topK int) ([]domain.SearchResult, error) {
	if !e.cfg.Enabled {
		return nil, nil
	}
	if topK <= 0 {
		topK = e.cfg.DefaultTopK
	}
	if topK <= 0 {
		topK = fallbackTopK
	}

	records, err := e.embeddings.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list embeddings: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	q, err := e.Backend().Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if vector.IsZero(q) {
		return nil, nil
	}

	hits := make([]scored, 0, len(records))
	for _, rec := range records {
		v, err := vector.Decode(rec.Vector, rec.DType, rec.Dim)
		if err != nil {
			e.logger.Warn("skipping undecodable embedding", "memory_id", rec.MemoryID, "err", err)
			continue
		}
		if len(v) != len(q) {
			e.logger.Debug("skipping embedding from other backend", "memory_id", rec.MemoryID, "model", rec.Model, "dim", rec.Dim)
			continue
		}
		score, ok := vector.Cosine(q, v)
		if !ok {
			continue
		}
		hits = append(hits, scored{id: rec.MemoryID, score: score})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].id.String() < hits[j].id.String()
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}

	results := make([]domain.SearchResult, 0, len(hits))
	for _, h := range hits {
		m, err := e.memories.Get(ctx, h.id)
		if err != nil {
			return nil, fmt.Errorf("resolve memory %s: %w", h.id, err)
		}
		if m == nil {
			continue
		}
		results = append(results, domain.SearchResult{Memory: m, Score: h.score})
	}
	return results, nil
}

// ReindexOwner re-embeds every memory of ownerID with the active backend.
// Failures do not stop the pass; they are returned joined.
func (e *Engine) ReindexOwner(ctx context.Context, ownerID uuid.UUID) (int, error) {
	if !e.cfg.Enabled {
		return 0, nil
	}
	memories, err := e.memories.ListByOwner(ctx, ownerID)
	if err != nil {
		return 0, fmt.Errorf("list memories: %w", err)
	}
	var (
		indexed int
		errs    []error
	)
	for _, m := range memories {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		rec, err := e.IndexMemory(ctx, m)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if rec != nil {
			indexed++
		}
	}
	return indexed, errors.Join(errs...)
}

// composeText joins the non-empty parts of m with blank lines.
func composeText(m *domain.Memory) string {
	parts := []string{m.Title, m.Content}
	if len(m.Tags) > 0 {
		parts = append(parts, "Tags: "+strings.Join(m.Tags, ", "))
	}
	if len(m.Context) > 0 {
		// encoding/json writes map keys sorted
		if b, err := json.Marshal(m.Context); err == nil {
			parts = append(parts, "Context: "+string(b))
		}
	}
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "\n\n")
}
