package rag

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minddock/internal/config"
	"minddock/internal/domain"
	"minddock/internal/embedding"
	"minddock/internal/logging"
	memstore "minddock/internal/memorystore/memory"
	"minddock/internal/vector"
	vecstore "minddock/internal/vectorstore/memory"
)

type fakeBackend struct {
	name string
	err  error
	fail string
}

func (f *fakeBackend) Name() string   { return f.name }
func (f *fakeBackend) Dimension() int { return 2 }
func (f *fakeBackend) Embed(_ context.Context, text string) ([]float32, error) {
	if f.err != nil || (f.fail != "" && strings.Contains(text, f.fail)) {
		return nil, &embedding.ProviderError{Provider: "fake", Model: f.name, Err: errors.New("unavailable")}
	}
	return []float32{1, 0}, nil
}

type fixture struct {
	engine     *Engine
	memories   *memstore.Store
	embeddings *vecstore.Storage
}

func newFixture(t *testing.T, cfg config.RAGConfig, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{memories: memstore.NewStore(), embeddings: vecstore.NewStorage()}
	opts = append([]Option{WithLogger(logging.Discard())}, opts...)
	f.engine = New(cfg, config.Default().Embedder, f.memories, f.embeddings, opts...)
	return f
}

func enabled() config.RAGConfig {
	return config.RAGConfig{Enabled: true, DefaultTopK: 3, LocalVectorSize: 64}
}

func (f *fixture) add(t *testing.T, owner uuid.UUID, title, content string) *domain.Memory {
	t.Helper()
	now := time.Now().UTC()
	m := &domain.Memory{ID: uuid.New(), OwnerID: owner, Title: title, Content: content, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, f.memories.Create(context.Background(), m))
	_, err := f.engine.IndexMemory(context.Background(), m)
	require.NoError(t, err)
	return m
}

func TestBackendLocalWithoutCredential(t *testing.T) {
	f := newFixture(t, enabled())
	assert.Equal(t, "local-hash-64", f.engine.Backend().Name())
}

func TestBackendPrefersRemoteAndIsCached(t *testing.T) {
	calls := 0
	emb := config.Default().Embedder
	emb.OpenAI.APIKey = "sk-test"
	e := New(enabled(), emb, memstore.NewStore(), vecstore.NewStorage(),
		WithLogger(logging.Discard()),
		WithRemoteFactory(func(config.EmbedderConfig) (embedding.Backend, error) {
			calls++
			return &fakeBackend{name: "remote"}, nil
		}))

	assert.Equal(t, "remote", e.Backend().Name())
	assert.Equal(t, "remote", e.Backend().Name())
	assert.Equal(t, 1, calls)
}

func TestBackendFallsBackWhenRemoteFails(t *testing.T) {
	emb := config.Default().Embedder
	emb.OpenAI.APIKey = "sk-test"
	e := New(enabled(), emb, memstore.NewStore(), vecstore.NewStorage(),
		WithLogger(logging.Discard()),
		WithRemoteFactory(func(config.EmbedderConfig) (embedding.Backend, error) {
			return nil, errors.New("no network")
		}))

	assert.Equal(t, "local-hash-64", e.Backend().Name())
}

func TestDefaultRemoteFactoryBuildsProviders(t *testing.T) {
	emb := config.Default().Embedder
	emb.OpenAI.APIKey = "sk-test"
	b, err := NewRemoteBackend(emb)
	require.NoError(t, err)
	assert.Equal(t, "openai::text-embedding-3-small", b.Name())

	emb.Provider = "ollama"
	emb.Ollama.BaseURL = "http://localhost:11434"
	b, err = NewRemoteBackend(emb)
	require.NoError(t, err)
	assert.Equal(t, "ollama::nomic-embed-text", b.Name())

	emb.Ollama.BaseURL = "not a url"
	_, err = NewRemoteBackend(emb)
	assert.Error(t, err)
}

func TestIndexThenSearchFindsMemory(t *testing.T) {
	f := newFixture(t, enabled())
	owner := uuid.New()
	m := f.add(t, owner, "Groceries", "buy milk and eggs")

	res, err := f.engine.Search(context.Background(), "milk", owner, 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, m.ID, res[0].Memory.ID)
	assert.Greater(t, res[0].Score, 0.0)

	rec, err := f.embeddings.Get(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, vector.Float32, rec.DType)
	assert.Equal(t, 64, rec.Dim)
	assert.Equal(t, "local-hash-64", rec.Model)
}

func TestSelfSimilarityRanksFirst(t *testing.T) {
	f := newFixture(t, enabled())
	owner := uuid.New()
	f.add(t, owner, "Gym", "leg day squats and lunges")
	target := f.add(t, owner, "Reading", "finished the novel about lighthouses")
	f.add(t, owner, "Work", "quarterly planning meeting notes")

	res, err := f.engine.Search(context.Background(), "Reading\n\nfinished the novel about lighthouses", owner, 3)
	require.NoError(t, err)
	require.NotEmpty(t, res)
	assert.Equal(t, target.ID, res[0].Memory.ID)
	assert.InDelta(t, 1.0, res[0].Score, 1e-6)
}

func TestSearchRespectsTopKAndOwner(t *testing.T) {
	f := newFixture(t, enabled())
	owner, other := uuid.New(), uuid.New()
	for i := 0; i < 5; i++ {
		f.add(t, owner, "coffee", "morning coffee notes")
	}
	f.add(t, other, "coffee", "morning coffee notes")

	res, err := f.engine.Search(context.Background(), "coffee", owner, 2)
	require.NoError(t, err)
	assert.Len(t, res, 2)

	res, err = f.engine.Search(context.Background(), "coffee", owner, 0)
	require.NoError(t, err)
	assert.Len(t, res, 3)
	for _, r := range res {
		assert.Equal(t, owner, r.Memory.OwnerID)
	}
}

func TestSearchTieBreakIsMemoryID(t *testing.T) {
	f := newFixture(t, enabled())
	owner := uuid.New()
	a := f.add(t, owner, "same", "identical text")
	b := f.add(t, owner, "same", "identical text")

	res, err := f.engine.Search(context.Background(), "identical", owner, 2)
	require.NoError(t, err)
	require.Len(t, res, 2)
	first, second := a.ID, b.ID
	if second.String() < first.String() {
		first, second = second, first
	}
	assert.Equal(t, first, res[0].Memory.ID)
	assert.Equal(t, second, res[1].Memory.ID)
}

func TestIndexTwiceKeepsOneRecord(t *testing.T) {
	f := newFixture(t, enabled())
	owner := uuid.New()
	m := f.add(t, owner, "Note", "first version")

	m.Content = "second version"
	_, err := f.engine.IndexMemory(context.Background(), m)
	require.NoError(t, err)

	recs, err := f.embeddings.ListByOwner(context.Background(), owner)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestDeleteEmbeddingRemovesFromSearch(t *testing.T) {
	f := newFixture(t, enabled())
	owner := uuid.New()
	m := f.add(t, owner, "Groceries", "buy milk")

	require.NoError(t, f.engine.DeleteMemoryEmbedding(context.Background(), m.ID))
	require.NoError(t, f.engine.DeleteMemoryEmbedding(context.Background(), m.ID))

	res, err := f.engine.Search(context.Background(), "milk", owner, 3)
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestSearchDropsDeletedMemories(t *testing.T) {
	f := newFixture(t, enabled())
	owner := uuid.New()
	m := f.add(t, owner, "Groceries", "buy milk")
	require.NoError(t, f.memories.Delete(context.Background(), m.ID))

	res, err := f.engine.Search(context.Background(), "milk", owner, 3)
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestSearchSkipsForeignAndCorruptRecords(t *testing.T) {
	f := newFixture(t, enabled())
	owner := uuid.New()
	good := f.add(t, owner, "Groceries", "buy milk")
	ctx := context.Background()

	_, err := f.embeddings.Upsert(ctx, domain.EmbeddingInput{
		MemoryID: uuid.New(), OwnerID: owner,
		Vector: vector.Encode([]float32{1, 0, 0}), Dim: 3, DType: vector.Float32, Model: "openai::x",
	})
	require.NoError(t, err)

	nan := make([]byte, 8*64)
	for i := 0; i < 64; i++ {
		binary.LittleEndian.PutUint64(nan[i*8:], math.Float64bits(math.NaN()))
	}
	_, err = f.embeddings.Upsert(ctx, domain.EmbeddingInput{
		MemoryID: uuid.New(), OwnerID: owner,
		Vector: nan, Dim: 64, DType: vector.Float64, Model: "local-hash-64",
	})
	require.NoError(t, err)

	res, err := f.engine.Search(ctx, "milk", owner, 5)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, good.ID, res[0].Memory.ID)
}

func TestSearchEmptyCases(t *testing.T) {
	f := newFixture(t, enabled())
	owner := uuid.New()

	res, err := f.engine.Search(context.Background(), "milk", owner, 3)
	require.NoError(t, err)
	assert.Empty(t, res)

	f.add(t, owner, "Groceries", "buy milk")
	res, err = f.engine.Search(context.Background(), "  ...  ", owner, 3)
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestDisabledIsNoop(t *testing.T) {
	cfg := enabled()
	cfg.Enabled = false
	f := newFixture(t, cfg)
	owner := uuid.New()
	m := f.add(t, owner, "Groceries", "buy milk")

	recs, err := f.embeddings.ListByOwner(context.Background(), owner)
	require.NoError(t, err)
	assert.Empty(t, recs)

	res, err := f.engine.Search(context.Background(), "milk", owner, 3)
	require.NoError(t, err)
	assert.Empty(t, res)
	assert.NoError(t, f.engine.DeleteMemoryEmbedding(context.Background(), m.ID))
}

func TestIndexPropagatesProviderError(t *testing.T) {
	f := newFixture(t, enabled(), WithBackend(&fakeBackend{name: "fake", err: errors.New("down")}))
	m := &domain.Memory{ID: uuid.New(), OwnerID: uuid.New(), Title: "x"}

	_, err := f.engine.IndexMemory(context.Background(), m)
	var perr *embedding.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "fake", perr.Provider)
}

func TestReindexOwnerCollectsFailures(t *testing.T) {
	f := newFixture(t, enabled(), WithBackend(&fakeBackend{name: "fake", fail: "broken"}))
	owner := uuid.New()
	ctx := context.Background()
	for _, title := range []string{"fine", "broken", "also fine"} {
		require.NoError(t, f.memories.Create(ctx, &domain.Memory{ID: uuid.New(), OwnerID: owner, Title: title, CreatedAt: time.Now()}))
	}

	n, err := f.engine.ReindexOwner(ctx, owner)
	assert.Equal(t, 2, n)
	var perr *embedding.ProviderError
	assert.ErrorAs(t, err, &perr)

	recs, err := f.embeddings.ListByOwner(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
	for _, r := range recs {
		assert.Equal(t, "fake", r.Model)
	}
}

func TestComposeText(t *testing.T) {
	m := &domain.Memory{
		Title:   "Trip",
		Content: "",
		Tags:    []string{"travel", "family"},
		Context: map[string]any{"weather": "sunny", "city": "Lisbon"},
	}
	assert.Equal(t, "Trip\n\nTags: travel, family\n\nContext: {\"city\":\"Lisbon\",\"weather\":\"sunny\"}", composeText(m))
	assert.Equal(t, "", composeText(&domain.Memory{}))
}
