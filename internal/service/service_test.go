package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minddock/internal/config"
	"minddock/internal/domain"
	"minddock/internal/llm"
	"minddock/internal/logging"
	memstore "minddock/internal/memorystore/memory"
	"minddock/internal/rag"
	vecstore "minddock/internal/vectorstore/memory"
	"minddock/internal/workflow"
)

type session struct {
	memories   *memstore.Store
	embeddings *vecstore.Storage
}

func (s *session) Memories() domain.MemoryStore      { return s.memories }
func (s *session) Embeddings() domain.EmbeddingStore { return s.embeddings }

type env struct {
	session *session
	engine  *workflow.Engine
	memory  *MemoryService
}

func ragCfg() config.RAGConfig {
	return config.RAGConfig{Enabled: true, DefaultTopK: 3, LocalVectorSize: 128}
}

func newRAG(s domain.Session) *rag.Engine {
	return rag.New(ragCfg(), config.Default().Embedder, s.Memories(), s.Embeddings(), rag.WithLogger(logging.Discard()))
}

func newEnv(t *testing.T) *env {
	t.Helper()
	s := &session{memories: memstore.NewStore(), embeddings: vecstore.NewStorage()}
	e := workflow.NewEngine(logging.Discard())
	workflow.RegisterDefaults(e, newRAG)
	return &env{session: s, engine: e, memory: NewMemoryService(s, e)}
}

type recorder struct{ events []string }

func (r *recorder) Trigger(_ context.Context, event string, _ domain.Session, payload map[string]any) {
	r.events = append(r.events, event+":"+payload[workflow.PayloadMemoryID].(uuid.UUID).String())
}

func TestMemoryServiceEmitsLifecycleEvents(t *testing.T) {
	rec := &recorder{}
	s := &session{memories: memstore.NewStore(), embeddings: vecstore.NewStorage()}
	svc := NewMemoryService(s, rec)
	ctx := context.Background()

	m, err := svc.Create(ctx, CreateMemoryInput{OwnerID: uuid.New(), Title: "Groceries", Content: "buy milk"})
	require.NoError(t, err)
	content := "buy milk and eggs"
	_, err = svc.Update(ctx, m.ID, UpdateMemoryInput{Content: &content})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, m.ID))

	id := m.ID.String()
	assert.Equal(t, []string{"memory.created:" + id, "memory.updated:" + id, "memory.deleted:" + id}, rec.events)
}

func TestMemoryServiceValidatesAndReportsMissing(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()

	_, err := env.memory.Create(ctx, CreateMemoryInput{OwnerID: uuid.New(), Title: "  "})
	assert.ErrorIs(t, err, ErrInvalidMemory)
	_, err = env.memory.Create(ctx, CreateMemoryInput{Title: "x"})
	assert.ErrorIs(t, err, ErrInvalidMemory)

	missing := uuid.New()
	_, err = env.memory.Update(ctx, missing, UpdateMemoryInput{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, env.memory.Delete(ctx, missing), domain.ErrNotFound)
	_, err = env.memory.Get(ctx, missing)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	m, err := env.memory.Create(ctx, CreateMemoryInput{OwnerID: uuid.New(), Title: "ok"})
	require.NoError(t, err)
	empty := ""
	_, err = env.memory.Update(ctx, m.ID, UpdateMemoryInput{Title: &empty})
	assert.ErrorIs(t, err, ErrInvalidMemory)
}

func TestMemoryServiceUpdateAppliesPatch(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	env.memory.now = func() time.Time { return base }

	m, err := env.memory.Create(ctx, CreateMemoryInput{
		OwnerID: uuid.New(), Title: "Trip", Content: "pack bags", Tags: []string{"travel"}, SourceDevice: "phone",
	})
	require.NoError(t, err)

	env.memory.now = func() time.Time { return base.Add(time.Hour) }
	loc := "airport"
	got, err := env.memory.Update(ctx, m.ID, UpdateMemoryInput{SourceLocation: &loc, Context: map[string]any{"gate": "B4"}})
	require.NoError(t, err)
	assert.Equal(t, "pack bags", got.Content)
	assert.Equal(t, []string{"travel"}, got.Tags)
	assert.Equal(t, "phone", got.SourceDevice)
	assert.Equal(t, "airport", got.SourceLocation)
	assert.Equal(t, "B4", got.Context["gate"])
	assert.True(t, got.CreatedAt.Equal(base))
	assert.True(t, got.UpdatedAt.Equal(base.Add(time.Hour)))
}

func TestCreateIndexesAndDeleteRemovesEmbedding(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	owner := uuid.New()

	m, err := env.memory.Create(ctx, CreateMemoryInput{OwnerID: owner, Title: "Groceries", Content: "buy milk and eggs"})
	require.NoError(t, err)

	res, err := newRAG(env.session).Search(ctx, "milk", owner, 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, m.ID, res[0].Memory.ID)
	assert.Greater(t, res[0].Score, 0.0)

	require.NoError(t, env.memory.Delete(ctx, m.ID))
	rec, err := env.session.embeddings.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

type fakeLLM struct {
	system   string
	messages []llm.Message
	err      error
}

func (f *fakeLLM) Name() string { return "fake" }
func (f *fakeLLM) Chat(_ context.Context, system string, messages []llm.Message) (string, error) {
	f.system, f.messages = system, messages
	return "model reply", f.err
}

func TestAssistantUsesRetrievedMemories(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	owner := uuid.New()
	milk, err := env.memory.Create(ctx, CreateMemoryInput{OwnerID: owner, Title: "Groceries", Content: "buy milk and eggs", Tags: []string{"shopping"}})
	require.NoError(t, err)
	_, err = env.memory.Create(ctx, CreateMemoryInput{OwnerID: owner, Title: "Gym", Content: "leg day"})
	require.NoError(t, err)

	model := &fakeLLM{}
	svc := NewAssistantService(env.session.memories, newRAG(env.session), model, 1, logging.Discard())
	resp, err := svc.Chat(ctx, ChatRequest{
		OwnerID: owner,
		Message: "what milk do I need",
		History: []llm.Message{{Role: "system", Content: "ignored"}, {Role: "assistant", Content: "hi"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "model reply", resp.Reply)
	assert.Equal(t, []uuid.UUID{milk.ID}, resp.UsedMemoryIDs)
	assert.Contains(t, model.system, "Title: Groceries\nContent: buy milk and eggs\nTags: shopping")
	assert.Equal(t, []llm.Message{{Role: "assistant", Content: "hi"}, {Role: "user", Content: "what milk do I need"}}, model.messages)
}

func TestAssistantExplicitIDsSkipMissingAndForeign(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	owner := uuid.New()
	mine, err := env.memory.Create(ctx, CreateMemoryInput{OwnerID: owner, Title: "Mine", Content: "x"})
	require.NoError(t, err)
	theirs, err := env.memory.Create(ctx, CreateMemoryInput{OwnerID: uuid.New(), Title: "Theirs", Content: "y"})
	require.NoError(t, err)

	svc := NewAssistantService(env.session.memories, nil, nil, 3, logging.Discard())
	resp, err := svc.Chat(ctx, ChatRequest{OwnerID: owner, Message: "summarise", MemoryIDs: []uuid.UUID{uuid.New(), theirs.ID, mine.ID}})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{mine.ID}, resp.UsedMemoryIDs)
	assert.Contains(t, resp.Reply, "(local summary mode)")
	assert.Contains(t, resp.Reply, "Title: Mine")
}

func TestAssistantFallbackWithoutMemories(t *testing.T) {
	env := newEnv(t)
	svc := NewAssistantService(env.session.memories, newRAG(env.session), nil, 3, logging.Discard())

	resp, err := svc.Chat(context.Background(), ChatRequest{OwnerID: uuid.New(), Message: "hello"})
	require.NoError(t, err)
	assert.Empty(t, resp.UsedMemoryIDs)
	assert.Contains(t, resp.Reply, "(local reply)")

	_, err = svc.Chat(context.Background(), ChatRequest{Message: "  "})
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestAssistantSurfacesModelError(t *testing.T) {
	env := newEnv(t)
	svc := NewAssistantService(env.session.memories, nil, &fakeLLM{err: errors.New("rate limited")}, 3, logging.Discard())

	_, err := svc.Chat(context.Background(), ChatRequest{OwnerID: uuid.New(), Message: "hello"})
	assert.ErrorContains(t, err, "rate limited")
}
