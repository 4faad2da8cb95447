// Package app assembles the process runtime: configuration, database,
// workflow engine and the services built on them.
package app

import (
	"database/sql"
	"errors"
	"sync"

	"github.com/charmbracelet/log"

	"minddock/internal/config"
	"minddock/internal/database"
	"minddock/internal/domain"
	"minddock/internal/llm"
	memsqlite "minddock/internal/memorystore/sqlite"
	"minddock/internal/rag"
	"minddock/internal/service"
	vecsqlite "minddock/internal/vectorstore/sqlite"
	"minddock/internal/workflow"
)

// App owns the process-wide state. Construct it with New, call Init once
// before triggering events, and Close it on shutdown.
type App struct {
	Config    *config.AppConfig
	Workflows *workflow.Engine

	db     *sql.DB
	logger *log.Logger

	mu          sync.Mutex
	initialized bool
}

// New opens the configured database. A nil logger means log.Default().
func New(cfg *config.AppConfig, logger *log.Logger) (*App, error) {
	if logger == nil {
		logger = log.Default()
	}
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	return &App{
		Config:    cfg,
		Workflows: workflow.NewEngine(logger.WithPrefix("workflow")),
		db:        db,
		logger:    logger,
	}, nil
}

// Init registers the default workflows. Only the first call does anything;
// it reports whether this call performed the registration.
func (a *App) Init() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.initialized {
		return false
	}
	workflow.RegisterDefaults(a.Workflows, a.RAG)
	a.initialized = true
	a.logger.Debug("default workflows registered")
	return true
}

// Reset clears every registration so Init can run again.
func (a *App) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Workflows.Clear()
	a.initialized = false
}

// Session returns store handles backed by the app database.
func (a *App) Session() domain.Session {
	return &session{
		memories:   memsqlite.NewStore(a.db),
		embeddings: vecsqlite.NewStorage(a.db),
	}
}

// RAG returns a retrieval engine over the stores of s.
func (a *App) RAG(s domain.Session) *rag.Engine {
	return rag.New(a.Config.RAG, a.Config.Embedder, s.Memories(), s.Embeddings(),
		rag.WithLogger(a.logger.WithPrefix("rag")))
}

func (a *App) MemoryService(s domain.Session) *service.MemoryService {
	return service.NewMemoryService(s, a.Workflows)
}

// AssistantService picks the configured chat model and falls back to local
// summaries when it has no credential.
func (a *App) AssistantService(s domain.Session) (*service.AssistantService, error) {
	model, err := llm.New(a.Config)
	if errors.Is(err, llm.ErrNoCredential) {
		a.logger.Info("no chat credential; using local summary replies", "provider", a.Config.Assistant.Provider)
		model, err = nil, nil
	}
	if err != nil {
		return nil, err
	}
	return service.NewAssistantService(s.Memories(), a.RAG(s), model, a.Config.Assistant.MaxSnippets, a.logger), nil
}

func (a *App) Close() error {
	return a.db.Close()
}

type session struct {
	memories   domain.MemoryStore
	embeddings domain.EmbeddingStore
}

func (s *session) Memories() domain.MemoryStore      { return s.memories }
func (s *session) Embeddings() domain.EmbeddingStore { return s.embeddings }
