package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by stores when a memory or embedding does not exist.
var ErrNotFound = errors.New("not found")

// Memory is a short personal note captured by a user.
type Memory struct {
	ID             uuid.UUID
	OwnerID        uuid.UUID
	Title          string
	Content        string
	Tags           []string
	Context        map[string]any
	CapturedAt     *time.Time
	SourceDevice   string
	SourceLocation string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// EmbeddingRecord is the persisted vector of exactly one memory.
type EmbeddingRecord struct {
	MemoryID  uuid.UUID
	OwnerID   uuid.UUID
	Vector    []byte
	Dim       int
	DType     string
	Model     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// EmbeddingInput carries the fields of an embedding upsert.
type EmbeddingInput struct {
	MemoryID uuid.UUID
	OwnerID  uuid.UUID
	Vector   []byte
	Dim      int
	DType    string
	Model    string
}

// SearchResult represents a matching memory with its cosine similarity.
type SearchResult struct {
	Memory *Memory
	Score  float64
}

// MemoryStore persists memories. Get returns (nil, nil) when the id is unknown.
type MemoryStore interface {
	Create(ctx context.Context, m *Memory) error
	Get(ctx context.Context, id uuid.UUID) (*Memory, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*Memory, error)
	Update(ctx context.Context, m *Memory) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// EmbeddingStore persists one vector per memory, keyed by memory id.
// Get returns (nil, nil) when no record exists; Delete of a missing id is a no-op.
type EmbeddingStore interface {
	Upsert(ctx context.Context, in EmbeddingInput) (*EmbeddingRecord, error)
	Get(ctx context.Context, memoryID uuid.UUID) (*EmbeddingRecord, error)
	Delete(ctx context.Context, memoryID uuid.UUID) error
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*EmbeddingRecord, error)
}

// Session is the unit-of-work handle handed to workflow steps. It is owned by
// the caller that triggered the event and must not be retained by steps.
type Session interface {
	Memories() MemoryStore
	Embeddings() EmbeddingStore
}
