package memory

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"minddock/internal/domain"
	"minddock/internal/vectorstore"
)

// Storage is a simple in-memory embedding store keyed by memory id.
type Storage struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*domain.EmbeddingRecord
	now     func() time.Time
}

func NewStorage() *Storage {
	return &Storage{records: make(map[uuid.UUID]*domain.EmbeddingRecord), now: time.Now}
}

// Upsert replaces the vector of an existing record in place or inserts a new one.
// The owner of an existing record is kept.
func (s *Storage) Upsert(_ context.Context, in domain.EmbeddingInput) (*domain.EmbeddingRecord, error) {
	if err := vectorstore.Validate(in); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	rec, ok := s.records[in.MemoryID]
	if !ok {
		rec = &domain.EmbeddingRecord{MemoryID: in.MemoryID, OwnerID: in.OwnerID, CreatedAt: now}
		s.records[in.MemoryID] = rec
	}
	rec.Vector = bytes.Clone(in.Vector)
	rec.Dim = in.Dim
	rec.DType = in.DType
	rec.Model = in.Model
	rec.UpdatedAt = now
	return clone(rec), nil
}

func (s *Storage) Get(_ context.Context, memoryID uuid.UUID) (*domain.EmbeddingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[memoryID]
	if !ok {
		return nil, nil
	}
	return clone(rec), nil
}

func (s *Storage) Delete(_ context.Context, memoryID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, memoryID)
	return nil
}

// ListByOwner returns the owner's records ordered by memory id.
func (s *Storage) ListByOwner(_ context.Context, ownerID uuid.UUID) ([]*domain.EmbeddingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.EmbeddingRecord
	for _, rec := range s.records {
		if rec.OwnerID == ownerID {
			out = append(out, clone(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MemoryID.String() < out[j].MemoryID.String() })
	return out, nil
}

func clone(rec *domain.EmbeddingRecord) *domain.EmbeddingRecord {
	c := *rec
	c.Vector = bytes.Clone(rec.Vector)
	return &c
}
