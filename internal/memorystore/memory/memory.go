package memory

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"

	"github.com/google/uuid"

	"minddock/internal/domain"
)

// Store keeps memories in a map. Returned values are copies.
type Store struct {
	mu       sync.RWMutex
	memories map[uuid.UUID]*domain.Memory
}

func NewStore() *Store {
	return &Store{memories: make(map[uuid.UUID]*domain.Memory)}
}

func (s *Store) Create(_ context.Context, m *domain.Memory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memories[m.ID] = clone(m)
	return nil
}

func (s *Store) Get(_ context.Context, id uuid.UUID) (*domain.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.memories[id]
	if !ok {
		return nil, nil
	}
	return clone(m), nil
}

// ListByOwner returns the owner's memories, newest first.
func (s *Store) ListByOwner(_ context.Context, ownerID uuid.UUID) ([]*domain.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Memory
	for _, m := range s.memories {
		if m.OwnerID == ownerID {
			out = append(out, clone(m))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (s *Store) Update(_ context.Context, m *domain.Memory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.memories[m.ID]; !ok {
		return domain.ErrNotFound
	}
	s.memories[m.ID] = clone(m)
	return nil
}

func (s *Store) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.memories[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.memories, id)
	return nil
}

func clone(m *domain.Memory) *domain.Memory {
	c := *m
	c.Tags = slices.Clone(m.Tags)
	c.Context = maps.Clone(m.Context)
	if m.CapturedAt != nil {
		t := *m.CapturedAt
		c.CapturedAt = &t
	}
	return &c
}
