package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"minddock/internal/domain"
	"minddock/internal/workflow"
)

// ErrInvalidMemory is returned when a create or update would leave a memory
// without an owner or a title.
var ErrInvalidMemory = errors.New("invalid memory")

// EventTrigger dispatches lifecycle events. *workflow.Engine implements it.
type EventTrigger interface {
	Trigger(ctx context.Context, event string, session domain.Session, payload map[string]any)
}

// CreateMemoryInput carries the fields of a new memory.
type CreateMemoryInput struct {
	OwnerID        uuid.UUID
	Title          string
	Content        string
	Tags           []string
	Context        map[string]any
	CapturedAt     *time.Time
	SourceDevice   string
	SourceLocation string
}

// UpdateMemoryInput is a patch: nil fields are left unchanged.
type UpdateMemoryInput struct {
	Title          *string
	Content        *string
	Tags           []string
	Context        map[string]any
	CapturedAt     *time.Time
	SourceDevice   *string
	SourceLocation *string
}

// MemoryService manages the memory lifecycle and announces every change.
type MemoryService struct {
	session domain.Session
	events  EventTrigger
	now     func() time.Time
}

func NewMemoryService(session domain.Session, events EventTrigger) *MemoryService {
	return &MemoryService{session: session, events: events, now: time.Now}
}

func (s *MemoryService) Create(ctx context.Context, in CreateMemoryInput) (*domain.Memory, error) {
	if in.OwnerID == uuid.Nil {
		return nil, fmt.Errorf("%w: owner id is required", ErrInvalidMemory)
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidMemory)
	}
	now := s.now().UTC()
	m := &domain.Memory{
		ID:             uuid.New(),
		OwnerID:        in.OwnerID,
		Title:          in.Title,
		Content:        in.Content,
		Tags:           in.Tags,
		Context:        in.Context,
		CapturedAt:     in.CapturedAt,
		SourceDevice:   in.SourceDevice,
		SourceLocation: in.SourceLocation,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.session.Memories().Create(ctx, m); err != nil {
		return nil, err
	}
	s.emit(ctx, workflow.EventMemoryCreated, m.ID)
	return m, nil
}

func (s *MemoryService) Get(ctx context.Context, id uuid.UUID) (*domain.Memory, error) {
	m, err := s.session.Memories().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, domain.ErrNotFound
	}
	return m, nil
}

func (s *MemoryService) List(ctx context.Context, ownerID uuid.UUID) ([]*domain.Memory, error) {
	return s.session.Memories().ListByOwner(ctx, ownerID)
}

func (s *MemoryService) Update(ctx context.Context, id uuid.UUID, in UpdateMemoryInput) (*domain.Memory, error) {
	m, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Title != nil {
		if strings.TrimSpace(*in.Title) == "" {
			return nil, fmt.Errorf("%w: title is required", ErrInvalidMemory)
		}
		m.Title = *in.Title
	}
	if in.Content != nil {
		m.Content = *in.Content
	}
	if in.Tags != nil {
		m.Tags = in.Tags
	}
	if in.Context != nil {
		m.Context = in.Context
	}
	if in.CapturedAt != nil {
		m.CapturedAt = in.CapturedAt
	}
	if in.SourceDevice != nil {
		m.SourceDevice = *in.SourceDevice
	}
	if in.SourceLocation != nil {
		m.SourceLocation = *in.SourceLocation
	}
	m.UpdatedAt = s.now().UTC()
	if err := s.session.Memories().Update(ctx, m); err != nil {
		return nil, err
	}
	s.emit(ctx, workflow.EventMemoryUpdated, m.ID)
	return m, nil
}

// Delete removes the memory. Its embedding goes with the memory.deleted event.
func (s *MemoryService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.session.Memories().Delete(ctx, id); err != nil {
		return err
	}
	s.emit(ctx, workflow.EventMemoryDeleted, id)
	return nil
}

func (s *MemoryService) emit(ctx context.Context, event string, id uuid.UUID) {
	if s.events == nil {
		return
	}
	s.events.Trigger(ctx, event, s.session, map[string]any{workflow.PayloadMemoryID: id})
}
