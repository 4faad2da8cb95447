package workflow

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"minddock/internal/domain"
	"minddock/internal/rag"
)

// Memory lifecycle events.
const (
	EventMemoryCreated = "memory.created"
	EventMemoryUpdated = "memory.updated"
	EventMemoryDeleted = "memory.deleted"
)

// PayloadMemoryID is the payload key carrying the memory id.
const PayloadMemoryID = "memory_id"

// RAGFactory builds a retrieval engine bound to the stores of a session.
type RAGFactory func(session domain.Session) *rag.Engine

// RegisterDefaults wires memory lifecycle events to indexing: created and
// updated memories are (re)indexed, deleted ones lose their embedding.
func RegisterDefaults(e *Engine, newRAG RAGFactory) {
	index := Step{Name: "index-memory", Run: e.indexMemory(newRAG)}
	e.Register(Workflow{Name: "memory-index-on-create", Event: EventMemoryCreated, Steps: []Step{index}})
	e.Register(Workflow{Name: "memory-reindex-on-update", Event: EventMemoryUpdated, Steps: []Step{index}})
	e.Register(Workflow{
		Name:  "memory-embedding-delete",
		Event: EventMemoryDeleted,
		Steps: []Step{{Name: "delete-embedding", Run: e.deleteEmbedding(newRAG)}},
	})
}

func (e *Engine) indexMemory(newRAG RAGFactory) StepFunc {
	return func(ctx context.Context, wc Context) error {
		id, ok := MemoryID(wc.Payload)
		if !ok {
			e.logger.Warn("payload has no usable memory id", "event", wc.Event, "value", wc.Payload[PayloadMemoryID])
			return nil
		}
		m, err := wc.Session.Memories().Get(ctx, id)
		if err != nil {
			return fmt.Errorf("load memory %s: %w", id, err)
		}
		if m == nil {
			e.logger.Warn("memory not found for indexing", "event", wc.Event, "memory_id", id)
			return nil
		}
		if _, err := newRAG(wc.Session).IndexMemory(ctx, m); err != nil {
			return err
		}
		e.logger.Debug("indexed memory", "memory_id", id)
		return nil
	}
}

func (e *Engine) deleteEmbedding(newRAG RAGFactory) StepFunc {
	return func(ctx context.Context, wc Context) error {
		id, ok := MemoryID(wc.Payload)
		if !ok {
			e.logger.Warn("payload has no usable memory id", "event", wc.Event, "value", wc.Payload[PayloadMemoryID])
			return nil
		}
		return newRAG(wc.Session).DeleteMemoryEmbedding(ctx, id)
	}
}

// MemoryID extracts the memory id from payload. It accepts a uuid.UUID, a
// *uuid.UUID, or anything whose string form parses as a UUID.
func MemoryID(payload map[string]any) (uuid.UUID, bool) {
	var s string
	switch v := payload[PayloadMemoryID].(type) {
	case uuid.UUID:
		return v, v != uuid.Nil
	case *uuid.UUID:
		if v == nil {
			return uuid.Nil, false
		}
		return *v, *v != uuid.Nil
	case string:
		s = v
	case []byte:
		s = string(v)
	case fmt.Stringer:
		s = v.String()
	default:
		return uuid.Nil, false
	}
	id, err := uuid.Parse(s)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}
