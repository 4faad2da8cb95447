package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"minddock/internal/domain"
	"minddock/internal/llm"
	"minddock/internal/rag"
	"minddock/internal/summarizer"
)

// ErrEmptyMessage is returned by Chat for a blank message.
var ErrEmptyMessage = errors.New("message is required")

const systemPrompt = "You are MindDock, an AI assistant that helps organize and synthesize " +
	"captured memories, tasks, and ideas for the user."

// ChatRequest asks the assistant a question. Without MemoryIDs the most
// relevant memories of OwnerID are retrieved instead.
type ChatRequest struct {
	OwnerID   uuid.UUID
	Message   string
	MemoryIDs []uuid.UUID
	History   []llm.Message
}

type ChatResponse struct {
	Reply         string
	UsedMemoryIDs []uuid.UUID
}

// AssistantService answers questions grounded in the user's memories.
type AssistantService struct {
	memories    domain.MemoryStore
	rag         *rag.Engine
	model       llm.LLM
	summarizer  *summarizer.FrequencySummarizer
	maxSnippets int
	logger      *log.Logger
}

// NewAssistantService builds the service. A nil model selects the local
// summary reply; a nil engine disables retrieval.
func NewAssistantService(memories domain.MemoryStore, engine *rag.Engine, model llm.LLM, maxSnippets int, logger *log.Logger) *AssistantService {
	if maxSnippets <= 0 {
		maxSnippets = 3
	}
	if logger == nil {
		logger = log.Default()
	}
	return &AssistantService{
		memories:    memories,
		rag:         engine,
		model:       model,
		summarizer:  summarizer.NewFrequencySummarizer(),
		maxSnippets: maxSnippets,
		logger:      logger,
	}
}

func (s *AssistantService) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, ErrEmptyMessage
	}
	memories, err := s.collect(ctx, req)
	if err != nil {
		return nil, err
	}

	snippets := make([]string, len(memories))
	used := make([]uuid.UUID, len(memories))
	for i, m := range memories {
		snippets[i] = snippet(m)
		used[i] = m.ID
	}

	var reply string
	if s.model == nil {
		reply = s.fallbackReply(req.Message, memories, snippets)
	} else {
		reply, err = s.model.Chat(ctx, buildSystemPrompt(snippets), buildMessages(req))
		if err != nil {
			return nil, fmt.Errorf("%s chat: %w", s.model.Name(), err)
		}
	}
	return &ChatResponse{Reply: reply, UsedMemoryIDs: used}, nil
}

func (s *AssistantService) collect(ctx context.Context, req ChatRequest) ([]*domain.Memory, error) {
	if len(req.MemoryIDs) > 0 {
		var out []*domain.Memory
		for _, id := range req.MemoryIDs {
			m, err := s.memories.Get(ctx, id)
			if err != nil {
				return nil, err
			}
			if m == nil || (req.OwnerID != uuid.Nil && m.OwnerID != req.OwnerID) {
				continue
			}
			out = append(out, m)
		}
		return out, nil
	}
	if s.rag == nil || !s.rag.Enabled() || req.OwnerID == uuid.Nil {
		return nil, nil
	}
	results, err := s.rag.Search(ctx, req.Message, req.OwnerID, s.maxSnippets)
	if err != nil {
		// retrieval is best effort; answer without context
		s.logger.Warn("memory retrieval failed", "owner_id", req.OwnerID, "err", err)
		return nil, nil
	}
	out := make([]*domain.Memory, len(results))
	for i, r := range results {
		out[i] = r.Memory
	}
	return out, nil
}

func (s *AssistantService) fallbackReply(message string, memories []*domain.Memory, snippets []string) string {
	if len(snippets) == 0 {
		return "(local reply) No memories are linked yet. Prioritise what this message asks for " +
			"and save the notes you need to MindDock."
	}
	if len(snippets) > s.maxSnippets {
		snippets = snippets[:s.maxSnippets]
		memories = memories[:s.maxSnippets]
	}
	var corpus strings.Builder
	for _, m := range memories {
		corpus.WriteString(m.Content)
		corpus.WriteString("\n")
	}
	var b strings.Builder
	b.WriteString("(local summary mode) Summarising the linked memories.\n")
	fmt.Fprintf(&b, "Question: %s\n\n", message)
	fmt.Fprintf(&b, "Memories:\n%s\n\n", strings.Join(snippets, "\n\n"))
	if summary := s.summarizer.Summarize(corpus.String(), 3); summary != "" {
		fmt.Fprintf(&b, "Summary: %s\n\n", summary)
	}
	b.WriteString("Next: review these memories and pull out the action items they imply.")
	return b.String()
}

func snippet(m *domain.Memory) string {
	tags := "none"
	if len(m.Tags) > 0 {
		tags = strings.Join(m.Tags, ", ")
	}
	return fmt.Sprintf("Title: %s\nContent: %s\nTags: %s", m.Title, m.Content, tags)
}

func buildSystemPrompt(snippets []string) string {
	if len(snippets) == 0 {
		return systemPrompt
	}
	return systemPrompt + "\n\nHere are relevant memories captured by the user:\n" + strings.Join(snippets, "\n\n")
}

// buildMessages keeps user and assistant turns of the history and appends the message.
func buildMessages(req ChatRequest) []llm.Message {
	msgs := make([]llm.Message, 0, len(req.History)+1)
	for _, h := range req.History {
		if (h.Role == "user" || h.Role == "assistant") && h.Content != "" {
			msgs = append(msgs, h)
		}
	}
	return append(msgs, llm.Message{Role: "user", Content: req.Message})
}
