// Package workflow dispatches named domain events to ordered lists of steps.
package workflow

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"minddock/internal/domain"
)

// Context is handed to every step of one Trigger call. Session belongs to the
// caller and must not be kept after the step returns.
type Context struct {
	Event   string
	Session domain.Session
	Payload map[string]any
}

// StepFunc does the work of a step.
type StepFunc func(ctx context.Context, wc Context) error

// Step is a named unit of work. The name shows up in failure logs.
type Step struct {
	Name string
	Run  StepFunc
}

// Workflow binds an ordered list of steps to an event.
type Workflow struct {
	Name  string
	Event string
	Steps []Step
}

// Engine keeps workflows per event in registration order.
type Engine struct {
	mu        sync.RWMutex
	workflows map[string][]Workflow
	logger    *log.Logger
}

// NewEngine returns an empty engine. A nil logger means log.Default().
func NewEngine(logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{workflows: map[string][]Workflow{}, logger: logger}
}

// Register appends w to the workflows of its event.
func (e *Engine) Register(w Workflow) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.workflows[w.Event] = append(e.workflows[w.Event], w)
}

// Workflows returns a copy of what is registered for event.
func (e *Engine) Workflows(event string) []Workflow {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]Workflow(nil), e.workflows[event]...)
}

// Trigger runs every step registered for event, synchronously and in order.
// A failing or panicking step is logged and skipped; it never stops later
// steps and never reaches the caller. Triggering an event without workflows
// does nothing.
func (e *Engine) Trigger(ctx context.Context, event string, session domain.Session, payload map[string]any) {
	workflows := e.Workflows(event)
	if len(workflows) == 0 {
		return
	}
	wc := Context{Event: event, Session: session, Payload: payload}
	for _, w := range workflows {
		for i, step := range w.Steps {
			if err := runStep(ctx, step, wc); err != nil {
				e.logger.Error("workflow step failed",
					"workflow", w.Name, "event", event, "step", stepName(step, i), "err", err)
			}
		}
	}
}

// Clear drops every registration. Tests use it to start from scratch.
func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.workflows = map[string][]Workflow{}
}

func runStep(ctx context.Context, step Step, wc Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	if step.Run == nil {
		return fmt.Errorf("step has no function")
	}
	return step.Run(ctx, wc)
}

func stepName(step Step, i int) string {
	if step.Name != "" {
		return step.Name
	}
	return fmt.Sprintf("#%d", i)
}
