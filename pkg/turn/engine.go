package turn

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/parietal-ai/parietal/pkg/events"
	"github.com/parietal-ai/parietal/pkg/history"
	"github.com/parietal-ai/parietal/pkg/world"
)

// ErrBusy is returned when a turn is submitted while another is running.
// The engine is not reentrant: one turn at a time.
var ErrBusy = errors.New("engine is busy with another turn")

// Engine composes the runner with the durable side-channels: it loads the
// world at turn start, appends the user and assistant messages to chat
// history, and serializes turns.
type Engine struct {
	Runner   *Runner
	Graph    Graph
	History  *history.Log
	Timezone string
	Logger   *slog.Logger

	mu      sync.Mutex
	running bool
}

// NewEngine creates an Engine.
func NewEngine(runner *Runner, graph Graph, hist *history.Log, timezone string) *Engine {
	return &Engine{
		Runner:   runner,
		Graph:    graph,
		History:  hist,
		Timezone: timezone,
		Logger:   slog.Default(),
	}
}

// Busy reports whether a turn is currently running.
func (e *Engine) Busy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// RunTurn executes one turn for userText and returns the live event stream.
// Returns ErrBusy when another turn is still running. The stream closes
// after the final turn_end event; the assistant answer is appended to chat
// history before close.
func (e *Engine) RunTurn(ctx context.Context, userText string) (<-chan events.Event, error) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil, ErrBusy
	}
	e.running = true
	e.mu.Unlock()

	release := func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}

	now := time.Now().UTC()
	nowISO := now.Format("2006-01-02T15:04:05Z")

	w, err := world.Load(e.Runner.WorldPath, nowISO, e.Timezone)
	if err != nil {
		release()
		return nil, err
	}

	if err := e.History.Append(history.RoleHuman, userText); err != nil {
		release()
		return nil, err
	}

	state := NewState(userText, nowISO, e.Timezone, w)

	inner := e.Runner.Run(ctx, e.Graph, state)
	out := make(chan events.Event, 64)
	go func() {
		defer close(out)
		defer release()
		for ev := range inner {
			out <- ev
		}
		if state.Final.Answer != "" {
			if err := e.History.Append(history.RoleAssistant, state.Final.Answer); err != nil {
				e.Logger.Error("Failed to append assistant turn to history", "error", err)
			}
		}
	}()
	return out, nil
}
