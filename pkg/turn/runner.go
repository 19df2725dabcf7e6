package turn

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/parietal-ai/parietal/pkg/events"
	"github.com/parietal-ai/parietal/pkg/world"
)

// Graph executes the compiled node graph against a turn state.
type Graph interface {
	Invoke(ctx context.Context, state *State) error
}

// Runner orchestrates one turn: it installs the emitter, runs the graph on
// a background worker, streams events live, and finalizes with world_commit
// and a turn_end event.
type Runner struct {
	Deps      *Deps
	WorldPath string
	Logger    *slog.Logger
}

// NewRunner creates a Runner.
func NewRunner(deps *Deps, worldPath string) *Runner {
	return &Runner{Deps: deps, WorldPath: worldPath, Logger: slog.Default()}
}

// Run executes the graph for state and returns the live event stream. The
// channel closes after the final turn_end event. The worker always runs to
// completion even if the consumer stops reading early.
func (r *Runner) Run(ctx context.Context, graph Graph, state *State) <-chan events.Event {
	if state.Runtime.TurnID == "" {
		state.Runtime.TurnID = uuid.NewString()
	}

	factory := events.NewFactory(state.Runtime.TurnID)
	bus := events.NewBus()
	state.Emitter = NewEmitter(factory, bus)

	started := time.Now()
	state.Emitter.StartTurn(state.Task.UserText, r.Deps.Provider.Name(), r.Deps.ModelNames())

	worldBefore := world.Clone(state.World)

	var workerDone atomic.Bool
	workerErr := make(chan error, 1)
	go func() {
		err := graph.Invoke(ctx, state)
		workerErr <- err
		workerDone.Store(true)
		bus.Wake()
	}()

	out := make(chan events.Event, 64)
	go func() {
		defer close(out)

		for ev := range bus.EventsLive(workerDone.Load) {
			out <- ev
		}

		err := <-workerErr
		if err != nil {
			r.Logger.Error("Turn failed", "turn_id", state.Runtime.TurnID, "error", err)
			state.Emitter.EndTurnError(ErrorCode(err, "TURN_ERROR"), err.Error())
		} else {
			worldAfter := world.Clone(state.World)
			delta := world.Delta(worldBefore, worldAfter)
			if len(delta) > 0 && r.WorldPath != "" {
				if commitErr := world.Commit(r.WorldPath, worldAfter); commitErr != nil {
					r.Logger.Error("World commit failed",
						"turn_id", state.Runtime.TurnID, "error", commitErr)
					state.Emitter.Log("error", "world commit failed: "+commitErr.Error(), "runner", nil)
				}
			}
			state.Emitter.WorldCommit(worldBefore, worldAfter, delta)
			state.Emitter.EndTurnOK(time.Since(started))
		}

		bus.Close()
		for _, ev := range bus.Events() {
			out <- ev
		}
	}()
	return out
}
