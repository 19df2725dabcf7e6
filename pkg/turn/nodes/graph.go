package nodes

import (
	"context"

	"github.com/parietal-ai/parietal/pkg/turn"
)

// Graph is the static turn graph: router, a route-dependent middle section,
// then answer, reflect, and memory writer.
type Graph struct {
	router          runner
	contextBuilder  runner
	memoryRetriever runner
	worldModifier   runner
	answer          runner
	reflectTopics   runner
	memoryWriter    runner
}

// Build assembles the graph from its node factories.
func Build(deps *turn.Deps, services *turn.Services) *Graph {
	return &Graph{
		router:          &routerNode{deps: deps},
		contextBuilder:  &contextBuilderNode{deps: deps, services: services},
		memoryRetriever: &memoryRetrieverNode{deps: deps, services: services},
		worldModifier:   &worldModifierNode{deps: deps, services: services},
		answer:          &answerNode{deps: deps},
		reflectTopics:   &reflectTopicsNode{deps: deps},
		memoryWriter:    &memoryWriterNode{deps: deps, services: services},
	}
}

// Invoke runs the graph for one turn. The first failing node aborts the turn.
func (g *Graph) Invoke(ctx context.Context, state *turn.State) error {
	if err := g.router.Run(ctx, state); err != nil {
		return err
	}

	switch state.Task.Route {
	case turn.RouteContext:
		if err := g.contextBuilder.Run(ctx, state); err != nil {
			return err
		}
		if state.Context.MemoryRequest != nil {
			if err := g.memoryRetriever.Run(ctx, state); err != nil {
				return err
			}
		}
	case turn.RouteWorld:
		if err := g.worldModifier.Run(ctx, state); err != nil {
			return err
		}
	}

	if err := g.answer.Run(ctx, state); err != nil {
		return err
	}
	if err := g.reflectTopics.Run(ctx, state); err != nil {
		return err
	}
	return g.memoryWriter.Run(ctx, state)
}
