package nodes

import (
	"context"
	"fmt"

	"github.com/parietal-ai/parietal/pkg/jsonx"
	"github.com/parietal-ai/parietal/pkg/llm"
	"github.com/parietal-ai/parietal/pkg/tools"
	"github.com/parietal-ai/parietal/pkg/turn"
)

// routerNode classifies the user message into a route and language. Its
// delta_text is structured output, never forwarded as thinking.
type routerNode struct {
	deps *turn.Deps
}

func (n *routerNode) ID() string { return tools.NodeRouter }

func (n *routerNode) Run(ctx context.Context, state *turn.State) error {
	return runSpanned(state, n.ID(), "route", func(span *turn.Span) error {
		rendered, err := n.deps.Prompts.LoadAndRender("runtime_router", map[string]string{
			"USER_MESSAGE": state.Task.UserText,
			"NOW":          state.Runtime.NowISO,
			"TZ":           state.Runtime.Timezone,
			"WORLD_JSON":   jsonToken(state.World),
		})
		if err != nil {
			return err
		}

		role := n.deps.Role(turn.RoleRouter)
		text, err := turn.RunToolLoop(ctx, span, turn.ToolLoopRequest{
			Provider:       n.deps.Provider,
			Model:          role.Model,
			Messages:       []llm.Message{{Role: "user", Content: rendered}},
			Params:         role.Params,
			ResponseFormat: role.ResponseFormat,
			MaxSteps:       1,
		})
		if err != nil {
			return err
		}

		var decision struct {
			Route    string `json:"route"`
			Language string `json:"language"`
			Status   string `json:"status"`
		}
		if err := jsonx.ExtractInto(text, &decision); err != nil {
			return err
		}

		switch decision.Route {
		case turn.RouteAnswer, turn.RouteContext, turn.RouteWorld:
			state.Task.Route = decision.Route
		default:
			state.Runtime.AddIssue(fmt.Sprintf("router: unknown route %q, defaulting to answer", decision.Route))
			state.Task.Route = turn.RouteAnswer
		}
		if decision.Language != "" {
			state.Task.Language = decision.Language
		}
		if decision.Status != "" {
			state.Runtime.Status = decision.Status
		}

		span.Log("info", "routed", "router", map[string]any{
			"route":    state.Task.Route,
			"language": state.Task.Language,
		})
		return nil
	})
}
