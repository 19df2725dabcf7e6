package nodes

import (
	"context"
	"encoding/json"

	"github.com/parietal-ai/parietal/pkg/jsonx"
	"github.com/parietal-ai/parietal/pkg/llm"
	"github.com/parietal-ai/parietal/pkg/tools"
	"github.com/parietal-ai/parietal/pkg/turn"
)

// worldModifierNode translates the user's intent into world_apply_ops calls.
// The tool result carries the updated world; the model's final JSON is only a
// human-readable summary.
type worldModifierNode struct {
	deps     *turn.Deps
	services *turn.Services
}

func (n *worldModifierNode) ID() string { return tools.NodeWorldModifier }

func (n *worldModifierNode) Run(ctx context.Context, state *turn.State) error {
	return runSpanned(state, n.ID(), "modify world", func(span *turn.Span) error {
		rendered, err := n.deps.Prompts.LoadAndRender("runtime_world_modifier", map[string]string{
			"USER_MESSAGE": state.Task.UserText,
			"NOW":          state.Runtime.NowISO,
			"TZ":           state.Runtime.Timezone,
			"WORLD_JSON":   jsonToken(state.World),
		})
		if err != nil {
			return err
		}

		// Each accepted world_apply_ops result replaces the turn's working
		// world and is surfaced as a world_update snapshot.
		onToolResult := func(name, resultJSON string, ok bool) {
			if name != "world_apply_ops" || !ok {
				return
			}
			var result struct {
				OK    bool           `json:"ok"`
				World map[string]any `json:"world"`
			}
			if json.Unmarshal([]byte(resultJSON), &result) != nil || !result.OK || result.World == nil {
				return
			}
			state.World = result.World
			state.Emitter.WorldUpdate(result.World)
		}

		role := n.deps.Role(turn.RolePlanner)
		text, err := turn.RunToolLoop(ctx, span, turn.ToolLoopRequest{
			Provider:     n.deps.Provider,
			Model:        role.Model,
			Messages:     []llm.Message{{Role: "user", Content: rendered}},
			Params:       role.Params,
			Toolset:      n.services.Toolkit.ForNode(n.ID()),
			MaxSteps:     n.deps.ToolStepLimit,
			OnToolResult: onToolResult,
		})
		if err != nil {
			return err
		}

		var report struct {
			Summary string `json:"summary"`
		}
		if err := jsonx.ExtractInto(text, &report); err != nil {
			return err
		}
		if report.Summary != "" {
			state.Runtime.Status = report.Summary
		}
		return nil
	})
}
