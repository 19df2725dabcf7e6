package nodes

import (
	"context"
	"strings"

	"github.com/parietal-ai/parietal/pkg/llm"
	"github.com/parietal-ai/parietal/pkg/tools"
	"github.com/parietal-ai/parietal/pkg/turn"
)

// answerNode produces the user-facing reply. It runs without tools and
// streams its delta_text as assistant_delta events.
type answerNode struct {
	deps *turn.Deps
}

func (n *answerNode) ID() string { return tools.NodeAnswer }

func (n *answerNode) Run(ctx context.Context, state *turn.State) error {
	return runSpanned(state, n.ID(), "answer", func(span *turn.Span) error {
		rendered, err := n.deps.Prompts.LoadAndRender("runtime_answer", map[string]string{
			"USER_MESSAGE": state.Task.UserText,
			"STATUS":       state.Runtime.Status,
			"WORLD_JSON":   jsonToken(state.World),
			"CONTEXT_JSON": jsonToken(state.Context),
			"ISSUES_JSON":  jsonToken(state.Runtime.Issues),
			"NOW_ISO":      state.Runtime.NowISO,
			"TIMEZONE":     state.Runtime.Timezone,
		})
		if err != nil {
			return err
		}

		messageID := state.Emitter.AssistantStart()

		var partial strings.Builder
		role := n.deps.Role(turn.RoleAnswer)
		text, err := turn.RunToolLoop(ctx, span, turn.ToolLoopRequest{
			Provider: n.deps.Provider,
			Model:    role.Model,
			Messages: []llm.Message{{Role: "user", Content: rendered}},
			Params:   role.Params,
			MaxSteps: 1,
			OnText: func(chunk string) {
				partial.WriteString(chunk)
				state.Emitter.AssistantDelta(messageID, chunk)
			},
		})
		if err != nil {
			// Close the assistant group with whatever streamed so consumers
			// always see a balanced start/delta*/end sequence.
			state.Emitter.AssistantEnd(messageID, partial.String())
			return err
		}

		state.Emitter.AssistantEnd(messageID, text)
		state.Final.Answer = text
		return nil
	})
}
