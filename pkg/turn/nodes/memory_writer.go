package nodes

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/parietal-ai/parietal/pkg/llm"
	"github.com/parietal-ai/parietal/pkg/tools"
	"github.com/parietal-ai/parietal/pkg/turn"
)

// memoryWriterNode persists anything worth remembering from the turn through
// memory_store. The stored count comes from observed tool results, not the
// model's final text, which is accepted even when it is not JSON.
type memoryWriterNode struct {
	deps     *turn.Deps
	services *turn.Services
}

func (n *memoryWriterNode) ID() string { return tools.NodeMemoryWriter }

func (n *memoryWriterNode) Run(ctx context.Context, state *turn.State) error {
	return runSpanned(state, n.ID(), "write memories", func(span *turn.Span) error {
		rendered, err := n.deps.Prompts.LoadAndRender("runtime_memory_writer", map[string]string{
			"USER_MESSAGE": state.Task.UserText,
			"ANSWER":       state.Final.Answer,
			"NOW":          state.Runtime.NowISO,
			"TZ":           state.Runtime.Timezone,
		})
		if err != nil {
			return err
		}

		stored := 0
		onToolResult := func(name, resultJSON string, ok bool) {
			if name != "memory_store" || !ok {
				return
			}
			var result struct {
				OK bool `json:"ok"`
			}
			if json.Unmarshal([]byte(resultJSON), &result) == nil && result.OK {
				stored++
			}
		}

		role := n.deps.Role(turn.RoleReflect)
		_, err = turn.RunToolLoop(ctx, span, turn.ToolLoopRequest{
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

		state.Context.AddIssue(fmt.Sprintf("memory_writer: stored_count=%d", stored))
		state.Context.AddSource(turn.Source{
			Kind:  "notes",
			Title: "memory writes",
			Items: []map[string]any{{"stored_count": stored}},
		})
		return nil
	})
}
