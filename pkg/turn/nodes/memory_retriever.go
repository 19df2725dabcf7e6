package nodes

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/parietal-ai/parietal/pkg/jsonx"
	"github.com/parietal-ai/parietal/pkg/llm"
	"github.com/parietal-ai/parietal/pkg/tools"
	"github.com/parietal-ai/parietal/pkg/turn"
)

// memoryRetrieverNode satisfies the builder's memory request by querying the
// memory service through its toolset. The tool result is authoritative for
// the recalled items; the model's final JSON only reports what it did.
type memoryRetrieverNode struct {
	deps     *turn.Deps
	services *turn.Services
}

func (n *memoryRetrieverNode) ID() string { return tools.NodeMemoryRetriever }

func (n *memoryRetrieverNode) Run(ctx context.Context, state *turn.State) error {
	return runSpanned(state, n.ID(), "retrieve memories", func(span *turn.Span) error {
		request := state.Context.MemoryRequest
		if request == nil {
			request = &turn.MemoryRequest{K: defaultMemoryK}
		}

		rendered, err := n.deps.Prompts.LoadAndRender("runtime_memory_retriever", map[string]string{
			"USER_MESSAGE":        state.Task.UserText,
			"NOW":                 state.Runtime.NowISO,
			"TZ":                  state.Runtime.Timezone,
			"MEMORY_REQUEST_JSON": jsonToken(request),
		})
		if err != nil {
			return err
		}

		// Capture items from the last successful memory_query result.
		var queried []map[string]any
		onToolResult := func(name, resultJSON string, ok bool) {
			if name != "memory_query" || !ok {
				return
			}
			var result struct {
				OK    bool             `json:"ok"`
				Items []map[string]any `json:"items"`
			}
			if json.Unmarshal([]byte(resultJSON), &result) == nil && result.OK {
				queried = result.Items
			}
		}

		role := n.deps.Role(turn.RoleReflect)
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
			DidQuery  bool             `json:"did_query"`
			QueryText string           `json:"query_text"`
			DesiredN  int              `json:"desired_n"`
			Items     []map[string]any `json:"items"`
		}
		if err := jsonx.ExtractInto(text, &report); err != nil {
			return err
		}

		if !report.DidQuery {
			state.Context.AddIssue("memory_retriever: did_query=false")
			return nil
		}

		items := queried
		if items == nil {
			items = report.Items
		}
		if items == nil {
			items = []map[string]any{}
		}
		desired := report.DesiredN
		if desired <= 0 {
			desired = request.K
		}

		state.Context.AddSource(turn.Source{
			Kind:  "memories",
			Title: "recalled memories",
			Items: items,
			Meta: map[string]any{
				"query_text":      report.QueryText,
				"requested_limit": desired,
				"returned":        len(items),
			},
		})
		state.Context.AddIssue(fmt.Sprintf("memory_retriever: did_query=true returned=%d", len(items)))
		return nil
	})
}
