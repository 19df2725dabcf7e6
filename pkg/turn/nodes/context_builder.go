package nodes

import (
	"context"
	"fmt"

	"github.com/parietal-ai/parietal/pkg/jsonx"
	"github.com/parietal-ai/parietal/pkg/llm"
	"github.com/parietal-ai/parietal/pkg/tools"
	"github.com/parietal-ai/parietal/pkg/turn"
)

const (
	defaultMemoryK = 5
	maxMemoryK     = 16
)

// contextBuilderNode plans context acquisition: it may consult chat history
// through its toolset and emits a memory request for the retriever.
type contextBuilderNode struct {
	deps     *turn.Deps
	services *turn.Services
}

func (n *contextBuilderNode) ID() string { return tools.NodeContextBuilder }

func (n *contextBuilderNode) Run(ctx context.Context, state *turn.State) error {
	return runSpanned(state, n.ID(), "build context", func(span *turn.Span) error {
		rendered, err := n.deps.Prompts.LoadAndRender("runtime_context_builder", map[string]string{
			"USER_MESSAGE": state.Task.UserText,
			"NOW":          state.Runtime.NowISO,
			"TZ":           state.Runtime.Timezone,
			"WORLD_JSON":   jsonToken(state.World),
		})
		if err != nil {
			return err
		}

		role := n.deps.Role(turn.RolePlanner)
		text, err := turn.RunToolLoop(ctx, span, turn.ToolLoopRequest{
			Provider: n.deps.Provider,
			Model:    role.Model,
			Messages: []llm.Message{{Role: "user", Content: rendered}},
			Params:   role.Params,
			Toolset:  n.services.Toolkit.ForNode(n.ID()),
			MaxSteps: n.deps.ToolStepLimit,
		})
		if err != nil {
			return err
		}

		var plan struct {
			Summary       string `json:"summary"`
			MemoryRequest *struct {
				K     int    `json:"k"`
				Query string `json:"query"`
			} `json:"memory_request"`
		}
		if err := jsonx.ExtractInto(text, &plan); err != nil {
			return err
		}

		if plan.MemoryRequest != nil {
			k := plan.MemoryRequest.K
			if k <= 0 {
				k = defaultMemoryK
			}
			if k > maxMemoryK {
				k = maxMemoryK
			}
			state.Context.MemoryRequest = &turn.MemoryRequest{
				K:     k,
				Query: plan.MemoryRequest.Query,
			}
			state.Context.AddIssue(fmt.Sprintf("context_builder: memory_request k=%d", k))
		} else {
			state.Context.AddIssue("context_builder: no memory request")
		}

		if plan.Summary != "" {
			state.Context.AddSource(turn.Source{
				Kind:  "notes",
				Title: "context plan",
				Items: []map[string]any{{"summary": plan.Summary}},
			})
		}
		return nil
	})
}
