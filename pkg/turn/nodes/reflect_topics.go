package nodes

import (
	"context"
	"strings"

	"github.com/parietal-ai/parietal/pkg/jsonx"
	"github.com/parietal-ai/parietal/pkg/llm"
	"github.com/parietal-ai/parietal/pkg/tools"
	"github.com/parietal-ai/parietal/pkg/turn"
)

const maxTopics = 5

// reflectTopicsNode distills the turn into a short topic list stored on the
// world under "topics".
type reflectTopicsNode struct {
	deps *turn.Deps
}

func (n *reflectTopicsNode) ID() string { return tools.NodeReflectTopics }

func (n *reflectTopicsNode) Run(ctx context.Context, state *turn.State) error {
	return runSpanned(state, n.ID(), "reflect topics", func(span *turn.Span) error {
		rendered, err := n.deps.Prompts.LoadAndRender("runtime_reflect_topics", map[string]string{
			"USER_MESSAGE": state.Task.UserText,
			"ANSWER":       state.Final.Answer,
			"WORLD_JSON":   jsonToken(state.World),
		})
		if err != nil {
			return err
		}

		role := n.deps.Role(turn.RoleReflect)
		text, err := turn.RunToolLoop(ctx, span, turn.ToolLoopRequest{
			Provider:       n.deps.Provider,
			Model:          role.Model,
			Messages:       []llm.Message{{Role: "user", Content: rendered}},
			Params:         role.Params,
			ResponseFormat: "json",
			MaxSteps:       1,
		})
		if err != nil {
			return err
		}

		var report struct {
			Topics []string `json:"topics"`
		}
		if err := jsonx.ExtractInto(text, &report); err != nil {
			return err
		}

		topics := dedupTopics(report.Topics, maxTopics)
		if len(topics) > 0 {
			state.World["topics"] = topics
		}
		span.Log("info", "reflected topics", "reflect", map[string]any{"count": len(topics)})
		return nil
	})
}

// dedupTopics trims, drops empties, and removes case-insensitive duplicates
// while preserving first-seen order, capped at limit.
func dedupTopics(raw []string, limit int) []string {
	seen := make(map[string]bool, len(raw))
	var topics []string
	for _, topic := range raw {
		topic = strings.TrimSpace(topic)
		if topic == "" {
			continue
		}
		key := strings.ToLower(topic)
		if seen[key] {
			continue
		}
		seen[key] = true
		topics = append(topics, topic)
		if len(topics) == limit {
			break
		}
	}
	return topics
}
