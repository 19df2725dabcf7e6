// Package nodes implements the graph node kinds and the static graph that
// wires them: router, context builder, memory retriever, world modifier,
// answer, reflect topics, and memory writer.
package nodes

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/parietal-ai/parietal/pkg/turn"
)

// runner is the common node contract the graph executes.
type runner interface {
	ID() string
	Run(ctx context.Context, state *turn.State) error
}

// runSpanned wraps a node body in the span lifecycle: node_start +
// thinking_start on entry, thinking_end + node_end_* on exit, with the error
// translated to a span code.
func runSpanned(state *turn.State, id, label string, fn func(span *turn.Span) error) error {
	state.Runtime.NodeTrace = append(state.Runtime.NodeTrace, id)
	span := state.Emitter.Span(id, label)
	if err := fn(span); err != nil {
		code, message := turn.SpanError(err)
		span.EndError(code, message, nil)
		return &turn.NodeError{NodeID: id, Err: err}
	}
	span.EndOK()
	return nil
}

// jsonToken renders a value as a compact JSON string for prompt tokens.
func jsonToken(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf(`{"error":%q}`, err.Error())
	}
	return string(raw)
}
