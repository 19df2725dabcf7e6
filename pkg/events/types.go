// Package events defines the per-turn event stream: typed event records,
// the factory that stamps them, and the FIFO bus that orders them.
package events

import (
	"encoding/json"
	"fmt"
)

// Kind identifies an event record type.
type Kind string

// Event kinds forming the turn stream contract. Consumers must ignore
// kinds they do not recognize.
const (
	KindTurnStart      Kind = "turn_start"
	KindTurnEndOK      Kind = "turn_end_ok"
	KindTurnEndError   Kind = "turn_end_error"
	KindNodeStart      Kind = "node_start"
	KindNodeEndOK      Kind = "node_end_ok"
	KindNodeEndError   Kind = "node_end_error"
	KindThinkingStart  Kind = "thinking_start"
	KindThinkingDelta  Kind = "thinking_delta"
	KindThinkingEnd    Kind = "thinking_end"
	KindAssistantStart Kind = "assistant_start"
	KindAssistantDelta Kind = "assistant_delta"
	KindAssistantEnd   Kind = "assistant_end"
	KindToolCall       Kind = "tool_call"
	KindToolResult     Kind = "tool_result"
	KindLogLine        Kind = "log_line"
	KindWorldUpdate    Kind = "world_update"
	KindWorldCommit    Kind = "world_commit"
)

// Event is one immutable record in the turn stream. Seq is assigned by the
// bus at enqueue time and is strictly monotonic per turn, starting at 1.
// Payload holds the kind-specific struct from payloads.go; on the wire its
// fields are flattened into the event object.
type Event struct {
	TurnID  string `json:"turn_id"`
	Seq     int64  `json:"seq"`
	TSMs    int64  `json:"ts_ms"`
	Kind    Kind   `json:"kind"`
	NodeID  string `json:"node_id,omitempty"`
	SpanID  string `json:"span_id,omitempty"`
	Payload any    `json:"-"`
}

// MarshalJSON flattens the payload fields into the event envelope.
func (e Event) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"turn_id": e.TurnID,
		"seq":     e.Seq,
		"ts_ms":   e.TSMs,
		"kind":    e.Kind,
	}
	if e.NodeID != "" {
		out["node_id"] = e.NodeID
	}
	if e.SpanID != "" {
		out["span_id"] = e.SpanID
	}
	if e.Payload != nil {
		raw, err := json.Marshal(e.Payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", e.Kind, err)
		}
		var fields map[string]any
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("flatten %s payload: %w", e.Kind, err)
		}
		for k, v := range fields {
			out[k] = v
		}
	}
	return json.Marshal(out)
}
