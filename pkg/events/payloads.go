package events

// Typed payload structs, one per event kind that carries fields beyond the
// envelope. Field names here are the wire contract for consumers.

// TurnStartPayload announces a new turn.
type TurnStartPayload struct {
	UserText string            `json:"user_text"`
	Provider string            `json:"provider"`
	Models   map[string]string `json:"models"` // role → model name
}

// TurnEndOKPayload closes a successful turn.
type TurnEndOKPayload struct {
	DurationMs int64 `json:"duration_ms"`
}

// TurnEndErrorPayload closes a failed turn.
type TurnEndErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NodeStartPayload opens a node span.
type NodeStartPayload struct {
	Label string `json:"label"`
}

// NodeEndOKPayload closes a node span successfully.
type NodeEndOKPayload struct {
	DurationMs int64 `json:"duration_ms"`
}

// NodeEndErrorPayload closes a node span with a failure.
type NodeEndErrorPayload struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	DurationMs int64          `json:"duration_ms"`
}

// ThinkingDeltaPayload is one chunk of model reasoning inside a span.
type ThinkingDeltaPayload struct {
	Text string `json:"text"`
}

// AssistantStartPayload opens an assistant message group.
type AssistantStartPayload struct {
	MessageID string `json:"message_id"`
}

// AssistantDeltaPayload is one chunk of user-facing assistant text.
type AssistantDeltaPayload struct {
	MessageID string `json:"message_id"`
	Text      string `json:"text"`
}

// AssistantEndPayload closes an assistant message group with the full text.
type AssistantEndPayload struct {
	MessageID string `json:"message_id"`
	Text      string `json:"text"`
}

// ToolCallPayload records the model requesting a tool invocation.
type ToolCallPayload struct {
	CallID    string `json:"call_id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // JSON
}

// ToolResultPayload records a completed tool invocation.
type ToolResultPayload struct {
	CallID string `json:"call_id"`
	Name   string `json:"name"`
	Result string `json:"result"` // JSON
	OK     bool   `json:"ok"`
}

// LogLinePayload is an engine diagnostic surfaced in-stream.
type LogLinePayload struct {
	Level   string         `json:"level"`
	Message string         `json:"message"`
	Logger  string         `json:"logger,omitempty"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// WorldUpdatePayload announces a mid-turn world mutation (pre-commit).
type WorldUpdatePayload struct {
	World map[string]any `json:"world"`
}

// WorldCommitPayload records the durable world transition for the turn.
type WorldCommitPayload struct {
	WorldBefore map[string]any `json:"world_before"`
	WorldAfter  map[string]any `json:"world_after"`
	Delta       map[string]any `json:"delta"`
}
