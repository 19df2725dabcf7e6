// Package turn implements the turn-execution engine: per-turn state, the
// emitter and node spans, the provider/tool loop, and the streaming runner.
package turn

import (
	"errors"
	"fmt"
)

// coder is implemented by errors that carry a stable taxonomy code.
type coder interface {
	Code() string
}

// ErrorCode walks the unwrap chain and returns the first stable code found,
// or fallback when none is present.
func ErrorCode(err error, fallback string) string {
	for err != nil {
		if c, ok := err.(coder); ok {
			return c.Code()
		}
		err = errors.Unwrap(err)
	}
	return fallback
}

// spanPassthroughCodes are surfaced on node_end_error as-is. Everything else
// is downgraded to NODE_ERROR with the original code folded into the message.
var spanPassthroughCodes = map[string]bool{
	"TOOL_STEP_LIMIT":  true,
	"PROVIDER_ERROR":   true,
	"TOOL_ERROR":       true,
	"MCP_ERROR":        true,
	"WORLD_OP_INVALID": true,
}

// SpanError resolves the code and message a span reports for err.
func SpanError(err error) (code, message string) {
	code = ErrorCode(err, "NODE_ERROR")
	message = err.Error()
	if !spanPassthroughCodes[code] {
		if code != "NODE_ERROR" {
			message = code + ": " + message
		}
		code = "NODE_ERROR"
	}
	return code, message
}

// StepLimitError reports a tool loop that ran past its step budget.
type StepLimitError struct {
	MaxSteps int
}

func (e *StepLimitError) Error() string {
	return fmt.Sprintf("tool loop exceeded %d steps", e.MaxSteps)
}

// Code returns the stable error code for step budget exhaustion.
func (e *StepLimitError) Code() string { return "TOOL_STEP_LIMIT" }

// NodeError wraps a node failure with the node id for observability.
type NodeError struct {
	NodeID string
	Err    error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s: %v", e.NodeID, e.Err)
}

func (e *NodeError) Unwrap() error { return e.Err }
