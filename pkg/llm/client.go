// Package llm defines the streaming LLM provider contract and its
// Ollama-backed implementation.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
)

// Provider is the interface for calling an LLM backend.
// It provides a channel-based streaming API: the returned channel is closed
// when the stream completes, and transport errors are delivered as a single
// ErrorEvent value before close.
type Provider interface {
	// Name identifies the provider for turn_start events and logs.
	Name() string

	// Stream sends a conversation and returns a stream of events.
	Stream(ctx context.Context, req *Request) (<-chan Event, error)

	// Chat sends a conversation without streaming and returns the final
	// assistant text.
	Chat(ctx context.Context, req *Request) (string, error)

	// ListModels returns the model names available on the backend.
	ListModels(ctx context.Context) ([]string, error)

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error
}

// Request describes one model invocation.
type Request struct {
	Model    string
	Messages []Message
	Params   Params
	// ResponseFormat may be "json" to bias toward a JSON-only completion.
	// Must not be combined with a non-empty Tools list.
	ResponseFormat string
	Tools          []ToolDefinition // nil = no tools
}

// Validate checks request invariants shared by all providers.
func (r *Request) Validate() error {
	if r.Model == "" {
		return &Error{Message: "request has no model"}
	}
	if r.ResponseFormat != "" && len(r.Tools) > 0 {
		return &Error{Message: "response_format cannot be combined with tools"}
	}
	return nil
}

// Message is one conversation entry.
type Message struct {
	Role       string // "system", "user", "assistant", "tool"
	Content    string
	Thinking   string     // for assistant messages with visible reasoning
	ToolCalls  []ToolCall // for assistant messages
	ToolCallID string     // for tool result messages
	ToolName   string     // for tool result messages
}

// ToolDefinition describes a tool available to the model.
type ToolDefinition struct {
	Name             string
	Description      string
	ParametersSchema json.RawMessage // JSON Schema for the arguments object
}

// ToolCall is the model's request to call a tool.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // JSON
}

// Params are sampling options forwarded to the backend. Nil fields are
// omitted from the wire request so backend defaults apply.
type Params struct {
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty" yaml:"top_p,omitempty"`
	TopK        *int     `json:"top_k,omitempty" yaml:"top_k,omitempty"`
	Seed        *int     `json:"seed,omitempty" yaml:"seed,omitempty"`
	NumCtx      *int     `json:"num_ctx,omitempty" yaml:"num_ctx,omitempty"`
	Stop        []string `json:"stop,omitempty" yaml:"stop,omitempty"`
}

// Event is the interface for all streaming event types.
type Event interface {
	eventType() EventType
}

// EventType identifies the kind of streaming event.
type EventType string

const (
	EventTypeDeltaText     EventType = "delta_text"
	EventTypeDeltaThinking EventType = "delta_thinking"
	EventTypeToolCall      EventType = "tool_call"
	EventTypeUsage         EventType = "usage"
	EventTypeDone          EventType = "done"
	EventTypeError         EventType = "error"
)

// DeltaTextEvent is a chunk of the model's text response.
type DeltaTextEvent struct{ Text string }

// DeltaThinkingEvent is a chunk of the model's internal reasoning.
type DeltaThinkingEvent struct{ Text string }

// ToolCallEvent signals the model wants to call a tool.
type ToolCallEvent struct{ Call ToolCall }

// UsageEvent reports token consumption for this call.
type UsageEvent struct{ PromptTokens, CompletionTokens int }

// DoneEvent marks the end of a successful stream.
type DoneEvent struct{}

// ErrorEvent signals a provider failure; the stream ends after it.
type ErrorEvent struct{ Message string }

func (e *DeltaTextEvent) eventType() EventType     { return EventTypeDeltaText }
func (e *DeltaThinkingEvent) eventType() EventType { return EventTypeDeltaThinking }
func (e *ToolCallEvent) eventType() EventType      { return EventTypeToolCall }
func (e *UsageEvent) eventType() EventType         { return EventTypeUsage }
func (e *DoneEvent) eventType() EventType          { return EventTypeDone }
func (e *ErrorEvent) eventType() EventType         { return EventTypeError }

// Error is a provider transport or response failure.
type Error struct {
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("provider error: %s: %v", e.Message, e.Cause)
	}
	return "provider error: " + e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Code returns the stable error code for provider failures.
func (e *Error) Code() string { return "PROVIDER_ERROR" }
