package turn

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/parietal-ai/parietal/pkg/llm"
	"github.com/parietal-ai/parietal/pkg/tools"
)

// ToolLoopRequest drives one provider↔tools conversation to completion.
type ToolLoopRequest struct {
	Provider llm.Provider
	Model    string
	Messages []llm.Message
	Params   llm.Params
	// ResponseFormat may force JSON output. Rejected when a toolset is
	// present: a JSON-only completion cannot carry tool calls.
	ResponseFormat string
	Toolset        *tools.Toolset
	MaxSteps       int

	// OnText receives each delta_text chunk, e.g. for assistant streaming.
	// The accumulated text is still returned at the end.
	OnText func(text string)
	// OnToolResult observes each tool outcome so nodes can treat specific
	// tool results as authoritative state.
	OnToolResult func(name, resultJSON string, ok bool)
}

const defaultMaxSteps = 6

// RunToolLoop repeatedly invokes the provider, forwarding thinking deltas to
// the span and executing requested tools, until the model produces a final
// message. Tool failures are conveyed back to the model as result payloads;
// only transport errors and the step budget terminate the loop.
func RunToolLoop(ctx context.Context, span *Span, req ToolLoopRequest) (string, error) {
	hasTools := req.Toolset != nil && !req.Toolset.Empty()
	if req.ResponseFormat != "" && hasTools {
		return "", &llm.Error{Message: "response_format cannot be combined with tools"}
	}
	maxSteps := req.MaxSteps
	if maxSteps <= 0 {
		maxSteps = defaultMaxSteps
	}

	messages := append([]llm.Message(nil), req.Messages...)

	var defs []llm.ToolDefinition
	if hasTools {
		defs = req.Toolset.Definitions()
	}

	var final strings.Builder
	for step := 1; step <= maxSteps; step++ {
		stream, err := req.Provider.Stream(ctx, &llm.Request{
			Model:          req.Model,
			Messages:       messages,
			Params:         req.Params,
			ResponseFormat: req.ResponseFormat,
			Tools:          defs,
		})
		if err != nil {
			return "", err
		}

		var stepText strings.Builder
		var stepThinking strings.Builder
		var calls []llm.ToolCall
		var streamErr error

		for ev := range stream {
			switch ev := ev.(type) {
			case *llm.DeltaTextEvent:
				stepText.WriteString(ev.Text)
				if req.OnText != nil {
					req.OnText(ev.Text)
				}
			case *llm.DeltaThinkingEvent:
				stepThinking.WriteString(ev.Text)
				span.Thinking(ev.Text)
			case *llm.ToolCallEvent:
				calls = append(calls, ev.Call)
			case *llm.UsageEvent:
				span.Log("debug", "llm usage", "toolloop", map[string]any{
					"prompt_tokens":     ev.PromptTokens,
					"completion_tokens": ev.CompletionTokens,
				})
			case *llm.ErrorEvent:
				streamErr = &llm.Error{Message: ev.Message}
			case *llm.DoneEvent:
				// Channel close follows.
			}
		}
		if streamErr != nil {
			return "", streamErr
		}

		final.WriteString(stepText.String())

		if len(calls) == 0 {
			return final.String(), nil
		}

		// A backend may emit tool_call frames even though the request offered
		// no tools. There is nothing to invoke; fail the step as a provider
		// fault instead of touching an empty firewall.
		if !hasTools {
			return "", &llm.Error{
				Message: "model requested tool " + calls[0].Name + " but no tools were offered",
			}
		}

		// Record the assistant generation that requested the calls, then
		// execute each call and feed the results back.
		messages = append(messages, llm.Message{
			Role:      "assistant",
			Content:   stepText.String(),
			Thinking:  stepThinking.String(),
			ToolCalls: calls,
		})
		for _, call := range calls {
			span.ToolCall(call.ID, call.Name, call.Arguments)
			result, ok := executeTool(ctx, req.Toolset, call)
			if req.OnToolResult != nil {
				req.OnToolResult(call.Name, result, ok)
			}
			span.ToolResult(call.ID, call.Name, result, ok)
			messages = append(messages, llm.Message{
				Role:       "tool",
				Content:    result,
				ToolCallID: call.ID,
				ToolName:   call.Name,
			})
		}
	}

	return "", &StepLimitError{MaxSteps: maxSteps}
}

// executeTool runs one handler. Handler errors become an ok:false payload
// for the model rather than terminating the loop.
func executeTool(ctx context.Context, toolset *tools.Toolset, call llm.ToolCall) (string, bool) {
	result, err := toolset.Invoke(ctx, call.Name, call.Arguments)
	if err == nil {
		return result, true
	}
	raw, mErr := json.Marshal(map[string]any{
		"ok":    false,
		"error": err.Error(),
	})
	if mErr != nil {
		return `{"ok":false,"error":"tool failed"}`, false
	}
	return string(raw), false
}
