package mcp

import (
	"encoding/json"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Result wraps a tools/call response for tool bindings. It carries both the
// raw text frames (for bindings that only need a summary) and the parsed
// items (for nodes that want structured content).
type Result struct {
	OK      bool
	Content []ContentItem
	// Items collects list entries found inside JSON-in-text frames, under
	// the keys the memory service uses for its result buckets.
	Items []map[string]any
	// Err is the failure description when OK is false.
	Err string
}

// ContentItem is one content frame from the response.
type ContentItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// itemKeys are the response buckets whose list entries are exposed as Items.
var itemKeys = []string{"items", "contextual", "factual", "unified"}

// wrapResult converts an SDK result into the binding-facing shape.
func wrapResult(result *mcpsdk.CallToolResult) *Result {
	wrapped := &Result{OK: !result.IsError}

	var errParts []string
	for _, content := range result.Content {
		text, ok := content.(*mcpsdk.TextContent)
		if !ok {
			continue
		}
		wrapped.Content = append(wrapped.Content, ContentItem{Type: "text", Text: text.Text})
		if result.IsError {
			errParts = append(errParts, text.Text)
			continue
		}
		wrapped.Items = append(wrapped.Items, extractItems(text.Text)...)
	}
	if result.IsError {
		wrapped.Err = strings.Join(errParts, "; ")
		if wrapped.Err == "" {
			wrapped.Err = "tool call failed"
		}
	}
	return wrapped
}

// extractItems parses a text frame as JSON and collects objects from any
// recognized list bucket. Non-JSON frames and non-object entries are
// ignored.
func extractItems(text string) []map[string]any {
	var parsed map[string]any
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return nil
	}

	var items []map[string]any
	for _, key := range itemKeys {
		list, ok := parsed[key].([]any)
		if !ok {
			continue
		}
		for _, entry := range list {
			if obj, ok := entry.(map[string]any); ok {
				items = append(items, obj)
			}
		}
	}
	return items
}

// Text concatenates all text frames. Convenience for bindings that render a
// summary back to the model.
func (r *Result) Text() string {
	parts := make([]string, 0, len(r.Content))
	for _, c := range r.Content {
		parts = append(parts, c.Text)
	}
	return strings.Join(parts, "\n")
}
