package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

// Memory query types accepted by the remote service.
var queryTypes = map[string]bool{"contextual": true, "factual": true, "unified": true}

// Memory store types; "both" stores contextual content plus discrete facts.
var storeTypes = map[string]bool{"contextual": true, "factual": true, "both": true}

const (
	memoryQueryTool = "openmemory_query"
	memoryStoreTool = "openmemory_store"

	minK = 1
	maxK = 16
)

// newMemoryQuery binds memory_query over the MCP memory server. The user id
// always comes from configuration; a user_id argument from the model is
// ignored.
func newMemoryQuery(res *Resources) Tool {
	return Tool{
		Definition: Definition{
			Name: "memory_query",
			Description: "Query long-term memory. type selects the store: " +
				"\"contextual\" (conversation snippets), \"factual\" (discrete facts), " +
				"or \"unified\" (both, ranked).",
			ParametersSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"query": {"type": "string", "description": "Free-text search query."},
					"type": {"type": "string", "enum": ["contextual", "factual", "unified"]},
					"k": {"type": "integer", "minimum": 1, "maximum": 16},
					"sector": {"type": "string"},
					"min_salience": {"type": "number", "minimum": 0, "maximum": 1},
					"at": {"type": "string", "description": "ISO-8601 point-in-time filter."},
					"fact_pattern": {"type": "string"}
				},
				"required": ["query"]
			}`),
		},
		Handler: func(ctx context.Context, argsJSON string) (string, error) {
			var args struct {
				Query       string   `json:"query"`
				Type        string   `json:"type"`
				K           int      `json:"k"`
				Sector      string   `json:"sector"`
				MinSalience *float64 `json:"min_salience"`
				At          string   `json:"at"`
				FactPattern string   `json:"fact_pattern"`
			}
			if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
				return "", &Error{Tool: "memory_query", Message: "invalid arguments", Cause: err}
			}
			if args.Query == "" {
				return "", &Error{Tool: "memory_query", Message: "query is required"}
			}

			queryType := args.Type
			if queryType == "" {
				queryType = "contextual"
			}
			if !queryTypes[queryType] {
				return "", &Error{Tool: "memory_query", Message: fmt.Sprintf("unknown query type %q", queryType)}
			}

			k := args.K
			if k < minK {
				k = minK
			}
			if k > maxK {
				k = maxK
			}

			callArgs := map[string]any{
				"query":   args.Query,
				"type":    queryType,
				"k":       k,
				"user_id": res.MemoryUserID,
			}
			if args.Sector != "" {
				callArgs["sector"] = args.Sector
			}
			if args.MinSalience != nil {
				s := *args.MinSalience
				if s < 0 {
					s = 0
				}
				if s > 1 {
					s = 1
				}
				callArgs["min_salience"] = s
			}
			if args.At != "" {
				callArgs["at"] = args.At
			}
			if args.FactPattern != "" {
				callArgs["fact_pattern"] = args.FactPattern
			}

			result, err := res.Memory.CallTool(ctx, MemoryServerID, memoryQueryTool, callArgs)
			if err != nil {
				return "", &Error{Tool: "memory_query", Message: "memory service call failed", Cause: err}
			}

			payload := map[string]any{
				"ok":       result.OK,
				"items":    result.Items,
				"returned": len(result.Items),
				"k":        k,
				"user_id":  res.MemoryUserID,
			}
			if result.Items == nil {
				payload["items"] = []any{}
			}
			if result.OK {
				payload["note"] = fmt.Sprintf("%d of up to %d %s memories", len(result.Items), k, queryType)
			} else {
				payload["note"] = result.Err
			}

			raw, err := json.Marshal(payload)
			if err != nil {
				return "", &Error{Tool: "memory_query", Message: "encode result", Cause: err}
			}
			return string(raw), nil
		},
	}
}

// newMemoryStore binds memory_store over the MCP memory server.
func newMemoryStore(res *Resources) Tool {
	return Tool{
		Definition: Definition{
			Name: "memory_store",
			Description: "Store content in long-term memory. type \"contextual\" keeps the raw " +
				"content, \"factual\" keeps the facts list, \"both\" keeps both.",
			ParametersSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"content": {"type": "string"},
					"type": {"type": "string", "enum": ["contextual", "factual", "both"]},
					"facts": {"type": "array", "items": {"type": "string"}},
					"tags": {"type": "array", "items": {"type": "string"}},
					"metadata": {"type": "object"}
				},
				"required": ["content"]
			}`),
		},
		Handler: func(ctx context.Context, argsJSON string) (string, error) {
			var args struct {
				Content  string         `json:"content"`
				Type     string         `json:"type"`
				Facts    []string       `json:"facts"`
				Tags     []string       `json:"tags"`
				Metadata map[string]any `json:"metadata"`
			}
			if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
				return "", &Error{Tool: "memory_store", Message: "invalid arguments", Cause: err}
			}
			if args.Content == "" {
				return "", &Error{Tool: "memory_store", Message: "content is required"}
			}

			storeType := args.Type
			if storeType == "" {
				storeType = "contextual"
			}
			if !storeTypes[storeType] {
				return "", &Error{Tool: "memory_store", Message: fmt.Sprintf("unknown store type %q", storeType)}
			}
			// A factual store with no facts has nothing factual to keep.
			if storeType != "contextual" && len(args.Facts) == 0 {
				storeType = "contextual"
			}

			callArgs := map[string]any{
				"content": args.Content,
				"type":    storeType,
				"user_id": res.MemoryUserID,
			}
			if len(args.Facts) > 0 {
				callArgs["facts"] = args.Facts
			}
			if len(args.Tags) > 0 {
				callArgs["tags"] = args.Tags
			}
			if len(args.Metadata) > 0 {
				callArgs["metadata"] = args.Metadata
			}

			result, err := res.Memory.CallTool(ctx, MemoryServerID, memoryStoreTool, callArgs)
			if err != nil {
				return "", &Error{Tool: "memory_store", Message: "memory service call failed", Cause: err}
			}

			payload := map[string]any{
				"ok":      result.OK,
				"stored":  result.OK,
				"user_id": res.MemoryUserID,
			}
			if result.OK {
				payload["summary"] = result.Text()
			} else {
				payload["summary"] = result.Err
			}

			raw, err := json.Marshal(payload)
			if err != nil {
				return "", &Error{Tool: "memory_store", Message: "encode result", Cause: err}
			}
			return string(raw), nil
		},
	}
}
