package tools

import (
	"context"
	"encoding/json"

	"github.com/parietal-ai/parietal/pkg/history"
)

const defaultHistoryHardMax = 50

// newChatHistoryTail binds chat_history_tail: return the most recent
// conversation turns, ending on an assistant turn.
func newChatHistoryTail(res *Resources) Tool {
	hardMax := res.HistoryHardMax
	if hardMax <= 0 {
		hardMax = defaultHistoryHardMax
	}

	return Tool{
		Definition: Definition{
			Name:        "chat_history_tail",
			Description: "Return the most recent turns of the conversation history, oldest first.",
			ParametersSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"limit": {
						"type": "integer",
						"description": "Maximum number of turns to return."
					}
				},
				"required": ["limit"]
			}`),
		},
		Handler: func(ctx context.Context, argsJSON string) (string, error) {
			var args struct {
				Limit int `json:"limit"`
			}
			if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
				return "", &Error{Tool: "chat_history_tail", Message: "invalid arguments", Cause: err}
			}

			limit := args.Limit
			if limit < 0 {
				limit = 0
			}
			if limit > hardMax {
				limit = hardMax
			}

			// Fetch one extra record so a trailing user turn (the message
			// currently being answered) can be dropped and the tail still
			// fills the requested limit.
			records, err := res.History.Tail(limit + 1)
			if err != nil {
				return "", &Error{Tool: "chat_history_tail", Message: "read history", Cause: err}
			}

			trimmedLastUser := false
			if n := len(records); n > 0 && records[n-1].Role == history.RoleHuman {
				records = records[:n-1]
				trimmedLastUser = true
			}
			if len(records) > limit {
				records = records[len(records)-limit:]
			}

			turns := make([]map[string]any, 0, len(records))
			for _, rec := range records {
				turns = append(turns, map[string]any{
					"role":    rec.Role,
					"content": rec.Content,
					"ts":      rec.TS,
				})
			}

			result := map[string]any{
				"turns":    turns,
				"limit":    limit,
				"returned": len(turns),
			}
			if trimmedLastUser {
				result["trimmed_last_user"] = true
			}
			raw, err := json.Marshal(result)
			if err != nil {
				return "", &Error{Tool: "chat_history_tail", Message: "encode result", Cause: err}
			}
			return string(raw), nil
		},
	}
}
