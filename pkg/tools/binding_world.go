package tools

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/parietal-ai/parietal/pkg/world"
)

// newWorldApplyOps binds world_apply_ops: apply allowlisted mutations to the
// persistent world document and commit atomically. Rejected ops come back as
// an ok:false payload so the model can correct itself; I/O failures are real
// errors.
func newWorldApplyOps(res *Resources) Tool {
	return Tool{
		Definition: Definition{
			Name: "world_apply_ops",
			Description: "Apply a batch of mutations to the persistent world state. " +
				"Allowed paths: /project, /identity/user_location, /identity/user_name, " +
				"/identity/agent_name (op \"set\" with a string value); /rules, /goals " +
				"(ops \"add\" and \"remove\").",
			ParametersSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"ops": {
						"type": "array",
						"items": {
							"type": "object",
							"properties": {
								"op": {"type": "string", "enum": ["set", "add", "remove"]},
								"path": {"type": "string"},
								"value": {}
							},
							"required": ["op", "path"]
						}
					}
				},
				"required": ["ops"]
			}`),
		},
		Handler: func(ctx context.Context, argsJSON string) (string, error) {
			var args struct {
				Ops []world.Op `json:"ops"`
			}
			if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
				return "", &Error{Tool: "world_apply_ops", Message: "invalid arguments", Cause: err}
			}

			current, err := world.Load(res.WorldPath, res.Now(), res.Timezone)
			if err != nil {
				return "", &Error{Tool: "world_apply_ops", Message: "load world", Cause: err}
			}

			updated, err := world.ApplyOps(current, args.Ops)
			if err != nil {
				var opErr *world.OpError
				if errors.As(err, &opErr) {
					// The stored world is untouched; report the rejection to
					// the model as a result payload.
					raw, mErr := json.Marshal(map[string]any{
						"ok":    false,
						"code":  opErr.Code(),
						"error": opErr.Error(),
					})
					if mErr != nil {
						return "", &Error{Tool: "world_apply_ops", Message: "encode result", Cause: mErr}
					}
					return string(raw), nil
				}
				return "", &Error{Tool: "world_apply_ops", Message: "apply ops", Cause: err}
			}

			if err := world.Commit(res.WorldPath, updated); err != nil {
				return "", &Error{Tool: "world_apply_ops", Message: "commit world", Cause: err}
			}

			raw, err := json.Marshal(map[string]any{"ok": true, "world": updated})
			if err != nil {
				return "", &Error{Tool: "world_apply_ops", Message: "encode result", Cause: err}
			}
			return string(raw), nil
		},
	}
}
