package world

import (
	"fmt"
	"reflect"
)

// Op is one requested world mutation.
type Op struct {
	Op    string `json:"op"`   // "set", "add", "remove"
	Path  string `json:"path"` // allowlisted JSON-pointer-style path
	Value any    `json:"value,omitempty"`
}

// Paths the model may mutate. Scalar paths accept "set"; list paths accept
// "add" and "remove". Everything else is rejected.
var (
	scalarPaths = map[string]bool{
		"/project":                true,
		"/identity/user_location": true,
		"/identity/user_name":     true,
		"/identity/agent_name":    true,
	}
	listPaths = map[string]bool{
		"/rules": true,
		"/goals": true,
	}
)

// OpError is a rejected world mutation.
type OpError struct {
	Op      Op
	Message string
}

func (e *OpError) Error() string {
	return fmt.Sprintf("invalid world op %s %s: %s", e.Op.Op, e.Op.Path, e.Message)
}

// Code returns the stable error code for rejected ops.
func (e *OpError) Code() string { return "WORLD_OP_INVALID" }

// ApplyOps applies ops to a copy of w and returns the result. The input is
// never mutated: on any invalid op the error is returned and callers keep
// their original document untouched.
func ApplyOps(w World, ops []Op) (World, error) {
	out := Clone(w)
	for _, op := range ops {
		if err := applyOne(out, op); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func applyOne(w World, op Op) error {
	switch {
	case scalarPaths[op.Path]:
		return applyScalar(w, op)
	case listPaths[op.Path]:
		return applyList(w, op)
	default:
		return &OpError{Op: op, Message: "path is not mutable"}
	}
}

func applyScalar(w World, op Op) error {
	if op.Op != "set" {
		return &OpError{Op: op, Message: fmt.Sprintf("op %q not allowed on scalar path", op.Op)}
	}
	value, ok := op.Value.(string)
	if !ok {
		return &OpError{Op: op, Message: "scalar value must be a string"}
	}

	container, key, err := resolve(w, op)
	if err != nil {
		return err
	}
	container[key] = value
	return nil
}

func applyList(w World, op Op) error {
	container, key, err := resolve(w, op)
	if err != nil {
		return err
	}

	current, ok := container[key].([]any)
	if !ok {
		if container[key] == nil {
			current = []any{}
		} else {
			return &OpError{Op: op, Message: "existing value is not a list"}
		}
	}

	switch op.Op {
	case "add":
		for _, existing := range current {
			if reflect.DeepEqual(existing, op.Value) {
				return nil // already present
			}
		}
		container[key] = append(current, op.Value)
		return nil
	case "remove":
		for i, existing := range current {
			if reflect.DeepEqual(existing, op.Value) {
				container[key] = append(current[:i:i], current[i+1:]...)
				return nil
			}
		}
		return nil // absent value, nothing to remove
	default:
		return &OpError{Op: op, Message: fmt.Sprintf("op %q not allowed on list path", op.Op)}
	}
}

// resolve walks to the parent container of op.Path, creating intermediate
// objects for the known /identity prefix.
func resolve(w World, op Op) (map[string]any, string, error) {
	switch op.Path {
	case "/project":
		return w, "project", nil
	case "/rules":
		return w, "rules", nil
	case "/goals":
		return w, "goals", nil
	case "/identity/user_location", "/identity/user_name", "/identity/agent_name":
		identity, ok := w["identity"].(map[string]any)
		if !ok {
			if w["identity"] == nil {
				identity = map[string]any{}
				w["identity"] = identity
			} else {
				return nil, "", &OpError{Op: op, Message: "identity is not an object"}
			}
		}
		return identity, op.Path[len("/identity/"):], nil
	default:
		return nil, "", &OpError{Op: op, Message: "path is not mutable"}
	}
}
