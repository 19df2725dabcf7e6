// Package world persists the assistant's long-lived world-state document.
package world

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
)

// World is the persistent document. Stored as a generic map so unknown keys
// written by other components survive load/commit cycles.
type World = map[string]any

// Defaults returns a fresh default world document.
func Defaults(nowISO, tz string) World {
	w := World{
		"updated_at": nowISO,
		"project":    "",
		"topics":     []any{},
		"goals":      []any{},
		"rules":      []any{},
		"identity": map[string]any{
			"user_name":         "",
			"session_user_name": "",
			"agent_name":        "",
			"user_location":     "",
		},
	}
	if tz != "" {
		w["tz"] = tz
	}
	return w
}

// Load reads the world document from path. A missing file is created with
// defaults; a corrupt file is overwritten with defaults. On success
// updated_at is refreshed when nowISO is non-empty and tz is added if absent.
func Load(path, nowISO, tz string) (World, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		w := Defaults(nowISO, tz)
		if err := Commit(path, w); err != nil {
			return nil, err
		}
		return w, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read world file: %w", err)
	}

	var w World
	if err := json.Unmarshal(data, &w); err != nil || w == nil {
		slog.Warn("World file is corrupt, replacing with defaults",
			"path", path, "error", err)
		w = Defaults(nowISO, tz)
		if err := Commit(path, w); err != nil {
			return nil, err
		}
		return w, nil
	}

	if nowISO != "" {
		w["updated_at"] = nowISO
	}
	if _, ok := w["tz"]; !ok && tz != "" {
		w["tz"] = tz
	}
	return w, nil
}

// Commit serializes the world with 2-space indent and a trailing newline to
// a sibling temp file, then atomically replaces path.
func Commit(path string, w World) error {
	data, err := json.MarshalIndent(w, "", "  ")
	if err != nil {
		return fmt.Errorf("encode world: %w", err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create world dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write world temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace world file: %w", err)
	}
	return nil
}

// Clone deep-copies a world document via JSON round-trip.
func Clone(w World) World {
	if w == nil {
		return World{}
	}
	raw, err := json.Marshal(w)
	if err != nil {
		// World documents are always JSON-representable; a marshal failure
		// means a programming error upstream.
		panic(fmt.Sprintf("world not JSON-representable: %v", err))
	}
	var out World
	if err := json.Unmarshal(raw, &out); err != nil {
		panic(fmt.Sprintf("world clone round-trip failed: %v", err))
	}
	return out
}

// Delta returns the top-level keys whose values differ between before and
// after, mapped to the after value. Keys removed by the turn appear with a
// nil value.
func Delta(before, after World) map[string]any {
	delta := make(map[string]any)
	for k, afterVal := range after {
		beforeVal, ok := before[k]
		if !ok || !reflect.DeepEqual(beforeVal, afterVal) {
			delta[k] = afterVal
		}
	}
	for k := range before {
		if _, ok := after[k]; !ok {
			delta[k] = nil
		}
	}
	return delta
}
