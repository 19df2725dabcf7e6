// Package jsonx extracts JSON objects from noisy model output.
package jsonx

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractError reports a failed extraction with a stable code.
type ExtractError struct {
	code    string
	message string
}

func (e *ExtractError) Error() string { return e.message }

// Code returns "JSON_NOT_FOUND" or "JSON_PARSE_ERROR".
func (e *ExtractError) Code() string { return e.code }

func notFound(msg string) *ExtractError {
	return &ExtractError{code: "JSON_NOT_FOUND", message: msg}
}

func parseError(msg string) *ExtractError {
	return &ExtractError{code: "JSON_PARSE_ERROR", message: msg}
}

// ExtractObject returns the first balanced top-level JSON object found in s.
// The whole string is tried first; on failure the scan starts at the first
// '{' and tracks nesting depth with string/escape state so braces inside
// string literals do not confuse the balance count. The root must be an
// object: arrays and scalars are rejected.
func ExtractObject(s string) (map[string]any, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil, notFound("empty input")
	}

	// Fast path: the whole string is valid JSON.
	if obj, ok := tryParseObject(trimmed); ok {
		return obj, nil
	}

	start := strings.IndexByte(s, '{')
	if start < 0 {
		return nil, notFound("no '{' in input")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				candidate := s[start : i+1]
				obj, ok := tryParseObject(candidate)
				if !ok {
					return nil, parseError(fmt.Sprintf("balanced candidate is not valid JSON: %.80s", candidate))
				}
				return obj, nil
			}
		}
	}
	return nil, parseError("unterminated object in input")
}

// tryParseObject parses s and reports whether the root is a JSON object.
func tryParseObject(s string) (map[string]any, bool) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	obj, ok := v.(map[string]any)
	return obj, ok
}

// ExtractInto extracts the first balanced object from s and unmarshals it
// into dst. Used by structured nodes that expect a known response shape.
func ExtractInto(s string, dst any) error {
	obj, err := ExtractObject(s)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(obj)
	if err != nil {
		return parseError(fmt.Sprintf("re-marshal extracted object: %v", err))
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return parseError(fmt.Sprintf("decode extracted object: %v", err))
	}
	return nil
}
