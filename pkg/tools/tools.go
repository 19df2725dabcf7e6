// Package tools holds the static tool registry, the skill firewall, and the
// bindings that connect tool names to engine resources.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

// Handler executes a tool: JSON arguments in, JSON result out.
// Handlers close over their resources and must not retain the context.
type Handler func(ctx context.Context, argsJSON string) (string, error)

// Definition describes a tool to the model.
type Definition struct {
	Name             string
	Description      string
	ParametersSchema json.RawMessage
}

// Tool pairs a definition with its binding.
type Tool struct {
	Definition
	Handler Handler
}

// Error is a failed tool invocation.
type Error struct {
	Tool    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("tool %s: %s", e.Tool, e.Message)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// Code returns the stable error code for tool failures.
func (e *Error) Code() string { return "TOOL_ERROR" }

// Registry is the flat name → tool map the firewall filters.
type Registry struct {
	tools map[string]Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. Duplicate names are a programming error.
func (r *Registry) Register(tool Tool) {
	if _, exists := r.tools[tool.Name]; exists {
		panic(fmt.Sprintf("tool %q registered twice", tool.Name))
	}
	r.tools[tool.Name] = tool
}

// Get returns the named tool.
func (r *Registry) Get(name string) (Tool, bool) {
	tool, ok := r.tools[name]
	return tool, ok
}

// Names returns all registered tool names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}
