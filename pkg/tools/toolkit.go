package tools

import (
	"context"
	"sort"

	"github.com/parietal-ai/parietal/pkg/llm"
)

// Toolkit is the capability firewall. For a node it intersects the enabled
// skills with the node's policy allowlist, unions the surviving skills' tool
// names, and resolves them against the registry.
type Toolkit struct {
	registry      *Registry
	skills        map[string]Skill
	enabledSkills map[string]bool
	policy        map[string][]string
}

// NewToolkit composes the firewall. enabledSkills lists skill names switched
// on by configuration; skills and policy default to the built-in tables when
// nil.
func NewToolkit(registry *Registry, enabledSkills []string, skills map[string]Skill, policy map[string][]string) *Toolkit {
	if skills == nil {
		skills = BuiltinSkills()
	}
	if policy == nil {
		policy = DefaultPolicy()
	}
	enabled := make(map[string]bool, len(enabledSkills))
	for _, name := range enabledSkills {
		enabled[name] = true
	}
	return &Toolkit{
		registry:      registry,
		skills:        skills,
		enabledSkills: enabled,
		policy:        policy,
	}
}

// ForNode materializes the toolset a node may use. Unknown skills and tool
// names missing from the registry are silently skipped: the firewall only
// ever narrows.
func (tk *Toolkit) ForNode(nodeKey string) *Toolset {
	selected := make(map[string]Tool)
	for _, skillName := range tk.policy[nodeKey] {
		if !tk.enabledSkills[skillName] {
			continue
		}
		skill, ok := tk.skills[skillName]
		if !ok {
			continue
		}
		for _, toolName := range skill.ToolNames {
			if tool, ok := tk.registry.Get(toolName); ok {
				selected[toolName] = tool
			}
		}
	}
	return &Toolset{tools: selected}
}

// Toolset is the node-scoped subset of tools the firewall produced.
type Toolset struct {
	tools map[string]Tool
}

// Empty reports whether the toolset has no tools.
func (ts *Toolset) Empty() bool { return len(ts.tools) == 0 }

// Names returns the tool names in sorted order.
func (ts *Toolset) Names() []string {
	names := make([]string, 0, len(ts.tools))
	for name := range ts.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions renders the toolset for a provider request.
func (ts *Toolset) Definitions() []llm.ToolDefinition {
	defs := make([]llm.ToolDefinition, 0, len(ts.tools))
	for _, name := range ts.Names() {
		tool := ts.tools[name]
		defs = append(defs, llm.ToolDefinition{
			Name:             tool.Name,
			Description:      tool.Description,
			ParametersSchema: tool.ParametersSchema,
		})
	}
	return defs
}

// Invoke runs the named tool. Unknown names fail with a tool error so the
// loop can surface the problem to the model.
func (ts *Toolset) Invoke(ctx context.Context, name, argsJSON string) (string, error) {
	tool, ok := ts.tools[name]
	if !ok {
		return "", &Error{Tool: name, Message: "tool not available to this node"}
	}
	return tool.Handler(ctx, argsJSON)
}
