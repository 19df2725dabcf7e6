package tools

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parietal-ai/parietal/pkg/history"
	"github.com/parietal-ai/parietal/pkg/mcp"
)

// stubMemory implements MemoryCaller for firewall and binding tests.
type stubMemory struct {
	lastTool string
	lastArgs map[string]any
	result   *mcp.Result
	err      error
}

func (s *stubMemory) CallTool(_ context.Context, serverID, toolName string, args map[string]any) (*mcp.Result, error) {
	s.lastTool = toolName
	s.lastArgs = args
	if s.err != nil {
		return nil, s.err
	}
	if s.result != nil {
		return s.result, nil
	}
	return &mcp.Result{OK: true}, nil
}

func testResources(t *testing.T) (*Resources, *stubMemory) {
	t.Helper()
	dir := t.TempDir()
	memory := &stubMemory{}
	return &Resources{
		History:        history.NewLog(filepath.Join(dir, "chat.jsonl"), 0),
		HistoryHardMax: 10,
		WorldPath:      filepath.Join(dir, "world.json"),
		Memory:         memory,
		MemoryUserID:   "user-1",
		NowISO:         "2026-08-24T12:00:00Z",
		Timezone:       "UTC",
	}, memory
}

func allSkillNames() []string {
	return []string{SkillCoreContext, SkillCoreWorld, SkillMemoryRead, SkillMemoryWrite}
}

func TestFirewallPolicyIntersection(t *testing.T) {
	res, _ := testResources(t)
	registry := NewBuiltinRegistry(res)

	tests := []struct {
		nodeKey  string
		enabled  []string
		expected []string
	}{
		{NodeContextBuilder, allSkillNames(), []string{"chat_history_tail", "memory_query"}},
		{NodeMemoryRetriever, allSkillNames(), []string{"memory_query"}},
		{NodeWorldModifier, allSkillNames(), []string{"world_apply_ops"}},
		{NodeMemoryWriter, allSkillNames(), []string{"memory_store"}},
		{NodeRouter, allSkillNames(), nil},
		{NodeAnswer, allSkillNames(), nil},
		// Disabling a skill removes its tools even when policy allows them.
		{NodeContextBuilder, []string{SkillCoreContext}, []string{"chat_history_tail"}},
		{NodeWorldModifier, []string{}, nil},
	}

	for _, tt := range tests {
		toolkit := NewToolkit(registry, tt.enabled, nil, nil)
		toolset := toolkit.ForNode(tt.nodeKey)
		if tt.expected == nil {
			assert.True(t, toolset.Empty(), "node %s", tt.nodeKey)
		} else {
			assert.Equal(t, tt.expected, toolset.Names(), "node %s", tt.nodeKey)
		}
	}
}

func TestFirewallOnlyAllowlistedTools(t *testing.T) {
	res, _ := testResources(t)
	registry := NewBuiltinRegistry(res)
	toolkit := NewToolkit(registry, allSkillNames(), nil, nil)

	policy := DefaultPolicy()
	skills := BuiltinSkills()
	for _, nodeKey := range []string{NodeContextBuilder, NodeMemoryRetriever, NodeWorldModifier, NodeMemoryWriter} {
		allowed := make(map[string]bool)
		for _, skillName := range policy[nodeKey] {
			for _, toolName := range skills[skillName].ToolNames {
				allowed[toolName] = true
			}
		}
		for _, name := range toolkit.ForNode(nodeKey).Names() {
			assert.True(t, allowed[name], "node %s leaked tool %s", nodeKey, name)
		}
	}
}

func TestToolsetInvokeUnknownTool(t *testing.T) {
	res, _ := testResources(t)
	registry := NewBuiltinRegistry(res)
	toolkit := NewToolkit(registry, allSkillNames(), nil, nil)

	_, err := toolkit.ForNode(NodeWorldModifier).Invoke(context.Background(), "memory_query", "{}")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not available")
}

func TestToolsetDefinitions(t *testing.T) {
	res, _ := testResources(t)
	registry := NewBuiltinRegistry(res)
	toolkit := NewToolkit(registry, allSkillNames(), nil, nil)

	defs := toolkit.ForNode(NodeContextBuilder).Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, "chat_history_tail", defs[0].Name)
	assert.NotEmpty(t, defs[0].Description)
	assert.NotEmpty(t, defs[0].ParametersSchema)
}
