// Package e2e boots a complete engine instance against scripted model and
// memory backends and verifies whole-turn behavior through the event stream.
package e2e

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"

	"github.com/parietal-ai/parietal/pkg/events"
	"github.com/parietal-ai/parietal/pkg/history"
	"github.com/parietal-ai/parietal/pkg/mcp"
	"github.com/parietal-ai/parietal/pkg/prompt"
	"github.com/parietal-ai/parietal/pkg/tools"
	"github.com/parietal-ai/parietal/pkg/turn"
	"github.com/parietal-ai/parietal/pkg/turn/nodes"
)

// defaultPrompts are minimal templates exercising the same tokens the
// shipped prompt set uses.
var defaultPrompts = map[string]string{
	"runtime_router":           "Route <<USER_MESSAGE>> at <<NOW>> (<<TZ>>) given <<WORLD_JSON>>.",
	"runtime_context_builder":  "Plan context for <<USER_MESSAGE>> at <<NOW>> (<<TZ>>) given <<WORLD_JSON>>.",
	"runtime_memory_retriever": "Retrieve for <<USER_MESSAGE>> at <<NOW>> (<<TZ>>) per <<MEMORY_REQUEST_JSON>>.",
	"runtime_world_modifier":   "Modify world for <<USER_MESSAGE>> at <<NOW>> (<<TZ>>) from <<WORLD_JSON>>.",
	"runtime_answer": "Answer <<USER_MESSAGE>>. Status: <<STATUS>>. World: <<WORLD_JSON>>. " +
		"Context: <<CONTEXT_JSON>>. Issues: <<ISSUES_JSON>>. Now <<NOW_ISO>> <<TIMEZONE>>.",
	"runtime_reflect_topics": "Topics for <<USER_MESSAGE>> answered <<ANSWER>> given <<WORLD_JSON>>.",
	"runtime_memory_writer":  "Store from <<USER_MESSAGE>> answered <<ANSWER>> at <<NOW>> (<<TZ>>).",
}

// TestApp boots a complete engine for e2e testing.
type TestApp struct {
	Engine   *turn.Engine
	Provider *ScriptedProvider
	History  *history.Log

	WorldPath   string
	HistoryPath string
	PromptsDir  string

	t *testing.T
}

type testAppConfig struct {
	memoryTools map[string]mcpsdk.ToolHandler
	prompts     map[string]string
	stepLimit   int
}

// TestAppOption configures the test app.
type TestAppOption func(*testAppConfig)

// WithMemoryTools installs handlers on the in-memory memory MCP server.
func WithMemoryTools(handlers map[string]mcpsdk.ToolHandler) TestAppOption {
	return func(c *testAppConfig) { c.memoryTools = handlers }
}

// WithPrompt overrides one prompt template.
func WithPrompt(name, text string) TestAppOption {
	return func(c *testAppConfig) { c.prompts[name] = text }
}

// WithStepLimit overrides the tool loop step budget.
func WithStepLimit(n int) TestAppOption {
	return func(c *testAppConfig) { c.stepLimit = n }
}

// NewTestApp wires the full stack: scripted provider, real toolkit and
// bindings, an in-memory MCP memory server, and temp world/history files.
func NewTestApp(t *testing.T, opts ...TestAppOption) *TestApp {
	t.Helper()

	cfg := &testAppConfig{
		prompts:   map[string]string{},
		stepLimit: 3,
	}
	for name, text := range defaultPrompts {
		cfg.prompts[name] = text
	}
	for _, opt := range opts {
		opt(cfg)
	}

	dir := t.TempDir()
	promptsDir := filepath.Join(dir, "prompts")
	require.NoError(t, os.MkdirAll(promptsDir, 0o755))
	for name, text := range cfg.prompts {
		require.NoError(t, os.WriteFile(filepath.Join(promptsDir, name+".md"), []byte(text), 0o644))
	}

	worldPath := filepath.Join(dir, "world.json")
	historyPath := filepath.Join(dir, "history.jsonl")
	hist := history.NewLog(historyPath, 50)

	provider := NewScriptedProvider()

	resources := &tools.Resources{
		History:        hist,
		HistoryHardMax: 50,
		WorldPath:      worldPath,
		Memory:         newMemoryClient(t, cfg.memoryTools),
		MemoryUserID:   "test-user",
		NowISO:         "2026-08-24T10:00:00Z",
		Timezone:       "UTC",
	}
	toolkit := tools.NewToolkit(tools.NewBuiltinRegistry(resources), []string{
		tools.SkillCoreContext,
		tools.SkillCoreWorld,
		tools.SkillMemoryRead,
		tools.SkillMemoryWrite,
	}, nil, nil)

	deps := &turn.Deps{
		Provider: provider,
		Prompts:  prompt.NewLoader(promptsDir),
		Roles: map[string]turn.RoleConfig{
			turn.RoleRouter:  {Model: "router-model", ResponseFormat: "json"},
			turn.RolePlanner: {Model: "planner-model"},
			turn.RoleReflect: {Model: "reflect-model"},
			turn.RoleAnswer:  {Model: "answer-model"},
		},
		ToolStepLimit: cfg.stepLimit,
	}

	graph := nodes.Build(deps, &turn.Services{Toolkit: toolkit, Resources: resources})
	runner := turn.NewRunner(deps, worldPath)
	engine := turn.NewEngine(runner, graph, hist, "UTC")

	return &TestApp{
		Engine:      engine,
		Provider:    provider,
		History:     hist,
		WorldPath:   worldPath,
		HistoryPath: historyPath,
		PromptsDir:  promptsDir,
		t:           t,
	}
}

// newMemoryClient builds a real MCP client backed by an in-memory SDK server
// exposing handlers under the memory server id.
func newMemoryClient(t *testing.T, handlers map[string]mcpsdk.ToolHandler) *mcp.Client {
	t.Helper()

	server := mcpsdk.NewServer(&mcpsdk.Implementation{Name: "memory-e2e", Version: "test"}, nil)
	for toolName, handler := range handlers {
		server.AddTool(&mcpsdk.Tool{
			Name:        toolName,
			Description: "e2e tool: " + toolName,
			InputSchema: json.RawMessage(`{"type":"object"}`),
		}, handler)
	}

	clientTransport, serverTransport := mcpsdk.NewInMemoryTransports()
	go func() {
		_ = server.Run(context.Background(), serverTransport)
	}()

	client := mcp.NewClient(map[string]mcp.ServerConfig{
		tools.MemoryServerID: {URL: "inmemory://" + tools.MemoryServerID},
	})
	client.SetTransportFactory(func(mcp.ServerConfig) (mcpsdk.Transport, error) {
		return clientTransport, nil
	})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// RunTurn executes one turn and returns the complete event sequence.
func (a *TestApp) RunTurn(message string) []events.Event {
	a.t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stream, err := a.Engine.RunTurn(ctx, message)
	require.NoError(a.t, err)

	var evs []events.Event
	for ev := range stream {
		evs = append(evs, ev)
	}
	require.NotEmpty(a.t, evs)
	return evs
}

// seedWorld writes a world document directly and returns its bytes.
func (a *TestApp) seedWorld(content string) []byte {
	a.t.Helper()
	require.NoError(a.t, os.WriteFile(a.WorldPath, []byte(content), 0o644))
	return []byte(content)
}
