package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// emptySchema is a minimal valid JSON Schema for test tools.
var emptySchema = json.RawMessage(`{"type":"object"}`)

// startTestServer creates an in-memory MCP server with the given tools and
// returns a Client wired to it under serverID.
func startTestServer(t *testing.T, serverID string, tools map[string]mcpsdk.ToolHandler) *Client {
	t.Helper()

	server := mcpsdk.NewServer(&mcpsdk.Implementation{
		Name: "memory-test", Version: "test",
	}, nil)
	for toolName, handler := range tools {
		server.AddTool(&mcpsdk.Tool{
			Name:        toolName,
			Description: "test tool: " + toolName,
			InputSchema: emptySchema,
		}, handler)
	}

	clientTransport, serverTransport := mcpsdk.NewInMemoryTransports()
	go func() {
		_ = server.Run(context.Background(), serverTransport)
	}()

	client := NewClient(map[string]ServerConfig{
		serverID: {URL: "inmemory://" + serverID},
	})
	client.SetTransportFactory(func(ServerConfig) (mcpsdk.Transport, error) {
		return clientTransport, nil
	})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func textResult(payload any) (*mcpsdk.CallToolResult, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(raw)}},
	}, nil
}

func TestCallToolWrapsItems(t *testing.T) {
	client := startTestServer(t, "openmemory", map[string]mcpsdk.ToolHandler{
		"openmemory_query": func(_ context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
			return textResult(map[string]any{
				"contextual": []any{
					map[string]any{"content": "talked about Gobabis"},
					map[string]any{"content": "user lives in Namibia"},
				},
			})
		},
	})

	result, err := client.CallTool(context.Background(), "openmemory", "openmemory_query",
		map[string]any{"query": "Gobabis", "k": 2})
	require.NoError(t, err)
	assert.True(t, result.OK)
	require.Len(t, result.Items, 2)
	assert.Equal(t, "talked about Gobabis", result.Items[0]["content"])
	assert.NotEmpty(t, result.Text())
}

func TestCallToolErrorResult(t *testing.T) {
	client := startTestServer(t, "openmemory", map[string]mcpsdk.ToolHandler{
		"openmemory_store": func(_ context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
			return &mcpsdk.CallToolResult{
				IsError: true,
				Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: "quota exceeded"}},
			}, nil
		},
	})

	result, err := client.CallTool(context.Background(), "openmemory", "openmemory_store",
		map[string]any{"content": "x"})
	require.NoError(t, err)
	assert.False(t, result.OK)
	assert.Contains(t, result.Err, "quota exceeded")
	assert.Empty(t, result.Items)
}

func TestCallToolUnknownServer(t *testing.T) {
	client := NewClient(map[string]ServerConfig{})
	_, err := client.CallTool(context.Background(), "nope", "tool", nil)
	require.Error(t, err)

	var mcpErr *Error
	require.True(t, errors.As(err, &mcpErr))
	assert.Equal(t, "MCP_ERROR", mcpErr.Code())
}

func TestListToolsCached(t *testing.T) {
	client := startTestServer(t, "openmemory", map[string]mcpsdk.ToolHandler{
		"openmemory_query": func(_ context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
			return textResult(map[string]any{"items": []any{}})
		},
	})

	tools, err := client.ListTools(context.Background(), "openmemory")
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "openmemory_query", tools[0].Name)

	cached, err := client.ListTools(context.Background(), "openmemory")
	require.NoError(t, err)
	assert.Equal(t, tools, cached)
}

func TestEnsureServerIdempotent(t *testing.T) {
	client := startTestServer(t, "openmemory", map[string]mcpsdk.ToolHandler{
		"ping": func(_ context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
			return textResult(map[string]any{"ok": true})
		},
	})

	require.NoError(t, client.EnsureServer(context.Background(), "openmemory"))
	require.NoError(t, client.EnsureServer(context.Background(), "openmemory"))
}

func TestExtractItemsIgnoresNoise(t *testing.T) {
	assert.Nil(t, extractItems("not json"))
	assert.Nil(t, extractItems(`{"summary":"no buckets"}`))
	assert.Len(t, extractItems(`{"unified":[{"a":1},"scalar entry",{"b":2}]}`), 2)
}
