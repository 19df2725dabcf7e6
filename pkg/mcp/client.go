// Package mcp provides the MCP (Model Context Protocol) client used to reach
// remote tool servers, primarily the memory service, over streamable HTTP.
package mcp

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/google/uuid"
)

const (
	// InitTimeout bounds the initialize handshake.
	InitTimeout = 15 * time.Second
	// OperationTimeout bounds a single tools/call or tools/list exchange.
	OperationTimeout = 60 * time.Second
)

// ServerConfig describes one remote MCP server endpoint.
type ServerConfig struct {
	URL             string `yaml:"url"`
	APIKey          string `yaml:"api_key"`
	ProtocolVersion string `yaml:"protocol_version"`
	ClientName      string `yaml:"client_name"`
	ClientVersion   string `yaml:"client_version"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
}

// Error is an RPC-level MCP failure: transport error, non-200, or an error
// field in the response.
type Error struct {
	Server  string
	Tool    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("mcp %s", e.Server)
	if e.Tool != "" {
		msg += "." + e.Tool
	}
	msg += ": " + e.Message
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// Code returns the stable error code for MCP failures.
func (e *Error) Code() string { return "MCP_ERROR" }

// Client manages MCP SDK sessions for the configured servers.
// Thread-safe: tool invocations may arrive from the graph worker while the
// gateway probes health. The initialize handshake runs once per server per
// client lifetime.
type Client struct {
	servers map[string]ServerConfig

	mu       sync.RWMutex
	sessions map[string]*mcpsdk.ClientSession

	toolCache   map[string][]*mcpsdk.Tool
	toolCacheMu sync.RWMutex

	// Per-server mutex so concurrent lazy initializations don't race.
	initMu sync.Map // serverID → *sync.Mutex

	// transportFor is replaceable in tests with in-memory transports.
	transportFor func(ServerConfig) (mcpsdk.Transport, error)

	logger *slog.Logger
}

// NewClient creates a Client for the given server configurations.
func NewClient(servers map[string]ServerConfig) *Client {
	return &Client{
		servers:      servers,
		sessions:     make(map[string]*mcpsdk.ClientSession),
		toolCache:    make(map[string][]*mcpsdk.Tool),
		transportFor: createTransport,
		logger:       slog.Default(),
	}
}

// SetTransportFactory overrides transport construction. Test seam for
// in-memory transports.
func (c *Client) SetTransportFactory(f func(ServerConfig) (mcpsdk.Transport, error)) {
	c.transportFor = f
}

// EnsureServer connects to serverID if not already connected. The handshake
// is idempotent: repeat calls return nil once a session exists.
func (c *Client) EnsureServer(ctx context.Context, serverID string) error {
	muI, _ := c.initMu.LoadOrStore(serverID, &sync.Mutex{})
	mu := muI.(*sync.Mutex)
	mu.Lock()
	defer mu.Unlock()

	c.mu.RLock()
	_, exists := c.sessions[serverID]
	c.mu.RUnlock()
	if exists {
		return nil
	}

	cfg, ok := c.servers[serverID]
	if !ok {
		return &Error{Server: serverID, Message: "server not configured"}
	}

	transport, err := c.transportFor(cfg)
	if err != nil {
		return &Error{Server: serverID, Message: "create transport", Cause: err}
	}

	initCtx, cancel := context.WithTimeout(ctx, InitTimeout)
	defer cancel()

	name := cfg.ClientName
	if name == "" {
		name = "parietal"
	}
	version := cfg.ClientVersion
	if version == "" {
		version = "dev"
	}
	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: name, Version: version}, nil)

	session, err := client.Connect(initCtx, transport, nil)
	if err != nil {
		if closer, ok := transport.(io.Closer); ok {
			_ = closer.Close()
		}
		return &Error{Server: serverID, Message: "initialize failed", Cause: err}
	}

	c.mu.Lock()
	c.sessions[serverID] = session
	c.mu.Unlock()

	c.logger.Info("MCP server connected", "server", serverID)
	return nil
}

// ListTools returns the tool list from a server, cached after the first
// successful call.
func (c *Client) ListTools(ctx context.Context, serverID string) ([]*mcpsdk.Tool, error) {
	c.toolCacheMu.RLock()
	if cached, ok := c.toolCache[serverID]; ok {
		c.toolCacheMu.RUnlock()
		return cached, nil
	}
	c.toolCacheMu.RUnlock()

	session, err := c.session(ctx, serverID)
	if err != nil {
		return nil, err
	}

	opCtx, cancel := context.WithTimeout(ctx, OperationTimeout)
	defer cancel()

	result, err := session.ListTools(opCtx, nil)
	if err != nil {
		return nil, &Error{Server: serverID, Message: "list tools", Cause: err}
	}

	tools := result.Tools
	if tools == nil {
		tools = []*mcpsdk.Tool{}
	}
	c.toolCacheMu.Lock()
	c.toolCache[serverID] = tools
	c.toolCacheMu.Unlock()
	return tools, nil
}

// CallTool executes tools/call on a server and wraps the response.
// A unique request id is attached via the SDK per call; tool-level failures
// (IsError results) come back as Result.OK=false, not as an error.
func (c *Client) CallTool(ctx context.Context, serverID, toolName string, args map[string]any) (*Result, error) {
	session, err := c.session(ctx, serverID)
	if err != nil {
		return nil, err
	}

	opCtx, cancel := context.WithTimeout(ctx, OperationTimeout)
	defer cancel()

	requestID := uuid.NewString()
	c.logger.Debug("MCP tool call", "server", serverID, "tool", toolName, "request_id", requestID)

	result, err := session.CallTool(opCtx, &mcpsdk.CallToolParams{
		Name:      toolName,
		Arguments: args,
	})
	if err != nil {
		return nil, &Error{Server: serverID, Tool: toolName, Message: "tools/call failed", Cause: err}
	}
	return wrapResult(result), nil
}

// session returns the live session for serverID, lazily connecting.
func (c *Client) session(ctx context.Context, serverID string) (*mcpsdk.ClientSession, error) {
	c.mu.RLock()
	session, exists := c.sessions[serverID]
	c.mu.RUnlock()
	if exists {
		return session, nil
	}
	if err := c.EnsureServer(ctx, serverID); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessions[serverID], nil
}

// Close shuts down all sessions.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	for id, session := range c.sessions {
		if err := session.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close session %q: %w", id, err)
		}
	}
	c.sessions = make(map[string]*mcpsdk.ClientSession)

	c.toolCacheMu.Lock()
	c.toolCache = make(map[string][]*mcpsdk.Tool)
	c.toolCacheMu.Unlock()
	return firstErr
}
