package tools

import (
	"context"
	"time"

	"github.com/parietal-ai/parietal/pkg/history"
	"github.com/parietal-ai/parietal/pkg/mcp"
)

// MemoryServerID is the MCP server the memory bindings talk to.
const MemoryServerID = "openmemory"

// MemoryCaller is the slice of the MCP client the memory bindings need.
type MemoryCaller interface {
	CallTool(ctx context.Context, serverID, toolName string, args map[string]any) (*mcp.Result, error)
}

// Resources bundles the side-channels tool bindings close over.
type Resources struct {
	History        *history.Log
	HistoryHardMax int // upper clamp for chat_history_tail limits

	WorldPath string

	Memory MemoryCaller
	// MemoryUserID scopes memory operations. Set from configuration, never
	// from model arguments.
	MemoryUserID string

	// NowISO pins the clock when set; tests use it for deterministic
	// timestamps. When empty, Now falls back to the wall clock.
	NowISO   string
	Timezone string
}

// Now returns the timestamp bindings stamp into documents: NowISO when
// pinned, otherwise the current UTC time.
func (r *Resources) Now() string {
	if r.NowISO != "" {
		return r.NowISO
	}
	return time.Now().UTC().Format("2006-01-02T15:04:05Z")
}

// NewBuiltinRegistry registers every built-in tool binding against res.
func NewBuiltinRegistry(res *Resources) *Registry {
	r := NewRegistry()
	r.Register(newChatHistoryTail(res))
	r.Register(newWorldApplyOps(res))
	r.Register(newMemoryQuery(res))
	r.Register(newMemoryStore(res))
	return r
}
