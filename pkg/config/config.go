// Package config loads and validates the parietal.yaml configuration file.
package config

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/parietal-ai/parietal/pkg/llm"
)

// Config is the umbrella configuration object returned by Initialize and
// used throughout the application.
type Config struct {
	configDir string

	Server   *ServerConfig              `yaml:"server"`
	Provider *ProviderConfig            `yaml:"provider"`
	Roles    map[string]RoleConfig      `yaml:"roles"`
	Paths    *PathsConfig               `yaml:"paths"`
	History  *HistoryConfig             `yaml:"history"`
	Tools    *ToolsConfig               `yaml:"tools"`
	Memory   *MemoryConfig              `yaml:"memory"`
	Servers  map[string]MCPServerConfig `yaml:"mcp_servers"`
}

// ServerConfig holds HTTP gateway settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// AllowedWSOrigins lists additional origins accepted for the event
	// WebSocket besides the gateway's own host.
	AllowedWSOrigins []string `yaml:"allowed_ws_origins"`
}

// Addr returns the host:port the gateway binds.
func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// ProviderConfig holds the LLM backend settings.
type ProviderConfig struct {
	// BaseURL is the Ollama-compatible API root, e.g. http://localhost:11434.
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// RoleConfig binds a logical model role to a concrete model.
type RoleConfig struct {
	Model          string     `yaml:"model"`
	Params         llm.Params `yaml:"params"`
	ResponseFormat string     `yaml:"response_format"`
}

// PathsConfig holds the durable file locations. Relative paths are resolved
// against data_dir.
type PathsConfig struct {
	DataDir string `yaml:"data_dir"`
	World   string `yaml:"world"`
	History string `yaml:"history"`
	Prompts string `yaml:"prompts"`
}

// WorldPath returns the resolved world document path.
func (p *PathsConfig) WorldPath() string { return p.resolve(p.World) }

// HistoryPath returns the resolved chat history path.
func (p *PathsConfig) HistoryPath() string { return p.resolve(p.History) }

// PromptsDir returns the resolved prompt template directory.
func (p *PathsConfig) PromptsDir() string { return p.resolve(p.Prompts) }

func (p *PathsConfig) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(p.DataDir, path)
}

// HistoryConfig bounds the chat history log.
type HistoryConfig struct {
	// MaxTurns is the trim bound applied on append; <= 0 disables trimming.
	MaxTurns int `yaml:"max_turns"`
	// HardMax is the upper clamp for chat_history_tail requests.
	HardMax int `yaml:"hard_max"`
}

// ToolsConfig controls the tool loop and the skill firewall.
type ToolsConfig struct {
	StepLimit     int      `yaml:"step_limit"`
	EnabledSkills []string `yaml:"enabled_skills"`
}

// MemoryConfig scopes long-term memory operations.
type MemoryConfig struct {
	// UserID is attached to every memory call. Never taken from model
	// arguments.
	UserID string `yaml:"user_id"`
}

// MCPServerConfig describes one streamable-HTTP MCP server.
type MCPServerConfig struct {
	URL             string `yaml:"url"`
	APIKeyEnv       string `yaml:"api_key_env"`
	ProtocolVersion string `yaml:"protocol_version"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
}

// ConfigDir returns the directory parietal.yaml was loaded from.
func (c *Config) ConfigDir() string { return c.configDir }

// Role returns the configuration for a logical role name.
func (c *Config) Role(name string) RoleConfig { return c.Roles[name] }

// ServerIDs returns the configured MCP server ids in sorted order.
func (c *Config) ServerIDs() []string {
	ids := make([]string, 0, len(c.Servers))
	for id := range c.Servers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
