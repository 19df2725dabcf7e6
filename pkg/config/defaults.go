package config

// Logical model roles every deployment must bind.
var requiredRoles = []string{"router", "planner", "reflect", "answer"}

// DefaultConfig returns the built-in configuration. User YAML is merged on
// top, so every field here is an overridable default.
func DefaultConfig() *Config {
	return &Config{
		Server: &ServerConfig{
			Host: "127.0.0.1",
			Port: 8710,
		},
		Provider: &ProviderConfig{
			BaseURL:        "http://localhost:11434",
			TimeoutSeconds: 120,
		},
		Roles: map[string]RoleConfig{},
		Paths: &PathsConfig{
			DataDir: "data",
			World:   "world.json",
			History: "history.jsonl",
			Prompts: "prompts",
		},
		History: &HistoryConfig{
			MaxTurns: 200,
			HardMax:  50,
		},
		Tools: &ToolsConfig{
			StepLimit: 6,
			EnabledSkills: []string{
				"core_context",
				"core_world",
				"mcp_memory_read",
				"mcp_memory_write",
			},
		},
		Memory:  &MemoryConfig{UserID: "default"},
		Servers: map[string]MCPServerConfig{},
	}
}
