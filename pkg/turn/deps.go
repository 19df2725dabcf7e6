package turn

import (
	"github.com/parietal-ai/parietal/pkg/llm"
	"github.com/parietal-ai/parietal/pkg/prompt"
	"github.com/parietal-ai/parietal/pkg/tools"
)

// Logical LLM roles bound to concrete models by configuration.
const (
	RoleRouter  = "router"
	RolePlanner = "planner"
	RoleReflect = "reflect"
	RoleAnswer  = "answer"
)

// RoleConfig binds a role to a model and its generation settings.
type RoleConfig struct {
	Model          string     `yaml:"model"`
	Params         llm.Params `yaml:"params"`
	ResponseFormat string     `yaml:"response_format"`
}

// Deps carries the model-facing services node factories close over.
type Deps struct {
	Provider      llm.Provider
	Prompts       *prompt.Loader
	Roles         map[string]RoleConfig
	ToolStepLimit int
}

// Role returns the configuration for a role; missing roles yield a zero
// config so validation can catch them before any turn runs.
func (d *Deps) Role(name string) RoleConfig {
	return d.Roles[name]
}

// ModelNames returns the role → model binding for turn_start events.
func (d *Deps) ModelNames() map[string]string {
	models := make(map[string]string, len(d.Roles))
	for role, cfg := range d.Roles {
		models[role] = cfg.Model
	}
	return models
}

// Services carries the tool-facing resources node factories close over.
type Services struct {
	Toolkit   *tools.Toolkit
	Resources *tools.Resources
}
