package config

import (
	"fmt"
	"net/url"

	"github.com/parietal-ai/parietal/pkg/tools"
)

// Validator checks a merged Config for internal consistency.
type Validator struct {
	cfg *Config
}

// NewValidator creates a Validator for cfg.
func NewValidator(cfg *Config) *Validator {
	return &Validator{cfg: cfg}
}

// ValidateAll runs every check and returns the first failure.
func (v *Validator) ValidateAll() error {
	checks := []func() error{
		v.validateProvider,
		v.validateRoles,
		v.validatePaths,
		v.validateTools,
		v.validateServers,
		v.validateMemory,
	}
	for _, check := range checks {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

func (v *Validator) validateProvider() error {
	p := v.cfg.Provider
	if p == nil || p.BaseURL == "" {
		return NewValidationError("provider", "", "base_url", ErrMissingRequiredField)
	}
	parsed, err := url.Parse(p.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return NewValidationError("provider", "", "base_url",
			fmt.Errorf("%w: %q is not an absolute URL", ErrInvalidValue, p.BaseURL))
	}
	if p.TimeoutSeconds < 0 {
		return NewValidationError("provider", "", "timeout_seconds",
			fmt.Errorf("%w: must not be negative", ErrInvalidValue))
	}
	return nil
}

func (v *Validator) validateRoles() error {
	for _, role := range requiredRoles {
		cfg, ok := v.cfg.Roles[role]
		if !ok {
			return NewValidationError("role", role, "", ErrMissingRequiredField)
		}
		if cfg.Model == "" {
			return NewValidationError("role", role, "model", ErrMissingRequiredField)
		}
		if cfg.ResponseFormat != "" && cfg.ResponseFormat != "json" {
			return NewValidationError("role", role, "response_format",
				fmt.Errorf("%w: %q (only \"json\" is supported)", ErrInvalidValue, cfg.ResponseFormat))
		}
	}
	return nil
}

func (v *Validator) validatePaths() error {
	p := v.cfg.Paths
	if p == nil || p.DataDir == "" {
		return NewValidationError("paths", "", "data_dir", ErrMissingRequiredField)
	}
	for field, value := range map[string]string{
		"world":   p.World,
		"history": p.History,
		"prompts": p.Prompts,
	} {
		if value == "" {
			return NewValidationError("paths", "", field, ErrMissingRequiredField)
		}
	}
	return nil
}

func (v *Validator) validateTools() error {
	t := v.cfg.Tools
	if t.StepLimit <= 0 {
		return NewValidationError("tools", "", "step_limit",
			fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	known := tools.BuiltinSkills()
	for _, skill := range t.EnabledSkills {
		if _, ok := known[skill]; !ok {
			return NewValidationError("tools", "", "enabled_skills",
				fmt.Errorf("%w: unknown skill %q", ErrInvalidValue, skill))
		}
	}
	return nil
}

func (v *Validator) validateServers() error {
	for id, server := range v.cfg.Servers {
		if server.URL == "" {
			return NewValidationError("mcp_server", id, "url", ErrMissingRequiredField)
		}
		parsed, err := url.Parse(server.URL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return NewValidationError("mcp_server", id, "url",
				fmt.Errorf("%w: %q is not an absolute URL", ErrInvalidValue, server.URL))
		}
		if server.TimeoutSeconds < 0 {
			return NewValidationError("mcp_server", id, "timeout_seconds",
				fmt.Errorf("%w: must not be negative", ErrInvalidValue))
		}
	}
	return nil
}

// validateMemory requires a memory server when a memory skill is enabled.
func (v *Validator) validateMemory() error {
	memoryEnabled := false
	for _, skill := range v.cfg.Tools.EnabledSkills {
		if skill == tools.SkillMemoryRead || skill == tools.SkillMemoryWrite {
			memoryEnabled = true
			break
		}
	}
	if !memoryEnabled {
		return nil
	}
	if _, ok := v.cfg.Servers[tools.MemoryServerID]; !ok {
		return NewValidationError("mcp_server", tools.MemoryServerID, "",
			fmt.Errorf("%w: memory skills are enabled but the server is not configured",
				ErrMissingRequiredField))
	}
	if v.cfg.Memory == nil || v.cfg.Memory.UserID == "" {
		return NewValidationError("memory", "", "user_id", ErrMissingRequiredField)
	}
	return nil
}
