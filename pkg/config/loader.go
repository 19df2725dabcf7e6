package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// configFile is the single configuration file name under the config dir.
const configFile = "parietal.yaml"

// Initialize loads, merges, validates, and returns ready-to-use
// configuration. This is the primary entry point.
//
// Steps performed:
//  1. Read parietal.yaml from configDir
//  2. Expand {{.VAR}} environment references
//  3. Parse YAML
//  4. Merge user values over built-in defaults
//  5. Validate the merged configuration
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	cfg, err := load(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	log.Info("Configuration initialized successfully",
		"roles", len(cfg.Roles),
		"mcp_servers", len(cfg.Servers),
		"enabled_skills", len(cfg.Tools.EnabledSkills))
	return cfg, nil
}

func load(_ context.Context, configDir string) (*Config, error) {
	path := filepath.Join(configDir, configFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &LoadError{File: configFile, Err: fmt.Errorf("%w: %s", ErrConfigNotFound, path)}
		}
		return nil, &LoadError{File: configFile, Err: err}
	}

	data = ExpandEnv(data)

	user := &Config{}
	if err := yaml.Unmarshal(data, user); err != nil {
		return nil, &LoadError{File: configFile, Err: fmt.Errorf("%w: %v", ErrInvalidYAML, err)}
	}

	// Start from defaults, then overlay user values so unset sections keep
	// their built-in settings.
	cfg := DefaultConfig()
	if err := mergo.Merge(cfg, user, mergo.WithOverride); err != nil {
		return nil, &LoadError{File: configFile, Err: fmt.Errorf("merge configuration: %w", err)}
	}
	cfg.configDir = configDir
	return cfg, nil
}

func validate(cfg *Config) error {
	return NewValidator(cfg).ValidateAll()
}
