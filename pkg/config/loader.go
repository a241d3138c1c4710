package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// medqaYAMLConfig represents the complete medqa.yaml file structure. Only
// the `defaults` block is currently recognized; the struct is kept as its
// own type (rather than unmarshaling straight into Defaults) so future
// top-level sections can be added without an incompatible shape change.
type medqaYAMLConfig struct {
	Defaults *Defaults `yaml:"defaults"`
}

// Initialize loads, validates, and returns ready-to-use configuration. If
// path is empty, built-in defaults are used as-is (useful for tests and
// single-binary deployments with no config file).
func Initialize(ctx context.Context, path string) (*Config, error) {
	log := slog.With("config_path", path)
	log.Info("Initializing configuration")

	cfg, err := load(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	log.Info("Configuration initialized successfully",
		"max_iterations", cfg.Defaults.MaxIterations,
		"cache_ttl", cfg.Defaults.CacheTTL,
		"human_loop_timeout", cfg.Defaults.HumanLoopTimeout)

	return cfg, nil
}

func load(_ context.Context, path string) (*Config, error) {
	defaults := builtinDefaults()

	if path == "" {
		return &Config{Defaults: defaults}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, NewLoadError(path, fmt.Errorf("%w: %s", ErrConfigNotFound, path))
		}
		return nil, NewLoadError(path, err)
	}

	data = ExpandEnv(data)

	var fileCfg medqaYAMLConfig
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, NewLoadError(path, fmt.Errorf("%w: %v", ErrInvalidYAML, err))
	}

	if fileCfg.Defaults != nil {
		// File values override built-ins; zero fields in the file fall back
		// to the built-in default (mergo.WithOverride only overrides with
		// non-zero source values).
		if err := mergo.Merge(&defaults, fileCfg.Defaults, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge defaults: %w", err)
		}
	}

	return &Config{configPath: path, Defaults: defaults}, nil
}

func validate(cfg *Config) error {
	v := NewValidator(cfg)
	return v.ValidateAll()
}
