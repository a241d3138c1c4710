// Package config loads and validates the orchestrator's tuning knobs
// (spec.md §6.4) from a YAML file, environment-expanded and merged with
// built-in defaults, following the teacher's config loading conventions.
package config

// Config is the fully resolved, validated configuration used to wire the
// orchestrator, cache, and human-loop manager at startup.
type Config struct {
	configPath string
	Defaults   Defaults
}

// Path returns the file the config was loaded from (empty if built-in-only).
func (c *Config) Path() string {
	return c.configPath
}
