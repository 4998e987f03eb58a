// Package config loads the agent's YAML configuration.
package config

// #region imports
import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/mrlecko/macgyver-mud-sub001/internal/agent"
	"github.com/mrlecko/macgyver-mud-sub001/internal/skills"
)

// #endregion

// #region types

// Config is the top-level configuration file.
type Config struct {
	Agent   agent.Config  `yaml:"agent"`
	Skills  skills.Config `yaml:"skills"`
	Store   StoreConfig   `yaml:"store"`
	Logging LoggingConfig `yaml:"logging"`
}

// StoreConfig locates the SQLite database.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig selects the log level and encoding.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// #endregion

// #region defaults

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Agent:  agent.DefaultConfig(),
		Skills: skills.DefaultConfig(),
		Store: StoreConfig{
			Path: "mud.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// #endregion

// #region load-save

// Load reads path over the defaults and then applies environment overrides.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration as YAML, creating the directory if needed.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	c.Store.Path = envOr("MUD_DB", c.Store.Path)
	c.Agent.AgentID = envOr("MUD_AGENT_ID", c.Agent.AgentID)
	c.Logging.Level = envOr("MUD_LOG_LEVEL", c.Logging.Level)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion

// #region validate

// Validate rejects settings the agent cannot run with.
func (c *Config) Validate() error {
	a := c.Agent
	var errs []error
	check := func(bad bool, format string, args ...any) {
		if bad {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(a.AgentID == "", "agent.agent_id is empty")
	check(a.MaxSteps < 1, "agent.max_steps must be at least 1, got %d", a.MaxSteps)
	check(a.Evaluator.Depth < 1, "agent.policy.depth must be at least 1, got %d", a.Evaluator.Depth)
	check(a.Evaluator.BeamWidth < 0, "agent.policy.beam_width must not be negative, got %d", a.Evaluator.BeamWidth)
	check(a.Selector.Temperature <= 0, "agent.selector.temperature must be positive, got %g", a.Selector.Temperature)
	check(a.Learning.Rate < 0, "agent.learning.rate must not be negative, got %g", a.Learning.Rate)
	check(a.Tuner.Decay <= 0 || a.Tuner.Decay > 1, "agent.tuner.decay must be in (0, 1], got %g", a.Tuner.Decay)
	check(a.Stability.Window < 2, "agent.stability.window must be at least 2, got %d", a.Stability.Window)
	check(c.Skills.HalfLife <= 0, "skills.half_life must be positive, got %s", c.Skills.HalfLife)
	check(c.Store.Path == "", "store.path is empty")

	switch c.Logging.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format))
	}
	return errors.Join(errs...)
}

// #endregion
