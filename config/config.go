package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full runtime configuration.
type Config struct {
	Providers ProvidersConfig `yaml:"providers"`
	Execution ExecutionConfig `yaml:"execution"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ProvidersConfig selects CLI binaries and per-provider default models.
type ProvidersConfig struct {
	// ClaudeBinary is the claude CLI executable. Defaults to "claude".
	ClaudeBinary string `yaml:"claude_binary"`
	// CursorBinary is the cursor agent executable. Defaults to "cursor-agent".
	CursorBinary string `yaml:"cursor_binary"`
	// DefaultModels maps a provider tag to the model used when an agent
	// config carries none.
	DefaultModels map[string]string `yaml:"default_models"`
}

// ExecutionConfig bounds invocation attempts.
type ExecutionConfig struct {
	// Timeout is the hard per-attempt ceiling as a Go duration string.
	Timeout string `yaml:"timeout"`
	// GracePeriod between graceful and forceful process termination.
	GracePeriod string `yaml:"grace_period"`
	// MaxOutputBytes caps accumulated output per attempt.
	MaxOutputBytes int `yaml:"max_output_bytes"`
	// LogDir is where per-run output logs are written when enabled.
	LogDir string `yaml:"log_dir"`
}

// LoggingConfig selects log verbosity and encoding.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or text
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		Providers: ProvidersConfig{
			ClaudeBinary: "claude",
			CursorBinary: "cursor-agent",
		},
		Execution: ExecutionConfig{
			Timeout:        "120s",
			GracePeriod:    "5s",
			MaxOutputBytes: 10 << 20,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

// Load reads a YAML config file over the defaults, applies environment
// overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overrides per-machine values from the environment.
func (c *Config) applyEnv() {
	if v := os.Getenv("TASKMESH_CLAUDE_BINARY"); v != "" {
		c.Providers.ClaudeBinary = v
	}
	if v := os.Getenv("TASKMESH_CURSOR_BINARY"); v != "" {
		c.Providers.CursorBinary = v
	}
	if v := os.Getenv("TASKMESH_TIMEOUT"); v != "" {
		c.Execution.Timeout = v
	}
	if v := os.Getenv("TASKMESH_LOG_DIR"); v != "" {
		c.Execution.LogDir = v
	}
}

// Validate fails fast on unusable values.
func (c Config) Validate() error {
	if c.Providers.ClaudeBinary == "" {
		return fmt.Errorf("providers.claude_binary must not be empty")
	}
	if c.Providers.CursorBinary == "" {
		return fmt.Errorf("providers.cursor_binary must not be empty")
	}
	if _, err := time.ParseDuration(c.Execution.Timeout); err != nil {
		return fmt.Errorf("execution.timeout %q is not a duration: %w", c.Execution.Timeout, err)
	}
	if _, err := time.ParseDuration(c.Execution.GracePeriod); err != nil {
		return fmt.Errorf("execution.grace_period %q is not a duration: %w", c.Execution.GracePeriod, err)
	}
	if c.Execution.MaxOutputBytes <= 0 {
		return fmt.Errorf("execution.max_output_bytes must be positive")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("logging.format %q is not json or text", c.Logging.Format)
	}
	return nil
}

// Timeout returns the parsed per-attempt ceiling. Call Validate first.
func (c Config) Timeout() time.Duration {
	d, _ := time.ParseDuration(c.Execution.Timeout)
	return d
}

// GracePeriod returns the parsed kill grace period. Call Validate first.
func (c Config) GracePeriod() time.Duration {
	d, _ := time.ParseDuration(c.Execution.GracePeriod)
	return d
}

// DefaultModel returns the configured default model for a provider tag, or
// empty when none is set.
func (c Config) DefaultModel(provider string) string {
	return c.Providers.DefaultModels[provider]
}
