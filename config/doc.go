// Package config loads and validates the runtime configuration: provider
// binaries, default models, execution limits and logging. Configuration is
// YAML with environment overrides for the values that differ per machine.
package config
