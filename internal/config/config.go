// Package config loads and validates the gateway configuration.
//
// DESIGN: All configuration comes from YAML files with ${VAR:-default}
// environment expansion. Server settings are strict (no silent defaults);
// routing knobs fall back to documented defaults at their point of use.
//
// FILES:
//   - config.go:     Root Config struct, Load(), Validate()
//   - router.go:     Re-exports of router configuration types
//   - hooks.go:      Hook pipeline entries
//   - monitoring.go: Logging, telemetry and alert settings
package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the Nova Gateway.
type Config struct {
	Server     ServerConfig     `yaml:"server"`     // HTTP server settings
	Router     RouterConfig     `yaml:"router"`     // Routing strategy and cooldowns
	Models     []ModelConfig    `yaml:"models"`     // Deployment pool
	Hooks      []HookConfig     `yaml:"hooks"`      // Hook pipeline, in execution order
	Monitoring MonitoringConfig `yaml:"monitoring"` // Telemetry and logging
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host         string          `yaml:"host"`           // Bind address, empty means all interfaces
	Port         int             `yaml:"port"`           // Port to listen on
	ReadTimeout  Duration        `yaml:"read_timeout"`   // Max time to read request
	WriteTimeout Duration        `yaml:"write_timeout"`  // Max time to write response
	MaxBodyBytes int64           `yaml:"max_body_bytes"` // Request body cap, 0 means 10MB
	RateLimit    RateLimitConfig `yaml:"rate_limit"`     // Per-client rate limiting
}

// RateLimitConfig contains per-client token bucket settings.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
	Burst             int  `yaml:"burst"`
}

// expandEnvWithDefaults expands environment variables with support for default values.
// Supports both ${VAR} and ${VAR:-default} syntax.
func expandEnvWithDefaults(s string) string {
	// Pattern matches ${VAR:-default} or ${VAR}
	re := regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name and default value
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultValue := ""
		if len(parts) > 2 {
			defaultValue = parts[2]
		}

		// Get environment variable value
		if value := os.Getenv(varName); value != "" {
			return value
		}

		// Return default if provided, otherwise empty string
		return defaultValue
	})
}

// Load reads configuration from a YAML file.
// Returns an error if the file doesn't exist or is invalid.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config file path is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	return LoadFromBytes(data)
}

// LoadFromBytes parses configuration from raw YAML bytes.
// Supports ${VAR:-default} env var expansion, env overrides, and validation.
func LoadFromBytes(data []byte) (*Config, error) {
	// Expand environment variables (supports ${VAR:-default} syntax)
	expanded := expandEnvWithDefaults(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply environment variable overrides for operational knobs
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// This lets deployment tooling redirect logs and tune verbosity without
// modifying the base config files.
func (c *Config) applyEnvOverrides() {
	// NOVA_GATEWAY_TELEMETRY_LOG overrides the telemetry log path
	if envPath := os.Getenv("NOVA_GATEWAY_TELEMETRY_LOG"); envPath != "" {
		c.Monitoring.TelemetryPath = envPath
		c.Monitoring.TelemetryEnabled = true
	}

	// NOVA_GATEWAY_LOG_LEVEL overrides the log level
	if level := os.Getenv("NOVA_GATEWAY_LOG_LEVEL"); level != "" {
		c.Monitoring.LogLevel = level
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	// Server validation
	if c.Server.Port == 0 {
		return fmt.Errorf("server.port is required")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ReadTimeout == 0 {
		return fmt.Errorf("server.read_timeout is required")
	}
	if c.Server.WriteTimeout == 0 {
		return fmt.Errorf("server.write_timeout is required")
	}
	if c.Server.MaxBodyBytes < 0 {
		return fmt.Errorf("server.max_body_bytes must be >= 0")
	}
	if c.Server.RateLimit.Enabled {
		if c.Server.RateLimit.RequestsPerMinute <= 0 {
			return fmt.Errorf("server.rate_limit.requests_per_minute must be > 0 when enabled")
		}
		if c.Server.RateLimit.Burst < 0 {
			return fmt.Errorf("server.rate_limit.burst must be >= 0")
		}
	}

	// Router validation
	if err := c.Router.Validate(); err != nil {
		return err
	}

	// Deployment validation
	if len(c.Models) == 0 {
		return fmt.Errorf("at least one models entry is required")
	}
	for i := range c.Models {
		if err := c.Models[i].Validate(); err != nil {
			return fmt.Errorf("models[%d]: %w", i, err)
		}
	}

	// Hook validation
	if err := validateHooks(c.Hooks); err != nil {
		return err
	}

	return nil
}
