// Package config provides configuration loading and management for Semprompt.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete Semprompt configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Model   ModelConfig   `yaml:"model"`
	NATS    NATSConfig    `yaml:"nats"`
	Presets PresetsConfig `yaml:"presets"`
}

// ServerConfig configures the HTTP server
type ServerConfig struct {
	// Addr is the listen address for the web interface (default: ":8085")
	Addr string `yaml:"addr"`
	// MaxBodyBytes limits the size of accepted request bodies
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
}

// ModelConfig configures the model API settings. The API key is never
// read from configuration; it comes from the environment or the request.
type ModelConfig struct {
	// Provider is the completion provider name (default: "openai")
	Provider string `yaml:"provider"`
	// Endpoint overrides the provider's default API endpoint
	Endpoint string `yaml:"endpoint"`
	// Default is the model used when a request does not pick one (e.g., "gpt-4.1-mini")
	Default string `yaml:"default"`
	// Options are the models a request may choose from
	Options []string `yaml:"options"`
	// Temperature controls randomness (0.0-1.2, default: 0.5)
	Temperature float64 `yaml:"temperature"`
	// Timeout is the maximum time to wait for model responses
	Timeout time.Duration `yaml:"timeout"`
	// MaxTokens caps response length (0 = provider default)
	MaxTokens int `yaml:"max_tokens"`
}

// NATSConfig configures the NATS request/reply responder
type NATSConfig struct {
	// Enabled turns the responder on
	Enabled bool `yaml:"enabled"`
	// URL is the NATS server URL (default: nats://localhost:4222)
	URL string `yaml:"url"`
	// Subject is the request subject the responder listens on
	Subject string `yaml:"subject"`
}

// PresetsConfig configures preset discovery
type PresetsConfig struct {
	// Paths are glob patterns for preset YAML files (doublestar syntax)
	Paths []string `yaml:"paths"`
	// Watch reloads presets when matching files change
	Watch bool `yaml:"watch"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         ":8085",
			MaxBodyBytes: 1 << 20,
		},
		Model: ModelConfig{
			Provider:    "openai",
			Endpoint:    "", // Provider default
			Default:     "gpt-4.1-mini",
			Options:     []string{"gpt-4.1", "gpt-4.1-mini"},
			Temperature: 0.5,
			Timeout:     2 * time.Minute,
			MaxTokens:   0,
		},
		NATS: NATSConfig{
			Enabled: false,
			URL:     "nats://localhost:4222",
			Subject: "semprompt.enhance.request",
		},
		Presets: PresetsConfig{
			Paths: nil,
			Watch: true,
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("server.max_body_bytes must be positive")
	}
	if c.Model.Provider == "" {
		return fmt.Errorf("model.provider is required")
	}
	if c.Model.Default == "" {
		return fmt.Errorf("model.default is required")
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > 1.2 {
		return fmt.Errorf("model.temperature must be between 0 and 1.2")
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		return fmt.Errorf("nats.url is required when nats.enabled is true")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Server
	if other.Server.Addr != "" {
		c.Server.Addr = other.Server.Addr
	}
	if other.Server.MaxBodyBytes != 0 {
		c.Server.MaxBodyBytes = other.Server.MaxBodyBytes
	}

	// Model
	if other.Model.Provider != "" {
		c.Model.Provider = other.Model.Provider
	}
	if other.Model.Endpoint != "" {
		c.Model.Endpoint = other.Model.Endpoint
	}
	if other.Model.Default != "" {
		c.Model.Default = other.Model.Default
	}
	if len(other.Model.Options) > 0 {
		c.Model.Options = other.Model.Options
	}
	if other.Model.Temperature != 0 {
		c.Model.Temperature = other.Model.Temperature
	}
	if other.Model.Timeout != 0 {
		c.Model.Timeout = other.Model.Timeout
	}
	if other.Model.MaxTokens != 0 {
		c.Model.MaxTokens = other.Model.MaxTokens
	}

	// NATS
	if other.NATS.Enabled {
		c.NATS.Enabled = true
	}
	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
	}
	if other.NATS.Subject != "" {
		c.NATS.Subject = other.NATS.Subject
	}

	// Presets. Watch only matters when paths are configured, so it is
	// taken from the same config that supplies the paths.
	if len(other.Presets.Paths) > 0 {
		c.Presets.Paths = other.Presets.Paths
		c.Presets.Watch = other.Presets.Watch
	}
}
