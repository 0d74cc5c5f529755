// ABOUTME: Configuration loading and parsing for glidescope
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete glidescope configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	State     StateConfig     `yaml:"state"`
	Instance  InstanceConfig  `yaml:"instance"`
	Retention RetentionConfig `yaml:"retention"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds listener configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// DatabaseConfig holds event store configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// StateConfig holds the key-value state file configuration
type StateConfig struct {
	Path string `yaml:"path"`
}

// InstanceConfig identifies the ServiceNow instance being observed
type InstanceConfig struct {
	// Origin restricts which page origin the relay accepts messages
	// from. Empty accepts any origin.
	Origin string `yaml:"origin"`
}

// RetentionConfig holds cleanup scheduling configuration
type RetentionConfig struct {
	CleanupInterval time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	CleanupIntervalRaw string `yaml:"cleanup_interval"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Default returns the configuration used when no file is given. Paths land
// under dataDir.
func Default(dataDir string) *Config {
	return &Config{
		Server:   ServerConfig{HTTPAddr: "127.0.0.1:7486"},
		Database: DatabaseConfig{Path: dataDir + "/glidescope.db"},
		State:    StateConfig{Path: dataDir + "/state.json"},
		Retention: RetentionConfig{
			CleanupInterval: 24 * time.Hour,
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.State.Path == "" {
		return fmt.Errorf("state.path is required")
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Retention.CleanupIntervalRaw != "" {
		cfg.Retention.CleanupInterval, err = time.ParseDuration(cfg.Retention.CleanupIntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing cleanup_interval %q: %w", cfg.Retention.CleanupIntervalRaw, err)
		}
	}
	if cfg.Retention.CleanupInterval == 0 {
		cfg.Retention.CleanupInterval = 24 * time.Hour
	}

	return nil
}
