package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the steward configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Console ConsoleConfig `yaml:"console"`
	Audit   AuditConfig   `yaml:"audit"`
	Log     LogConfig     `yaml:"log"`
}

// ServerConfig holds directory service connection settings.
type ServerConfig struct {
	URL       string `yaml:"url"`        // Directory service base URL
	Socket    string `yaml:"socket"`     // Unix socket path (overrides url host)
	TimeoutMs int    `yaml:"timeout_ms"` // Request timeout in ms
}

// ConsoleConfig holds interactive console settings.
type ConsoleConfig struct {
	PageSize           int  `yaml:"page_size"`           // Rows per table page
	ConfirmDestructive bool `yaml:"confirm_destructive"` // Ask before deletes and removals
}

// AuditConfig holds local audit trail settings.
type AuditConfig struct {
	Enabled       bool   `yaml:"enabled"`        // Record directory mutations locally
	Path          string `yaml:"path"`           // Database path (empty = default from paths)
	RetentionDays int    `yaml:"retention_days"` // Prune entries older than this (0 = keep forever)
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	File  string `yaml:"file"`  // Log file path (empty = default from paths)
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			URL:       "http://localhost:17170",
			Socket:    "",
			TimeoutMs: 5000,
		},
		Console: ConsoleConfig{
			PageSize:           100,
			ConfirmDestructive: true,
		},
		Audit: AuditConfig{
			Enabled:       true,
			Path:          "", // Use default from paths
			RetentionDays: 90,
		},
		Log: LogConfig{
			Level: "info",
			File:  "", // Use default from paths
		},
	}
}

// Load loads configuration from the default path.
func Load() (*Config, error) {
	paths := DefaultPaths()
	return LoadFromFile(paths.ConfigFile())
}

// LoadFromFile loads configuration from the specified file.
// If the file doesn't exist, returns default configuration.
// Environment variable overrides are applied after file loading.
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.ApplyEnvOverrides()
			return cfg, nil // Return defaults if file doesn't exist
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ApplyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Save saves the configuration to the default path.
func (c *Config) Save() error {
	paths := DefaultPaths()
	return c.SaveToFile(paths.ConfigFile())
}

// SaveToFile saves the configuration to the specified file.
func (c *Config) SaveToFile(path string) error {
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

// Get retrieves a configuration value by dot-separated key.
// For example: "server.url" or "audit.enabled"
func (c *Config) Get(key string) (string, error) {
	parts := strings.Split(key, ".")
	if len(parts) != 2 {
		return "", errors.New("key must be in format 'section.key'")
	}

	section, field := parts[0], parts[1]

	switch section {
	case "server":
		return c.getServerField(field)
	case "console":
		return c.getConsoleField(field)
	case "audit":
		return c.getAuditField(field)
	case "log":
		return c.getLogField(field)
	default:
		return "", fmt.Errorf("unknown section: %s", section)
	}
}

// Set sets a configuration value by dot-separated key.
func (c *Config) Set(key, value string) error {
	parts := strings.Split(key, ".")
	if len(parts) != 2 {
		return errors.New("key must be in format 'section.key'")
	}

	section, field := parts[0], parts[1]

	switch section {
	case "server":
		return c.setServerField(field, value)
	case "console":
		return c.setConsoleField(field, value)
	case "audit":
		return c.setAuditField(field, value)
	case "log":
		return c.setLogField(field, value)
	default:
		return fmt.Errorf("unknown section: %s", section)
	}
}

func (c *Config) getServerField(field string) (string, error) {
	switch field {
	case "url":
		return c.Server.URL, nil
	case "socket":
		return c.Server.Socket, nil
	case "timeout_ms":
		return strconv.Itoa(c.Server.TimeoutMs), nil
	default:
		return "", fmt.Errorf("unknown field: server.%s", field)
	}
}

func (c *Config) setServerField(field, value string) error {
	switch field {
	case "url":
		if !isValidServerURL(value) {
			return fmt.Errorf("invalid url: %s (must start with http:// or https://)", value)
		}
		c.Server.URL = value
	case "socket":
		c.Server.Socket = value
	case "timeout_ms":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for timeout_ms: %w", err)
		}
		if v < 1 {
			return fmt.Errorf("invalid timeout_ms: must be >= 1")
		}
		c.Server.TimeoutMs = v
	default:
		return fmt.Errorf("unknown field: server.%s", field)
	}
	return nil
}

func (c *Config) getConsoleField(field string) (string, error) {
	switch field {
	case "page_size":
		return strconv.Itoa(c.Console.PageSize), nil
	case "confirm_destructive":
		return strconv.FormatBool(c.Console.ConfirmDestructive), nil
	default:
		return "", fmt.Errorf("unknown field: console.%s", field)
	}
}

func (c *Config) setConsoleField(field, value string) error {
	switch field {
	case "page_size":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for page_size: %w", err)
		}
		if v < 10 {
			v = 10
		}
		if v > 500 {
			v = 500
		}
		c.Console.PageSize = v
	case "confirm_destructive":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid value for confirm_destructive: %w", err)
		}
		c.Console.ConfirmDestructive = v
	default:
		return fmt.Errorf("unknown field: console.%s", field)
	}
	return nil
}

func (c *Config) getAuditField(field string) (string, error) {
	switch field {
	case "enabled":
		return strconv.FormatBool(c.Audit.Enabled), nil
	case "path":
		return c.Audit.Path, nil
	case "retention_days":
		return strconv.Itoa(c.Audit.RetentionDays), nil
	default:
		return "", fmt.Errorf("unknown field: audit.%s", field)
	}
}

func (c *Config) setAuditField(field, value string) error {
	switch field {
	case "enabled":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid value for enabled: %w", err)
		}
		c.Audit.Enabled = v
	case "path":
		c.Audit.Path = value
	case "retention_days":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for retention_days: %w", err)
		}
		if v < 0 {
			return fmt.Errorf("invalid retention_days: must be non-negative")
		}
		c.Audit.RetentionDays = v
	default:
		return fmt.Errorf("unknown field: audit.%s", field)
	}
	return nil
}

func (c *Config) getLogField(field string) (string, error) {
	switch field {
	case "level":
		return c.Log.Level, nil
	case "file":
		return c.Log.File, nil
	default:
		return "", fmt.Errorf("unknown field: log.%s", field)
	}
}

func (c *Config) setLogField(field, value string) error {
	switch field {
	case "level":
		if !isValidLogLevel(value) {
			return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", value)
		}
		c.Log.Level = value
	case "file":
		c.Log.File = value
	default:
		return fmt.Errorf("unknown field: log.%s", field)
	}
	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.URL == "" && c.Server.Socket == "" {
		return errors.New("server.url or server.socket must be set")
	}

	if c.Server.URL != "" && !isValidServerURL(c.Server.URL) {
		return fmt.Errorf("server.url must start with http:// or https:// (got: %s)", c.Server.URL)
	}

	if c.Server.TimeoutMs < 1 {
		return errors.New("server.timeout_ms must be >= 1")
	}

	if !isValidLogLevel(c.Log.Level) {
		return fmt.Errorf("log.level must be debug, info, warn, or error (got: %s)", c.Log.Level)
	}

	if c.Audit.RetentionDays < 0 {
		return errors.New("audit.retention_days must be >= 0")
	}

	// Clamp page size to [10, 500]
	if c.Console.PageSize < 10 {
		c.Console.PageSize = 10
	}
	if c.Console.PageSize > 500 {
		c.Console.PageSize = 500
	}

	return nil
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

func isValidServerURL(url string) bool {
	return strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://")
}

// ApplyEnvOverrides applies environment variable overrides to the config.
// Environment variables take precedence over config file values.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("STEWARD_SERVER_URL"); v != "" {
		c.Server.URL = v
	}
	if v := os.Getenv("STEWARD_SERVER_SOCKET"); v != "" {
		c.Server.Socket = v
	}
	if v := os.Getenv("STEWARD_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil && b {
			c.Log.Level = "debug"
		}
	}
	if v := os.Getenv("STEWARD_LOG_LEVEL"); v != "" {
		if isValidLogLevel(v) {
			c.Log.Level = v
		}
	}
}

// ListKeys returns the configuration keys exposed by the config command.
func ListKeys() []string {
	return []string{
		"server.url",
		"server.socket",
		"server.timeout_ms",
		"console.page_size",
		"console.confirm_destructive",
		"audit.enabled",
		"audit.path",
		"audit.retention_days",
		"log.level",
		"log.file",
	}
}
