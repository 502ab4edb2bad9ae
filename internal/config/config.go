// Package config loads the bitbyte-models CLI configuration from an optional
// YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables that override file values.
const (
	EnvConfigPath  = "BITBYTE_CONFIG"
	EnvServerURL   = "BITBYTE_SERVER_URL"
	EnvJournalPath = "BITBYTE_JOURNAL_PATH"
	EnvLogLevel    = "BITBYTE_LOG_LEVEL"
)

// DefaultRequestTimeout matches the models package default.
const DefaultRequestTimeout = 30 * time.Second

// Config is the CLI configuration.
type Config struct {
	ServerURL      string        `yaml:"server_url"`
	ModelPath      string        `yaml:"model_path,omitempty"`   // Empty = platform data dir
	JournalPath    string        `yaml:"journal_path,omitempty"` // Empty = next to the model file
	RequestTimeout time.Duration `yaml:"request_timeout,omitempty"`
	HTTP2          *bool         `yaml:"http2,omitempty"` // Default: true
	CAFile         string        `yaml:"ca_file,omitempty"`
	LogLevel       string        `yaml:"log_level,omitempty"` // debug, info, warn, error
}

// Default returns a configuration with defaults applied.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// DefaultPath returns the per-user config file location.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "bitbyte", "config.yaml"), nil
}

// Load reads the YAML file at path, applies environment overrides and
// defaults, and validates the result. A missing file is not an error when
// optional is true.
func Load(path string, optional bool) (*Config, error) {
	var config Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case optional && errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	config.applyEnv()
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// FromEnvironment loads the file named by BITBYTE_CONFIG, or the optional
// per-user file when the variable is unset.
func FromEnvironment() (*Config, error) {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return Load(p, false)
	}

	p, err := DefaultPath()
	if err != nil {
		c := Default()
		c.applyEnv()
		return c, c.Validate()
	}
	return Load(p, true)
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvServerURL); v != "" {
		c.ServerURL = v
	}
	if v := os.Getenv(EnvJournalPath); v != "" {
		c.JournalPath = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
}

func (c *Config) applyDefaults() {
	if c.RequestTimeout == 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.HTTP2 == nil {
		enabled := true
		c.HTTP2 = &enabled
	}
	if c.LogLevel == "" {
		c.LogLevel = "warn"
	}
}

// Validate checks field values. An empty server URL is allowed here; commands
// that talk to the server report it.
func (c *Config) Validate() error {
	if c.ServerURL != "" {
		u, err := url.Parse(c.ServerURL)
		if err != nil {
			return fmt.Errorf("server_url: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("server_url must use http or https, got %q", c.ServerURL)
		}
		if u.Host == "" {
			return fmt.Errorf("server_url has no host: %q", c.ServerURL)
		}
	}

	if c.RequestTimeout < 0 {
		return fmt.Errorf("request_timeout must be >= 0, got %s", c.RequestTimeout)
	}

	if _, err := c.SlogLevel(); err != nil {
		return err
	}

	return nil
}

// HTTP2Enabled reports whether HTTP/2 should be negotiated.
func (c *Config) HTTP2Enabled() bool {
	return c.HTTP2 == nil || *c.HTTP2
}

// SlogLevel converts LogLevel to a slog.Level.
func (c *Config) SlogLevel() (slog.Level, error) {
	switch strings.ToLower(c.LogLevel) {
	case "", "warn", "warning":
		return slog.LevelWarn, nil
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("log_level must be debug, info, warn or error, got %q", c.LogLevel)
	}
}
