package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	CurrentVersion = 1
	DefaultPath    = "~/.pgdbml/pgdbml.yaml"
)

// Config is the top-level configuration.
type Config struct {
	Version int           `yaml:"version"`
	Source  SourceConfig  `yaml:"source,omitempty"`
	Convert ConvertConfig `yaml:"convert,omitempty"`
	Logging LogConfig     `yaml:"logging,omitempty"`
}

// SourceConfig defines the live database connection used by introspection.
type SourceConfig struct {
	Host           string `yaml:"host,omitempty"`
	Port           int    `yaml:"port,omitempty"`
	Database       string `yaml:"database,omitempty"`
	Schema         string `yaml:"schema,omitempty"`
	Username       string `yaml:"username,omitempty"`
	Password       string `yaml:"password,omitempty"`
	SSL            bool   `yaml:"ssl,omitempty"`
	MaxConnections int    `yaml:"max_connections,omitempty"` // default 10, max 50
}

// ConvertConfig defines conversion behavior.
type ConvertConfig struct {
	// BackslashEscapes treats backslashes inside string literals as escapes.
	BackslashEscapes bool `yaml:"backslash_escapes,omitempty"`
	// TypeOverrides maps source type names to target tokens.
	TypeOverrides map[string]string `yaml:"type_overrides,omitempty"`
	// Strict makes the CLI exit non-zero when any construct was dropped
	// or unsupported.
	Strict bool `yaml:"strict,omitempty"`
}

// LogConfig defines logging settings.
type LogConfig struct {
	Level         string `yaml:"level,omitempty"`          // debug, info, warn, error
	Directory     string `yaml:"directory,omitempty"`      // default ~/.pgdbml/logs/
	RetentionDays int    `yaml:"retention_days,omitempty"` // default 30
}

// Load reads and parses the config file from the given path.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ExpandHome(DefaultPath)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Version != CurrentVersion {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentVersion)
	}

	if err := cfg.resolveSecrets(); err != nil {
		return nil, fmt.Errorf("resolving secrets: %w", err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

// Default returns a config with defaults applied, for runs without a file.
func Default() *Config {
	cfg := &Config{Version: CurrentVersion}
	cfg.applyDefaults()
	return cfg
}

// Save writes the config to the given path.
func (c *Config) Save(path string) error {
	if path == "" {
		path = ExpandHome(DefaultPath)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	return os.WriteFile(path, data, 0o600)
}

func (c *Config) applyDefaults() {
	if c.Source.Port == 0 {
		c.Source.Port = 5432
	}
	if c.Source.Schema == "" {
		c.Source.Schema = "public"
	}
	if c.Source.MaxConnections == 0 {
		c.Source.MaxConnections = 10
	}
	if c.Source.MaxConnections > 50 {
		c.Source.MaxConnections = 50
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Directory == "" {
		c.Logging.Directory = ExpandHome("~/.pgdbml/logs/")
	}
	if c.Logging.RetentionDays == 0 {
		c.Logging.RetentionDays = 30
	}
}

var secretPattern = regexp.MustCompile(`\$\{ENV:([^}]+)\}`)

func (c *Config) resolveSecrets() error {
	var err error
	c.Source.Password, err = ResolveValue(c.Source.Password)
	if err != nil {
		return fmt.Errorf("source password: %w", err)
	}
	return nil
}

// ResolveValue resolves ${ENV:NAME} references in a string value.
func ResolveValue(val string) (string, error) {
	matches := secretPattern.FindStringSubmatch(val)
	if matches == nil {
		return val, nil
	}

	v := os.Getenv(matches[1])
	if v == "" {
		return "", fmt.Errorf("environment variable %s not set", matches[1])
	}
	return v, nil
}

// ConnString builds a pgx connection string from the source settings.
func (c *SourceConfig) ConnString() string {
	sslmode := "disable"
	if c.SSL {
		sslmode = "require"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Username, c.Password, c.Host, c.Port, c.Database, sslmode)
}

// ExpandHome expands ~ to the user's home directory.
func ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
