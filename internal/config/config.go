package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds the application configuration
type Config struct {
	Data   DataConfig   `koanf:"data"`
	Query  QueryConfig  `koanf:"query"`
	Server ServerConfig `koanf:"server"`
	Log    LogConfig    `koanf:"log"`
}

// DataConfig controls export file discovery
type DataConfig struct {
	// Dir is the directory scanned for export files (default: user home)
	Dir string `koanf:"dir"`

	// Patterns is the list of filename globs recognized as exports
	Patterns []string `koanf:"patterns"`
}

// QueryConfig holds query engine defaults
type QueryConfig struct {
	// Limit is the default maximum result count for query_messages
	Limit int `koanf:"limit"`
}

// ServerConfig holds transport configuration
type ServerConfig struct {
	// HTTP is the optional listen address for the WebSocket transport
	// (empty: stdio only)
	HTTP string `koanf:"http"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `koanf:"level"`
}

// Default returns the built-in configuration. The data directory
// falls back to the current directory only if the home directory
// cannot be resolved.
func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &Config{
		Data: DataConfig{
			Dir: home,
			Patterns: []string{
				"hemingway_*.json",
				"slack_*.json",
				"*_slack_export.json",
			},
		},
		Query: QueryConfig{Limit: 50},
		Log:   LogConfig{Level: "info"},
	}
}

// Load builds the configuration from defaults, an optional YAML file,
// and SLACK_MCP_* environment overrides, in that precedence order.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
			}
		}
	}

	// SLACK_MCP_DATA_DIR -> data.dir, SLACK_MCP_QUERY_LIMIT -> query.limit
	err := k.Load(env.Provider(".", env.Opt{
		Prefix: "SLACK_MCP_",
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, "SLACK_MCP_"))
			key = strings.Replace(key, "_", ".", 1)
			if key == "data.patterns" {
				return key, strings.Split(value, ",")
			}
			return key, value
		},
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load environment config: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Data.Dir == "" {
		return fmt.Errorf("data.dir is required")
	}
	if len(c.Data.Patterns) == 0 {
		return fmt.Errorf("data.patterns must not be empty")
	}
	if c.Query.Limit <= 0 {
		return fmt.Errorf("query.limit must be positive, got %d", c.Query.Limit)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}
	return nil
}
