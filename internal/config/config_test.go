package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	home, _ := os.UserHomeDir()
	if cfg.Data.Dir != home {
		t.Errorf("Data.Dir = %s, want home directory %s", cfg.Data.Dir, home)
	}
	if len(cfg.Data.Patterns) != 3 || cfg.Data.Patterns[0] != "hemingway_*.json" {
		t.Errorf("unexpected default patterns: %v", cfg.Data.Patterns)
	}
	if cfg.Query.Limit != 50 {
		t.Errorf("Query.Limit = %d, want 50", cfg.Query.Limit)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %s, want info", cfg.Log.Level)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
data:
  dir: /srv/exports
  patterns:
    - "dump_*.json"
query:
  limit: 25
server:
  http: ":9090"
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Data.Dir != "/srv/exports" {
		t.Errorf("Data.Dir = %s", cfg.Data.Dir)
	}
	if len(cfg.Data.Patterns) != 1 || cfg.Data.Patterns[0] != "dump_*.json" {
		t.Errorf("Data.Patterns = %v", cfg.Data.Patterns)
	}
	if cfg.Query.Limit != 25 {
		t.Errorf("Query.Limit = %d", cfg.Query.Limit)
	}
	if cfg.Server.HTTP != ":9090" {
		t.Errorf("Server.HTTP = %s", cfg.Server.HTTP)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %s", cfg.Log.Level)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SLACK_MCP_DATA_DIR", "/tmp/exports")
	t.Setenv("SLACK_MCP_DATA_PATTERNS", "a_*.json,b_*.json")
	t.Setenv("SLACK_MCP_LOG_LEVEL", "warn")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Data.Dir != "/tmp/exports" {
		t.Errorf("Data.Dir = %s, want /tmp/exports", cfg.Data.Dir)
	}
	if len(cfg.Data.Patterns) != 2 || cfg.Data.Patterns[1] != "b_*.json" {
		t.Errorf("Data.Patterns = %v", cfg.Data.Patterns)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %s, want warn", cfg.Log.Level)
	}
}

func TestLoadMissingFileIsNotFatal(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v, a missing config file should fall back to defaults", err)
	}
	if cfg.Query.Limit != 50 {
		t.Errorf("Query.Limit = %d, want default 50", cfg.Query.Limit)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "Valid", mutate: func(c *Config) {}, wantErr: false},
		{name: "Empty dir", mutate: func(c *Config) { c.Data.Dir = "" }, wantErr: true},
		{name: "No patterns", mutate: func(c *Config) { c.Data.Patterns = nil }, wantErr: true},
		{name: "Zero limit", mutate: func(c *Config) { c.Query.Limit = 0 }, wantErr: true},
		{name: "Bad log level", mutate: func(c *Config) { c.Log.Level = "loud" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
