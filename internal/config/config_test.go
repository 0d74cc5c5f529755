// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML loading, env var expansion, and duration parsing

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: "127.0.0.1:7486"

database:
  path: "./glidescope.db"

state:
  path: "./state.json"

instance:
  origin: "https://dev12345.service-now.com"

retention:
  cleanup_interval: "12h"

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.HTTPAddr != "127.0.0.1:7486" {
		t.Errorf("HTTPAddr = %q, want 127.0.0.1:7486", cfg.Server.HTTPAddr)
	}
	if cfg.Instance.Origin != "https://dev12345.service-now.com" {
		t.Errorf("Origin = %q", cfg.Instance.Origin)
	}
	if cfg.Retention.CleanupInterval != 12*time.Hour {
		t.Errorf("CleanupInterval = %v, want 12h", cfg.Retention.CleanupInterval)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("GLIDESCOPE_TEST_DB", "/tmp/expanded.db")

	path := writeConfig(t, `
server:
  http_addr: "127.0.0.1:7486"
database:
  path: "${GLIDESCOPE_TEST_DB}"
state:
  path: "./state.json"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Database.Path != "/tmp/expanded.db" {
		t.Errorf("Database.Path = %q, want /tmp/expanded.db", cfg.Database.Path)
	}
}

func TestLoad_MissingRequiredFields(t *testing.T) {
	cases := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "missing http_addr",
			content: `
database:
  path: "./glidescope.db"
state:
  path: "./state.json"
`,
			wantErr: "server.http_addr",
		},
		{
			name: "missing database path",
			content: `
server:
  http_addr: "127.0.0.1:7486"
state:
  path: "./state.json"
`,
			wantErr: "database.path",
		},
		{
			name: "missing state path",
			content: `
server:
  http_addr: "127.0.0.1:7486"
database:
  path: "./glidescope.db"
`,
			wantErr: "state.path",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content))
			if err == nil {
				t.Fatal("Load() succeeded, want error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error = %v, want mention of %s", err, tc.wantErr)
			}
		})
	}
}

func TestLoad_BadDuration(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: "127.0.0.1:7486"
database:
  path: "./glidescope.db"
state:
  path: "./state.json"
retention:
  cleanup_interval: "not-a-duration"
`)

	if _, err := Load(path); err == nil {
		t.Fatal("Load() succeeded with invalid duration")
	}
}

func TestLoad_CleanupIntervalDefault(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: "127.0.0.1:7486"
database:
  path: "./glidescope.db"
state:
  path: "./state.json"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Retention.CleanupInterval != 24*time.Hour {
		t.Errorf("CleanupInterval = %v, want 24h default", cfg.Retention.CleanupInterval)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Fatal("Load() succeeded for missing file")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default("/var/lib/glidescope")
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Database.Path != "/var/lib/glidescope/glidescope.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
}
