// ABOUTME: Tests for configuration loading and parsing.
// ABOUTME: Covers YAML loading, env var expansion, defaults, and validation.

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
	path := filepath.Join(t.TempDir(), "companion.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
gateway:
  url: "http://gateway.example:18789"
  token: "secret"
  model: "clawdbot:main"
  user_id: "dom"
  timeout: "30s"

database:
  path: "./test.db"

logging:
  level: "debug"
  format: "json"

sync:
  max_preview_len: 80
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Gateway.URL != "http://gateway.example:18789" {
		t.Errorf("unexpected gateway url: %s", cfg.Gateway.URL)
	}
	if cfg.Gateway.Timeout != 30*time.Second {
		t.Errorf("unexpected timeout: %v", cfg.Gateway.Timeout)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("unexpected log level: %s", cfg.Logging.Level)
	}
	if cfg.Sync.MaxPreviewLen != 80 {
		t.Errorf("unexpected max_preview_len: %d", cfg.Sync.MaxPreviewLen)
	}
}

func TestLoad_DefaultsApplied(t *testing.T) {
	path := writeConfig(t, `
gateway:
  url: "http://gateway.example:18789"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Gateway.Model != "clawdbot:main" {
		t.Errorf("model default not applied: %s", cfg.Gateway.Model)
	}
	if cfg.Gateway.Timeout != 75*time.Second {
		t.Errorf("timeout default not applied: %v", cfg.Gateway.Timeout)
	}
	if cfg.Database.Path == "" {
		t.Error("database path default not applied")
	}
	if cfg.Sync.MaxPreviewLen != 100 {
		t.Errorf("max_preview_len default not applied: %d", cfg.Sync.MaxPreviewLen)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("COMPANION_TEST_TOKEN", "expanded-token")

	path := writeConfig(t, `
gateway:
  url: "http://gateway.example:18789"
  token: "${COMPANION_TEST_TOKEN}"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Gateway.Token != "expanded-token" {
		t.Errorf("env var not expanded: %s", cfg.Gateway.Token)
	}
}

func TestLoad_MissingURLFails(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: "info"
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error for missing gateway.url")
	}
	if !strings.Contains(err.Error(), "gateway.url") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoad_BadTimeoutFails(t *testing.T) {
	path := writeConfig(t, `
gateway:
  url: "http://gateway.example:18789"
  timeout: "not-a-duration"
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected duration parse error")
	}
}

func TestLoad_MissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}
