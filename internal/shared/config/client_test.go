package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dashboard.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadClient_ExpandsEnvironment(t *testing.T) {
	t.Setenv("TEST_DASH_TOKEN", "tok-123")
	path := writeFile(t, `
api_url: https://api.example.com
access_token: ${TEST_DASH_TOKEN}
cache_path: /tmp/cache.db
timeout: 5s
`)

	cfg, err := LoadClient(path)
	if err != nil {
		t.Fatalf("LoadClient() failed: %v", err)
	}
	if cfg.AccessToken != "tok-123" {
		t.Errorf("AccessToken = %q, want %q", cfg.AccessToken, "tok-123")
	}
	if cfg.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", cfg.Timeout)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want default %q", cfg.LogLevel, "warn")
	}
}

func TestLoadClient_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("WEALTHDASH_ACCESS_TOKEN", "env-token")

	cfg, err := LoadClient(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadClient() failed: %v", err)
	}
	if cfg.APIURL != "http://localhost:8080" {
		t.Errorf("APIURL = %q, want default", cfg.APIURL)
	}
	if cfg.AccessToken != "env-token" {
		t.Errorf("AccessToken = %q, want %q", cfg.AccessToken, "env-token")
	}
}

func TestLoadClient_RequiresAccessToken(t *testing.T) {
	t.Setenv("WEALTHDASH_ACCESS_TOKEN", "")
	path := writeFile(t, "api_url: https://api.example.com\n")

	if _, err := LoadClient(path); err == nil {
		t.Error("LoadClient() expected error for missing access token, got nil")
	}
}

func TestLoadClient_InvalidYAML(t *testing.T) {
	path := writeFile(t, "api_url: [unterminated\n")

	if _, err := LoadClient(path); err == nil {
		t.Error("LoadClient() expected parse error, got nil")
	}
}
