package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("PATCHFLINK_MODEL", "")
	t.Setenv("PATCHFLINK_LOG_LEVEL", "")
	t.Setenv("PATCHFLINK_WORKING_DIR", "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.MaxRetries != 2 {
		t.Errorf("max retries = %d, want 2", cfg.MaxRetries)
	}
	if cfg.TokenBudget != 3000 {
		t.Errorf("token budget = %d, want 3000", cfg.TokenBudget)
	}
	if !cfg.RunTests {
		t.Error("run_tests should default to true")
	}
	if cfg.LogLevel != "info" {
		t.Errorf("log level = %q", cfg.LogLevel)
	}
}

func TestLoadFile(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("PATCHFLINK_MODEL", "")
	t.Setenv("PATCHFLINK_LOG_LEVEL", "")
	t.Setenv("PATCHFLINK_WORKING_DIR", "")

	path := filepath.Join(t.TempDir(), "config.json")
	content := `{"max_retries": 5, "log_level": "debug", "model": "claude-3-5-haiku-20241022"}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.MaxRetries != 5 {
		t.Errorf("max retries = %d, want 5", cfg.MaxRetries)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log level = %q", cfg.LogLevel)
	}
	if cfg.Model != "claude-3-5-haiku-20241022" {
		t.Errorf("model = %q", cfg.Model)
	}
	// Unset fields keep their defaults.
	if cfg.TokenBudget != 3000 {
		t.Errorf("token budget = %d, want default 3000", cfg.TokenBudget)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-test-key")
	t.Setenv("PATCHFLINK_MODEL", "claude-3-5-sonnet-20241022")
	t.Setenv("PATCHFLINK_LOG_LEVEL", "warn")
	t.Setenv("PATCHFLINK_WORKING_DIR", "")

	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"log_level": "debug"}`), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.APIKey != "sk-test-key" {
		t.Errorf("api key = %q", cfg.APIKey)
	}
	if cfg.Model != "claude-3-5-sonnet-20241022" {
		t.Errorf("model = %q", cfg.Model)
	}
	if cfg.LogLevel != "warn" {
		t.Error("environment must override the file value")
	}
}

func TestLoadMissingFileIsNotFatal(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("PATCHFLINK_MODEL", "")
	t.Setenv("PATCHFLINK_LOG_LEVEL", "")
	t.Setenv("PATCHFLINK_WORKING_DIR", "")

	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err != nil {
		t.Errorf("missing config file should not fail: %v", err)
	}
}

func TestSaveExcludesAPIKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.json")
	cfg := Default()
	cfg.APIKey = "sk-secret"

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) == 0 {
		t.Fatal("unexpected empty file")
	}
	if strings.Contains(string(data), "sk-secret") {
		t.Error("api key leaked into the config file")
	}
}
