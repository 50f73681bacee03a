// Package config loads application configuration from a JSON file with
// environment overrides for credentials.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Config represents application configuration.
type Config struct {
	WorkingDir  string  `json:"working_dir"`
	Model       string  `json:"model,omitempty"`
	MaxRetries  int     `json:"max_retries"`
	TokenBudget int     `json:"token_budget"`
	RunTests    bool    `json:"run_tests"`
	Temperature float64 `json:"temperature,omitempty"`
	LogLevel    string  `json:"log_level"` // debug, info, warn, error, none
	LogPath     string  `json:"log_path,omitempty"`
	DBPath      string  `json:"db_path,omitempty"`
	Author      string  `json:"commit_author,omitempty"`

	// APIKey is never persisted; it comes from the environment.
	APIKey string `json:"-"`
}

func defaultStateDir() string {
	if stateHome := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); stateHome != "" {
		return filepath.Join(stateHome, "patchflink")
	}
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".local", "state", "patchflink")
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	wd, _ := os.Getwd()
	return &Config{
		WorkingDir:  wd,
		MaxRetries:  2,
		TokenBudget: 3000,
		RunTests:    true,
		LogLevel:    "info",
		DBPath:      filepath.Join(defaultStateDir(), "runs.db"),
	}
}

// Load reads configuration from path, layering it over the defaults and then
// applying environment overrides. An empty path or a missing file yields the
// defaults plus environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		} else if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("max_retries must not be negative")
	}
	return cfg, nil
}

// applyEnv overlays environment variables on the loaded file values.
func (c *Config) applyEnv() {
	if key := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")); key != "" {
		c.APIKey = key
	}
	if model := strings.TrimSpace(os.Getenv("PATCHFLINK_MODEL")); model != "" {
		c.Model = model
	}
	if level := strings.TrimSpace(os.Getenv("PATCHFLINK_LOG_LEVEL")); level != "" {
		c.LogLevel = level
	}
	if dir := strings.TrimSpace(os.Getenv("PATCHFLINK_WORKING_DIR")); dir != "" {
		c.WorkingDir = dir
	}
}

// Save writes the configuration as indented JSON, creating the directory if
// needed. The API key is excluded by its struct tag.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}
