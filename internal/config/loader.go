package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

// Load reads and merges configuration from global and project paths.
// Precedence (highest to lowest): project config, global config, defaults.
// Missing files are not errors; malformed JSON is.
func Load(globalPath, projectPath string) (*Config, error) {
	cfg := DefaultConfig()

	if globalPath != "" {
		if err := mergeConfigFile(cfg, globalPath); err != nil {
			return nil, fmt.Errorf("loading global config: %w", err)
		}
	}

	if projectPath != "" {
		if err := mergeConfigFile(cfg, projectPath); err != nil {
			return nil, fmt.Errorf("loading project config: %w", err)
		}
	}

	return cfg, nil
}

// GlobalPath returns the conventional global config location under the XDG
// config home.
func GlobalPath() string {
	return filepath.Join(xdg.ConfigHome, "consilium", "config.json")
}

// ProjectPath returns the conventional project-local config location,
// relative to cwd.
func ProjectPath() string {
	return filepath.Join(".consilium", "config.json")
}

// LoadDefault loads configuration from the conventional paths.
func LoadDefault() (*Config, error) {
	return Load(GlobalPath(), ProjectPath())
}

// fileConfig mirrors Config for decoding, with pointer run fields so an
// explicit zero in a file (retry_bound: 0 is a valid setting) is
// distinguishable from an omitted key.
type fileConfig struct {
	Providers map[string]ProviderConfig `json:"providers"`
	Agents    map[string]AgentConfig    `json:"agents"`
	Run       fileRunConfig             `json:"run"`
}

type fileRunConfig struct {
	MaxRounds       *int     `json:"max_rounds"`
	RetryBound      *int     `json:"retry_bound"`
	Policy          *string  `json:"policy"`
	AcceptThreshold *float64 `json:"accept_threshold"`
	Concurrency     *int     `json:"concurrency"`
}

// mergeConfigFile reads a JSON config file and merges it into base. Missing
// files are silently skipped. Only keys present in the file override base.
func mergeConfigFile(base *Config, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var loaded fileConfig
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	for key, provider := range loaded.Providers {
		base.Providers[key] = provider
	}

	// An explicit agent set replaces the defaults wholesale; merging the
	// default panel into a user-defined one would change the run's |agents|.
	if len(loaded.Agents) > 0 {
		base.Agents = loaded.Agents
	}

	if loaded.Run.MaxRounds != nil {
		base.Run.MaxRounds = *loaded.Run.MaxRounds
	}
	if loaded.Run.RetryBound != nil {
		base.Run.RetryBound = *loaded.Run.RetryBound
	}
	if loaded.Run.Policy != nil {
		base.Run.Policy = *loaded.Run.Policy
	}
	if loaded.Run.AcceptThreshold != nil {
		base.Run.AcceptThreshold = *loaded.Run.AcceptThreshold
	}
	if loaded.Run.Concurrency != nil {
		base.Run.Concurrency = *loaded.Run.Concurrency
	}

	return nil
}
