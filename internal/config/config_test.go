package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

// TestDefaultConfigIsValid verifies the shipped defaults pass validation.
func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

// TestLoadMissingFiles verifies missing config files fall back to defaults.
func TestLoadMissingFiles(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(filepath.Join(dir, "nope.json"), filepath.Join(dir, "also-nope.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Agents) != 3 {
		t.Errorf("agents = %d, want the default panel of 3", len(cfg.Agents))
	}
	if cfg.Run.MaxRounds != 3 {
		t.Errorf("MaxRounds = %d, want 3", cfg.Run.MaxRounds)
	}
}

// TestLoadMalformedJSON verifies a present but broken file is an error.
func TestLoadMalformedJSON(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "config.json", "{not json")

	if _, err := Load(path, ""); err == nil {
		t.Fatal("expected error for malformed config")
	}
}

// TestLoadPrecedence verifies project config overrides global, which
// overrides defaults.
func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	global := writeConfig(t, dir, "global.json", `{
		"run": {"max_rounds": 5, "retry_bound": 1}
	}`)
	project := writeConfig(t, dir, "project.json", `{
		"run": {"max_rounds": 7}
	}`)

	cfg, err := Load(global, project)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Run.MaxRounds != 7 {
		t.Errorf("MaxRounds = %d, want project value 7", cfg.Run.MaxRounds)
	}
	if cfg.Run.RetryBound != 1 {
		t.Errorf("RetryBound = %d, want global value 1", cfg.Run.RetryBound)
	}
	if cfg.Run.Policy != "unanimous" {
		t.Errorf("Policy = %q, want default", cfg.Run.Policy)
	}
}

// TestLoadExplicitZero verifies an explicit zero in a config file overrides
// a non-zero default instead of being mistaken for an omitted key.
func TestLoadExplicitZero(t *testing.T) {
	dir := t.TempDir()
	project := writeConfig(t, dir, "project.json", `{
		"run": {"max_rounds": 4, "retry_bound": 0}
	}`)

	cfg, err := Load("", project)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Run.RetryBound != 0 {
		t.Errorf("RetryBound = %d, want 0 (explicitly configured)", cfg.Run.RetryBound)
	}
	if cfg.Run.MaxRounds != 4 {
		t.Errorf("MaxRounds = %d, want 4", cfg.Run.MaxRounds)
	}
	if cfg.Run.Concurrency != 4 {
		t.Errorf("Concurrency = %d, want default 4 for the omitted key", cfg.Run.Concurrency)
	}
}

// TestLoadAgentsReplaceDefaults verifies a user agent set replaces the
// default panel instead of merging into it.
func TestLoadAgentsReplaceDefaults(t *testing.T) {
	dir := t.TempDir()
	project := writeConfig(t, dir, "project.json", `{
		"agents": {
			"reviewer": {"provider": "claude", "persona": "terse"},
			"builder": {"provider": "codex"}
		}
	}`)

	cfg, err := Load("", project)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Agents) != 2 {
		t.Fatalf("agents = %d, want exactly the 2 configured", len(cfg.Agents))
	}
	if _, ok := cfg.Agents["architect"]; ok {
		t.Error("default agent survived an explicit agent set")
	}
	if cfg.Agents["builder"].Provider != "codex" {
		t.Errorf("builder provider = %q", cfg.Agents["builder"].Provider)
	}
}

// TestLoadProvidersMergePerKey verifies providers merge by key rather than
// replacing the whole map.
func TestLoadProvidersMergePerKey(t *testing.T) {
	dir := t.TempDir()
	project := writeConfig(t, dir, "project.json", `{
		"providers": {
			"claude": {"command": "/opt/bin/claude", "type": "claude"},
			"local": {"command": "goose", "type": "goose", "provider": "ollama"}
		}
	}`)

	cfg, err := Load("", project)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Providers["claude"].Command != "/opt/bin/claude" {
		t.Errorf("claude command = %q, want override", cfg.Providers["claude"].Command)
	}
	if _, ok := cfg.Providers["codex"]; !ok {
		t.Error("default codex provider lost during merge")
	}
	if cfg.Providers["local"].Provider != "ollama" {
		t.Errorf("local provider = %q", cfg.Providers["local"].Provider)
	}
}

// TestValidate tests the fail-fast checks.
func TestValidate(t *testing.T) {
	valid := func() *Config { return DefaultConfig() }

	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{
			name:      "no agents",
			mutate:    func(c *Config) { c.Agents = nil },
			wantField: "agents",
		},
		{
			name: "agent without provider",
			mutate: func(c *Config) {
				c.Agents["architect"] = AgentConfig{}
			},
			wantField: "agents.architect",
		},
		{
			name: "agent references unknown provider",
			mutate: func(c *Config) {
				c.Agents["architect"] = AgentConfig{Provider: "missing"}
			},
			wantField: "agents.architect",
		},
		{
			name: "provider with unknown type",
			mutate: func(c *Config) {
				c.Providers["weird"] = ProviderConfig{Command: "weird", Type: "telnet"}
			},
			wantField: "providers.weird",
		},
		{
			name:      "zero max rounds",
			mutate:    func(c *Config) { c.Run.MaxRounds = 0 },
			wantField: "run.max_rounds",
		},
		{
			name:      "negative retry bound",
			mutate:    func(c *Config) { c.Run.RetryBound = -1 },
			wantField: "run.retry_bound",
		},
		{
			name:      "unknown policy",
			mutate:    func(c *Config) { c.Run.Policy = "majority" },
			wantField: "run.policy",
		},
		{
			name: "score policy without threshold",
			mutate: func(c *Config) {
				c.Run.Policy = "score"
				c.Run.AcceptThreshold = 0
			},
			wantField: "run.accept_threshold",
		},
		{
			name: "score threshold above one",
			mutate: func(c *Config) {
				c.Run.Policy = "score"
				c.Run.AcceptThreshold = 1.5
			},
			wantField: "run.accept_threshold",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("err = %v, want *ValidationError", err)
			}
			if ve.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", ve.Field, tt.wantField)
			}
		})
	}
}

// TestValidateScorePolicy verifies a score policy with a sane threshold
// passes.
func TestValidateScorePolicy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Run.Policy = "score"
	cfg.Run.AcceptThreshold = 0.8
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

// TestSaveRoundtrip verifies Save output loads back identically.
func TestSaveRoundtrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.json")

	cfg := DefaultConfig()
	cfg.Run.MaxRounds = 9
	cfg.Agents = map[string]AgentConfig{
		"solo": {Provider: "claude", Model: "opus", Persona: "careful"},
	}

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load("", path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Run.MaxRounds != 9 {
		t.Errorf("MaxRounds = %d, want 9", loaded.Run.MaxRounds)
	}
	if got := loaded.Agents["solo"]; got.Model != "opus" || got.Persona != "careful" {
		t.Errorf("solo agent = %+v", got)
	}
}
