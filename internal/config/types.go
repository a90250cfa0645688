package config

import "fmt"

// ProviderConfig defines a generation transport (CLI command and base
// settings). Providers are separate from agents; multiple agents can share
// one provider.
type ProviderConfig struct {
	Command  string `json:"command"`            // CLI binary name
	Type     string `json:"type"`               // backend type: "claude", "codex", "goose"
	Provider string `json:"provider,omitempty"` // Goose local LLM provider
}

// AgentConfig defines one debate participant: its provider, optional model
// override, and the persona prompt that shapes both its drafts and its
// reviews. The persona is opaque to the engine.
type AgentConfig struct {
	Provider string `json:"provider"`          // key into Providers map
	Model    string `json:"model,omitempty"`   // model override
	Persona  string `json:"persona,omitempty"` // role prompt
}

// RunConfig holds the run-level knobs.
type RunConfig struct {
	MaxRounds       int     `json:"max_rounds"`                 // round budget, >= 1
	RetryBound      int     `json:"retry_bound"`                // per-unit retries within a round, >= 0
	Policy          string  `json:"policy,omitempty"`           // "unanimous" (default), "score", "stable"
	AcceptThreshold float64 `json:"accept_threshold,omitempty"` // score policy threshold
	Concurrency     int     `json:"concurrency,omitempty"`      // max concurrent unit invocations
}

// Config is the top-level configuration.
type Config struct {
	Providers map[string]ProviderConfig `json:"providers"`
	Agents    map[string]AgentConfig    `json:"agents"`
	Run       RunConfig                 `json:"run"`
}

// ValidationError reports an invalid configuration. Validation runs before
// any backend is touched, so a bad config never starts a run.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config: %s: %s", e.Field, e.Reason)
}

// Validate checks the configuration for conditions that would make a run
// impossible.
func (c *Config) Validate() error {
	if len(c.Agents) == 0 {
		return &ValidationError{Field: "agents", Reason: "at least one agent is required"}
	}
	for name, agent := range c.Agents {
		if agent.Provider == "" {
			return &ValidationError{Field: "agents." + name, Reason: "provider is required"}
		}
		if _, ok := c.Providers[agent.Provider]; !ok {
			return &ValidationError{Field: "agents." + name,
				Reason: fmt.Sprintf("unknown provider %q", agent.Provider)}
		}
	}
	for name, provider := range c.Providers {
		switch provider.Type {
		case "claude", "codex", "goose":
		default:
			return &ValidationError{Field: "providers." + name,
				Reason: fmt.Sprintf("unknown backend type %q", provider.Type)}
		}
	}
	if c.Run.MaxRounds < 1 {
		return &ValidationError{Field: "run.max_rounds",
			Reason: fmt.Sprintf("must be >= 1, got %d", c.Run.MaxRounds)}
	}
	if c.Run.RetryBound < 0 {
		return &ValidationError{Field: "run.retry_bound",
			Reason: fmt.Sprintf("must be >= 0, got %d", c.Run.RetryBound)}
	}
	switch c.Run.Policy {
	case "", "unanimous", "score", "stable":
	default:
		return &ValidationError{Field: "run.policy",
			Reason: fmt.Sprintf("unknown policy %q", c.Run.Policy)}
	}
	if c.Run.Policy == "score" && (c.Run.AcceptThreshold <= 0 || c.Run.AcceptThreshold > 1) {
		return &ValidationError{Field: "run.accept_threshold",
			Reason: "score policy requires a threshold in (0, 1]"}
	}
	return nil
}
