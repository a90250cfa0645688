package config

// DefaultConfig returns the default configuration: a three-member panel on
// the claude provider with complementary personas, unanimous-accept
// convergence, and a three-round budget.
func DefaultConfig() *Config {
	return &Config{
		Providers: map[string]ProviderConfig{
			"claude": {
				Command: "claude",
				Type:    "claude",
			},
			"codex": {
				Command: "codex",
				Type:    "codex",
			},
			"goose": {
				Command: "goose",
				Type:    "goose",
			},
		},
		Agents: map[string]AgentConfig{
			"architect": {
				Provider: "claude",
				Persona:  "You value clear structure and long-term maintainability. You favor simple designs over clever ones.",
			},
			"pragmatist": {
				Provider: "claude",
				Persona:  "You value shipping working solutions. You push back on speculative complexity and unstated requirements.",
			},
			"skeptic": {
				Provider: "claude",
				Persona:  "You look for what can go wrong: edge cases, failure modes, hidden assumptions. You hold work to a high standard.",
			},
		},
		Run: RunConfig{
			MaxRounds:   3,
			RetryBound:  2,
			Policy:      "unanimous",
			Concurrency: 4,
		},
	}
}
