package backend

// Config defines the configuration for a generation backend.
type Config struct {
	Type     string // "claude", "codex", or "goose"
	Command  string // CLI binary override; defaults to the type name
	Model    string // model override passed through to the CLI
	Provider string // for Goose local LLMs (e.g., "ollama", "lmstudio", "llama.cpp")
	WorkDir  string // working directory for subprocess invocations
}

// command returns the CLI binary to execute.
func (c Config) command(fallback string) string {
	if c.Command != "" {
		return c.Command
	}
	return fallback
}
