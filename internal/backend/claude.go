package backend

import (
	"context"
	"encoding/json"
	"fmt"
)

// ClaudeAdapter invokes the Claude Code CLI in one-shot print mode. Each
// Generate call is an independent subprocess; no session is resumed.
type ClaudeAdapter struct {
	cfg Config
	pm  *ProcessManager
}

// claudeResponse is the JSON envelope printed by `claude -p --output-format json`.
type claudeResponse struct {
	Result string `json:"result"`
	Error  string `json:"error"`
}

// NewClaudeAdapter creates a Claude Code backend adapter.
func NewClaudeAdapter(cfg Config, pm *ProcessManager) *ClaudeAdapter {
	return &ClaudeAdapter{cfg: cfg, pm: pm}
}

// Generate runs the claude CLI with the prompt and returns the completion.
func (a *ClaudeAdapter) Generate(ctx context.Context, prompt string) (string, error) {
	args := []string{"-p", prompt, "--output-format", "json"}
	if a.cfg.Model != "" {
		args = append(args, "--model", a.cfg.Model)
	}

	cmd := newCommand(ctx, a.cfg.command("claude"), args...)
	cmd.Dir = a.cfg.WorkDir

	stdout, stderr, err := executeCommand(ctx, cmd, a.pm)
	if err != nil {
		return "", fmt.Errorf("claude command failed: %w", err)
	}

	content, err := parseClaudeResponse(stdout)
	if err != nil {
		return "", fmt.Errorf("failed to parse claude response: %w (stderr: %s)", err, string(stderr))
	}

	return content, nil
}

// Close is a no-op; each invocation is its own subprocess.
func (a *ClaudeAdapter) Close() error {
	return nil
}

// Type returns "claude".
func (a *ClaudeAdapter) Type() string {
	return "claude"
}

// parseClaudeResponse extracts the completion text from the CLI's JSON
// output.
func parseClaudeResponse(data []byte) (string, error) {
	var cr claudeResponse
	if err := json.Unmarshal(data, &cr); err != nil {
		return "", fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	if cr.Error != "" {
		return "", fmt.Errorf("claude reported error: %s", cr.Error)
	}
	if cr.Result == "" {
		return "", fmt.Errorf("claude response contained no result")
	}
	return cr.Result, nil
}
