package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// GooseAdapter invokes the Goose CLI in one-shot run mode. Goose supports
// local LLM providers (Ollama, LM Studio, llama.cpp) via --provider and
// --model flags.
type GooseAdapter struct {
	cfg Config
	pm  *ProcessManager
}

// gooseResponse is Goose's JSON output shape. The format is loosely
// documented, so parsing falls back to plain text when JSON fails.
type gooseResponse struct {
	Content string `json:"content"`
}

// NewGooseAdapter creates a Goose backend adapter.
func NewGooseAdapter(cfg Config, pm *ProcessManager) *GooseAdapter {
	return &GooseAdapter{cfg: cfg, pm: pm}
}

// Generate runs `goose run` with the prompt and returns the completion.
func (g *GooseAdapter) Generate(ctx context.Context, prompt string) (string, error) {
	args := []string{"run", "--text", prompt, "--output-format", "json", "--no-session"}
	if g.cfg.Provider != "" {
		args = append(args, "--provider", g.cfg.Provider)
	}
	if g.cfg.Model != "" {
		args = append(args, "--model", g.cfg.Model)
	}

	cmd := newCommand(ctx, g.cfg.command("goose"), args...)
	cmd.Dir = g.cfg.WorkDir

	stdout, _, err := executeCommand(ctx, cmd, g.pm)
	if err != nil {
		return "", fmt.Errorf("goose command failed: %w", err)
	}

	content, parseErr := parseGooseResponse(stdout)
	if parseErr != nil {
		// Older goose builds ignore --output-format; treat stdout as text.
		content = strings.TrimSpace(string(stdout))
		if content == "" {
			return "", fmt.Errorf("goose produced no output: %w", parseErr)
		}
	}

	return content, nil
}

// Close is a no-op; each invocation is its own subprocess.
func (g *GooseAdapter) Close() error {
	return nil
}

// Type returns "goose".
func (g *GooseAdapter) Type() string {
	return "goose"
}

// parseGooseResponse parses Goose JSON output, accepting either a single
// object or newline-delimited objects.
func parseGooseResponse(data []byte) (string, error) {
	var resp gooseResponse
	if err := json.Unmarshal(data, &resp); err == nil && resp.Content != "" {
		return resp.Content, nil
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	var parts []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var lineResp gooseResponse
		if err := json.Unmarshal([]byte(line), &lineResp); err == nil && lineResp.Content != "" {
			parts = append(parts, lineResp.Content)
		}
	}

	if len(parts) > 0 {
		return strings.Join(parts, "\n"), nil
	}
	return "", fmt.Errorf("failed to parse goose JSON response")
}
