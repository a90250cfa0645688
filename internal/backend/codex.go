package backend

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// CodexAdapter invokes the Codex CLI in one-shot exec mode. Output is a
// newline-delimited JSON event stream; the completion is collected from the
// turn events.
type CodexAdapter struct {
	cfg Config
	pm  *ProcessManager
}

// codexEvent is the base event shape in the stream.
type codexEvent struct {
	Type string `json:"type"`
}

// codexTurnCompleted carries the completion text.
type codexTurnCompleted struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// NewCodexAdapter creates a Codex backend adapter.
func NewCodexAdapter(cfg Config, pm *ProcessManager) *CodexAdapter {
	return &CodexAdapter{cfg: cfg, pm: pm}
}

// Generate runs `codex exec` with the prompt and returns the completion.
func (c *CodexAdapter) Generate(ctx context.Context, prompt string) (string, error) {
	args := []string{"exec", prompt, "--json"}
	if c.cfg.Model != "" {
		args = append(args, "--model", c.cfg.Model)
	}

	cmd := newCommand(ctx, c.cfg.command("codex"), args...)
	cmd.Dir = c.cfg.WorkDir

	stdout, _, err := executeCommand(ctx, cmd, c.pm)
	if err != nil {
		return "", fmt.Errorf("codex command failed: %w", err)
	}

	content, err := parseCodexEvents(stdout)
	if err != nil {
		return "", fmt.Errorf("failed to parse codex events: %w", err)
	}

	return content, nil
}

// Close is a no-op; each invocation is its own subprocess.
func (c *CodexAdapter) Close() error {
	return nil
}

// Type returns "codex".
func (c *CodexAdapter) Type() string {
	return "codex"
}

// parseCodexEvents walks the newline-delimited JSON event stream and
// concatenates the content of every TurnCompleted event.
func parseCodexEvents(data []byte) (string, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var parts []string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var evt codexEvent
		if err := json.Unmarshal([]byte(line), &evt); err != nil {
			return "", fmt.Errorf("failed to parse event type: %w", err)
		}

		if evt.Type == "TurnCompleted" {
			var turn codexTurnCompleted
			if err := json.Unmarshal([]byte(line), &turn); err != nil {
				return "", fmt.Errorf("failed to parse TurnCompleted event: %w", err)
			}
			if turn.Content != "" {
				parts = append(parts, turn.Content)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to scan codex output: %w", err)
	}

	if len(parts) == 0 {
		return "", fmt.Errorf("codex output contained no completed turns")
	}
	return strings.Join(parts, "\n"), nil
}
