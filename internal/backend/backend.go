package backend

import (
	"context"
	"fmt"
)

// Backend is the generation boundary: one prompt in, one text completion
// out. Every invocation is a fresh stateless subprocess; everything the
// model needs travels in the prompt. Backends may be slow or transiently
// failing, and callers are expected to retry.
type Backend interface {
	// Generate invokes the backend with the given prompt and returns the
	// completion text.
	Generate(ctx context.Context, prompt string) (string, error)

	// Close releases any resources held by the adapter.
	Close() error

	// Type returns the backend type name for breaker keys and logging.
	Type() string
}

// New creates a backend based on the provided configuration.
func New(cfg Config, pm *ProcessManager) (Backend, error) {
	switch cfg.Type {
	case "claude":
		return NewClaudeAdapter(cfg, pm), nil
	case "codex":
		return NewCodexAdapter(cfg, pm), nil
	case "goose":
		return NewGooseAdapter(cfg, pm), nil
	default:
		return nil, fmt.Errorf("unknown backend type: %s", cfg.Type)
	}
}
