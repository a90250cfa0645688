package debate

import (
	"errors"
	"fmt"
)

// GenerationError is a transient, backend-sourced failure of a single unit
// invocation. It is retryable up to the configured retry bound.
type GenerationError struct {
	Agent Identity
	Round int
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed for agent %q in round %d: %v", e.Agent, e.Round, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// RoundError means the retry bound was exhausted for some unit and the whole
// round is abandoned. Rounds are all-or-nothing: a RoundError terminates the
// run as FAILED without committing any partial results.
type RoundError struct {
	Round int
	Unit  string // plan unit ID of the failing invocation
	Err   error
}

func (e *RoundError) Error() string {
	return fmt.Sprintf("round %d failed at %s: %v", e.Round, e.Unit, e.Err)
}

func (e *RoundError) Unwrap() error { return e.Err }

// IsGenerationError reports whether err wraps a GenerationError.
func IsGenerationError(err error) bool {
	var ge *GenerationError
	return errors.As(err, &ge)
}
