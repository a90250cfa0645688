package debate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ConfigError means the run was misconfigured and never started.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid run configuration: %s", e.Reason)
}

// EngineConfig configures the run loop.
type EngineConfig struct {
	MaxRounds int    // hard cap on rounds, >= 1
	Policy    Policy // convergence strategy, default UnanimousAccept
}

// Engine is the top-level workflow: it loops the coordinator and the
// convergence policy until the run terminates, and it is the only writer of
// the canonical RunState. Observers read through Snapshot, which always
// sees whole appended rounds, never a partial one.
type Engine struct {
	coord *Coordinator
	cfg   EngineConfig
	obs   Observer

	mu  sync.RWMutex
	run RunState
}

// NewEngine validates the configuration and creates an engine. Zero agents
// or a non-positive round cap fail fast with a ConfigError before any
// backend is touched.
func NewEngine(coord *Coordinator, cfg EngineConfig, obs Observer) (*Engine, error) {
	if coord == nil || len(coord.Agents()) == 0 {
		return nil, &ConfigError{Reason: "at least one agent is required"}
	}
	if cfg.MaxRounds < 1 {
		return nil, &ConfigError{Reason: fmt.Sprintf("max_rounds must be >= 1, got %d", cfg.MaxRounds)}
	}
	if cfg.Policy == nil {
		cfg.Policy = UnanimousAccept{}
	}
	if obs == nil {
		obs = NopObserver{}
	}
	return &Engine{coord: coord, cfg: cfg, obs: obs}, nil
}

// Run executes a full run for the given task and returns the final
// RunState. On failure the returned state still carries every completed
// round so prior work remains inspectable; the error describes what
// terminated the run.
func (e *Engine) Run(ctx context.Context, task Task) (RunState, error) {
	e.mu.Lock()
	e.run = RunState{
		ID:      uuid.NewString(),
		Task:    task,
		Agents:  e.coord.Agents(),
		Status:  StatusRunning,
		Started: time.Now(),
	}
	runID := e.run.ID
	e.mu.Unlock()

	e.obs.RunStarted(e.Snapshot())

	var prior *RoundState
	for index := 0; ; index++ {
		// Cancellation checkpoint at the top of the loop. Mid-phase
		// cancellation is cooperative: the coordinator discards the
		// in-flight round, so nothing partial is ever appended.
		if err := ctx.Err(); err != nil {
			return e.finish(StatusFailed, err), err
		}

		e.obs.RoundStarted(runID, index)

		state, err := e.coord.RunRound(ctx, runID, index, task, prior)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return e.finish(StatusFailed, ctxErr), ctxErr
			}
			return e.finish(StatusFailed, err), err
		}

		// Append is atomic with respect to a whole RoundState; concurrent
		// Snapshot callers see either the round fully present or absent.
		e.mu.Lock()
		e.run.Rounds = append(e.run.Rounds, state)
		snapshot := e.run.Clone()
		e.mu.Unlock()

		e.obs.RoundCompleted(runID, state.clone())

		switch Decide(snapshot, e.cfg.Policy, e.cfg.MaxRounds) {
		case DecisionConverged:
			return e.finish(StatusConverged, nil), nil
		case DecisionRoundLimit:
			return e.finish(StatusRoundLimit, nil), nil
		case DecisionContinue:
			prior = &snapshot.Rounds[len(snapshot.Rounds)-1]
		}
	}
}

// finish sets the terminal status, notifies the observer, and returns the
// final state.
func (e *Engine) finish(status RunStatus, err error) RunState {
	e.mu.Lock()
	e.run.Status = status
	e.run.Err = err
	e.run.Ended = time.Now()
	final := e.run.Clone()
	e.mu.Unlock()

	e.obs.RunFinished(final)
	return final
}

// Snapshot returns a read-only deep copy of the current run state. Safe to
// call concurrently with Run.
func (e *Engine) Snapshot() RunState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.run.Clone()
}
