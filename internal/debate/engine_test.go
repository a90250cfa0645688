package debate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

// revisingGenerator answers drafts normally and REVISEs the first
// reviseReviews review calls before switching to ACCEPT.
func revisingGenerator(id Identity, reviseReviews int) *fakeGenerator {
	var mu sync.Mutex
	reviews := 0
	return &fakeGenerator{fn: func(call int, prompt string) (string, error) {
		if isReviewPrompt(prompt) {
			mu.Lock()
			reviews++
			n := reviews
			mu.Unlock()
			if n <= reviseReviews {
				return critiqueText(0.3, VerdictRevise), nil
			}
			return critiqueText(0.9, VerdictAccept), nil
		}
		return fmt.Sprintf("solution from %s, attempt %d", id, call), nil
	}}
}

func testEngine(t *testing.T, gens map[Identity]*fakeGenerator, maxRounds int, policy Policy) *Engine {
	t.Helper()
	engine, err := NewEngine(testCoordinator(gens, 0), EngineConfig{
		MaxRounds: maxRounds,
		Policy:    policy,
	}, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return engine
}

// TestEngineSingleAgentConverges verifies a single-agent run terminates
// CONVERGED after one round: with no peers there are no critiques, so
// unanimity holds vacuously.
func TestEngineSingleAgentConverges(t *testing.T) {
	gens := map[Identity]*fakeGenerator{"solo": acceptingGenerator("solo")}
	engine := testEngine(t, gens, 5, nil)

	state, err := engine.Run(context.Background(), Task{Statement: "t"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Status != StatusConverged {
		t.Errorf("Status = %s, want %s", state.Status, StatusConverged)
	}
	if len(state.Rounds) != 1 {
		t.Errorf("rounds = %d, want 1", len(state.Rounds))
	}
	if gens["solo"].callCount() != 1 {
		t.Errorf("generator called %d times, want 1 (draft only)", gens["solo"].callCount())
	}
}

// TestEngineAllAcceptConverges verifies three agents all accepting in round
// zero terminate CONVERGED after exactly one round, under the limit.
func TestEngineAllAcceptConverges(t *testing.T) {
	gens := make(map[Identity]*fakeGenerator)
	for _, id := range identities(3) {
		gens[id] = acceptingGenerator(id)
	}
	engine := testEngine(t, gens, 2, nil)

	state, err := engine.Run(context.Background(), Task{Statement: "t"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Status != StatusConverged {
		t.Errorf("Status = %s, want %s", state.Status, StatusConverged)
	}
	if len(state.Rounds) != 1 {
		t.Errorf("rounds = %d, want 1", len(state.Rounds))
	}
}

// TestEngineRoundLimit verifies a run that never converges stops at the
// round cap with status ROUND_LIMIT_REACHED and exactly max_rounds rounds.
func TestEngineRoundLimit(t *testing.T) {
	gens := make(map[Identity]*fakeGenerator)
	for _, id := range identities(2) {
		gens[id] = revisingGenerator(id, 1<<30) // never accepts
	}
	engine := testEngine(t, gens, 1, nil)

	state, err := engine.Run(context.Background(), Task{Statement: "t"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Status != StatusRoundLimit {
		t.Errorf("Status = %s, want %s", state.Status, StatusRoundLimit)
	}
	if len(state.Rounds) != 1 {
		t.Errorf("rounds = %d, want 1", len(state.Rounds))
	}
}

// TestEngineConvergesAfterRevision verifies the revise loop: two rounds of
// REVISE verdicts, then unanimous ACCEPT, with contiguous round indices.
func TestEngineConvergesAfterRevision(t *testing.T) {
	gens := make(map[Identity]*fakeGenerator)
	for _, id := range identities(2) {
		gens[id] = revisingGenerator(id, 2)
	}
	engine := testEngine(t, gens, 6, nil)

	state, err := engine.Run(context.Background(), Task{Statement: "t"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Status != StatusConverged {
		t.Errorf("Status = %s, want %s", state.Status, StatusConverged)
	}
	if len(state.Rounds) != 3 {
		t.Fatalf("rounds = %d, want 3", len(state.Rounds))
	}
	for i, rs := range state.Rounds {
		if rs.Index != i {
			t.Errorf("round %d has index %d, want contiguous from 0", i, rs.Index)
		}
	}
}

// TestEngineFailure verifies an exhausted unit fails the whole run with
// status FAILED and no appended rounds, while the error names the round.
func TestEngineFailure(t *testing.T) {
	gens := map[Identity]*fakeGenerator{
		"agent-0": {fn: func(call int, prompt string) (string, error) {
			return "", errors.New("backend unavailable")
		}},
		"agent-1": acceptingGenerator("agent-1"),
	}
	engine := testEngine(t, gens, 3, nil)

	state, err := engine.Run(context.Background(), Task{Statement: "t"})
	if err == nil {
		t.Fatal("expected error")
	}
	if state.Status != StatusFailed {
		t.Errorf("Status = %s, want %s", state.Status, StatusFailed)
	}
	if len(state.Rounds) != 0 {
		t.Errorf("rounds = %d, want 0 (failed round discarded)", len(state.Rounds))
	}

	var re *RoundError
	if !errors.As(err, &re) {
		t.Fatalf("error type = %T, want *RoundError", err)
	}
	if state.Err == nil {
		t.Error("final state does not carry the failure")
	}
}

// TestEngineFailureKeepsCompletedRounds verifies rounds completed before the
// failure remain in the returned state.
func TestEngineFailureKeepsCompletedRounds(t *testing.T) {
	// agent-0 works in round 0 and breaks in round 1.
	flaky := &fakeGenerator{fn: func(call int, prompt string) (string, error) {
		if call > 2 { // round 0 uses one draft and one review call
			return "", errors.New("backend unavailable")
		}
		if isReviewPrompt(prompt) {
			return critiqueText(0.3, VerdictRevise), nil
		}
		return "solution from agent-0", nil
	}}
	revising := revisingGenerator("agent-1", 1<<30)
	gens := map[Identity]*fakeGenerator{"agent-0": flaky, "agent-1": revising}
	engine := testEngine(t, gens, 5, nil)

	state, err := engine.Run(context.Background(), Task{Statement: "t"})
	if err == nil {
		t.Fatal("expected error")
	}
	if state.Status != StatusFailed {
		t.Errorf("Status = %s, want %s", state.Status, StatusFailed)
	}
	if len(state.Rounds) != 1 {
		t.Errorf("rounds = %d, want the completed round 0 preserved", len(state.Rounds))
	}
}

// TestEngineCancellation verifies context cancellation terminates the run
// FAILED with the context error.
func TestEngineCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	gens := map[Identity]*fakeGenerator{
		"agent-0": {fn: func(call int, prompt string) (string, error) {
			cancel()
			<-ctx.Done()
			return "", ctx.Err()
		}},
		"agent-1": acceptingGenerator("agent-1"),
	}
	engine := testEngine(t, gens, 3, nil)

	state, err := engine.Run(ctx, Task{Statement: "t"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if state.Status != StatusFailed {
		t.Errorf("Status = %s, want %s", state.Status, StatusFailed)
	}
}

// TestEngineSnapshotIsolation verifies mutating a snapshot does not affect
// the engine's state.
func TestEngineSnapshotIsolation(t *testing.T) {
	gens := map[Identity]*fakeGenerator{"solo": acceptingGenerator("solo")}
	engine := testEngine(t, gens, 3, nil)

	final, err := engine.Run(context.Background(), Task{Statement: "t"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snap := engine.Snapshot()
	snap.Rounds[0].Artifacts["solo"] = Artifact{Agent: "solo", Content: "tampered"}
	snap.Status = StatusFailed

	again := engine.Snapshot()
	if again.Status != final.Status {
		t.Errorf("Status changed to %s after snapshot mutation", again.Status)
	}
	if again.Rounds[0].Artifacts["solo"].Content == "tampered" {
		t.Error("snapshot mutation leaked into engine state")
	}
}

// TestEngineRunStateMetadata verifies run identity and agent roster on the
// final state.
func TestEngineRunStateMetadata(t *testing.T) {
	gens := make(map[Identity]*fakeGenerator)
	for _, id := range identities(2) {
		gens[id] = acceptingGenerator(id)
	}
	engine := testEngine(t, gens, 3, nil)

	state, err := engine.Run(context.Background(), Task{Statement: "build a cache"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if state.ID == "" {
		t.Error("run ID is empty")
	}
	if state.Task.Statement != "build a cache" {
		t.Errorf("Task = %q", state.Task.Statement)
	}
	if len(state.Agents) != 2 {
		t.Errorf("agents = %d, want 2", len(state.Agents))
	}
	for i := 1; i < len(state.Agents); i++ {
		if state.Agents[i-1] >= state.Agents[i] {
			t.Error("agent roster not sorted")
		}
	}
	if state.Ended.Before(state.Started) {
		t.Error("Ended precedes Started")
	}
	if !state.Status.Terminal() {
		t.Errorf("Status %s not terminal", state.Status)
	}
}

// TestEngineObserverSequence verifies observer callbacks arrive in lifecycle
// order.
func TestEngineObserverSequence(t *testing.T) {
	rec := &recordingObserver{}
	gens := map[Identity]*fakeGenerator{"solo": acceptingGenerator("solo")}
	engine, err := NewEngine(testCoordinator(gens, 0), EngineConfig{MaxRounds: 3}, rec)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	if _, err := engine.Run(context.Background(), Task{Statement: "t"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"run_started", "round_started", "round_completed", "run_finished"}
	got := rec.names()
	if len(got) != len(want) {
		t.Fatalf("callbacks = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("callback %d = %s, want %s", i, got[i], want[i])
		}
	}
}

type recordingObserver struct {
	mu    sync.Mutex
	calls []string
}

func (r *recordingObserver) record(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, name)
}

func (r *recordingObserver) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *recordingObserver) RunStarted(RunState)               { r.record("run_started") }
func (r *recordingObserver) RoundStarted(string, int)          { r.record("round_started") }
func (r *recordingObserver) ArtifactProduced(string, Artifact) { r.record("artifact") }
func (r *recordingObserver) CritiqueRecorded(string, Critique) { r.record("critique") }
func (r *recordingObserver) RoundCompleted(string, RoundState) { r.record("round_completed") }
func (r *recordingObserver) RunFinished(RunState)              { r.record("run_finished") }

// TestNewEngineValidation tests fail-fast configuration checks.
func TestNewEngineValidation(t *testing.T) {
	gens := map[Identity]*fakeGenerator{"solo": acceptingGenerator("solo")}
	coord := testCoordinator(gens, 0)

	tests := []struct {
		name  string
		coord *Coordinator
		cfg   EngineConfig
	}{
		{name: "nil coordinator", coord: nil, cfg: EngineConfig{MaxRounds: 3}},
		{name: "no agents", coord: NewCoordinator(nil, CoordinatorConfig{}, nil), cfg: EngineConfig{MaxRounds: 3}},
		{name: "zero max rounds", coord: coord, cfg: EngineConfig{MaxRounds: 0}},
		{name: "negative max rounds", coord: coord, cfg: EngineConfig{MaxRounds: -2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEngine(tt.coord, tt.cfg, nil)
			var ce *ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("err = %v, want *ConfigError", err)
			}
		})
	}
}
