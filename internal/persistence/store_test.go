package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aristath/consilium/internal/debate"
	"github.com/aristath/consilium/internal/events"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewMemoryStore(context.Background())
	if err != nil {
		t.Fatalf("NewMemoryStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testRun(id string) debate.RunState {
	return debate.RunState{
		ID:      id,
		Task:    debate.Task{Statement: "design a queue"},
		Agents:  []debate.Identity{"alpha", "beta"},
		Status:  debate.StatusRunning,
		Started: time.Now(),
	}
}

func testRound(index int) debate.RoundState {
	now := time.Now()
	return debate.RoundState{
		Index:       index,
		StartedAt:   now,
		CompletedAt: now,
		Artifacts: map[debate.Identity]debate.Artifact{
			"alpha": {Agent: "alpha", Round: index, Content: "solution alpha", CreatedAt: now},
			"beta":  {Agent: "beta", Round: index, Content: "solution beta", CreatedAt: now},
		},
		Critiques: map[debate.Identity][]debate.Critique{
			"alpha": {{Reviewer: "beta", Target: "alpha", Round: index, Score: 0.7, Verdict: debate.VerdictAccept, Rationale: "fine"}},
			"beta":  {{Reviewer: "alpha", Target: "beta", Round: index, Score: 0.4, Verdict: debate.VerdictRevise, Rationale: "thin"}},
		},
	}
}

// TestStoreRunLifecycle tests create, finish, and read back of a run.
func TestStoreRunLifecycle(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	run := testRun("run-1")
	if err := store.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	rec, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if rec.Task != "design a queue" {
		t.Errorf("Task = %q", rec.Task)
	}
	if len(rec.Agents) != 2 || rec.Agents[0] != "alpha" {
		t.Errorf("Agents = %v", rec.Agents)
	}
	if rec.Status != debate.StatusRunning.String() {
		t.Errorf("Status = %q", rec.Status)
	}

	if err := store.FinishRun(ctx, "run-1", debate.StatusConverged, nil); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}
	rec, err = store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun after finish: %v", err)
	}
	if rec.Status != debate.StatusConverged.String() {
		t.Errorf("Status = %q, want converged", rec.Status)
	}
	if rec.Error != "" {
		t.Errorf("Error = %q, want empty", rec.Error)
	}
}

// TestStoreFinishRunWithError verifies the failure message is stored.
func TestStoreFinishRunWithError(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	if err := store.CreateRun(ctx, testRun("run-1")); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if err := store.FinishRun(ctx, "run-1", debate.StatusFailed, errors.New("backend gave up")); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	rec, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if rec.Status != debate.StatusFailed.String() || rec.Error != "backend gave up" {
		t.Errorf("record = %q/%q", rec.Status, rec.Error)
	}
}

// TestStoreCreateRunIdempotent verifies duplicate creates are ignored.
func TestStoreCreateRunIdempotent(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	run := testRun("run-1")
	if err := store.CreateRun(ctx, run); err != nil {
		t.Fatalf("first CreateRun: %v", err)
	}
	if err := store.CreateRun(ctx, run); err != nil {
		t.Fatalf("second CreateRun: %v", err)
	}

	runs, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Errorf("runs = %d, want 1", len(runs))
	}
}

// TestStoreGetRunMissing verifies lookup of an unknown run errors.
func TestStoreGetRunMissing(t *testing.T) {
	store := testStore(t)
	if _, err := store.GetRun(context.Background(), "ghost"); err == nil {
		t.Fatal("expected error for missing run")
	}
}

// TestStoreRoundRoundtrip verifies a saved round reconstructs with its
// artifacts and critiques.
func TestStoreRoundRoundtrip(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	if err := store.CreateRun(ctx, testRun("run-1")); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := store.SaveRound(ctx, "run-1", testRound(i)); err != nil {
			t.Fatalf("SaveRound %d: %v", i, err)
		}
	}

	rounds, err := store.ListRounds(ctx, "run-1")
	if err != nil {
		t.Fatalf("ListRounds: %v", err)
	}
	if len(rounds) != 2 {
		t.Fatalf("rounds = %d, want 2", len(rounds))
	}

	for i, rs := range rounds {
		if rs.Index != i {
			t.Errorf("round %d has index %d", i, rs.Index)
		}
		if len(rs.Artifacts) != 2 {
			t.Errorf("round %d artifacts = %d, want 2", i, len(rs.Artifacts))
		}
		if got := rs.Artifacts["alpha"].Content; got != "solution alpha" {
			t.Errorf("round %d alpha content = %q", i, got)
		}
		cs := rs.Critiques["beta"]
		if len(cs) != 1 {
			t.Fatalf("round %d critiques for beta = %d, want 1", i, len(cs))
		}
		c := cs[0]
		if c.Reviewer != "alpha" || c.Verdict != debate.VerdictRevise || c.Score != 0.4 || c.Rationale != "thin" {
			t.Errorf("round %d critique = %+v", i, c)
		}
	}
}

// TestStoreListRoundsEmpty verifies a run with no rounds lists empty.
func TestStoreListRoundsEmpty(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	if err := store.CreateRun(ctx, testRun("run-1")); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	rounds, err := store.ListRounds(ctx, "run-1")
	if err != nil {
		t.Fatalf("ListRounds: %v", err)
	}
	if len(rounds) != 0 {
		t.Errorf("rounds = %d, want 0", len(rounds))
	}
}

// TestSinkPersistsRun drives the sink through a full run lifecycle over the
// bus and verifies the transcript.
func TestSinkPersistsRun(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	bus := events.NewBus()
	sink := NewSink(store, bus)
	sink.Start(ctx)

	obs := events.NewBusObserver(bus)
	run := testRun("run-1")
	obs.RunStarted(run)
	obs.RoundCompleted("run-1", testRound(0))

	run.Status = debate.StatusConverged
	run.Rounds = []debate.RoundState{testRound(0)}
	obs.RunFinished(run)

	bus.Close()
	sink.Wait()

	rec, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if rec.Status != debate.StatusConverged.String() {
		t.Errorf("Status = %q, want converged", rec.Status)
	}

	rounds, err := store.ListRounds(ctx, "run-1")
	if err != nil {
		t.Fatalf("ListRounds: %v", err)
	}
	if len(rounds) != 1 {
		t.Fatalf("rounds = %d, want 1", len(rounds))
	}
	if len(rounds[0].Artifacts) != 2 {
		t.Errorf("artifacts = %d, want 2", len(rounds[0].Artifacts))
	}
}
