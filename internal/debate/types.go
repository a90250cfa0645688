package debate

import (
	"sort"
	"time"
)

// Identity uniquely names an agent within a run. The agent set is fixed
// for the lifetime of a run.
type Identity string

// Task is the immutable problem statement shared by every agent in a run.
type Task struct {
	Statement string
	Metadata  map[string]string
}

// Verdict is a reviewer's judgement of a target artifact.
type Verdict string

const (
	VerdictAccept Verdict = "ACCEPT"
	VerdictRevise Verdict = "REVISE"
)

// Artifact is one agent's solution for one round. Artifacts are superseded
// by the next round's artifact, never mutated.
type Artifact struct {
	Agent     Identity
	Round     int
	Content   string
	CreatedAt time.Time
}

// Critique is one reviewer's structured evaluation of one target's artifact.
// Keyed by (Reviewer, Target, Round); immutable once created.
type Critique struct {
	Reviewer  Identity
	Target    Identity
	Round     int
	Score     float64 // normalized to [0, 1]
	Verdict   Verdict
	Rationale string
}

// RoundState aggregates one full round: every agent's artifact, and the
// critiques each agent received from its peers.
type RoundState struct {
	Index       int
	Artifacts   map[Identity]Artifact
	Critiques   map[Identity][]Critique // keyed by target, ordered by reviewer
	StartedAt   time.Time
	CompletedAt time.Time
}

// AllCritiques returns every critique in the round, in deterministic
// (target, reviewer) order.
func (rs RoundState) AllCritiques() []Critique {
	targets := make([]Identity, 0, len(rs.Critiques))
	for t := range rs.Critiques {
		targets = append(targets, t)
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i] < targets[j] })

	var out []Critique
	for _, t := range targets {
		out = append(out, rs.Critiques[t]...)
	}
	return out
}

// RunStatus is the explicit state of a run's loop.
type RunStatus int

const (
	StatusRunning RunStatus = iota
	StatusConverged
	StatusRoundLimit
	StatusFailed
)

// String returns the status name as stored and displayed.
func (s RunStatus) String() string {
	switch s {
	case StatusRunning:
		return "RUNNING"
	case StatusConverged:
		return "CONVERGED"
	case StatusRoundLimit:
		return "ROUND_LIMIT_REACHED"
	case StatusFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether the status ends the run loop.
func (s RunStatus) Terminal() bool {
	return s != StatusRunning
}

// RunState is the canonical, append-only record of a run. It is owned
// exclusively by the Engine; every completed round is appended atomically
// and never re-executed or mutated afterwards.
type RunState struct {
	ID      string // uuid, assigned at run start
	Task    Task
	Agents  []Identity // sorted, fixed for the run
	Rounds  []RoundState
	Status  RunStatus
	Err     error // set when Status is StatusFailed
	Started time.Time
	Ended   time.Time
}

// CurrentRound returns the index the next round would use.
func (r RunState) CurrentRound() int {
	return len(r.Rounds)
}

// LatestRound returns the most recently completed round, or nil if none.
func (r RunState) LatestRound() *RoundState {
	if len(r.Rounds) == 0 {
		return nil
	}
	return &r.Rounds[len(r.Rounds)-1]
}

// Clone returns a deep copy of the run state. Observers get clones so they
// can never mutate the engine's canonical record.
func (r RunState) Clone() RunState {
	cp := r
	cp.Agents = append([]Identity(nil), r.Agents...)
	cp.Rounds = make([]RoundState, len(r.Rounds))
	for i, rs := range r.Rounds {
		cp.Rounds[i] = rs.clone()
	}
	if r.Task.Metadata != nil {
		cp.Task.Metadata = make(map[string]string, len(r.Task.Metadata))
		for k, v := range r.Task.Metadata {
			cp.Task.Metadata[k] = v
		}
	}
	return cp
}

func (rs RoundState) clone() RoundState {
	cp := rs
	cp.Artifacts = make(map[Identity]Artifact, len(rs.Artifacts))
	for id, a := range rs.Artifacts {
		cp.Artifacts[id] = a
	}
	cp.Critiques = make(map[Identity][]Critique, len(rs.Critiques))
	for id, cs := range rs.Critiques {
		cp.Critiques[id] = append([]Critique(nil), cs...)
	}
	return cp
}
