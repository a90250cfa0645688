package debate

import (
	"fmt"

	"github.com/mitchellh/hashstructure/v2"
)

// Decision is the convergence policy's answer after each completed round.
type Decision int

const (
	DecisionContinue Decision = iota
	DecisionConverged
	DecisionRoundLimit
)

// String returns the decision name.
func (d Decision) String() string {
	switch d {
	case DecisionContinue:
		return "CONTINUE"
	case DecisionConverged:
		return "CONVERGED"
	case DecisionRoundLimit:
		return "ROUND_LIMIT_REACHED"
	default:
		return "UNKNOWN"
	}
}

// Policy decides whether the collective output has converged. It must be a
// pure function of the run state it is handed: identical snapshots yield
// identical answers. The round limit is applied by Decide, not by policies.
type Policy interface {
	Name() string
	Converged(run RunState) bool
}

// Decide evaluates the loop's next step for a run that has just had a round
// appended. A converged final round reports CONVERGED even when it is also
// the last permitted round; the limit only applies when more revision would
// otherwise be needed.
func Decide(run RunState, policy Policy, maxRounds int) Decision {
	if policy.Converged(run) {
		return DecisionConverged
	}
	if len(run.Rounds) >= maxRounds {
		return DecisionRoundLimit
	}
	return DecisionContinue
}

// UnanimousAccept converges when every critique in the latest round has
// verdict ACCEPT. A single-agent round has no critiques and converges
// trivially.
type UnanimousAccept struct{}

func (UnanimousAccept) Name() string { return "unanimous" }

func (UnanimousAccept) Converged(run RunState) bool {
	latest := run.LatestRound()
	if latest == nil {
		return false
	}
	for _, cs := range latest.Critiques {
		for _, c := range cs {
			if c.Verdict != VerdictAccept {
				return false
			}
		}
	}
	return true
}

// ScoreThreshold converges when every critique score in the latest round
// meets the threshold, regardless of verdicts.
type ScoreThreshold struct {
	Threshold float64
}

func (ScoreThreshold) Name() string { return "score" }

func (p ScoreThreshold) Converged(run RunState) bool {
	latest := run.LatestRound()
	if latest == nil {
		return false
	}
	for _, cs := range latest.Critiques {
		for _, c := range cs {
			if c.Score < p.Threshold {
				return false
			}
		}
	}
	return true
}

// Stable converges when no agent changed its artifact between the last two
// rounds, detected by content fingerprint. It tolerates backend
// non-determinism in critiques: if the drafts stopped moving, further
// rounds cannot improve them.
type Stable struct{}

func (Stable) Name() string { return "stable" }

func (Stable) Converged(run RunState) bool {
	n := len(run.Rounds)
	if n < 2 {
		return false
	}
	return artifactFingerprint(run.Rounds[n-1]) == artifactFingerprint(run.Rounds[n-2])
}

// artifactFingerprint hashes the round's agent->content mapping. Timestamps
// and round indices are excluded so only the artifact text matters.
func artifactFingerprint(rs RoundState) uint64 {
	contents := make(map[Identity]string, len(rs.Artifacts))
	for id, a := range rs.Artifacts {
		contents[id] = a.Content
	}
	h, err := hashstructure.Hash(contents, hashstructure.FormatV2, nil)
	if err != nil {
		// Hashing a map of strings cannot fail; treat as non-matching.
		return 0
	}
	return h
}

// PolicyByName resolves a configured policy name. threshold is only used by
// the score policy.
func PolicyByName(name string, threshold float64) (Policy, error) {
	switch name {
	case "", "unanimous":
		return UnanimousAccept{}, nil
	case "score":
		return ScoreThreshold{Threshold: threshold}, nil
	case "stable":
		return Stable{}, nil
	default:
		return nil, fmt.Errorf("unknown convergence policy %q", name)
	}
}
