package debate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gammazero/toposort"
)

// unitKind distinguishes the two unit types in a round's task set.
type unitKind int

const (
	unitDraft unitKind = iota
	unitReview
)

// planUnit is one invocation in a round: either an agent drafting its
// artifact, or a reviewer critiquing another agent's artifact. Review units
// depend on the draft unit of their target, which is what enforces the
// artifact-before-critique barrier.
type planUnit struct {
	ID        string
	Kind      unitKind
	Agent     Identity // producer (draft) or reviewer (review)
	Target    Identity // review only: owner of the artifact under review
	DependsOn []string
}

// roundPlan is the explicit task set for one round: |agents| draft units and
// |agents|*(|agents|-1) review units, one per ordered (reviewer, target)
// pair. Generating the pair list up front keeps the O(n^2) fan-out visible
// and uniform instead of buried in nested loops.
type roundPlan struct {
	units map[string]*planUnit
}

func draftUnitID(agent Identity) string {
	return fmt.Sprintf("draft/%s", agent)
}

func reviewUnitID(reviewer, target Identity) string {
	return fmt.Sprintf("review/%s->%s", reviewer, target)
}

// newRoundPlan builds the unit task set for one round over the given agent
// set. Self-review pairs are never generated; that invariant is enforced
// here, not trusted to the critique units.
func newRoundPlan(agents []Identity) *roundPlan {
	p := &roundPlan{units: make(map[string]*planUnit)}

	for _, a := range agents {
		id := draftUnitID(a)
		p.units[id] = &planUnit{ID: id, Kind: unitDraft, Agent: a}
	}

	for _, reviewer := range agents {
		for _, target := range agents {
			if reviewer == target {
				continue
			}
			id := reviewUnitID(reviewer, target)
			p.units[id] = &planUnit{
				ID:        id,
				Kind:      unitReview,
				Agent:     reviewer,
				Target:    target,
				DependsOn: []string{draftUnitID(target)},
			}
		}
	}

	return p
}

// validate runs a topological sort over the unit dependency edges. It
// returns an error on cycles, dangling dependencies, or units lost by the
// sort. A freshly generated plan always validates; this guards future edits
// to plan generation.
func (p *roundPlan) validate() error {
	for unitID, unit := range p.units {
		for _, depID := range unit.DependsOn {
			if _, ok := p.units[depID]; !ok {
				return fmt.Errorf("unit %q depends on non-existent unit %q", unitID, depID)
			}
		}
	}

	var edges []toposort.Edge
	for unitID, unit := range p.units {
		if len(unit.DependsOn) == 0 {
			edges = append(edges, toposort.Edge{nil, unitID})
			continue
		}
		for _, depID := range unit.DependsOn {
			edges = append(edges, toposort.Edge{depID, unitID})
		}
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return fmt.Errorf("round plan contains cycle: %w", err)
	}

	order := make(map[string]bool, len(sorted))
	for _, id := range sorted {
		if id != nil {
			order[id.(string)] = true
		}
	}
	if len(order) != len(p.units) {
		var missing []string
		for unitID := range p.units {
			if !order[unitID] {
				missing = append(missing, unitID)
			}
		}
		sort.Strings(missing)
		return fmt.Errorf("topological sort lost %d units: %s", len(missing), strings.Join(missing, ", "))
	}

	return nil
}

// waves groups units into dependency waves: wave i contains every unit
// whose dependencies are all in earlier waves. For a debate round this
// yields exactly two waves, drafts then reviews; the coordinator runs each
// wave concurrently and waits for it to drain before starting the next.
func (p *roundPlan) waves() [][]*planUnit {
	done := make(map[string]bool, len(p.units))
	var out [][]*planUnit

	for len(done) < len(p.units) {
		var wave []*planUnit
		for _, unit := range p.units {
			if done[unit.ID] {
				continue
			}
			ready := true
			for _, depID := range unit.DependsOn {
				if !done[depID] {
					ready = false
					break
				}
			}
			if ready {
				wave = append(wave, unit)
			}
		}
		if len(wave) == 0 {
			// Unsatisfiable dependencies; validate() catches this first.
			return out
		}
		sort.Slice(wave, func(i, j int) bool { return wave[i].ID < wave[j].ID })
		for _, unit := range wave {
			done[unit.ID] = true
		}
		out = append(out, wave)
	}

	return out
}

// size returns the total number of units in the plan.
func (p *roundPlan) size() int {
	return len(p.units)
}
