package debate

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Member bundles the two functional roles of one participant: the agent
// unit that drafts and revises, and the critique unit that reviews peers.
// BreakerKey selects the circuit breaker shared by everything hitting the
// same backend.
type Member struct {
	Agent      *AgentUnit
	Critic     *CritiqueUnit
	BreakerKey string
}

// CoordinatorConfig configures round execution.
type CoordinatorConfig struct {
	Concurrency int         // max concurrent unit invocations per wave (default 4)
	RetryBound  int         // retries per unit after the first attempt
	Retry       RetryConfig // backoff between retries
}

// Coordinator executes one full round: fan out drafts to every agent,
// barrier, fan out all-pairs critiques, aggregate into a RoundState. A
// round is all-or-nothing; if any unit exhausts its retries the round
// returns an error and nothing is committed.
type Coordinator struct {
	cfg      CoordinatorConfig
	members  map[Identity]Member
	order    []Identity
	breakers *BreakerRegistry
	obs      Observer
}

// NewCoordinator creates a coordinator over a fixed member set. obs may be
// nil.
func NewCoordinator(members map[Identity]Member, cfg CoordinatorConfig, obs Observer) *Coordinator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Retry == (RetryConfig{}) {
		cfg.Retry = DefaultRetryConfig()
	}
	if obs == nil {
		obs = NopObserver{}
	}

	order := make([]Identity, 0, len(members))
	for id := range members {
		order = append(order, id)
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	return &Coordinator{
		cfg:      cfg,
		members:  members,
		order:    order,
		breakers: NewBreakerRegistry(),
		obs:      obs,
	}
}

// Agents returns the member identities in sorted order.
func (c *Coordinator) Agents() []Identity {
	return append([]Identity(nil), c.order...)
}

// RunRound executes round index over the member set. prior is nil for round
// 0. The returned RoundState holds exactly one artifact per agent and
// exactly |agents|-1 critiques per agent; on any error the partial state is
// discarded and never reaches the caller.
func (c *Coordinator) RunRound(ctx context.Context, runID string, index int, task Task, prior *RoundState) (RoundState, error) {
	plan := newRoundPlan(c.order)
	if err := plan.validate(); err != nil {
		return RoundState{}, fmt.Errorf("invalid round plan: %w", err)
	}

	state := RoundState{
		Index:     index,
		Artifacts: make(map[Identity]Artifact, len(c.order)),
		Critiques: make(map[Identity][]Critique, len(c.order)),
		StartedAt: time.Now(),
	}
	var mu sync.Mutex

	// Each wave runs concurrently and must fully drain before the next one
	// starts. Wave 0 is every draft unit, wave 1 every review unit; the
	// draft->review edge in the plan is the hard barrier that keeps a
	// critique from ever seeing a partial artifact.
	for _, wave := range plan.waves() {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(c.cfg.Concurrency)

		for _, unit := range wave {
			u := unit
			g.Go(func() error {
				return c.executeUnit(gctx, runID, u, task, prior, &state, &mu)
			})
		}

		if err := g.Wait(); err != nil {
			return RoundState{}, err
		}
	}

	// Deterministic critique order per target.
	for target := range state.Critiques {
		cs := state.Critiques[target]
		sort.Slice(cs, func(i, j int) bool { return cs[i].Reviewer < cs[j].Reviewer })
		state.Critiques[target] = cs
	}

	state.CompletedAt = time.Now()
	return state, nil
}

// executeUnit runs a single plan unit with retry and breaker protection.
// Retry exhaustion is wrapped in a RoundError naming the failing unit.
func (c *Coordinator) executeUnit(ctx context.Context, runID string, unit *planUnit, task Task, prior *RoundState, state *RoundState, mu *sync.Mutex) error {
	member := c.members[unit.Agent]
	cb := c.breakers.Get(member.BreakerKey)

	switch unit.Kind {
	case unitDraft:
		var priorArtifact *Artifact
		var received []Critique
		if prior != nil {
			if a, ok := prior.Artifacts[unit.Agent]; ok {
				priorArtifact = &a
			}
			received = prior.Critiques[unit.Agent]
		}

		var artifact Artifact
		err := retryUnit(ctx, cb, c.cfg.Retry, c.cfg.RetryBound, func() error {
			var produceErr error
			artifact, produceErr = member.Agent.Produce(ctx, state.Index, task, priorArtifact, received)
			return produceErr
		})
		if err != nil {
			return &RoundError{Round: state.Index, Unit: unit.ID, Err: err}
		}

		mu.Lock()
		state.Artifacts[unit.Agent] = artifact
		mu.Unlock()
		c.obs.ArtifactProduced(runID, artifact)
		return nil

	case unitReview:
		mu.Lock()
		target, ok := state.Artifacts[unit.Target]
		mu.Unlock()
		if !ok {
			// The draft wave drained before this wave started, so the
			// artifact must exist.
			return &RoundError{Round: state.Index, Unit: unit.ID,
				Err: fmt.Errorf("no artifact for target %q", unit.Target)}
		}

		var critique Critique
		err := retryUnit(ctx, cb, c.cfg.Retry, c.cfg.RetryBound, func() error {
			var evalErr error
			critique, evalErr = member.Critic.Evaluate(ctx, task, target)
			return evalErr
		})
		if err != nil {
			return &RoundError{Round: state.Index, Unit: unit.ID, Err: err}
		}

		mu.Lock()
		state.Critiques[unit.Target] = append(state.Critiques[unit.Target], critique)
		mu.Unlock()
		c.obs.CritiqueRecorded(runID, critique)
		return nil

	default:
		return &RoundError{Round: state.Index, Unit: unit.ID,
			Err: fmt.Errorf("unknown unit kind %d", unit.Kind)}
	}
}
