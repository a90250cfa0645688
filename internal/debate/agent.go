package debate

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Generator is the opaque generation boundary consumed by agent and critique
// units. Backends may be slow, rate-limited, or transiently failing; callers
// must tolerate all three. Any backend adapter with a matching Generate
// method satisfies this interface.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a plain function to the Generator interface.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// AgentUnit is a stateless functional role bound to an identity. Given the
// task and optionally the agent's prior artifact plus received critiques, it
// produces a work artifact. It holds no state between rounds; everything the
// revision needs travels in the prompt.
type AgentUnit struct {
	id      Identity
	persona string
	gen     Generator
}

// NewAgentUnit binds an identity and persona prompt to a generator.
func NewAgentUnit(id Identity, persona string, gen Generator) *AgentUnit {
	return &AgentUnit{id: id, persona: persona, gen: gen}
}

// ID returns the agent's identity.
func (u *AgentUnit) ID() Identity { return u.id }

// Produce generates the agent's artifact for the given round. On round 0,
// prior is nil and critiques is empty; the agent drafts from the task alone.
// On later rounds the prompt carries the prior artifact and every critique
// the agent received, and asks for a revision.
func (u *AgentUnit) Produce(ctx context.Context, round int, task Task, prior *Artifact, critiques []Critique) (Artifact, error) {
	var prompt string
	if prior == nil {
		prompt = draftPrompt(u.persona, task)
	} else {
		prompt = revisePrompt(u.persona, task, *prior, critiques)
	}

	content, err := u.gen.Generate(ctx, prompt)
	if err != nil {
		return Artifact{}, &GenerationError{Agent: u.id, Round: round, Err: err}
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return Artifact{}, &GenerationError{Agent: u.id, Round: round, Err: fmt.Errorf("backend returned empty output")}
	}

	return Artifact{
		Agent:     u.id,
		Round:     round,
		Content:   content,
		CreatedAt: time.Now(),
	}, nil
}

// CritiqueUnit evaluates another agent's artifact on behalf of a reviewer.
// The coordinator guarantees the reviewer is never the artifact's owner.
type CritiqueUnit struct {
	reviewer Identity
	persona  string
	gen      Generator
}

// NewCritiqueUnit binds a reviewer identity and persona to a generator.
func NewCritiqueUnit(reviewer Identity, persona string, gen Generator) *CritiqueUnit {
	return &CritiqueUnit{reviewer: reviewer, persona: persona, gen: gen}
}

// Reviewer returns the reviewing identity.
func (u *CritiqueUnit) Reviewer() Identity { return u.reviewer }

// Evaluate produces a structured critique of the target artifact. The
// backend is asked for a fixed SCORE/VERDICT/RATIONALE layout; a response
// that cannot be parsed counts as a transient generation failure so the
// coordinator's retry policy applies.
func (u *CritiqueUnit) Evaluate(ctx context.Context, task Task, target Artifact) (Critique, error) {
	prompt := critiquePrompt(u.persona, task, target)

	raw, err := u.gen.Generate(ctx, prompt)
	if err != nil {
		return Critique{}, &GenerationError{Agent: u.reviewer, Round: target.Round, Err: err}
	}

	c, err := parseCritique(raw)
	if err != nil {
		return Critique{}, &GenerationError{Agent: u.reviewer, Round: target.Round, Err: err}
	}

	c.Reviewer = u.reviewer
	c.Target = target.Agent
	c.Round = target.Round
	return c, nil
}

// Prompt assembly. The personas come from configuration and are opaque to
// the engine; these templates only add the collaboration protocol around
// them.

func draftPrompt(persona string, task Task) string {
	var b strings.Builder
	writePersona(&b, persona)
	b.WriteString("Produce your best complete solution to the following task.\n")
	b.WriteString("Respond with the solution only, no preamble.\n\n")
	writeTask(&b, task)
	return b.String()
}

func revisePrompt(persona string, task Task, prior Artifact, critiques []Critique) string {
	var b strings.Builder
	writePersona(&b, persona)
	b.WriteString("You previously produced a solution to the task below. ")
	b.WriteString("Your peers have reviewed it. Revise your solution, addressing every critique you agree with and defending choices you stand by.\n")
	b.WriteString("Respond with the full revised solution only, no preamble.\n\n")
	writeTask(&b, task)
	b.WriteString("\n--- YOUR PREVIOUS SOLUTION ---\n")
	b.WriteString(prior.Content)
	b.WriteString("\n\n--- PEER CRITIQUES ---\n")
	for _, c := range critiques {
		fmt.Fprintf(&b, "[%s] score=%.2f verdict=%s\n%s\n\n", c.Reviewer, c.Score, c.Verdict, c.Rationale)
	}
	return b.String()
}

func critiquePrompt(persona string, task Task, target Artifact) string {
	var b strings.Builder
	writePersona(&b, persona)
	fmt.Fprintf(&b, "Review the solution below, produced by a peer (%s) for the task. ", target.Agent)
	b.WriteString("Judge correctness, completeness, and quality.\n\n")
	b.WriteString("Respond in EXACTLY this format:\n")
	b.WriteString("SCORE: <number between 0.0 and 1.0>\n")
	b.WriteString("VERDICT: <ACCEPT or REVISE>\n")
	b.WriteString("RATIONALE: <your reasoning>\n\n")
	writeTask(&b, task)
	b.WriteString("\n--- SOLUTION UNDER REVIEW ---\n")
	b.WriteString(target.Content)
	b.WriteString("\n")
	return b.String()
}

func writePersona(b *strings.Builder, persona string) {
	if persona != "" {
		b.WriteString(persona)
		b.WriteString("\n\n")
	}
}

func writeTask(b *strings.Builder, task Task) {
	b.WriteString("--- TASK ---\n")
	b.WriteString(task.Statement)
	b.WriteString("\n")
}

var (
	scoreRe   = regexp.MustCompile(`(?im)^\s*SCORE:\s*([0-9]*\.?[0-9]+)\s*$`)
	verdictRe = regexp.MustCompile(`(?im)^\s*VERDICT:\s*(ACCEPT|REVISE)\s*$`)
	rationRe  = regexp.MustCompile(`(?is)RATIONALE:\s*(.+)$`)
)

// parseCritique extracts score, verdict, and rationale from a backend
// response. Scores outside [0,1] are clamped rather than rejected; missing
// score or verdict is an error.
func parseCritique(raw string) (Critique, error) {
	sm := scoreRe.FindStringSubmatch(raw)
	if sm == nil {
		return Critique{}, fmt.Errorf("critique response missing SCORE line")
	}
	score, err := strconv.ParseFloat(sm[1], 64)
	if err != nil {
		return Critique{}, fmt.Errorf("invalid SCORE value %q: %w", sm[1], err)
	}
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}

	vm := verdictRe.FindStringSubmatch(raw)
	if vm == nil {
		return Critique{}, fmt.Errorf("critique response missing VERDICT line")
	}
	verdict := Verdict(strings.ToUpper(vm[1]))

	rationale := ""
	if rm := rationRe.FindStringSubmatch(raw); rm != nil {
		rationale = strings.TrimSpace(rm[1])
	}

	return Critique{Score: score, Verdict: verdict, Rationale: rationale}, nil
}
