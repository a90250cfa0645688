package events

import (
	"time"

	"github.com/aristath/consilium/internal/debate"
)

// Event is the base interface for all events.
type Event interface {
	EventType() string
	RunID() string
}

// Topic constants
const (
	TopicRun   = "run"
	TopicRound = "round"
)

// Event type constants
const (
	EventTypeRunStarted       = "run.started"
	EventTypeRunFinished      = "run.finished"
	EventTypeRoundStarted     = "round.started"
	EventTypeRoundCompleted   = "round.completed"
	EventTypeArtifactProduced = "round.artifact"
	EventTypeCritiqueRecorded = "round.critique"
)

// RunStartedEvent is published when a run begins. State is the initial
// run snapshot (no rounds yet).
type RunStartedEvent struct {
	ID        string
	Task      string
	Agents    []debate.Identity
	State     debate.RunState
	Timestamp time.Time
}

func (e RunStartedEvent) EventType() string { return EventTypeRunStarted }
func (e RunStartedEvent) RunID() string     { return e.ID }

// RunFinishedEvent is published when a run reaches a terminal status. State
// is the full final run record.
type RunFinishedEvent struct {
	ID        string
	Status    debate.RunStatus
	Rounds    int
	State     debate.RunState
	Timestamp time.Time
}

func (e RunFinishedEvent) EventType() string { return EventTypeRunFinished }
func (e RunFinishedEvent) RunID() string     { return e.ID }

// RoundStartedEvent is published when a round's artifact phase begins.
type RoundStartedEvent struct {
	ID        string
	Round     int
	Timestamp time.Time
}

func (e RoundStartedEvent) EventType() string { return EventTypeRoundStarted }
func (e RoundStartedEvent) RunID() string     { return e.ID }

// RoundCompletedEvent is published when a round is fully aggregated. State
// is the complete RoundState snapshot for that round.
type RoundCompletedEvent struct {
	ID        string
	Round     int
	State     debate.RoundState
	Timestamp time.Time
}

func (e RoundCompletedEvent) EventType() string { return EventTypeRoundCompleted }
func (e RoundCompletedEvent) RunID() string     { return e.ID }

// ArtifactProducedEvent is published when one agent finishes its draft or
// revision for a round.
type ArtifactProducedEvent struct {
	ID        string
	Artifact  debate.Artifact
	Timestamp time.Time
}

func (e ArtifactProducedEvent) EventType() string { return EventTypeArtifactProduced }
func (e ArtifactProducedEvent) RunID() string     { return e.ID }

// CritiqueRecordedEvent is published when one peer review completes.
type CritiqueRecordedEvent struct {
	ID        string
	Critique  debate.Critique
	Timestamp time.Time
}

func (e CritiqueRecordedEvent) EventType() string { return EventTypeCritiqueRecorded }
func (e CritiqueRecordedEvent) RunID() string     { return e.ID }
