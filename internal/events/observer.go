package events

import (
	"time"

	"github.com/aristath/consilium/internal/debate"
)

// BusObserver bridges the engine's observer callbacks onto the event bus.
// Publishes are non-blocking, so the sink side can never stall a phase.
type BusObserver struct {
	bus *Bus
}

// NewBusObserver creates an observer that publishes to bus.
func NewBusObserver(bus *Bus) *BusObserver {
	return &BusObserver{bus: bus}
}

func (o *BusObserver) RunStarted(run debate.RunState) {
	o.bus.Publish(TopicRun, RunStartedEvent{
		ID:        run.ID,
		Task:      run.Task.Statement,
		Agents:    run.Agents,
		State:     run,
		Timestamp: time.Now(),
	})
}

func (o *BusObserver) RunFinished(run debate.RunState) {
	o.bus.Publish(TopicRun, RunFinishedEvent{
		ID:        run.ID,
		Status:    run.Status,
		Rounds:    len(run.Rounds),
		State:     run,
		Timestamp: time.Now(),
	})
}

func (o *BusObserver) RoundStarted(runID string, round int) {
	o.bus.Publish(TopicRound, RoundStartedEvent{
		ID:        runID,
		Round:     round,
		Timestamp: time.Now(),
	})
}

func (o *BusObserver) RoundCompleted(runID string, state debate.RoundState) {
	o.bus.Publish(TopicRound, RoundCompletedEvent{
		ID:        runID,
		Round:     state.Index,
		State:     state,
		Timestamp: time.Now(),
	})
}

func (o *BusObserver) ArtifactProduced(runID string, artifact debate.Artifact) {
	o.bus.Publish(TopicRound, ArtifactProducedEvent{
		ID:        runID,
		Artifact:  artifact,
		Timestamp: time.Now(),
	})
}

func (o *BusObserver) CritiqueRecorded(runID string, critique debate.Critique) {
	o.bus.Publish(TopicRound, CritiqueRecordedEvent{
		ID:        runID,
		Critique:  critique,
		Timestamp: time.Now(),
	})
}
