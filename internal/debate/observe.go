package debate

// Observer receives structured progress notifications from the engine and
// coordinator. Implementations must not block and can never influence
// control flow; they receive cloned state only.
type Observer interface {
	RunStarted(run RunState)
	RoundStarted(runID string, round int)
	ArtifactProduced(runID string, artifact Artifact)
	CritiqueRecorded(runID string, critique Critique)
	RoundCompleted(runID string, state RoundState)
	RunFinished(run RunState)
}

// NopObserver is an Observer that discards everything.
type NopObserver struct{}

func (NopObserver) RunStarted(RunState)               {}
func (NopObserver) RoundStarted(string, int)          {}
func (NopObserver) ArtifactProduced(string, Artifact) {}
func (NopObserver) CritiqueRecorded(string, Critique) {}
func (NopObserver) RoundCompleted(string, RoundState) {}
func (NopObserver) RunFinished(RunState)              {}
