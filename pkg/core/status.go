package core

type Phase string

const (
	PhaseRead    Phase = "read"
	PhaseMap     Phase = "map"
	PhaseShuffle Phase = "shuffle"
	PhaseReduce  Phase = "reduce"
	PhaseWrite   Phase = "write"
)

// Phases lists the run phases in execution order.
var Phases = []Phase{PhaseRead, PhaseMap, PhaseShuffle, PhaseReduce, PhaseWrite}

// Err returns the sentinel error reported when the phase fails.
func (p Phase) Err() error {
	switch p {
	case PhaseRead:
		return ErrRead
	case PhaseMap:
		return ErrMap
	case PhaseShuffle:
		return ErrShuffle
	case PhaseReduce:
		return ErrReduce
	case PhaseWrite:
		return ErrWrite
	}
	return nil
}

// Status returns the run status while the phase executes.
func (p Phase) Status() RunStatus {
	switch p {
	case PhaseRead:
		return RunStatusReading
	case PhaseMap:
		return RunStatusMapping
	case PhaseShuffle:
		return RunStatusShuffling
	case PhaseReduce:
		return RunStatusReducing
	case PhaseWrite:
		return RunStatusWriting
	}
	return RunStatusFailed
}

type RunStatus string

const (
	RunStatusCreated   RunStatus = "CREATED"
	RunStatusReading   RunStatus = "READING"
	RunStatusMapping   RunStatus = "MAPPING"
	RunStatusShuffling RunStatus = "SHUFFLING"
	RunStatusReducing  RunStatus = "REDUCING"
	RunStatusWriting   RunStatus = "WRITING"
	RunStatusCompleted RunStatus = "COMPLETED"
	RunStatusFailed    RunStatus = "FAILED"
)

var nextStatus = map[RunStatus]RunStatus{
	RunStatusCreated:   RunStatusReading,
	RunStatusReading:   RunStatusMapping,
	RunStatusMapping:   RunStatusShuffling,
	RunStatusShuffling: RunStatusReducing,
	RunStatusReducing:  RunStatusWriting,
	RunStatusWriting:   RunStatusCompleted,
}

func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}

// CanTransition reports whether a run may move from s to next. Runs advance
// one step at a time and may fail from any non-terminal status.
func (s RunStatus) CanTransition(next RunStatus) bool {
	if s.IsTerminal() {
		return false
	}
	if next == RunStatusFailed {
		return true
	}
	return nextStatus[s] == next
}
