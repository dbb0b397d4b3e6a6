package local

import (
	"github.com/google/uuid"

	"github.com/nemanja-m/parmr/pkg/core"
)

// Observer is notified synchronously by the engine goroutine as a run moves
// through its states. Implementations must not block.
type Observer interface {
	// OnTransition is called after the run moved from one status to the next.
	OnTransition(runID uuid.UUID, from, to core.RunStatus)
	// OnPhaseDone is called once the barrier of a phase has been crossed,
	// before the run moves on or fails.
	OnPhaseDone(runID uuid.UUID, phase core.Phase, tasks, failed int)
}

// NopObserver ignores every notification. Embed it to implement only part of
// Observer.
type NopObserver struct{}

func (NopObserver) OnTransition(uuid.UUID, core.RunStatus, core.RunStatus) {}

func (NopObserver) OnPhaseDone(uuid.UUID, core.Phase, int, int) {}

type observers []Observer

func (o observers) OnTransition(runID uuid.UUID, from, to core.RunStatus) {
	for _, obs := range o {
		obs.OnTransition(runID, from, to)
	}
}

func (o observers) OnPhaseDone(runID uuid.UUID, phase core.Phase, tasks, failed int) {
	for _, obs := range o {
		obs.OnPhaseDone(runID, phase, tasks, failed)
	}
}
