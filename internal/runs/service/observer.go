package service

import (
	"time"

	"github.com/google/uuid"

	"github.com/nemanja-m/parmr/internal/runs/core"
	"github.com/nemanja-m/parmr/internal/shared/logging"
	mrcore "github.com/nemanja-m/parmr/pkg/core"
)

// storeObserver mirrors engine progress into the run store. Terminal
// statuses are left to the service, which records them once the job has
// flushed its output.
type storeObserver struct {
	store  core.RunStore
	logger logging.Logger
}

func (o *storeObserver) OnTransition(runID uuid.UUID, _, to mrcore.RunStatus) {
	if to.IsTerminal() {
		return
	}
	o.update(runID, func(r *core.Run) {
		r.Transition(to, time.Now().UTC())
	})
}

func (o *storeObserver) OnPhaseDone(runID uuid.UUID, phase mrcore.Phase, tasks, failed int) {
	o.update(runID, func(r *core.Run) {
		r.Progress[phase] = core.PhaseProgress{Tasks: tasks, Failed: failed}
	})
}

func (o *storeObserver) update(runID uuid.UUID, fn func(*core.Run)) {
	if err := o.store.UpdateRun(runID, fn); err != nil {
		o.logger.Warn("Failed to update run", "run_id", runID.String(), "error", err)
	}
}
