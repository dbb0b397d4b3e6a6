package core

import (
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"

	mrcore "github.com/nemanja-m/parmr/pkg/core"
)

// Run is the record of one submitted job execution.
type Run struct {
	ID     uuid.UUID
	Job    string
	Params map[string]string
	Inputs []string
	Files  []string
	Output string
	Status mrcore.RunStatus

	Progress map[mrcore.Phase]PhaseProgress

	SubmittedAt time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time

	Errors []RunError
}

type PhaseProgress struct {
	Tasks  int
	Failed int
}

type RunError struct {
	Phase     mrcore.Phase
	Error     string
	Timestamp time.Time
}

type RunFilter struct {
	Status *mrcore.RunStatus
	Limit  int
	Offset int
}

// NewRun returns a run in the CREATED status.
func NewRun(job string, params map[string]string, inputs []string) *Run {
	return &Run{
		ID:          uuid.New(),
		Job:         job,
		Params:      params,
		Inputs:      inputs,
		Status:      mrcore.RunStatusCreated,
		Progress:    make(map[mrcore.Phase]PhaseProgress),
		SubmittedAt: time.Now().UTC(),
	}
}

// Clone returns a deep copy of the run.
func (r *Run) Clone() *Run {
	c := *r
	c.Params = maps.Clone(r.Params)
	c.Inputs = slices.Clone(r.Inputs)
	c.Files = slices.Clone(r.Files)
	c.Progress = maps.Clone(r.Progress)
	c.Errors = slices.Clone(r.Errors)
	if r.StartedAt != nil {
		t := *r.StartedAt
		c.StartedAt = &t
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// Transition moves the run to status and stamps the start and completion
// times. Invalid transitions are ignored and reported as false.
func (r *Run) Transition(to mrcore.RunStatus, at time.Time) bool {
	if !r.Status.CanTransition(to) {
		return false
	}
	if r.Status == mrcore.RunStatusCreated && to != mrcore.RunStatusFailed {
		r.StartedAt = &at
	}
	r.Status = to
	if to.IsTerminal() {
		r.CompletedAt = &at
	}
	return true
}
