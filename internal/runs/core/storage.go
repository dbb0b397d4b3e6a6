package core

import (
	"errors"

	"github.com/google/uuid"
)

var ErrRunNotFound = errors.New("run not found")

// RunStore keeps run records. Implementations hand out copies, so callers
// never share a *Run with the store.
type RunStore interface {
	SaveRun(run *Run) error
	// UpdateRun applies fn to the stored run atomically.
	UpdateRun(id uuid.UUID, fn func(run *Run)) error
	GetRunByID(id uuid.UUID) (*Run, error)
	GetRuns(filter RunFilter) ([]*Run, int, error)
}
