package core

import (
	"errors"
	"fmt"
	"strings"
)

// Build errors.
var (
	ErrMissingReducer = errors.New("reducer cannot be nil")
	ErrMissingReader  = errors.New("reader cannot be nil")
	ErrMissingMapper  = errors.New("mapper cannot be nil")
)

// Run errors, one per phase. A *PhaseError matches the sentinel of its phase
// with errors.Is.
var (
	ErrRead    = errors.New("read failed")
	ErrMap     = errors.New("map failed")
	ErrShuffle = errors.New("shuffle failed")
	ErrReduce  = errors.New("reduce failed")
	ErrWrite   = errors.New("write failed")
)

// PhaseError aggregates every task failure of the phase that failed the run.
type PhaseError struct {
	Phase Phase
	Errs  []error
}

func (e *PhaseError) Error() string {
	msgs := make([]string, 0, len(e.Errs))
	for _, err := range e.Errs {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("%s phase failed with %d error(s): %s", e.Phase, len(e.Errs), strings.Join(msgs, "; "))
}

func (e *PhaseError) Unwrap() []error {
	return e.Errs
}

func (e *PhaseError) Is(target error) bool {
	return target == e.Phase.Err()
}

// TaskError is the failure of a single unit of work inside a phase. Index is
// the position of the element the task was dispatched for.
type TaskError struct {
	Phase Phase
	Index int
	Err   error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("%s task %d: %v", e.Phase, e.Index, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}
