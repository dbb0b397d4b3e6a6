package local

import (
	"fmt"
	"sync"
)

// Task is one unit of phase work.
type Task func() error

// Fanout runs every submitted task on its own goroutine and collects their
// errors. Wait is the phase barrier: it returns once every task has finished.
// The number of goroutines is not bounded.
type Fanout struct {
	wg     sync.WaitGroup
	mu     sync.Mutex
	errs   []error
	closed bool
}

func NewFanout() *Fanout {
	return &Fanout{}
}

// Submit starts task. It panics when called after Wait.
func (f *Fanout) Submit(task Task) {
	f.mu.Lock()
	closed := f.closed
	f.mu.Unlock()
	if closed {
		panic("local: submit on a fanout that has already been waited on")
	}

	f.wg.Go(func() {
		if err := protect(task); err != nil {
			f.mu.Lock()
			f.errs = append(f.errs, err)
			f.mu.Unlock()
		}
	})
}

// Wait blocks until every submitted task returned and reports all of their
// errors in completion order.
func (f *Fanout) Wait() []error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()

	f.wg.Wait()

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errs
}

// protect calls task and turns a panic into an error.
func protect(task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return task()
}
