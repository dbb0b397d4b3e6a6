package core

import (
	"context"
	"fmt"
)

type KeyValue[K, V any] struct {
	Key   K
	Value V
}

func (kv KeyValue[K, V]) String() string {
	return fmt.Sprintf("Key: %v | Value: %v", kv.Key, kv.Value)
}

// ReadFunc turns one input value into the data records fed to the mappers.
type ReadFunc[In, D any] func(ctx context.Context, input In) ([]D, error)

type MapFunc[D, K, V any] func(data D) ([]KeyValue[K, V], error)

// CompareFunc reports whether two keys belong to the same group. It must be
// reflexive, symmetric and transitive; nothing checks that it is.
type CompareFunc[K any] func(a, b K) bool

type ReduceFunc[K, V any] func(key K, values []V) (V, error)

// WriteFunc delivers one reduced pair. The returned Completion may already be
// done (synchronous writers) or finish later.
type WriteFunc[K, V any] func(ctx context.Context, kv KeyValue[K, V]) Completion

// Completion yields at most one error and is then closed. A nil Completion
// counts as a successful one.
type Completion <-chan error

// Wait blocks until the completion is signalled and returns its error.
func (c Completion) Wait() error {
	if c == nil {
		return nil
	}
	return <-c
}

// Done returns an already finished Completion carrying err.
func Done(err error) Completion {
	ch := make(chan error, 1)
	if err != nil {
		ch <- err
	}
	close(ch)
	return ch
}

// Async runs fn on its own goroutine and completes with its result. A panic
// in fn is reported as an error.
func Async(fn func() error) Completion {
	ch := make(chan error, 1)
	go func() {
		defer close(ch)
		defer func() {
			if r := recover(); r != nil {
				ch <- fmt.Errorf("panic: %v", r)
			}
		}()
		if err := fn(); err != nil {
			ch <- err
		}
	}()
	return ch
}
