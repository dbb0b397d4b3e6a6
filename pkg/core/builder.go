package core

import (
	"context"
	"io"
	"os"
)

// ReaderStage is the first builder step: the reader is known, the mapper is
// not.
type ReaderStage[In, D any] struct {
	read ReadFunc[In, D]
}

// WithReader starts a pipeline definition from its reader.
func WithReader[In, D any](read ReadFunc[In, D]) ReaderStage[In, D] {
	return ReaderStage[In, D]{read: read}
}

// WithMapper adds the mapper to a reader stage and fixes the key and value
// types of the pipeline.
func WithMapper[In, D, K, V any](stage ReaderStage[In, D], mapper MapFunc[D, K, V]) Builder[In, D, K, V] {
	return Builder[In, D, K, V]{
		read:        stage.read,
		mapper:      mapper,
		diagnostics: os.Stdout,
	}
}

// Builder collects the optional parts of a pipeline. Every method returns an
// updated copy; the receiver is left untouched.
type Builder[In, D, K, V any] struct {
	read        ReadFunc[In, D]
	mapper      MapFunc[D, K, V]
	compare     CompareFunc[K]
	reduce      ReduceFunc[K, V]
	write       WriteFunc[K, V]
	diagnostics io.Writer
}

// WithComparer overrides the default key equality.
func (b Builder[In, D, K, V]) WithComparer(compare CompareFunc[K]) Builder[In, D, K, V] {
	b.compare = compare
	return b
}

func (b Builder[In, D, K, V]) WithReducer(reduce ReduceFunc[K, V]) Builder[In, D, K, V] {
	b.reduce = reduce
	return b
}

// WithWriter sets a synchronous sink.
func (b Builder[In, D, K, V]) WithWriter(write func(ctx context.Context, kv KeyValue[K, V]) error) Builder[In, D, K, V] {
	if write == nil {
		b.write = nil
		return b
	}
	b.write = func(ctx context.Context, kv KeyValue[K, V]) Completion {
		return Done(write(ctx, kv))
	}
	return b
}

// WithAsyncWriter sets a sink that may finish after it returns.
func (b Builder[In, D, K, V]) WithAsyncWriter(write WriteFunc[K, V]) Builder[In, D, K, V] {
	b.write = write
	return b
}

// WithDiagnostics sets where the default writer prints results. It has no
// effect once a writer is configured.
func (b Builder[In, D, K, V]) WithDiagnostics(w io.Writer) Builder[In, D, K, V] {
	b.diagnostics = w
	return b
}

// Build validates the collected functions and returns the pipeline.
func (b Builder[In, D, K, V]) Build() (*Pipeline[In, D, K, V], error) {
	if b.read == nil {
		return nil, ErrMissingReader
	}
	if b.mapper == nil {
		return nil, ErrMissingMapper
	}
	if b.reduce == nil {
		return nil, ErrMissingReducer
	}
	if b.diagnostics == nil {
		b.diagnostics = os.Stdout
	}
	return newPipeline(b), nil
}
