package local

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/nemanja-m/parmr/internal/shared/logging"
	"github.com/nemanja-m/parmr/pkg/core"
)

// ErrEngineUsed is returned when Run is called more than once on an engine.
var ErrEngineUsed = errors.New("engine has already been run")

type options struct {
	logger    logging.Logger
	observers observers
	runID     uuid.UUID
	tracer    trace.Tracer
	meter     metric.Meter
}

type Option func(*options)

func WithLogger(logger logging.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithObserver adds an observer; it may be given several times.
func WithObserver(observer Observer) Option {
	return func(o *options) { o.observers = append(o.observers, observer) }
}

// WithRunID sets the run identifier instead of a random one.
func WithRunID(id uuid.UUID) Option {
	return func(o *options) { o.runID = id }
}

func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) { o.tracer = tracer }
}

func WithMeter(meter metric.Meter) Option {
	return func(o *options) { o.meter = meter }
}

// Engine executes one run of a pipeline. It owns the intermediate containers
// of that run and cannot be reused; call Run (the package function) or create
// a new Engine for every input.
type Engine[In, D, K, V any] struct {
	pipeline *core.Pipeline[In, D, K, V]
	runID    uuid.UUID
	logger   logging.Logger
	observer Observer
	inst     instruments

	used atomic.Bool

	mu     sync.Mutex
	status core.RunStatus

	data    []D
	groups  *collection[[]core.KeyValue[K, V]]
	buckets bucketSet[K, V]
	results *collection[core.KeyValue[K, V]]
}

func NewEngine[In, D, K, V any](p *core.Pipeline[In, D, K, V], opts ...Option) *Engine[In, D, K, V] {
	o := options{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.runID == uuid.Nil {
		o.runID = uuid.New()
	}

	return &Engine[In, D, K, V]{
		pipeline: p,
		runID:    o.runID,
		logger:   o.logger,
		observer: o.observers,
		inst:     newInstruments(o.tracer, o.meter),
		status:   core.RunStatusCreated,
		groups:   &collection[[]core.KeyValue[K, V]]{},
		buckets:  newBucketSet(p),
		results:  &collection[core.KeyValue[K, V]]{},
	}
}

// Run executes p against input on a fresh engine.
func Run[In, D, K, V any](ctx context.Context, p *core.Pipeline[In, D, K, V], input In, opts ...Option) error {
	return NewEngine(p, opts...).Run(ctx, input)
}

func (e *Engine[In, D, K, V]) ID() uuid.UUID {
	return e.runID
}

func (e *Engine[In, D, K, V]) Status() core.RunStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Run drives input through read, map, shuffle, reduce and write. Each phase
// starts only after every task of the previous one has finished. The first
// phase with failing tasks ends the run with a *core.PhaseError holding all of
// that phase's task errors. A cancelled ctx stops the run before the next
// phase begins; tasks already dispatched are not interrupted.
func (e *Engine[In, D, K, V]) Run(ctx context.Context, input In) (err error) {
	if !e.used.CompareAndSwap(false, true) {
		return ErrEngineUsed
	}

	ctx, span := e.inst.tracer.Start(ctx, "mapreduce.run",
		trace.WithAttributes(attribute.String("run.id", e.runID.String())))
	defer span.End()

	start := time.Now()
	e.logger.Debug("Run started", "run_id", e.runID.String())

	defer func() {
		e.release()
		if err != nil {
			e.transition(core.RunStatusFailed)
			failSpan(span, err)
			e.logger.Error("Run failed", "run_id", e.runID.String(), "error", err)
			return
		}
		e.transition(core.RunStatusCompleted)
		e.logger.Info("Run completed",
			"run_id", e.runID.String(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}()

	phases := []struct {
		phase core.Phase
		run   func(context.Context) (int, []error)
	}{
		{core.PhaseRead, func(ctx context.Context) (int, []error) { return e.read(ctx, input) }},
		{core.PhaseMap, e.mapData},
		{core.PhaseShuffle, e.shuffle},
		{core.PhaseReduce, e.reduce},
		{core.PhaseWrite, e.write},
	}

	for _, p := range phases {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("run cancelled before %s phase: %w", p.phase, err)
		}
		e.transition(p.phase.Status())
		if err := e.runPhase(ctx, p.phase, p.run); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine[In, D, K, V]) runPhase(
	ctx context.Context,
	phase core.Phase,
	run func(context.Context) (int, []error),
) error {
	ctx, span := e.inst.tracer.Start(ctx, "mapreduce."+string(phase))
	defer span.End()

	start := time.Now()
	tasks, errs := run(ctx)

	span.SetAttributes(attribute.Int("tasks", tasks), attribute.Int("failed", len(errs)))
	e.inst.recordTasks(ctx, phase, tasks, len(errs))
	e.observer.OnPhaseDone(e.runID, phase, tasks, len(errs))

	if len(errs) > 0 {
		err := &core.PhaseError{Phase: phase, Errs: errs}
		failSpan(span, err)
		return err
	}

	e.logger.Debug("Phase completed",
		"run_id", e.runID.String(),
		"phase", string(phase),
		"tasks", tasks,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// read calls the reader exactly once.
func (e *Engine[In, D, K, V]) read(ctx context.Context, input In) (int, []error) {
	err := protect(func() error {
		data, err := e.pipeline.Reader()(ctx, input)
		e.data = data
		return err
	})
	if err != nil {
		return 1, []error{&core.TaskError{Phase: core.PhaseRead, Index: 0, Err: err}}
	}
	return 1, nil
}

func (e *Engine[In, D, K, V]) mapData(context.Context) (int, []error) {
	mapper := e.pipeline.Mapper()
	f := NewFanout()
	for i, record := range e.data {
		f.Submit(task(core.PhaseMap, i, func() error {
			pairs, err := mapper(record)
			if err != nil {
				return err
			}
			e.groups.add(pairs)
			return nil
		}))
	}
	return len(e.data), f.Wait()
}

func (e *Engine[In, D, K, V]) shuffle(context.Context) (int, []error) {
	f := NewFanout()
	n := 0
	for _, group := range e.groups.snapshot() {
		for _, pair := range group {
			f.Submit(task(core.PhaseShuffle, n, func() error {
				e.buckets.insert(pair.Key, pair.Value)
				return nil
			}))
			n++
		}
	}
	return n, f.Wait()
}

func (e *Engine[In, D, K, V]) reduce(context.Context) (int, []error) {
	reducer := e.pipeline.Reducer()
	buckets := e.buckets.all()
	f := NewFanout()
	for i, b := range buckets {
		f.Submit(task(core.PhaseReduce, i, func() error {
			value, err := reducer(b.key, b.values)
			if err != nil {
				return err
			}
			e.results.add(core.KeyValue[K, V]{Key: b.key, Value: value})
			return nil
		}))
	}
	return len(buckets), f.Wait()
}

func (e *Engine[In, D, K, V]) write(ctx context.Context) (int, []error) {
	writer := e.pipeline.Writer()
	results := e.results.snapshot()
	f := NewFanout()
	for i, kv := range results {
		f.Submit(task(core.PhaseWrite, i, func() error {
			return writer(ctx, kv).Wait()
		}))
	}
	return len(results), f.Wait()
}

func (e *Engine[In, D, K, V]) transition(to core.RunStatus) {
	e.mu.Lock()
	from := e.status
	if !from.CanTransition(to) {
		e.mu.Unlock()
		return
	}
	e.status = to
	e.mu.Unlock()

	e.logger.Debug("Run status changed",
		"run_id", e.runID.String(),
		"from", string(from),
		"to", string(to),
	)
	e.observer.OnTransition(e.runID, from, to)
}

// release drops the intermediate containers once the run is over.
func (e *Engine[In, D, K, V]) release() {
	e.data = nil
	e.groups = nil
	e.buckets = nil
	e.results = nil
}

// task wraps fn so that its error, or a panic, is reported as a task error of
// phase for element index.
func task(phase core.Phase, index int, fn Task) Task {
	return func() error {
		if err := protect(fn); err != nil {
			return &core.TaskError{Phase: phase, Index: index, Err: err}
		}
		return nil
	}
}
