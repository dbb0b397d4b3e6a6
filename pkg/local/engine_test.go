package local

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/nemanja-m/parmr/pkg/core"
)

func identity[T any](_ context.Context, in []T) ([]T, error) {
	return in, nil
}

func parity(n int) ([]core.KeyValue[int, int], error) {
	return []core.KeyValue[int, int]{{Key: n % 2, Value: n}}, nil
}

func sum[K any](_ K, values []int) (int, error) {
	total := 0
	for _, v := range values {
		total += v
	}
	return total, nil
}

func count[K any](_ K, values []int) (int, error) {
	return len(values), nil
}

// capture collects written pairs.
type capture[K, V any] struct {
	mu    sync.Mutex
	pairs []core.KeyValue[K, V]
}

func (c *capture[K, V]) write(_ context.Context, kv core.KeyValue[K, V]) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pairs = append(c.pairs, kv)
	return nil
}

func (c *capture[K, V]) all() []core.KeyValue[K, V] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.pairs)
}

type recordingObserver struct {
	mu          sync.Mutex
	transitions []core.RunStatus
	phases      map[core.Phase][2]int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{phases: make(map[core.Phase][2]int)}
}

func (o *recordingObserver) OnTransition(_ uuid.UUID, _, to core.RunStatus) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.transitions = append(o.transitions, to)
}

func (o *recordingObserver) OnPhaseDone(_ uuid.UUID, phase core.Phase, tasks, failed int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.phases[phase] = [2]int{tasks, failed}
}

func TestEngine_Run_ParitySum(t *testing.T) {
	out := &capture[int, int]{}
	p, err := core.WithMapper(core.WithReader(identity[int]), parity).
		WithReducer(sum[int]).
		WithWriter(out.write).
		Build()
	require.NoError(t, err)

	require.NoError(t, Run(context.Background(), p, []int{1, 2, 3, 4, 5}))
	require.ElementsMatch(t, []core.KeyValue[int, int]{
		{Key: 0, Value: 6},
		{Key: 1, Value: 9},
	}, out.all())
}

func TestEngine_Run_CaseInsensitiveComparer(t *testing.T) {
	out := &capture[string, int]{}
	p, err := core.WithMapper(
		core.WithReader(identity[string]),
		func(s string) ([]core.KeyValue[string, int], error) {
			return []core.KeyValue[string, int]{{Key: s, Value: 1}}, nil
		}).
		WithComparer(strings.EqualFold).
		WithReducer(count[string]).
		WithWriter(out.write).
		Build()
	require.NoError(t, err)

	require.NoError(t, Run(context.Background(), p, []string{"A", "a", "B"}))

	results := out.all()
	require.Len(t, results, 2)
	counts := make(map[string]int)
	for _, kv := range results {
		counts[strings.ToUpper(kv.Key)] = kv.Value
	}
	require.Equal(t, map[string]int{"A": 2, "B": 1}, counts)
}

func TestEngine_Run_DefaultWriterPrints(t *testing.T) {
	var diag bytes.Buffer
	p, err := core.WithMapper(core.WithReader(identity[int]), parity).
		WithReducer(sum[int]).
		WithDiagnostics(&diag).
		Build()
	require.NoError(t, err)

	require.NoError(t, Run(context.Background(), p, []int{1, 2, 3, 4, 5}))

	lines := strings.Split(strings.TrimSpace(diag.String()), "\n")
	require.ElementsMatch(t, []string{"Key: 0 | Value: 6", "Key: 1 | Value: 9"}, lines)
}

func TestEngine_Run_DefaultEqualityStructKeys(t *testing.T) {
	type cell struct{ Row, Col int }

	out := &capture[cell, int]{}
	p, err := core.WithMapper(
		core.WithReader(identity[int]),
		func(n int) ([]core.KeyValue[cell, int], error) {
			return []core.KeyValue[cell, int]{{Key: cell{n % 2, n % 3}, Value: n}}, nil
		}).
		WithReducer(count[cell]).
		WithWriter(out.write).
		Build()
	require.NoError(t, err)

	input := make([]int, 60)
	for i := range input {
		input[i] = i
	}
	require.NoError(t, Run(context.Background(), p, input))

	results := out.all()
	require.Len(t, results, 6)
	for _, kv := range results {
		require.Equal(t, 10, kv.Value, "bucket %v", kv.Key)
	}
}

func TestEngine_Run_DefaultEqualityUncomparableKeys(t *testing.T) {
	out := &capture[[]string, int]{}
	p, err := core.WithMapper(
		core.WithReader(identity[string]),
		func(s string) ([]core.KeyValue[[]string, int], error) {
			return []core.KeyValue[[]string, int]{{Key: strings.Split(s, "/"), Value: 1}}, nil
		}).
		WithReducer(count[[]string]).
		WithWriter(out.write).
		Build()
	require.NoError(t, err)

	require.NoError(t, Run(context.Background(), p, []string{"a/b", "a/b", "a/c", "a/b"}))

	got := make(map[string]int)
	for _, kv := range out.all() {
		got[strings.Join(kv.Key, "/")] = kv.Value
	}
	require.Equal(t, map[string]int{"a/b": 3, "a/c": 1}, got)
}

func TestEngine_Run_GroupingAndCompleteness(t *testing.T) {
	const (
		records  = 210
		perMap   = 5
		classes  = 7
		expected = records * perMap / classes
	)

	var mu sync.Mutex
	seen := make(map[int][]int) // class -> values observed by its reducer

	p, err := core.WithMapper(
		core.WithReader(identity[int]),
		func(n int) ([]core.KeyValue[int, int], error) {
			pairs := make([]core.KeyValue[int, int], 0, perMap)
			for j := range perMap {
				v := n*perMap + j
				pairs = append(pairs, core.KeyValue[int, int]{Key: v, Value: v})
			}
			return pairs, nil
		}).
		WithComparer(func(a, b int) bool { return a%classes == b%classes }).
		WithReducer(func(key int, values []int) (int, error) {
			mu.Lock()
			defer mu.Unlock()
			class := key % classes
			_, dup := seen[class]
			if dup {
				return 0, fmt.Errorf("second bucket for class %d", class)
			}
			seen[class] = slices.Clone(values)
			return len(values), nil
		}).
		WithWriter(func(context.Context, core.KeyValue[int, int]) error { return nil }).
		Build()
	require.NoError(t, err)
	require.False(t, p.HashableKeys())

	input := make([]int, records)
	for i := range input {
		input[i] = i
	}
	require.NoError(t, Run(context.Background(), p, input))

	require.Len(t, seen, classes)
	var all []int
	for class, values := range seen {
		require.Len(t, values, expected, "class %d", class)
		for _, v := range values {
			require.Equal(t, class, v%classes)
		}
		all = append(all, values...)
	}
	slices.Sort(all)
	for i, v := range all {
		require.Equal(t, i, v)
	}
}

func TestEngine_Run_MapFailureIsFailFast(t *testing.T) {
	boom := errors.New("boom")
	var reduced, written atomic.Int32

	p, err := core.WithMapper(
		core.WithReader(identity[int]),
		func(n int) ([]core.KeyValue[int, int], error) {
			if n == 3 || n == 4 {
				return nil, boom
			}
			return parity(n)
		}).
		WithReducer(func(k int, values []int) (int, error) {
			reduced.Add(1)
			return sum(k, values)
		}).
		WithWriter(func(context.Context, core.KeyValue[int, int]) error {
			written.Add(1)
			return nil
		}).
		Build()
	require.NoError(t, err)

	obs := newRecordingObserver()
	e := NewEngine(p, WithObserver(obs))
	err = e.Run(context.Background(), []int{1, 2, 3, 4, 5})

	require.ErrorIs(t, err, core.ErrMap)
	require.ErrorIs(t, err, boom)

	var phaseErr *core.PhaseError
	require.ErrorAs(t, err, &phaseErr)
	require.Len(t, phaseErr.Errs, 2)

	var indexes []int
	for _, taskErr := range phaseErr.Errs {
		var te *core.TaskError
		require.ErrorAs(t, taskErr, &te)
		indexes = append(indexes, te.Index)
	}
	require.ElementsMatch(t, []int{2, 3}, indexes)

	require.Zero(t, reduced.Load())
	require.Zero(t, written.Load())
	require.Equal(t, core.RunStatusFailed, e.Status())
	require.Equal(t, [2]int{5, 2}, obs.phases[core.PhaseMap])
	require.NotContains(t, obs.phases, core.PhaseShuffle)
}

func TestEngine_Run_ReadFailure(t *testing.T) {
	boom := errors.New("disk on fire")
	var mapped atomic.Int32

	p, err := core.WithMapper(
		core.WithReader(func(context.Context, string) ([]int, error) { return nil, boom }),
		func(n int) ([]core.KeyValue[int, int], error) {
			mapped.Add(1)
			return parity(n)
		}).
		WithReducer(sum[int]).
		Build()
	require.NoError(t, err)

	err = Run(context.Background(), p, "input")
	require.ErrorIs(t, err, core.ErrRead)
	require.ErrorIs(t, err, boom)
	require.Zero(t, mapped.Load())
}

func TestEngine_Run_ReaderPanic(t *testing.T) {
	p, err := core.WithMapper(
		core.WithReader(func(context.Context, int) ([]int, error) { panic("bad input") }),
		parity).
		WithReducer(sum[int]).
		Build()
	require.NoError(t, err)

	err = Run(context.Background(), p, 1)
	require.ErrorIs(t, err, core.ErrRead)
	require.Contains(t, err.Error(), "bad input")
}

func TestEngine_Run_ComparerPanicFailsShuffle(t *testing.T) {
	var reduced atomic.Int32
	p, err := core.WithMapper(core.WithReader(identity[int]), parity).
		WithComparer(func(a, b int) bool {
			if a != b {
				panic("cannot compare")
			}
			return true
		}).
		WithReducer(func(k int, values []int) (int, error) {
			reduced.Add(1)
			return sum(k, values)
		}).
		Build()
	require.NoError(t, err)

	err = Run(context.Background(), p, []int{1, 2, 3, 4})
	require.ErrorIs(t, err, core.ErrShuffle)
	require.Contains(t, err.Error(), "cannot compare")
	require.Zero(t, reduced.Load())
}

func TestEngine_Run_ReduceFailure(t *testing.T) {
	boom := errors.New("overflow")
	var written atomic.Int32

	p, err := core.WithMapper(core.WithReader(identity[int]), parity).
		WithReducer(func(k int, values []int) (int, error) {
			if k == 1 {
				return 0, boom
			}
			return sum(k, values)
		}).
		WithWriter(func(context.Context, core.KeyValue[int, int]) error {
			written.Add(1)
			return nil
		}).
		Build()
	require.NoError(t, err)

	err = Run(context.Background(), p, []int{1, 2, 3})
	require.ErrorIs(t, err, core.ErrReduce)
	require.ErrorIs(t, err, boom)
	require.Zero(t, written.Load())
}

func TestEngine_Run_AsyncWriteFailure(t *testing.T) {
	boom := errors.New("sink closed")
	p, err := core.WithMapper(core.WithReader(identity[int]), parity).
		WithReducer(sum[int]).
		WithAsyncWriter(func(_ context.Context, kv core.KeyValue[int, int]) core.Completion {
			return core.Async(func() error {
				if kv.Key == 0 {
					return boom
				}
				return nil
			})
		}).
		Build()
	require.NoError(t, err)

	err = Run(context.Background(), p, []int{1, 2, 3, 4})
	require.ErrorIs(t, err, core.ErrWrite)
	require.ErrorIs(t, err, boom)

	var phaseErr *core.PhaseError
	require.ErrorAs(t, err, &phaseErr)
	require.Len(t, phaseErr.Errs, 1)
}

func TestEngine_Run_PhaseIsolation(t *testing.T) {
	const n = 100
	var mapped, shuffleDone, reduced, written atomic.Int32

	obs := &phaseCounter{shuffleDone: &shuffleDone}
	p, err := core.WithMapper(
		core.WithReader(identity[int]),
		func(v int) ([]core.KeyValue[int, int], error) {
			mapped.Add(1)
			return []core.KeyValue[int, int]{{Key: v % 10, Value: v}}, nil
		}).
		WithReducer(func(k int, values []int) (int, error) {
			if got := mapped.Load(); got != n {
				return 0, fmt.Errorf("reduce started after %d of %d map tasks", got, n)
			}
			if shuffleDone.Load() != 1 {
				return 0, errors.New("reduce started before shuffle barrier")
			}
			reduced.Add(1)
			return sum(k, values)
		}).
		WithWriter(func(context.Context, core.KeyValue[int, int]) error {
			if got := reduced.Load(); got != 10 {
				return fmt.Errorf("write started after %d of 10 reduce tasks", got)
			}
			written.Add(1)
			return nil
		}).
		Build()
	require.NoError(t, err)

	input := make([]int, n)
	for i := range input {
		input[i] = i
	}
	require.NoError(t, Run(context.Background(), p, input, WithObserver(obs)))
	require.Equal(t, int32(10), written.Load())
}

type phaseCounter struct {
	NopObserver
	shuffleDone *atomic.Int32
}

func (c *phaseCounter) OnPhaseDone(_ uuid.UUID, phase core.Phase, _, _ int) {
	if phase == core.PhaseShuffle {
		c.shuffleDone.Store(1)
	}
}

func TestEngine_Run_StatusTransitions(t *testing.T) {
	p, err := core.WithMapper(core.WithReader(identity[int]), parity).
		WithReducer(sum[int]).
		WithWriter(func(context.Context, core.KeyValue[int, int]) error { return nil }).
		Build()
	require.NoError(t, err)

	obs := newRecordingObserver()
	id := uuid.New()
	e := NewEngine(p, WithObserver(obs), WithRunID(id))
	require.Equal(t, id, e.ID())
	require.Equal(t, core.RunStatusCreated, e.Status())

	require.NoError(t, e.Run(context.Background(), []int{1, 2, 3}))
	require.Equal(t, core.RunStatusCompleted, e.Status())
	require.Equal(t, []core.RunStatus{
		core.RunStatusReading,
		core.RunStatusMapping,
		core.RunStatusShuffling,
		core.RunStatusReducing,
		core.RunStatusWriting,
		core.RunStatusCompleted,
	}, obs.transitions)
	require.Equal(t, [2]int{1, 0}, obs.phases[core.PhaseRead])
	require.Equal(t, [2]int{3, 0}, obs.phases[core.PhaseMap])
	require.Equal(t, [2]int{3, 0}, obs.phases[core.PhaseShuffle])
	require.Equal(t, [2]int{2, 0}, obs.phases[core.PhaseReduce])
	require.Equal(t, [2]int{2, 0}, obs.phases[core.PhaseWrite])
}

func TestEngine_Run_OnlyOnce(t *testing.T) {
	p, err := core.WithMapper(core.WithReader(identity[int]), parity).
		WithReducer(sum[int]).
		WithWriter(func(context.Context, core.KeyValue[int, int]) error { return nil }).
		Build()
	require.NoError(t, err)

	e := NewEngine(p)
	require.NoError(t, e.Run(context.Background(), []int{1}))
	require.ErrorIs(t, e.Run(context.Background(), []int{1}), ErrEngineUsed)
}

func TestEngine_Run_EmptyInput(t *testing.T) {
	out := &capture[int, int]{}
	p, err := core.WithMapper(core.WithReader(identity[int]), parity).
		WithReducer(sum[int]).
		WithWriter(out.write).
		Build()
	require.NoError(t, err)

	require.NoError(t, Run(context.Background(), p, nil))
	require.Empty(t, out.all())
}

func TestEngine_Run_PipelineReusedConcurrently(t *testing.T) {
	p, err := core.WithMapper(core.WithReader(identity[int]), parity).
		WithReducer(sum[int]).
		WithWriter(func(context.Context, core.KeyValue[int, int]) error { return nil }).
		Build()
	require.NoError(t, err)

	const runs = 20
	var wg sync.WaitGroup
	results := make([]map[int]int, runs)
	for i := range runs {
		wg.Go(func() {
			out := &capture[int, int]{}
			run, err := core.WithMapper(core.WithReader(p.Reader()), p.Mapper()).
				WithReducer(p.Reducer()).
				WithWriter(out.write).
				Build()
			if err != nil {
				return
			}
			if err := Run(context.Background(), run, []int{i, i + 1, i + 2}); err != nil {
				return
			}
			got := make(map[int]int)
			for _, kv := range out.all() {
				got[kv.Key] = kv.Value
			}
			results[i] = got
		})
	}
	wg.Wait()

	for i, got := range results {
		want := map[int]int{}
		for _, v := range []int{i, i + 1, i + 2} {
			want[v%2] += v
		}
		require.Equal(t, want, got, "run %d", i)
	}

	// The shared definition itself is also safe to run concurrently.
	var failures atomic.Int32
	for range runs {
		wg.Go(func() {
			if err := Run(context.Background(), p, []int{1, 2, 3}); err != nil {
				failures.Add(1)
			}
		})
	}
	wg.Wait()
	require.Zero(t, failures.Load())
}

func TestEngine_Run_CancelledBeforeStart(t *testing.T) {
	var read atomic.Int32
	p, err := core.WithMapper(
		core.WithReader(func(ctx context.Context, in []int) ([]int, error) {
			read.Add(1)
			return in, nil
		}), parity).
		WithReducer(sum[int]).
		Build()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := NewEngine(p)
	err = e.Run(ctx, []int{1, 2})
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, read.Load())
	require.Equal(t, core.RunStatusFailed, e.Status())
}

func TestEngine_Run_CancelledBetweenPhases(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var shuffled atomic.Int32
	p, err := core.WithMapper(
		core.WithReader(identity[int]),
		func(n int) ([]core.KeyValue[int, int], error) {
			cancel()
			return parity(n)
		}).
		WithComparer(func(a, b int) bool {
			shuffled.Add(1)
			return a == b
		}).
		WithReducer(sum[int]).
		Build()
	require.NoError(t, err)

	err = Run(ctx, p, []int{1, 2, 3})
	require.ErrorIs(t, err, context.Canceled)
	require.Contains(t, err.Error(), "before shuffle phase")
	require.Zero(t, shuffled.Load())
}

func TestEngine_Run_InconsistentComparerDoesNotCrash(t *testing.T) {
	const keys = 2000

	cases := []struct {
		name    string
		compare core.CompareFunc[int]
	}{
		{"random", func(a, b int) bool { return rand.IntN(3) == 0 }},
		{"asymmetric", func(a, b int) bool { return a <= b }},
		{"never equal", func(a, b int) bool { return false }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var total atomic.Int64
			p, err := core.WithMapper(
				core.WithReader(identity[int]),
				func(n int) ([]core.KeyValue[int, int], error) {
					return []core.KeyValue[int, int]{{Key: n, Value: 1}}, nil
				}).
				WithComparer(tc.compare).
				WithReducer(count[int]).
				WithWriter(func(_ context.Context, kv core.KeyValue[int, int]) error {
					total.Add(int64(kv.Value))
					return nil
				}).
				Build()
			require.NoError(t, err)

			input := make([]int, keys)
			for i := range input {
				input[i] = i
			}

			done := make(chan error, 1)
			go func() {
				done <- Run(context.Background(), p, input)
			}()

			select {
			case err := <-done:
				require.NoError(t, err)
			case <-time.After(30 * time.Second):
				t.Fatal("run did not finish")
			}
			require.EqualValues(t, keys, total.Load())
		})
	}
}

func TestEngine_Run_NaNKeysReducedSeparately(t *testing.T) {
	out := &capture[float64, int]{}
	p, err := core.WithMapper(
		core.WithReader(identity[float64]),
		func(f float64) ([]core.KeyValue[float64, int], error) {
			return []core.KeyValue[float64, int]{{Key: f, Value: 1}}, nil
		}).
		WithReducer(count[float64]).
		WithWriter(out.write).
		Build()
	require.NoError(t, err)

	nan := math.NaN()
	require.NoError(t, Run(context.Background(), p, []float64{nan, nan, 1, 1}))

	results := out.all()
	require.Len(t, results, 3)
	nans := 0
	for _, kv := range results {
		if math.IsNaN(kv.Key) {
			nans++
			require.Equal(t, 1, kv.Value)
		} else {
			require.Equal(t, 2, kv.Value)
		}
	}
	require.Equal(t, 2, nans)
}
