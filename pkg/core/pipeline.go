package core

import "reflect"

// Pipeline is the validated, immutable definition of a map-reduce job. It
// holds no run state and may be shared by any number of concurrent runs.
type Pipeline[In, D, K, V any] struct {
	read     ReadFunc[In, D]
	mapper   MapFunc[D, K, V]
	compare  CompareFunc[K]
	reduce   ReduceFunc[K, V]
	write    WriteFunc[K, V]
	hashable bool
}

func (p *Pipeline[In, D, K, V]) Reader() ReadFunc[In, D] {
	return p.read
}

func (p *Pipeline[In, D, K, V]) Mapper() MapFunc[D, K, V] {
	return p.mapper
}

func (p *Pipeline[In, D, K, V]) Comparer() CompareFunc[K] {
	return p.compare
}

func (p *Pipeline[In, D, K, V]) Reducer() ReduceFunc[K, V] {
	return p.reduce
}

func (p *Pipeline[In, D, K, V]) Writer() WriteFunc[K, V] {
	return p.write
}

// HashableKeys reports whether keys are grouped by the default equality on a
// type that can be used as a map key. The engine then groups through a hash
// map instead of scanning buckets with the comparer.
func (p *Pipeline[In, D, K, V]) HashableKeys() bool {
	return p.hashable
}

func newPipeline[In, D, K, V any](b Builder[In, D, K, V]) *Pipeline[In, D, K, V] {
	p := &Pipeline[In, D, K, V]{
		read:    b.read,
		mapper:  b.mapper,
		compare: b.compare,
		reduce:  b.reduce,
		write:   b.write,
	}
	if p.compare == nil {
		p.compare = EqualFunc[K]()
		p.hashable = SafelyComparable(reflect.TypeFor[K]())
	}
	if p.write == nil {
		p.write = PrintWriter[K, V](b.diagnostics)
	}
	return p
}
