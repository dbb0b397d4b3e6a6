package local

import (
	"sync"

	"github.com/nemanja-m/parmr/pkg/core"
)

// bucket holds every value whose key is equivalent to the representative key.
type bucket[K, V any] struct {
	key K

	mu     sync.Mutex
	values []V
}

func (b *bucket[K, V]) add(value V) {
	b.mu.Lock()
	b.values = append(b.values, value)
	b.mu.Unlock()
}

// bucketSet groups shuffled pairs. insert is safe for concurrent use and never
// creates two buckets for equivalent keys.
type bucketSet[K, V any] interface {
	insert(key K, value V)
	all() []*bucket[K, V]
}

func newBucketSet[In, D, K, V any](p *core.Pipeline[In, D, K, V]) bucketSet[K, V] {
	if p.HashableKeys() {
		return &hashedBuckets[K, V]{index: make(map[any]*bucket[K, V])}
	}
	return &scannedBuckets[K, V]{compare: p.Comparer()}
}

// scannedBuckets resolves membership by evaluating the comparer against every
// representative key, so keys need not be hashable. The list only grows:
// a lookup scans under the read lock first and, on a miss, rescans just the
// buckets appended since then under the write lock before creating one.
type scannedBuckets[K, V any] struct {
	compare core.CompareFunc[K]

	mu   sync.RWMutex
	list []*bucket[K, V]
}

func (s *scannedBuckets[K, V]) insert(key K, value V) {
	s.locate(key).add(value)
}

func (s *scannedBuckets[K, V]) locate(key K) *bucket[K, V] {
	b, seen := s.lookup(key)
	if b != nil {
		return b
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if b := s.scan(key, seen); b != nil {
		return b
	}
	b = &bucket[K, V]{key: key}
	s.list = append(s.list, b)
	return b
}

func (s *scannedBuckets[K, V]) lookup(key K) (*bucket[K, V], int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scan(key, 0), len(s.list)
}

// scan must be called with s.mu held.
func (s *scannedBuckets[K, V]) scan(key K, from int) *bucket[K, V] {
	for _, b := range s.list[from:] {
		if s.compare(b.key, key) {
			return b
		}
	}
	return nil
}

func (s *scannedBuckets[K, V]) all() []*bucket[K, V] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*bucket[K, V](nil), s.list...)
}

// hashedBuckets is used when keys are grouped by == on a comparable type.
type hashedBuckets[K, V any] struct {
	mu    sync.RWMutex
	index map[any]*bucket[K, V]
	list  []*bucket[K, V]
}

func (h *hashedBuckets[K, V]) insert(key K, value V) {
	h.locate(key).add(value)
}

func (h *hashedBuckets[K, V]) locate(key K) *bucket[K, V] {
	h.mu.RLock()
	b, ok := h.index[key]
	h.mu.RUnlock()
	if ok {
		return b
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if b, ok := h.index[key]; ok {
		return b
	}
	b = &bucket[K, V]{key: key}
	h.index[key] = b
	h.list = append(h.list, b)
	return b
}

func (h *hashedBuckets[K, V]) all() []*bucket[K, V] {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]*bucket[K, V](nil), h.list...)
}
