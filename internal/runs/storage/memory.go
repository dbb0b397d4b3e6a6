package storage

import (
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/nemanja-m/parmr/internal/runs/core"
)

type InMemoryRunStore struct {
	mu   sync.RWMutex
	runs map[uuid.UUID]*core.Run
}

func NewInMemoryRunStore() *InMemoryRunStore {
	return &InMemoryRunStore{
		runs: make(map[uuid.UUID]*core.Run),
	}
}

func (s *InMemoryRunStore) SaveRun(run *core.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = run.Clone()
	return nil
}

func (s *InMemoryRunStore) UpdateRun(id uuid.UUID, fn func(run *core.Run)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, exists := s.runs[id]
	if !exists {
		return core.ErrRunNotFound
	}
	fn(run)
	return nil
}

func (s *InMemoryRunStore) GetRunByID(id uuid.UUID) (*core.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, exists := s.runs[id]
	if !exists {
		return nil, core.ErrRunNotFound
	}
	return run.Clone(), nil
}

// GetRuns returns the page of runs matching filter, newest first, together
// with the number of matching runs before paging.
func (s *InMemoryRunStore) GetRuns(filter core.RunFilter) ([]*core.Run, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*core.Run
	for _, run := range s.runs {
		if filter.Status != nil && run.Status != *filter.Status {
			continue
		}
		matched = append(matched, run)
	}

	slices.SortFunc(matched, func(a, b *core.Run) int {
		if c := b.SubmittedAt.Compare(a.SubmittedAt); c != 0 {
			return c
		}
		return slices.Compare(a.ID[:], b.ID[:])
	})

	total := len(matched)
	start := min(max(filter.Offset, 0), total)
	end := total
	if filter.Limit > 0 {
		end = min(start+filter.Limit, total)
	}

	page := make([]*core.Run, 0, end-start)
	for _, run := range matched[start:end] {
		page = append(page, run.Clone())
	}
	return page, total, nil
}
