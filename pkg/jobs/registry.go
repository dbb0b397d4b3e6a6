package jobs

import (
	"fmt"
	"slices"
	"sync"
)

// Factory returns a fresh, unconfigured job.
type Factory func() Job

var (
	mu       sync.RWMutex
	registry = make(map[string]Factory)
)

func Register(name string, factory Factory) error {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := registry[name]; exists {
		return fmt.Errorf("job already registered: %s", name)
	}
	registry[name] = factory
	return nil
}

// Get returns a new instance of the named job.
func Get(name string) (Job, error) {
	mu.RLock()
	factory, exists := registry[name]
	mu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("job not found: %s", name)
	}
	return factory(), nil
}

// List returns the registered job names in sorted order.
func List() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
