package core

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// PrintWriter prints every pair as "Key: <key> | Value: <value>" on its own
// line. Lines from concurrent writes never interleave. It always succeeds.
func PrintWriter[K, V any](w io.Writer) WriteFunc[K, V] {
	var mu sync.Mutex
	return func(_ context.Context, kv KeyValue[K, V]) Completion {
		mu.Lock()
		defer mu.Unlock()
		// Diagnostics output is best effort.
		fmt.Fprintln(w, kv.String())
		return Done(nil)
	}
}
