package local

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/nemanja-m/parmr/pkg/core"
)

// PartitionSink writes result pairs as "key value" lines into part-NNNN.txt
// files under a directory, choosing the file with core.Partition. Write is
// safe for concurrent use; files are created on first use.
type PartitionSink[K, V any] struct {
	dir        string
	partitions int

	mu    sync.Mutex
	parts map[int]*partFile
}

type partFile struct {
	mu   sync.Mutex
	file *os.File
	w    *bufio.Writer
}

func NewPartitionSink[K, V any](dir string, partitions int) (*PartitionSink[K, V], error) {
	if partitions <= 0 {
		partitions = 1
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &PartitionSink[K, V]{
		dir:        dir,
		partitions: partitions,
		parts:      make(map[int]*partFile),
	}, nil
}

// PartitionPath is the file holding partition p under dir.
func PartitionPath(dir string, p int) string {
	return filepath.Join(dir, fmt.Sprintf("part-%04d.txt", p))
}

// Write has the signature expected by core.Builder.WithWriter.
func (s *PartitionSink[K, V]) Write(_ context.Context, kv core.KeyValue[K, V]) error {
	part, err := s.part(core.Partition(kv.Key, s.partitions))
	if err != nil {
		return err
	}

	part.mu.Lock()
	defer part.mu.Unlock()
	_, err = fmt.Fprintf(part.w, "%v %v\n", kv.Key, kv.Value)
	return err
}

func (s *PartitionSink[K, V]) part(p int) (*partFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if part, ok := s.parts[p]; ok {
		return part, nil
	}
	file, err := os.Create(PartitionPath(s.dir, p))
	if err != nil {
		return nil, err
	}
	part := &partFile{file: file, w: bufio.NewWriter(file)}
	s.parts[p] = part
	return part, nil
}

// Close flushes and closes every partition file.
func (s *PartitionSink[K, V]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for p, part := range s.parts {
		part.mu.Lock()
		if err := part.w.Flush(); err != nil {
			errs = append(errs, err)
		}
		if err := part.file.Close(); err != nil {
			errs = append(errs, err)
		}
		part.mu.Unlock()
		delete(s.parts, p)
	}
	return errors.Join(errs...)
}
