package local

import (
	"bufio"
	"context"
	"fmt"
	"iter"
	"os"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"github.com/nemanja-m/parmr/pkg/core"
)

const (
	DefaultBufferSize = 1024 * 1024 // 1MB
)

type Line struct {
	Filename string
	Number   int
	Text     string
}

// Location renders the line position as "file:number".
func (l Line) Location() string {
	return fmt.Sprintf("%s:%d", l.Filename, l.Number)
}

func ReadLines(filePath string, bufferSize ...int) ([]Line, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	if len(bufferSize) == 0 {
		bufferSize = []int{DefaultBufferSize}
	}
	buffer := make([]byte, bufferSize[0])

	scanner := bufio.NewScanner(file)
	scanner.Buffer(buffer, bufferSize[0])

	var lines []Line
	for i := 1; scanner.Scan(); i++ {
		lines = append(lines, Line{
			Filename: filePath,
			Number:   i,
			Text:     scanner.Text(),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return lines, nil
}

// ReadFiles reads the lines of every file concurrently. Lines keep the order
// of files and, within a file, their order in the file. It has the shape of a
// core.ReadFunc so it can be used directly as a pipeline reader.
func ReadFiles(ctx context.Context, files []string) ([]Line, error) {
	perFile := make([][]Line, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, file := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			lines, err := ReadLines(file)
			if err != nil {
				return err
			}
			perFile[i] = lines
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return slices.Concat(perFile...), nil
}

// FindFiles expands doublestar glob patterns ("dir/**/*.txt") to the regular
// files they match, sorted and without duplicates.
func FindFiles(patterns ...string) ([]string, error) {
	var files []string
	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, err
		}
		for _, name := range matches {
			info, err := os.Lstat(name)
			if err != nil {
				continue
			}
			if info.Mode().IsRegular() {
				files = append(files, name)
			}
		}
	}
	slices.Sort(files)
	return slices.Compact(files), nil
}

// ReadRecords parses a file of "key value" lines.
func ReadRecords(filePath string) ([]core.KeyValue[string, string], error) {
	lines, err := ReadLines(filePath)
	if err != nil {
		return nil, err
	}

	records := make([]core.KeyValue[string, string], 0, len(lines))
	for _, line := range lines {
		key, value, ok := strings.Cut(line.Text, " ")
		if !ok {
			return nil, fmt.Errorf("malformed record at %s: %q", line.Location(), line.Text)
		}
		records = append(records, core.KeyValue[string, string]{
			Key:   key,
			Value: strings.TrimSpace(value),
		})
	}
	return records, nil
}

// WriteRecords writes one "key value" line per record, replacing the file.
func WriteRecords[K, V any](filePath string, records iter.Seq[core.KeyValue[K, V]]) error {
	file, err := os.Create(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	for record := range records {
		if _, err := fmt.Fprintf(w, "%v %v\n", record.Key, record.Value); err != nil {
			return err
		}
	}
	return w.Flush()
}
