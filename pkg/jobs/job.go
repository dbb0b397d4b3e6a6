package jobs

import (
	"context"
	"errors"
	"io"

	"github.com/nemanja-m/parmr/pkg/core"
	"github.com/nemanja-m/parmr/pkg/local"
)

// Job is a named pipeline over the lines of local text files.
type Job interface {
	Name() string
	Describe() string

	// Configure applies job specific parameters and validates them.
	Configure(params map[string]string) error
	Run(ctx context.Context, req Request) error
}

type Request struct {
	// Files are read line by line and fed to the mappers.
	Files []string
	// Output is the directory receiving part-NNNN.txt result files. When
	// empty, results are printed to Diagnostics.
	Output      string
	Partitions  int
	Diagnostics io.Writer
	Options     []local.Option
}

// LineBuilder is the builder of a pipeline reading the request files.
type LineBuilder[K, V any] = core.Builder[[]string, local.Line, K, V]

// Lines starts a pipeline that reads the lines of every request file.
func Lines[K, V any](mapper core.MapFunc[local.Line, K, V]) LineBuilder[K, V] {
	return core.WithMapper(core.WithReader(local.ReadFiles), mapper)
}

// Execute attaches the request output to b, builds the pipeline and runs it
// over the request files.
func Execute[K, V any](ctx context.Context, req Request, b LineBuilder[K, V]) (err error) {
	if req.Output != "" {
		sink, sinkErr := local.NewPartitionSink[K, V](req.Output, req.Partitions)
		if sinkErr != nil {
			return sinkErr
		}
		defer func() {
			err = errors.Join(err, sink.Close())
		}()
		b = b.WithWriter(sink.Write)
	} else if req.Diagnostics != nil {
		b = b.WithDiagnostics(req.Diagnostics)
	}

	p, err := b.Build()
	if err != nil {
		return err
	}
	return local.Run(ctx, p, req.Files, req.Options...)
}
