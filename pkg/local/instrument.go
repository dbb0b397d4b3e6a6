package local

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"github.com/nemanja-m/parmr/pkg/core"
)

const instrumentationName = "github.com/nemanja-m/parmr/pkg/local"

type instruments struct {
	tracer trace.Tracer
	tasks  metric.Int64Counter
}

func newInstruments(tracer trace.Tracer, meter metric.Meter) instruments {
	if tracer == nil {
		tracer = otel.Tracer(instrumentationName)
	}
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}

	tasks, err := meter.Int64Counter(
		"mapreduce.tasks",
		metric.WithDescription("Tasks executed per phase"),
		metric.WithUnit("{task}"),
	)
	if err != nil {
		tasks = noop.Int64Counter{}
	}
	return instruments{tracer: tracer, tasks: tasks}
}

func (i instruments) recordTasks(ctx context.Context, phase core.Phase, tasks, failed int) {
	if ok := tasks - failed; ok > 0 {
		i.tasks.Add(ctx, int64(ok), metric.WithAttributes(
			attribute.String("phase", string(phase)),
			attribute.String("outcome", "ok"),
		))
	}
	if failed > 0 {
		i.tasks.Add(ctx, int64(failed), metric.WithAttributes(
			attribute.String("phase", string(phase)),
			attribute.String("outcome", "error"),
		))
	}
}

func failSpan(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
