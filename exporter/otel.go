package exporter

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AlexKent3141/lurien/domain"
	"github.com/AlexKent3141/lurien/domain/metrics"
)

const instrumentationName = "github.com/AlexKent3141/lurien/exporter"

// Attribute keys set on exported spans.
const (
	ThreadIDKey      = attribute.Key("lurien.thread.id")
	ThreadLabelKey   = attribute.Key("lurien.thread.label")
	TotalSamplesKey  = attribute.Key("lurien.thread.samples")
	ScopeSamplesKey  = attribute.Key("lurien.scope.samples")
	CPUProportionKey = attribute.Key("lurien.scope.cpu_proportion")
)

var _ domain.Sink = (*OTelSink)(nil)

// OTelSink exports each finished thread as a trace: one span for the thread
// and one child span per scope, nested like the scope tree. Spans carry the
// sample counts and proportions as attributes; their timestamps are the
// moment the thread finished, not the scope's real duration.
type OTelSink struct {
	tracer trace.Tracer
}

func NewOTelSink(tp trace.TracerProvider) *OTelSink {
	return &OTelSink{tracer: tp.Tracer(instrumentationName)}
}

func (s *OTelSink) HandleOutput(output *metrics.ThreadOutput) {
	at := trace.WithTimestamp(output.FinishedAt)

	ctx, threadSpan := s.tracer.Start(context.Background(), threadSpanName(output),
		at,
		trace.WithNewRoot(),
		trace.WithAttributes(
			ThreadIDKey.Int64(int64(output.ThreadID)),
			ThreadLabelKey.String(output.Label),
			TotalSamplesKey.Int64(int64(output.TotalSamples)),
		),
	)

	type frame struct {
		ctx   context.Context
		scope *metrics.ScopeOutput
	}
	stack := make([]frame, 0, len(output.Scopes))
	for i := len(output.Scopes) - 1; i >= 0; i-- {
		stack = append(stack, frame{ctx, output.Scopes[i]})
	}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		scopeCtx, span := s.tracer.Start(f.ctx, f.scope.Name,
			at,
			trace.WithAttributes(
				ScopeSamplesKey.Int64(int64(f.scope.Samples)),
				CPUProportionKey.Float64(f.scope.CPUProportion),
			),
		)
		span.End(at)

		for i := len(f.scope.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{scopeCtx, f.scope.Children[i]})
		}
	}

	threadSpan.End(at)
}

func threadSpanName(output *metrics.ThreadOutput) string {
	if output.Label != "" {
		return fmt.Sprintf("thread %s", output.Label)
	}
	return fmt.Sprintf("thread %#x", output.ThreadID)
}
