package executor

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vinayprograms/contui/internal/action"
)

const tracerName = "github.com/vinayprograms/contui/internal/executor"

// startActionSpan starts a span for one action. Contents are never recorded.
func startActionSpan(ctx context.Context, a action.Action) (context.Context, trace.Span) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "action."+string(a.Kind()))
	span.SetAttributes(attribute.String("action.kind", string(a.Kind())))
	if _, isCmd := a.(action.ExecuteCommand); !isCmd {
		span.SetAttributes(attribute.String("action.target", a.Target()))
	}
	return ctx, span
}

// endActionSpan ends the span with the result status.
func endActionSpan(span trace.Span, res Result) {
	span.SetAttributes(attribute.Bool("action.success", res.Success))
	if res.Err != nil {
		span.SetAttributes(attribute.String("action.error_kind", string(res.Err.Kind)))
		span.RecordError(res.Err)
	}
	span.End()
}
