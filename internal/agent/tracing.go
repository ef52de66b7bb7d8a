package agent

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/vinayprograms/contui/internal/agent"

func (o *Orchestrator) startSessionSpan(ctx context.Context, id string) (context.Context, trace.Span) {
	ctx, span := o.tracer.Start(ctx, "agent.session")
	span.SetAttributes(
		attribute.String("session.id", id),
		attribute.String("llm.provider", o.provider.Name()),
		attribute.Int("session.max_steps", o.opts.MaxSteps),
	)
	return ctx, span
}

func endSessionSpan(span trace.Span, state State, steps int, err error) {
	span.SetAttributes(
		attribute.String("session.state", string(state)),
		attribute.Int("session.steps", steps),
	)
	if err != nil {
		span.RecordError(err)
	}
	span.End()
}

func (o *Orchestrator) startStepSpan(ctx context.Context, step int) (context.Context, trace.Span) {
	ctx, span := o.tracer.Start(ctx, "agent.step")
	span.SetAttributes(attribute.Int("step.number", step))
	return ctx, span
}

func endStepSpan(span trace.Span, actions int, err error) {
	span.SetAttributes(attribute.Int("step.actions", actions))
	if err != nil {
		span.RecordError(err)
	}
	span.End()
}

func (o *Orchestrator) startModelSpan(ctx context.Context, step int) (context.Context, trace.Span) {
	ctx, span := o.tracer.Start(ctx, "llm.chat")
	span.SetAttributes(attribute.Int("step.number", step))
	return ctx, span
}

func endModelSpan(span trace.Span, chars int, err error) {
	span.SetAttributes(attribute.Int("llm.response_chars", chars))
	if err != nil {
		span.RecordError(err)
	}
	span.End()
}
