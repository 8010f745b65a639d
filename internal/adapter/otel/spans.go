package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "irops"

// StartAssessmentSpan starts a span covering one whole assessment run.
func StartAssessmentSpan(ctx context.Context, requestID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "assessment",
		trace.WithAttributes(
			attribute.String("assessment.request_id", requestID),
		),
	)
}

// StartPhaseSpan starts a span for one barrier-synchronized phase.
func StartPhaseSpan(ctx context.Context, requestID, phase string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "phase",
		trace.WithAttributes(
			attribute.String("assessment.request_id", requestID),
			attribute.String("phase.name", phase),
		),
	)
}

// StartAttemptSpan starts a span for one backend attempt within an invocation.
func StartAttemptSpan(ctx context.Context, agent, backend string, attempt int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "backend_attempt",
		trace.WithAttributes(
			attribute.String("agent.name", agent),
			attribute.String("backend.name", backend),
			attribute.Int("attempt.number", attempt),
		),
	)
}
