package jwtauth

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/MrEthical07/jwtauth"

func (e *Engine) startSpan(ctx context.Context, op string) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, "jwtauth."+op, trace.WithSpanKind(trace.SpanKindInternal))
}

// endSpan records the outcome on span. The span status carries only the
// public error so exported traces do not reveal rejection reasons beyond
// the reason attribute.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.SetAttributes(attribute.String("jwtauth.reason", auditReason(err)))
		span.SetStatus(codes.Error, Public(err).Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
