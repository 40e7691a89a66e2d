package maprasterer

import (
	"context"

	tracing "github.com/jamesrr39/go-tracing"
)

// traceSpan is a tracing span that is only recorded when the context carries a tracer and a trace,
// e.g. for exports requested through the web service.
type traceSpan struct {
	span *tracing.Span
}

func startSpan(ctx context.Context, name string) *traceSpan {
	if ctx.Value(tracing.TracerCtxKey) == nil || ctx.Value(tracing.TraceCtxKey) == nil {
		return &traceSpan{}
	}

	return &traceSpan{tracing.StartSpan(ctx, name)}
}

func (s *traceSpan) End(ctx context.Context) {
	if s.span == nil {
		return
	}
	s.span.End(ctx)
}
