package trace

import "context"

type ctxKey struct{}

// ctxState is what a context carries: the tracer and the span new spans
// should hang under.
type ctxState struct {
	tracer Tracer
	parent uint64
}

func stateOf(ctx context.Context) ctxState {
	if ctx != nil {
		if st, ok := ctx.Value(ctxKey{}).(ctxState); ok {
			return st
		}
	}
	return ctxState{tracer: Nop}
}

// FromContext returns the tracer attached to ctx, or Nop.
func FromContext(ctx context.Context) Tracer {
	return stateOf(ctx).tracer
}

// Parent returns the span id attached to ctx, or 0.
func Parent(ctx context.Context) uint64 {
	return stateOf(ctx).parent
}

// WithTracer attaches t to ctx. A nil t disables tracing.
func WithTracer(ctx context.Context, t Tracer) context.Context {
	if t == nil {
		t = Nop
	}
	st := stateOf(ctx)
	st.tracer = t
	return context.WithValue(ctx, ctxKey{}, st)
}

// WithParent makes span the parent of spans begun from the returned context.
func WithParent(ctx context.Context, span *Span) context.Context {
	st := stateOf(ctx)
	st.parent = span.ID()
	return context.WithValue(ctx, ctxKey{}, st)
}
