// Package trace records what the interpreter and its host are doing.
//
// Evaluations can run for millions of steps or hang in a loop that the
// step budget has not caught yet. Tracing makes both visible:
//
//	mirvm run --trace=- --trace-level=detail fibonacci
//
// Sinks are StreamTracer (text or NDJSON as events happen), RingTracer (the
// last N events, for dumping after a failure) and MultiTracer. Nop is used
// when tracing is off.
//
// The level decides which scopes reach a sink: LevelPhase keeps driver and
// evaluation spans, LevelDetail adds frame push and pop, LevelDebug adds
// every statement and terminator. LevelError keeps only job failures.
//
// The driver wraps the tracer per job with ForJob so that events of
// concurrent jobs stay apart:
//
//	ctx = trace.WithTracer(ctx, tracer)
//	t := trace.ForJob(trace.FromContext(ctx), "fibonacci")
//	span := trace.Begin(t, trace.ScopeEval, "evaluate", trace.Parent(ctx))
//	defer span.End("")
package trace
