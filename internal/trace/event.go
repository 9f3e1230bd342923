package trace

import "time"

// Kind represents the type of trace event.
type Kind uint8

const (
	KindSpanBegin Kind = iota + 1
	KindSpanEnd
	KindPoint
	KindHeartbeat // periodic liveness signal, emitted at every enabled level
	KindFailure   // a job failed, emitted from LevelError up
)

var kindNames = [...]string{
	KindSpanBegin: "begin",
	KindSpanEnd:   "end",
	KindPoint:     "point",
	KindHeartbeat: "heartbeat",
	KindFailure:   "failure",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return "unknown"
}

// Scope indicates the granularity of an event. Lower values are coarser.
type Scope uint8

const (
	ScopeDriver Scope = iota + 1 // CLI and batch orchestration
	ScopeEval                    // one evaluation job
	ScopeFrame                   // frame push, return and unwinding pop
	ScopeStep                    // a single statement or terminator
)

var scopeNames = [...]string{
	ScopeDriver: "driver",
	ScopeEval:   "eval",
	ScopeFrame:  "frame",
	ScopeStep:   "step",
}

func (s Scope) String() string {
	if int(s) < len(scopeNames) && scopeNames[s] != "" {
		return scopeNames[s]
	}
	return "unknown"
}

// Event is a single trace record.
type Event struct {
	Time     time.Time
	Seq      uint64 // stamped by the sink that stores or writes the event
	Kind     Kind
	Scope    Scope
	SpanID   uint64
	ParentID uint64 // 0 for root spans and points
	Job      string // evaluation job the event belongs to, "" for the host
	Name     string // e.g. "evaluate", "push", "[depth=2] fact bb1[0]"
	Detail   string
	Extra    map[string]string
}

// admits reports whether a sink at level stores ev.
func admits(level Level, ev *Event) bool {
	switch ev.Kind {
	case KindHeartbeat:
		return level > LevelOff
	case KindFailure:
		return level >= LevelError
	}
	return level.ShouldEmit(ev.Scope)
}
