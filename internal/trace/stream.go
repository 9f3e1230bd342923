package trace

import (
	"bufio"
	"io"
	"sync"
)

// StreamTracer writes events as they arrive. Step-scope points stay
// buffered until the next other event, Flush or Close.
type StreamTracer struct {
	level  Level
	format Format

	mu     sync.Mutex
	seq    uint64
	w      *bufio.Writer
	closer io.Closer // set when the tracer owns the output
}

// NewStreamTracer writes to w. The caller keeps ownership of w.
func NewStreamTracer(w io.Writer, level Level, format Format) *StreamTracer {
	return &StreamTracer{level: level, format: format, w: bufio.NewWriter(w)}
}

func newOwnedStream(wc io.WriteCloser, level Level, format Format) *StreamTracer {
	t := NewStreamTracer(wc, level, format)
	t.closer = wc
	return t
}

func (t *StreamTracer) Emit(ev *Event) {
	if !admits(t.level, ev) {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seq++
	ev.Seq = t.seq
	// trace output is best effort; write errors surface on Flush
	_, _ = t.w.Write(FormatEvent(ev, t.format))
	if ev.Kind != KindPoint || ev.Scope < ScopeStep {
		_ = t.w.Flush()
	}
}

func (t *StreamTracer) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.w.Flush()
}

// Close flushes and closes the output if the tracer opened it.
func (t *StreamTracer) Close() error {
	if err := t.Flush(); err != nil {
		return err
	}
	if t.closer != nil {
		return t.closer.Close()
	}
	return nil
}

func (t *StreamTracer) Level() Level  { return t.level }
func (t *StreamTracer) Enabled() bool { return t.level > LevelOff }
