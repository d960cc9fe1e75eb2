// Package trace renders the mediator's dispatch stream: the per-event
// stdout lines, an optional batched JSONL recording for post-run
// analysis, and an optional GoVector log for ShiViz visualization.
package trace

import (
	"fmt"
	"io"
	"sync"

	"github.com/distcodep7/raysim/raysim"
)

// Log fans a dispatch stream out to the configured sinks. It implements
// raysim.Tracer. A nil writer suppresses the stdout trace while the
// other sinks keep recording.
type Log struct {
	mu  sync.Mutex
	w   io.Writer
	rec *Recorder
	vec *VectorLog
}

// New builds a Log writing the event trace to w. Optional sinks are
// attached with the With methods.
func New(w io.Writer) *Log {
	return &Log{w: w}
}

// WithRecorder attaches a JSONL recorder.
func (l *Log) WithRecorder(r *Recorder) *Log {
	l.rec = r
	return l
}

// WithVectorLog attaches a GoVector vector-clock log.
func (l *Log) WithVectorLog(v *VectorLog) *Log {
	l.vec = v
	return l
}

// Trace renders one dispatched event on every sink, one line per event.
func (l *Log) Trace(ev raysim.TraceEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.w != nil {
		l.writeLine(ev)
	}
	if l.rec != nil {
		l.rec.Record(ev)
	}
	if l.vec != nil {
		l.vec.Log(ev)
	}
}

func (l *Log) writeLine(ev raysim.TraceEvent) {
	m := ev.Message
	switch m.Kind {
	case raysim.RequestCS:
		fmt.Fprintf(l.w, "%d: %d requested the CS, %d Pending\n", ev.Time, m.Sender, ev.Pending)
	case raysim.PassRequest:
		fmt.Fprintf(l.w, "%d: %d sent request to %d\n", ev.Time, m.Sender, m.Receiver)
	case raysim.PassToken:
		fmt.Fprintf(l.w, "%d: %d passed the token to %d\n", ev.Time, m.Sender, m.Receiver)
	case raysim.ExitCS:
		fmt.Fprintf(l.w, "%d: %d exited the CS\n", ev.Time, m.Sender)
	}
}

// Close flushes and closes the attached sinks.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var firstErr error
	if l.rec != nil {
		if err := l.rec.Close(); err != nil {
			firstErr = err
		}
	}
	return firstErr
}
