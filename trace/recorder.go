package trace

import (
	"bufio"
	"encoding/json"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/distcodep7/raysim/raysim"
)

// StoredEvent is the JSONL representation of one dispatched message.
type StoredEvent struct {
	ID      string `json:"id"`
	TimeMs  int64  `json:"time_ms"`
	Kind    string `json:"kind"`
	From    int    `json:"from"`
	To      int    `json:"to"`
	Pending int    `json:"pending,omitempty"`
}

const (
	recorderBuf   = 10000
	flushBatch    = 500
	flushInterval = time.Second
)

// Recorder persists dispatch events to a JSONL file from a background
// writer, batching to keep file writes off the dispatch path.
type Recorder struct {
	ch     chan StoredEvent
	closed chan struct{}
	f      *os.File
}

// NewRecorder opens (or creates) the record file and starts the writer.
func NewRecorder(path string) (*Recorder, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	r := &Recorder{
		ch:     make(chan StoredEvent, recorderBuf),
		closed: make(chan struct{}),
		f:      f,
	}
	go r.loop()
	return r, nil
}

// Record queues one event for persistence.
func (r *Recorder) Record(ev raysim.TraceEvent) {
	m := ev.Message
	r.ch <- StoredEvent{
		ID:      m.ID,
		TimeMs:  ev.Time,
		Kind:    m.Kind.String(),
		From:    int(m.Sender),
		To:      int(m.Receiver),
		Pending: ev.Pending,
	}
}

func (r *Recorder) loop() {
	defer close(r.closed)

	writer := bufio.NewWriter(r.f)
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]StoredEvent, 0, flushBatch)
	for {
		select {
		case ev, ok := <-r.ch:
			if !ok {
				flush(writer, batch)
				return
			}
			batch = append(batch, ev)
			if len(batch) >= flushBatch {
				flush(writer, batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				flush(writer, batch)
				batch = batch[:0]
			}
		}
	}
}

// flush writes one batch. Write failures are reported but do not stop
// the run; the recording is diagnostic output.
func flush(writer *bufio.Writer, events []StoredEvent) {
	for _, ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		if _, err := writer.Write(data); err != nil {
			logrus.WithError(err).Warn("event record write failed")
			return
		}
		writer.WriteByte('\n')
	}
	if err := writer.Flush(); err != nil {
		logrus.WithError(err).Warn("event record flush failed")
	}
}

// Close drains pending events, flushes, and closes the file.
func (r *Recorder) Close() error {
	close(r.ch)
	<-r.closed
	return r.f.Close()
}
