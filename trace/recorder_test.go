package trace

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/distcodep7/raysim/raysim"
)

func TestRecorderWritesJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	rec, err := NewRecorder(path)
	if err != nil {
		t.Fatalf("NewRecorder failed: %v", err)
	}

	events := []raysim.TraceEvent{
		{Time: 5, Message: raysim.Message{ID: "a", Kind: raysim.RequestCS, Sender: 2, Receiver: 2}, Pending: 1},
		{Time: 6, Message: raysim.Message{ID: "b", Kind: raysim.PassToken, Sender: 1, Receiver: 2}},
	}
	for _, ev := range events {
		rec.Record(ev)
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open record file: %v", err)
	}
	defer f.Close()

	var got []StoredEvent
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var ev StoredEvent
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			t.Fatalf("bad JSONL line %q: %v", sc.Text(), err)
		}
		got = append(got, ev)
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan record file: %v", err)
	}

	want := []StoredEvent{
		{ID: "a", TimeMs: 5, Kind: "REQUEST_CS", From: 2, To: 2, Pending: 1},
		{ID: "b", TimeMs: 6, Kind: "PASS_TOKEN", From: 1, To: 2},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("recorded events mismatch (-want +got):\n%s", diff)
	}
}

func TestRecorderClosesCleanlyWhenEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.jsonl")
	rec, err := NewRecorder(path)
	if err != nil {
		t.Fatalf("NewRecorder failed: %v", err)
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read record file: %v", err)
	}
	if len(data) != 0 {
		t.Errorf("empty recorder wrote %d bytes", len(data))
	}
}
