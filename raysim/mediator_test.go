package raysim

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

type eventSink struct {
	events []TraceEvent
}

func (s *eventSink) Trace(ev TraceEvent) { s.events = append(s.events, ev) }

func testMediator(n int, tracer Tracer) *Mediator {
	med := newMediator(newTree(n), tracer, nil)
	med.clock = func() int64 { return 0 }
	return med
}

func mustDrain(t *testing.T, med *Mediator) {
	t.Helper()
	if err := med.drain(); err != nil {
		t.Fatalf("drain failed: %v", err)
	}
}

func TestDispatchRequestReachesToken(t *testing.T) {
	med := testMediator(3, nil)

	// Node 2 asks for the CS while node 1 holds an idle token. The
	// request travels up one edge and the token comes straight back.
	med.post(NewMessage(RequestCS, 2, 2))
	mustDrain(t, med)

	want := Counters{Requests: 1, Messages: 2, TokenPasses: 1}
	if diff := cmp.Diff(want, med.Counters()); diff != "" {
		t.Errorf("counters mismatch (-want +got):\n%s", diff)
	}
	if !med.Node(2).Using() {
		t.Error("node 2 did not enter the critical section")
	}
	if med.Node(1).Holder() != 2 {
		t.Errorf("node 1 holder = %d, want 2", med.Node(1).Holder())
	}

	med.post(NewMessage(ExitCS, 2, 2))
	mustDrain(t, med)

	if med.Node(2).Using() {
		t.Error("node 2 still inside the critical section after exit")
	}
	if got := med.Counters().Serviced; got != 1 {
		t.Errorf("serviced = %d, want 1", got)
	}
}

func TestDispatchQueuedRequestsServicedInOrder(t *testing.T) {
	med := testMediator(3, nil)

	// Node 1 takes the token and stays inside while 2 and 3 request.
	med.post(NewMessage(RequestCS, 1, 1))
	mustDrain(t, med)
	med.post(NewMessage(RequestCS, 2, 2))
	med.post(NewMessage(RequestCS, 3, 3))
	mustDrain(t, med)

	if got := med.Node(1).QueueLen(); got != 2 {
		t.Fatalf("root queue length = %d, want 2", got)
	}

	// On exit the token goes to node 2 first.
	med.post(NewMessage(ExitCS, 1, 1))
	mustDrain(t, med)
	if !med.Node(2).Using() {
		t.Error("node 2 should hold the critical section first")
	}
	if med.Node(3).Using() {
		t.Error("node 3 entered out of turn")
	}

	med.post(NewMessage(ExitCS, 2, 2))
	mustDrain(t, med)
	if !med.Node(3).Using() {
		t.Error("node 3 never received the token")
	}
}

func TestDispatchExitWithoutEntry(t *testing.T) {
	med := testMediator(2, nil)
	med.post(NewMessage(ExitCS, 2, 2))
	if err := med.drain(); !errors.Is(err, ErrInvariant) {
		t.Errorf("drain error = %v, want ErrInvariant", err)
	}
}

func TestDispatchUnknownNode(t *testing.T) {
	med := testMediator(2, nil)
	med.post(NewMessage(RequestCS, 9, 9))
	if err := med.drain(); !errors.Is(err, ErrInvariant) {
		t.Errorf("drain error = %v, want ErrInvariant", err)
	}
}

func TestDispatchDuplicateDone(t *testing.T) {
	med := testMediator(2, nil)
	med.post(NewMessage(DoneNotify, 1, 1))
	mustDrain(t, med)
	med.post(NewMessage(DoneNotify, 1, 1))
	if err := med.drain(); !errors.Is(err, ErrInvariant) {
		t.Errorf("drain error = %v, want ErrInvariant", err)
	}
}

func TestTraceOrderAndPending(t *testing.T) {
	sink := &eventSink{}
	med := testMediator(2, sink)

	med.post(NewMessage(RequestCS, 2, 2))
	mustDrain(t, med)
	med.post(NewMessage(ExitCS, 2, 2))
	med.post(NewMessage(DoneNotify, 2, 2))
	mustDrain(t, med)

	want := []TraceEvent{
		{Message: Message{Kind: RequestCS, Sender: 2, Receiver: 2}, Pending: 1},
		{Message: Message{Kind: PassRequest, Sender: 2, Receiver: 1}},
		{Message: Message{Kind: PassToken, Sender: 1, Receiver: 2}},
		{Message: Message{Kind: ExitCS, Sender: 2, Receiver: 2}},
	}
	ignoreID := cmpopts.IgnoreFields(Message{}, "ID")
	if diff := cmp.Diff(want, sink.events, ignoreID); diff != "" {
		t.Errorf("trace mismatch (-want +got):\n%s", diff)
	}
}

func TestObserverSeesQuiescentState(t *testing.T) {
	var usingMax int
	observer := func(med *Mediator, m Message) {
		if u := med.UsingCount(); u > usingMax {
			usingMax = u
		}
	}
	med := newMediator(newTree(4), nil, observer)
	med.clock = func() int64 { return 0 }

	for i := 1; i <= 4; i++ {
		med.post(NewMessage(RequestCS, NodeID(i), NodeID(i)))
	}
	mustDrain(t, med)
	for med.Counters().Serviced < 4 {
		for i := 1; i <= 4; i++ {
			if med.Node(NodeID(i)).Using() {
				med.post(NewMessage(ExitCS, NodeID(i), NodeID(i)))
				mustDrain(t, med)
			}
		}
	}

	if usingMax > 1 {
		t.Errorf("observed %d concurrent critical sections", usingMax)
	}
	if got := med.Counters().Serviced; got != 4 {
		t.Errorf("serviced = %d, want 4", got)
	}
}

func TestHolderEdgesMatchTreeAtRest(t *testing.T) {
	med := testMediator(7, nil)

	med.post(NewMessage(RequestCS, 7, 7))
	mustDrain(t, med)
	med.post(NewMessage(ExitCS, 7, 7))
	mustDrain(t, med)

	if diff := cmp.Diff(TreeEdges(7), med.HolderEdges()); diff != "" {
		t.Errorf("holder edges diverged from tree (-want +got):\n%s", diff)
	}
	holders := med.SelfHolders()
	if len(holders) != 1 || holders[0] != 7 {
		t.Errorf("self holders = %v, want [7]", holders)
	}
}
