package raysim

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvariant marks a breached rule precondition or corrupted mediator
// state. It should be unreachable; any occurrence is a bug in the
// simulator, not a property of the workload.
var ErrInvariant = errors.New("invariant violation")

// Counters are the global statistics kept by the mediator. They are
// mutated only by the dispatch loop.
type Counters struct {
	Requests    int
	Serviced    int
	Messages    int
	TokenPasses int
}

// TraceEvent describes one dispatched message for the trace layer.
// Pending is only meaningful for REQUEST_CS events: the number of
// requests not yet serviced at the instant of the request, counting the
// request itself.
type TraceEvent struct {
	Time    int64
	Message Message
	Pending int
}

// Tracer receives one event per dispatched message, in dispatch order.
// Calls are made from the dispatch loop, so implementations see a total
// order but must not call back into the mediator.
type Tracer interface {
	Trace(ev TraceEvent)
}

// Observer is called after every dispatched message with the mediator in
// a consistent state. Used by the invariant harness.
type Observer func(med *Mediator, m Message)

// pollInterval bounds how long the dispatch loop sleeps between
// termination checks when the queue is empty.
const pollInterval = 2 * time.Millisecond

/*
* Mediator owns the single FIFO message queue and the per-node state.
* Every inter-node event in the simulation flows through here and is
* dispatched one message at a time, which totally orders delivery and
* makes traces reproducible. Producers are the node drivers and the
* state-machine rules themselves; the dispatch loop is the only consumer.
 */
type Mediator struct {
	queue    chan Message
	nodes    map[NodeID]*Node
	counters Counters
	done     map[NodeID]struct{}

	tracer   Tracer
	observer Observer
	clock    func() int64
}

func newMediator(nodes map[NodeID]*Node, tracer Tracer, observer Observer) *Mediator {
	// Each node keeps at most one REQUEST_CS/EXIT_CS and one PASS_REQUEST
	// outstanding, and exactly one token exists, so the queue never holds
	// more than 3n+1 messages. The buffer stays above that bound so the
	// dispatch loop can emit follow-up messages without blocking on its
	// own queue.
	med := &Mediator{
		queue:    make(chan Message, 4*len(nodes)+16),
		nodes:    nodes,
		done:     make(map[NodeID]struct{}, len(nodes)),
		tracer:   tracer,
		observer: observer,
		clock:    func() int64 { return time.Now().UnixMilli() },
	}
	return med
}

// post appends a message to the queue. Safe for concurrent producers.
func (med *Mediator) post(m Message) {
	med.queue <- m
}

// node resolves an id, failing the run on an unknown sender or receiver.
func (med *Mediator) node(id NodeID) (*Node, error) {
	n, ok := med.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: message names unknown node %d", ErrInvariant, id)
	}
	return n, nil
}

// dispatch applies a single message to the receiving node's state.
// Every handler ends with assignPrivilege then makeRequest on the node
// whose state just changed; only that node's local conditions could have
// newly enabled either rule.
func (med *Mediator) dispatch(m Message) error {
	med.trace(m)

	switch m.Kind {
	case RequestCS:
		// Self-directed: the sender wants the CS, whatever receiver the
		// driver happened to address.
		n, err := med.node(m.Sender)
		if err != nil {
			return err
		}
		n.enqueue(n.ID)
		n.assignPrivilege(med.post)
		n.makeRequest(med.post)
		med.counters.Requests++

	case PassRequest:
		recv, err := med.node(m.Receiver)
		if err != nil {
			return err
		}
		recv.enqueue(m.Sender)
		recv.assignPrivilege(med.post)
		recv.makeRequest(med.post)
		med.counters.Messages++

	case PassToken:
		recv, err := med.node(m.Receiver)
		if err != nil {
			return err
		}
		recv.holder = recv.ID
		recv.assignPrivilege(med.post)
		recv.makeRequest(med.post)
		med.counters.Messages++
		med.counters.TokenPasses++

	case ExitCS:
		n, err := med.node(m.Sender)
		if err != nil {
			return err
		}
		if !n.using {
			return fmt.Errorf("%w: node %d exited the CS without being inside", ErrInvariant, n.ID)
		}
		n.using = false
		n.assignPrivilege(med.post)
		n.makeRequest(med.post)
		med.counters.Serviced++

	case DoneNotify:
		if _, ok := med.done[m.Sender]; ok {
			return fmt.Errorf("%w: node %d reported done twice", ErrInvariant, m.Sender)
		}
		if _, err := med.node(m.Sender); err != nil {
			return err
		}
		med.done[m.Sender] = struct{}{}

	default:
		return fmt.Errorf("%w: unknown message kind %d", ErrInvariant, m.Kind)
	}

	if med.observer != nil {
		med.observer(med, m)
	}
	return nil
}

func (med *Mediator) trace(m Message) {
	if med.tracer == nil || m.Kind == DoneNotify {
		return
	}
	ev := TraceEvent{Time: med.clock(), Message: m}
	if m.Kind == RequestCS {
		// Traced before dispatch bumps the counter, so add this request.
		ev.Pending = med.counters.Requests - med.counters.Serviced + 1
	}
	med.tracer.Trace(ev)
}

// drain dispatches queued messages until the queue is empty. The virtual
// backend calls this synchronously after every timed event.
func (med *Mediator) drain() error {
	for {
		select {
		case m := <-med.queue:
			if err := med.dispatch(m); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

// run is the real-time dispatch loop: consume and dispatch until every
// node has reported done and the queue is empty, then release the done
// rendezvous of all nodes.
func (med *Mediator) run() error {
	for len(med.done) < len(med.nodes) || len(med.queue) > 0 {
		select {
		case m := <-med.queue:
			if err := med.dispatch(m); err != nil {
				return err
			}
		case <-time.After(pollInterval):
		}
	}
	return med.finish()
}

// finish verifies global quiescence and releases every driver blocked on
// its done rendezvous.
func (med *Mediator) finish() error {
	if len(med.done) != len(med.nodes) {
		return fmt.Errorf("%w: terminated with %d of %d nodes done",
			ErrInvariant, len(med.done), len(med.nodes))
	}
	if len(med.queue) > 0 {
		return fmt.Errorf("%w: terminated with %d messages still queued",
			ErrInvariant, len(med.queue))
	}
	for id := range med.done {
		med.nodes[id].done <- struct{}{}
	}
	return nil
}

// Counters returns the global statistics. Only meaningful once the run
// has terminated, or from inside an Observer.
func (med *Mediator) Counters() Counters { return med.counters }

// NodeCount returns the number of nodes in the simulation.
func (med *Mediator) NodeCount() int { return len(med.nodes) }

// QueueLen reports how many messages are waiting for dispatch.
func (med *Mediator) QueueLen() int { return len(med.queue) }

// Node returns the node with the given id, or nil. Callers outside the
// dispatch loop may only touch it through an Observer.
func (med *Mediator) Node(id NodeID) *Node { return med.nodes[id] }

// HolderEdges returns the unordered set of holder-pointer edges,
// excluding self loops. At quiescent instants this equals the initial
// tree edge set.
func (med *Mediator) HolderEdges() map[Edge]struct{} {
	edges := make(map[Edge]struct{}, len(med.nodes))
	for id, n := range med.nodes {
		if n.holder != id {
			edges[NewEdge(id, n.holder)] = struct{}{}
		}
	}
	return edges
}

// UsingCount returns how many nodes are currently inside the critical
// section. Anything above one is a mutual-exclusion violation.
func (med *Mediator) UsingCount() int {
	count := 0
	for _, n := range med.nodes {
		if n.using {
			count++
		}
	}
	return count
}

// SelfHolders returns the ids of nodes whose holder pointer is
// themselves. At quiescent instants exactly one node qualifies.
func (med *Mediator) SelfHolders() []NodeID {
	var ids []NodeID
	for id, n := range med.nodes {
		if n.holder == id {
			ids = append(ids, id)
		}
	}
	return ids
}
