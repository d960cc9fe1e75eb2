package raysim

/*
* Node holds the per-node variables of Raymond's algorithm: the holder
* pointer, the FIFO request queue and the using/asked flags. The three
* rules below are applied only by the mediator's dispatch loop, so no
* per-node locking is needed; the driver communicates with the state
* machine exclusively through the message queue and the token/done
* rendezvous channels.
 */
type Node struct {
	ID NodeID

	holder   NodeID
	requests []NodeID
	using    bool
	asked    bool

	// token is posted when the node both holds the token and has pulled
	// its own id from the front of the request queue. done is posted by
	// the mediator during global termination.
	token chan struct{}
	done  chan struct{}

	// grant is invoked at the moment the node may enter the critical
	// section. The real-time backend posts the token channel; the
	// virtual-time backend schedules the exit event instead.
	grant func()
}

func newNode(id NodeID) *Node {
	n := &Node{
		ID:    id,
		token: make(chan struct{}, 1),
		done:  make(chan struct{}, 1),
	}
	n.grant = n.signalToken
	return n
}

func (n *Node) signalToken() {
	select {
	case n.token <- struct{}{}:
	default:
	}
}

// Holder returns the current holder pointer: the neighbor on the path
// toward the token, or the node itself when it holds the token.
func (n *Node) Holder() NodeID { return n.holder }

// Using reports whether the node is currently inside the critical section.
func (n *Node) Using() bool { return n.using }

// Asked reports whether a request toward the holder is outstanding.
func (n *Node) Asked() bool { return n.asked }

// QueueLen returns the number of pending entries in the request queue.
func (n *Node) QueueLen() int { return len(n.requests) }

// enqueue appends x to the request queue.
func (n *Node) enqueue(x NodeID) {
	n.requests = append(n.requests, x)
}

// assignPrivilege moves an idle token toward the head of the request
// queue. When the head is the node itself it enters the critical section;
// otherwise a PASS_TOKEN is emitted to the new holder.
func (n *Node) assignPrivilege(send func(Message)) {
	if n.holder != n.ID || n.using || len(n.requests) == 0 {
		return
	}
	n.holder = n.requests[0]
	n.requests = n.requests[1:]
	n.asked = false
	if n.holder == n.ID {
		n.using = true
		n.grant()
		return
	}
	send(NewMessage(PassToken, n.ID, n.holder))
}

// makeRequest asks the holder for the token when there is pending demand
// and no request is already outstanding. The asked flag keeps at most one
// PASS_REQUEST in flight per node.
func (n *Node) makeRequest(send func(Message)) {
	if n.holder == n.ID || len(n.requests) == 0 || n.asked {
		return
	}
	send(NewMessage(PassRequest, n.ID, n.holder))
	n.asked = true
}
