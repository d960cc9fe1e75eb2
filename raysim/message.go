package raysim

import "github.com/google/uuid"

// NodeID identifies a node in the simulated tree. IDs start at 1 and are
// stable for the lifetime of a run.
type NodeID int

// Kind enumerates the four message types from Raymond's paper plus the
// mediator-internal done notification.
type Kind int

const (
	RequestCS Kind = iota
	PassRequest
	PassToken
	ExitCS
	DoneNotify
)

func (k Kind) String() string {
	switch k {
	case RequestCS:
		return "REQUEST_CS"
	case PassRequest:
		return "PASS_REQUEST"
	case PassToken:
		return "PASS_TOKEN"
	case ExitCS:
		return "EXIT_CS"
	case DoneNotify:
		return "DONE"
	}
	return "UNKNOWN"
}

// Message is an immutable record carried on the mediator queue. REQUEST_CS
// and EXIT_CS are self-directed: the mediator acts on the sender and ignores
// the receiver field.
type Message struct {
	ID       string
	Kind     Kind
	Sender   NodeID
	Receiver NodeID
}

// NewMessage builds a message with a fresh id.
func NewMessage(kind Kind, sender, receiver NodeID) Message {
	return Message{ID: uuid.NewString(), Kind: kind, Sender: sender, Receiver: receiver}
}
