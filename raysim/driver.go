package raysim

import (
	"time"

	"github.com/distcodep7/raysim/workload"
)

/*
* driver is the real-time control loop for one node: stall for the
* inter-arrival time, request the critical section, block until the
* state machine grants the token, hold the section for the execution
* time, exit. Repeated once per workload sample. The driver never
* touches the node's algorithm state directly; it only produces
* messages and waits on the rendezvous channels.
 */
type driver struct {
	node    *Node
	med     *Mediator
	samples []workload.Sample
	start   <-chan struct{}
}

func (d *driver) run() {
	<-d.start

	for _, s := range d.samples {
		time.Sleep(s.InterArrival)

		// Self-addressed: the mediator treats REQUEST_CS as from the
		// sender to itself, so there is no need to read the holder
		// pointer from outside the dispatch loop.
		d.med.post(NewMessage(RequestCS, d.node.ID, d.node.ID))
		<-d.node.token

		time.Sleep(s.Execution)
		d.med.post(NewMessage(ExitCS, d.node.ID, d.node.ID))
	}

	d.med.post(NewMessage(DoneNotify, d.node.ID, d.node.ID))
	<-d.node.done
}
