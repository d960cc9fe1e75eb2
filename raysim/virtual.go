package raysim

import (
	"math"
	"time"

	"github.com/iti/evt/evtm"
	"github.com/iti/evt/vrtime"

	"github.com/distcodep7/raysim/workload"
)

// The virtual backend replays the exact same state machine and dispatch
// table single-threaded on a virtual clock: stall and execution delays
// become scheduled events, the mediator queue is drained synchronously
// after every timed event, and trace timestamps are virtual
// milliseconds. Two runs with the same parameters and seed therefore
// produce byte-identical traces.

type virtualRun struct {
	med    *Mediator
	evtMgr *evtm.EventManager
	err    error
}

func (vr *virtualRun) fail(err error) {
	if err != nil && vr.err == nil {
		vr.err = err
	}
}

type virtualDriver struct {
	sim     *virtualRun
	node    *Node
	samples []workload.Sample
	next    int
}

func offset(d time.Duration) vrtime.Time {
	return vrtime.SecondsToTime(d.Seconds())
}

func (c *Controller) runVirtual() error {
	evtMgr := evtm.New()
	vr := &virtualRun{med: c.med, evtMgr: evtMgr}
	c.med.clock = func() int64 {
		return int64(math.Round(evtMgr.CurrentSeconds() * 1000))
	}

	// Initial events are scheduled in id order so equal-timestamp ties
	// resolve the same way on every run.
	for i := 1; i <= c.cfg.Nodes; i++ {
		id := NodeID(i)
		d := &virtualDriver{sim: vr, node: c.nodes[id], samples: c.schedule[id]}
		c.nodes[id].grant = d.onGrant
		if len(d.samples) == 0 {
			c.med.post(NewMessage(DoneNotify, id, id))
			continue
		}
		evtMgr.Schedule(d, nil, requestEvent, offset(d.samples[0].InterArrival))
	}
	vr.fail(c.med.drain())

	evtMgr.Run(math.MaxFloat64)

	if vr.err != nil {
		return vr.err
	}
	return c.med.finish()
}

// onGrant fires from assignPrivilege while the mediator drains; the node
// has just entered the critical section, so its exit is scheduled one
// execution time from now.
func (d *virtualDriver) onGrant() {
	d.sim.evtMgr.Schedule(d, nil, exitEvent, offset(d.samples[d.next].Execution))
}

func requestEvent(evtMgr *evtm.EventManager, cxt any, data any) any {
	d := cxt.(*virtualDriver)
	if d.sim.err != nil {
		return nil
	}
	d.sim.med.post(NewMessage(RequestCS, d.node.ID, d.node.ID))
	d.sim.fail(d.sim.med.drain())
	return nil
}

func exitEvent(evtMgr *evtm.EventManager, cxt any, data any) any {
	d := cxt.(*virtualDriver)
	if d.sim.err != nil {
		return nil
	}
	d.sim.med.post(NewMessage(ExitCS, d.node.ID, d.node.ID))

	d.next++
	if d.next < len(d.samples) {
		evtMgr.Schedule(d, nil, requestEvent, offset(d.samples[d.next].InterArrival))
	} else {
		d.sim.med.post(NewMessage(DoneNotify, d.node.ID, d.node.ID))
	}
	d.sim.fail(d.sim.med.drain())
	return nil
}
