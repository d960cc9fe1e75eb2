package trace

import (
	"fmt"

	"github.com/DistributedClocks/GoVector/govec"

	"github.com/distcodep7/raysim/raysim"
)

// VectorLog keeps one GoVector clock per node and logs every dispatched
// message against it, producing per-node log files that ShiViz can
// merge into a space-time diagram. Sends and receives are paired
// through PrepareSend/UnpackReceive so the vector clocks order
// correctly across nodes.
type VectorLog struct {
	logs map[raysim.NodeID]*govec.GoLog
}

// NewVectorLog initializes one GoVector log per node. Files are named
// <prefix>-node-<id>-Log.txt by GoVector.
func NewVectorLog(prefix string, nodes int) *VectorLog {
	v := &VectorLog{logs: make(map[raysim.NodeID]*govec.GoLog, nodes)}
	for i := 1; i <= nodes; i++ {
		id := raysim.NodeID(i)
		pid := fmt.Sprintf("node-%d", i)
		v.logs[id] = govec.InitGoVector(pid, fmt.Sprintf("%s-%s", prefix, pid), govec.GetDefaultConfig())
	}
	return v
}

// Log records one dispatched event. Requests and exits are local
// events on the acting node; request and token forwards are a
// send/receive pair between sender and receiver.
func (v *VectorLog) Log(ev raysim.TraceEvent) {
	m := ev.Message
	opts := govec.GetDefaultLogOptions()
	switch m.Kind {
	case raysim.RequestCS:
		v.logs[m.Sender].LogLocalEvent("requested the CS", opts)
	case raysim.ExitCS:
		v.logs[m.Sender].LogLocalEvent("exited the CS", opts)
	case raysim.PassRequest, raysim.PassToken:
		buf := v.logs[m.Sender].PrepareSend(
			fmt.Sprintf("%s to node-%d", m.Kind, m.Receiver), m.ID, opts)
		var id string
		v.logs[m.Receiver].UnpackReceive(
			fmt.Sprintf("%s from node-%d", m.Kind, m.Sender), buf, &id, opts)
	}
}
