package trace

import (
	"fmt"
	"io"
	"os"

	"github.com/distcodep7/raysim/raysim"
)

// WriteSummary prints the final statistics block for one run, preceded
// by a separator line so consecutive runs stay readable on a shared
// stream.
func WriteSummary(w io.Writer, res raysim.Result) {
	fmt.Fprintln(w, "************************")
	writeStats(w, res)
}

// AppendSummary appends the statistics block, without the separator,
// to the named log file.
func AppendSummary(path string, res raysim.Result) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	writeStats(f, res)
	return f.Close()
}

func writeStats(w io.Writer, res raysim.Result) {
	c := res.Counters
	fmt.Fprintf(w, "Load: %s\n", res.Load)
	fmt.Fprintf(w, "Number of nodes: %d\n", res.Nodes)
	fmt.Fprintf(w, "Number of critical section: %d\n", c.Requests)
	fmt.Fprintf(w, "Number of critical sections serviced: %d\n", c.Serviced)
	fmt.Fprintf(w, "Number of messages: %d\n", c.Messages)
	fmt.Fprintf(w, "Number of messages per request: %g\n", res.MessagesPerRequest())
	fmt.Fprintf(w, "Number of token passes: %d\n", c.TokenPasses)
	fmt.Fprintf(w, "Number of token passes per critical section: %g\n", res.TokenPassesPerRequest())
}
