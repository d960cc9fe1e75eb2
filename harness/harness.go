// Package harness provides run-time invariant checking and trace
// capture for simulation runs, used by the --check flag and by tests.
package harness

import (
	"fmt"
	"sync"
	"time"

	"github.com/distcodep7/raysim/raysim"
)

// Checker verifies the algorithm's safety invariants after every
// dispatch; the holder checks apply only when the queue is empty.
// Violations are collected
// rather than panicking so a run can report all of them.
type Checker struct {
	nodes int
	edges map[raysim.Edge]struct{}

	mu         sync.Mutex
	dispatches int
	violations []string
}

// NewChecker builds a checker for an n-node tree.
func NewChecker(n int) *Checker {
	return &Checker{nodes: n, edges: raysim.TreeEdges(n)}
}

// Observe is installed as the run's observer. The mediator's queue may
// hold undelivered messages, so the holder graph is only required to
// match the tree when the queue is empty.
func (c *Checker) Observe(med *raysim.Mediator, m raysim.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dispatches++

	if using := med.UsingCount(); using > 1 {
		c.violationLocked("%d nodes in the critical section after %s", using, m.Kind)
	}
	if med.QueueLen() > 0 {
		return
	}

	holders := med.SelfHolders()
	if len(holders) != 1 {
		c.violationLocked("%d token holders at quiescence after %s, want 1", len(holders), m.Kind)
	}
	got := med.HolderEdges()
	if len(got) != len(c.edges) {
		c.violationLocked("holder graph has %d edges, tree has %d", len(got), len(c.edges))
		return
	}
	for e := range got {
		if _, ok := c.edges[e]; !ok {
			c.violationLocked("holder edge %v-%v is not a tree edge", e[0], e[1])
		}
	}
}

func (c *Checker) violationLocked(format string, args ...any) {
	c.violations = append(c.violations, fmt.Sprintf(format, args...))
}

// Dispatches reports how many events the checker has observed.
func (c *Checker) Dispatches() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dispatches
}

// Violations returns a copy of every recorded violation.
func (c *Checker) Violations() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.violations))
	copy(out, c.violations)
	return out
}

// Err returns an error describing the first violation, or nil.
func (c *Checker) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.violations) == 0 {
		return nil
	}
	return fmt.Errorf("invariant violated: %s (%d total)", c.violations[0], len(c.violations))
}

// Collector retains every traced event in memory for later queries.
// It implements raysim.Tracer.
type Collector struct {
	mu    sync.RWMutex
	trace []raysim.TraceEvent
}

// NewCollector returns an empty collector.
func NewCollector() *Collector {
	return &Collector{trace: make([]raysim.TraceEvent, 0, 1024)}
}

// Trace appends one dispatched event.
func (c *Collector) Trace(ev raysim.TraceEvent) {
	c.mu.Lock()
	c.trace = append(c.trace, ev)
	c.mu.Unlock()
}

// Snapshot returns a copy of the trace so far, safe for analysis while
// the run continues.
func (c *Collector) Snapshot() []raysim.TraceEvent {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]raysim.TraceEvent, len(c.trace))
	copy(out, c.trace)
	return out
}

// Count returns how many events match pred.
func (c *Collector) Count(pred func(raysim.TraceEvent) bool) int {
	n := 0
	for _, ev := range c.Snapshot() {
		if pred(ev) {
			n++
		}
	}
	return n
}

// WaitFor polls the trace until pred holds over a snapshot or the
// timeout expires.
func (c *Collector) WaitFor(pred func([]raysim.TraceEvent) bool, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if pred(c.Snapshot()) {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(5 * time.Millisecond)
	}
}
