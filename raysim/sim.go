package raysim

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/distcodep7/raysim/workload"
)

// ErrInvalidConfig reports unusable simulation parameters.
var ErrInvalidConfig = errors.New("invalid simulation parameters")

// DefaultRequests is the number of critical sections each node performs
// unless overridden.
const DefaultRequests = 500

// Config describes one simulation run.
type Config struct {
	Nodes    int
	Load     workload.Load
	Seed     uint64
	Requests int

	// Virtual selects the deterministic single-threaded backend driven
	// by a virtual clock instead of goroutines and wall-clock sleeps.
	Virtual bool

	// Tracer receives every dispatched event; nil disables tracing.
	Tracer Tracer

	// Observer runs after every dispatch, between dispatches; the queue
	// may still hold undelivered messages.
	Observer Observer
}

func (c Config) validate() error {
	if c.Nodes < 1 {
		return fmt.Errorf("%w: node count %d", ErrInvalidConfig, c.Nodes)
	}
	if c.Requests < 1 {
		return fmt.Errorf("%w: request count %d", ErrInvalidConfig, c.Requests)
	}
	switch c.Load {
	case workload.LoadLow, workload.LoadMed, workload.LoadHigh:
	default:
		return fmt.Errorf("%w: load %d", ErrInvalidConfig, int(c.Load))
	}
	return nil
}

// Result carries the final statistics of a completed run.
type Result struct {
	Load     workload.Load
	Nodes    int
	Counters Counters
}

// MessagesPerRequest is the headline metric of Raymond's paper: under
// saturated demand it approaches 4.
func (r Result) MessagesPerRequest() float64 {
	if r.Counters.Requests == 0 {
		return 0
	}
	return float64(r.Counters.Messages) / float64(r.Counters.Requests)
}

// TokenPassesPerRequest relates token movement to serviced demand.
func (r Result) TokenPassesPerRequest() float64 {
	if r.Counters.Requests == 0 {
		return 0
	}
	return float64(r.Counters.TokenPasses) / float64(r.Counters.Requests)
}

/*
* Controller wires the pieces of one run together: it builds the tree
* and the mediator, precomputes every node's workload, and executes the
* run on the selected backend. A Controller is single-use.
 */
type Controller struct {
	cfg      Config
	med      *Mediator
	nodes    map[NodeID]*Node
	schedule map[NodeID][]workload.Sample
}

// New validates the configuration and constructs a ready-to-run
// simulation.
func New(cfg Config) (*Controller, error) {
	if cfg.Requests == 0 {
		cfg.Requests = DefaultRequests
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	nodes := newTree(cfg.Nodes)
	med := newMediator(nodes, cfg.Tracer, cfg.Observer)

	// One stream per node, created in id order from the master seed, so
	// identical seeds reproduce identical workloads.
	workload.Seed(cfg.Seed)
	schedule := make(map[NodeID][]workload.Sample, cfg.Nodes)
	for i := 1; i <= cfg.Nodes; i++ {
		rng := workload.NewStream(i)
		schedule[NodeID(i)] = workload.Generate(rng, cfg.Nodes, cfg.Requests, cfg.Load)
	}

	return &Controller{cfg: cfg, med: med, nodes: nodes, schedule: schedule}, nil
}

// Mediator exposes the run's mediator, mainly for observers in tests.
func (c *Controller) Mediator() *Mediator { return c.med }

// Run executes the simulation to global quiescence and returns the
// final statistics.
func (c *Controller) Run() (Result, error) {
	var err error
	if c.cfg.Virtual {
		err = c.runVirtual()
	} else {
		err = c.runReal()
	}
	if err != nil {
		return Result{}, err
	}
	res := Result{Load: c.cfg.Load, Nodes: c.cfg.Nodes, Counters: c.med.Counters()}

	want := c.cfg.Nodes * c.cfg.Requests
	if res.Counters.Requests != want || res.Counters.Serviced != want {
		return Result{}, fmt.Errorf("%w: %d requests and %d serviced, want %d each",
			ErrInvariant, res.Counters.Requests, res.Counters.Serviced, want)
	}
	return res, nil
}

// runReal starts one goroutine per node driver plus the mediator loop,
// releases the start latch once everything is wired, and waits for
// termination.
func (c *Controller) runReal() error {
	start := make(chan struct{})
	var wg sync.WaitGroup

	for id, n := range c.nodes {
		d := &driver{node: n, med: c.med, samples: c.schedule[id], start: start}
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.run()
		}()
	}

	logrus.WithFields(logrus.Fields{
		"nodes": c.cfg.Nodes,
		"load":  c.cfg.Load.String(),
	}).Debug("releasing start latch")

	errCh := make(chan error, 1)
	go func() { errCh <- c.med.run() }()
	close(start)

	if err := <-errCh; err != nil {
		// Drivers may still be parked on their rendezvous; the run is
		// already lost, so report rather than wait.
		return err
	}
	wg.Wait()
	return nil
}
