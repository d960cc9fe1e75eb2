// Package workload generates the synthetic request timing that drives the
// simulation: per-node sequences of exponentially distributed inter-arrival
// and execution times, scaled to whole milliseconds.
package workload

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/iti/rngstream"
)

// ErrInvalidLoad reports an unrecognized load level.
var ErrInvalidLoad = errors.New("invalid load level")

// Load selects the simulated demand intensity. It fixes the service rate
// mu relative to the arrival rate lambda and the node count.
type Load int

const (
	LoadLow Load = iota
	LoadMed
	LoadHigh
)

// lambda is the per-node arrival rate. Fixed at 1, as in Raymond's
// saturation experiments.
const lambda = 1

func (l Load) String() string {
	switch l {
	case LoadLow:
		return "LOW"
	case LoadMed:
		return "MED"
	case LoadHigh:
		return "HIGH"
	}
	return fmt.Sprintf("Load(%d)", int(l))
}

// ParseLoad accepts the textual load names, case-insensitively.
func ParseLoad(s string) (Load, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return LoadLow, nil
	case "med", "medium":
		return LoadMed, nil
	case "high":
		return LoadHigh, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidLoad, s)
}

// ParseLevel maps the interactive menu choices 1..3 to a load.
func ParseLevel(n int) (Load, error) {
	switch n {
	case 1:
		return LoadLow, nil
	case 2:
		return LoadMed, nil
	case 3:
		return LoadHigh, nil
	}
	return 0, fmt.Errorf("%w: %d", ErrInvalidLoad, n)
}

// Mu returns the service-rate parameter for n nodes under this load:
// floor(n*lambda/0.1) for LOW, /0.5 for MED, /0.8 for HIGH.
func (l Load) Mu(n int) int {
	switch l {
	case LoadLow:
		return int(float64(n*lambda) / 0.1)
	case LoadMed:
		return int(float64(n*lambda) / 0.5)
	case LoadHigh:
		return int(float64(n*lambda) / 0.8)
	}
	return 0
}

// Sample is one simulated request cycle: the stall before the node asks
// for the critical section and the time it spends inside.
type Sample struct {
	InterArrival time.Duration
	Execution    time.Duration
}

// Seed resets the package-wide RNG master seed. Streams created
// afterwards are a pure function of the seed and their creation order,
// which is what makes runs replayable.
func Seed(seed uint64) {
	rngstream.SetRngStreamMasterSeed(seed)
}

// NewStream creates the RNG stream for one node. Streams are named so a
// run's draws can be attributed in rngstream diagnostics.
func NewStream(node int) *rngstream.RngStream {
	return rngstream.New(fmt.Sprintf("node-%d", node))
}

// Generate draws k inter-arrival/execution pairs for one node in a
// simulation of n nodes under the given load.
func Generate(rng *rngstream.RngStream, n, k int, load Load) []Sample {
	mu := load.Mu(n)
	samples := make([]Sample, k)
	for i := range samples {
		samples[i] = Sample{
			InterArrival: draw(rng, lambda),
			Execution:    draw(rng, float64(mu)),
		}
	}
	return samples
}

// draw samples an exponential with the given rate by inverse transform,
// scaled by 100 to whole milliseconds. Draws that round to zero are
// repeated so every duration is strictly positive.
func draw(rng *rngstream.RngStream, rate float64) time.Duration {
	for {
		u := rng.RandU01()
		ms := int(math.Round(100 * (-1 / rate) * math.Log(u)))
		if ms > 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
}
