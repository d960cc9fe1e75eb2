package workload

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseLoad(t *testing.T) {
	cases := []struct {
		in   string
		want Load
	}{
		{"low", LoadLow},
		{"LOW", LoadLow},
		{"med", LoadMed},
		{"medium", LoadMed},
		{"high", LoadHigh},
		{" High ", LoadHigh},
	}
	for _, c := range cases {
		got, err := ParseLoad(c.in)
		if err != nil {
			t.Errorf("ParseLoad(%q) returned error: %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("ParseLoad(%q) = %v, want %v", c.in, got, c.want)
		}
	}

	if _, err := ParseLoad("extreme"); !errors.Is(err, ErrInvalidLoad) {
		t.Errorf("ParseLoad(extreme) error = %v, want ErrInvalidLoad", err)
	}
}

func TestParseLevel(t *testing.T) {
	for level, want := range map[int]Load{1: LoadLow, 2: LoadMed, 3: LoadHigh} {
		got, err := ParseLevel(level)
		if err != nil {
			t.Fatalf("ParseLevel(%d) returned error: %v", level, err)
		}
		if got != want {
			t.Errorf("ParseLevel(%d) = %v, want %v", level, got, want)
		}
	}
	for _, level := range []int{0, 4, -1} {
		if _, err := ParseLevel(level); !errors.Is(err, ErrInvalidLoad) {
			t.Errorf("ParseLevel(%d) error = %v, want ErrInvalidLoad", level, err)
		}
	}
}

func TestMu(t *testing.T) {
	cases := []struct {
		load  Load
		nodes int
		want  int
	}{
		{LoadLow, 13, 130},
		{LoadMed, 13, 26},
		{LoadHigh, 13, 16},
		{LoadLow, 1, 10},
		{LoadHigh, 8, 10},
	}
	for _, c := range cases {
		if got := c.load.Mu(c.nodes); got != c.want {
			t.Errorf("%v.Mu(%d) = %d, want %d", c.load, c.nodes, got, c.want)
		}
	}
}

func TestLoadString(t *testing.T) {
	for load, want := range map[Load]string{LoadLow: "LOW", LoadMed: "MED", LoadHigh: "HIGH"} {
		if got := load.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", int(load), got, want)
		}
	}
}

func TestGenerateReproducible(t *testing.T) {
	const nodes, k = 5, 50

	Seed(42)
	first := Generate(NewStream(1), nodes, k, LoadHigh)

	Seed(42)
	second := Generate(NewStream(1), nodes, k, LoadHigh)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("same seed produced different samples (-first +second):\n%s", diff)
	}
}

func TestGeneratePositiveDurations(t *testing.T) {
	Seed(7)
	samples := Generate(NewStream(1), 10, 200, LoadLow)
	if len(samples) != 200 {
		t.Fatalf("got %d samples, want 200", len(samples))
	}
	for i, s := range samples {
		if s.InterArrival <= 0 {
			t.Fatalf("sample %d has non-positive inter-arrival %v", i, s.InterArrival)
		}
		if s.Execution <= 0 {
			t.Fatalf("sample %d has non-positive execution %v", i, s.Execution)
		}
	}
}

func TestStreamsAreIndependent(t *testing.T) {
	Seed(42)
	a := Generate(NewStream(1), 5, 20, LoadMed)
	b := Generate(NewStream(2), 5, 20, LoadMed)

	if diff := cmp.Diff(a, b); diff == "" {
		t.Error("streams for different nodes produced identical samples")
	}
}
