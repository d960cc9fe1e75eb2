// Package config loads run parameters from a YAML file or from an
// interactive prompt and validates them before the simulation starts.
package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/distcodep7/raysim/workload"
)

// Config is the file and prompt representation of one run's
// parameters.
type Config struct {
	Nodes    int    `yaml:"nodes"`
	Load     string `yaml:"load"`
	Seed     uint64 `yaml:"seed"`
	Requests int    `yaml:"requests"`
	Virtual  bool   `yaml:"virtual"`
	LogFile  string `yaml:"log_file"`
}

// Default returns the baseline configuration before flags, file, or
// prompt overrides.
func Default() Config {
	return Config{
		Requests: 500,
		Load:     "low",
		LogFile:  "simRaymondLog.txt",
	}
}

// Load reads a YAML configuration file over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ParseLoad resolves the textual load level.
func (c Config) ParseLoad() (workload.Load, error) {
	return workload.ParseLoad(c.Load)
}

// Validate rejects parameter combinations the simulation cannot run.
func (c Config) Validate() error {
	if c.Nodes < 1 {
		return fmt.Errorf("number of nodes must be at least 1, got %d", c.Nodes)
	}
	if c.Requests < 1 {
		return fmt.Errorf("number of requests must be at least 1, got %d", c.Requests)
	}
	if _, err := c.ParseLoad(); err != nil {
		return err
	}
	return nil
}

// Prompt fills in the node count and load level interactively,
// re-asking until the load is one of the three levels.
func Prompt(r io.Reader, w io.Writer, cfg Config) (Config, error) {
	br := bufio.NewReader(r)

	fmt.Fprintln(w, "---------------------------")
	fmt.Fprintln(w, "-       Simulation        -")
	fmt.Fprintln(w, "---------------------------")
	fmt.Fprintln(w)

	fmt.Fprint(w, "Please enter the number of nodes: ")
	line, err := readLine(br)
	if err != nil {
		return Config{}, err
	}
	n, err := strconv.Atoi(line)
	if err != nil {
		return Config{}, fmt.Errorf("invalid node count %q", line)
	}
	cfg.Nodes = n

	for {
		fmt.Fprintln(w, "1. LOW")
		fmt.Fprintln(w, "2. MED")
		fmt.Fprintln(w, "3. HIGH")
		fmt.Fprintln(w)
		fmt.Fprint(w, "Please enter the load: ")
		line, err := readLine(br)
		if err != nil {
			return Config{}, err
		}
		level, err := strconv.Atoi(line)
		if err == nil {
			if load, perr := workload.ParseLevel(level); perr == nil {
				cfg.Load = strings.ToLower(load.String())
				return cfg, nil
			}
		}
		fmt.Fprintln(w, "\nInvalid load, please renter load value")
		fmt.Fprintln(w)
	}
}

func readLine(br *bufio.Reader) (string, error) {
	line, err := br.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}
