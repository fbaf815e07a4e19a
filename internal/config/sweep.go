package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"antventure.ai/internal/sim/calib"
	"antventure.ai/internal/sim/sweep"
)

//go:embed sweep.default.yaml
var defaultSweepYAML []byte

// Sweep is the on-disk form of a sweep grid.
type Sweep struct {
	ColonySizes   []int            `yaml:"colony_sizes"`
	ForagerCounts []int            `yaml:"forager_counts"`
	Distances     []float64        `yaml:"distances"`
	Terrains      []float64        `yaml:"terrains"`
	Sugars        []float64        `yaml:"sugars"`
	Strategies    []calib.Strategy `yaml:"strategies"`
	Policy        calib.Policy     `yaml:"policy"`
	TimeSim       int              `yaml:"time_sim"`
	NSims         int              `yaml:"n_sims"`
	Seed          uint64           `yaml:"seed"`
}

func DefaultSweep() Sweep {
	var s Sweep
	if err := yaml.Unmarshal(defaultSweepYAML, &s); err != nil {
		panic(fmt.Sprintf("config: embedded sweep: %v", err))
	}
	return s
}

// LoadSweep reads a grid file. Axes present in the file replace the default axis as a
// whole; absent axes keep the default values.
func LoadSweep(path string) (Sweep, error) {
	s := DefaultSweep()
	if strings.TrimSpace(path) == "" {
		return s, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return s, err
	}
	// yaml.v3 appends into existing slices, so decode into a zero value and merge.
	var f Sweep
	if err := yaml.Unmarshal(b, &f); err != nil {
		return s, fmt.Errorf("sweep.yaml: %w", err)
	}
	s.merge(f)
	if err := s.Grid().Validate(); err != nil {
		return s, fmt.Errorf("sweep.yaml: %w", err)
	}
	return s, nil
}

func (s *Sweep) merge(f Sweep) {
	if len(f.ColonySizes) > 0 {
		s.ColonySizes = f.ColonySizes
	}
	if len(f.ForagerCounts) > 0 {
		s.ForagerCounts = f.ForagerCounts
	}
	if len(f.Distances) > 0 {
		s.Distances = f.Distances
	}
	if len(f.Terrains) > 0 {
		s.Terrains = f.Terrains
	}
	if len(f.Sugars) > 0 {
		s.Sugars = f.Sugars
	}
	if len(f.Strategies) > 0 {
		s.Strategies = f.Strategies
	}
	if f.Policy != 0 {
		s.Policy = f.Policy
	}
	if f.TimeSim > 0 {
		s.TimeSim = f.TimeSim
	}
	if f.NSims > 0 {
		s.NSims = f.NSims
	}
	if f.Seed != 0 {
		s.Seed = f.Seed
	}
}

func (s Sweep) Grid() sweep.Grid {
	return sweep.Grid{
		ColonySizes:  s.ColonySizes,
		ForagerCount: s.ForagerCounts,
		Distances:    s.Distances,
		Terrains:     s.Terrains,
		Sugars:       s.Sugars,
		Strategies:   s.Strategies,
		Policy:       s.Policy,
		TimeSim:      s.TimeSim,
		NSims:        s.NSims,
	}
}
