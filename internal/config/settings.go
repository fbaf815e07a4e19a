// Package config holds the persisted run form and sweep grid definitions.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"antventure.ai/internal/sim/calib"
)

//go:embed settings.default.yaml
var defaultSettingsYAML []byte

// Liquid selects how Settings.Value is interpreted.
const (
	LiquidSugar     = "sugar"
	LiquidViscosity = "viscosity"
)

var ErrLiquidKind = errors.New("liquid must be 'sugar' or 'viscosity'")

// Settings is the saved run form: everything needed to reproduce a run plus where its
// outputs go.
type Settings struct {
	OutputDir string `yaml:"output_dir"`

	NSims    int     `yaml:"n_sims"`
	N        int     `yaml:"n"`
	Nf       int     `yaml:"nf"`
	Distance float64 `yaml:"distance"`
	TimeSim  int     `yaml:"time_sim"`

	// Value is a sugar fraction (0-1) or a viscosity in mPa·s depending on Liquid.
	Liquid string  `yaml:"liquid"`
	Value  float64 `yaml:"value"`

	Terrain  float64        `yaml:"terrain"`
	Strategy calib.Strategy `yaml:"strategy"`
	Policy   calib.Policy   `yaml:"policy"`
	Seed     *uint64        `yaml:"seed,omitempty"`
}

func DefaultSettings() Settings {
	var s Settings
	if err := yaml.Unmarshal(defaultSettingsYAML, &s); err != nil {
		panic(fmt.Sprintf("config: embedded settings: %v", err))
	}
	s.Normalize()
	return s
}

// LoadSettings reads path over the embedded defaults. An empty path or a missing file
// yields the defaults.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()
	if strings.TrimSpace(path) == "" {
		return s, nil
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return s, err
	}
	if err := yaml.Unmarshal(b, &s); err != nil {
		return s, fmt.Errorf("settings.yaml: %w", err)
	}
	s.Normalize()
	if err := s.Validate(); err != nil {
		return s, fmt.Errorf("settings.yaml: %w", err)
	}
	return s, nil
}

// Save writes s atomically.
func (s Settings) Save(path string) error {
	b, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (s *Settings) Normalize() {
	s.Liquid = strings.ToLower(strings.TrimSpace(s.Liquid))
	if s.Liquid == "" {
		s.Liquid = LiquidSugar
	}
	if s.NSims <= 0 {
		s.NSims = 1
	}
	if strings.TrimSpace(s.OutputDir) == "" {
		s.OutputDir = "."
	}
}

// Validate checks the form itself. Model errors (sugar too high, bad colony) are left
// to calib so every surface reports them the same way.
func (s Settings) Validate() error {
	if s.Liquid != LiquidSugar && s.Liquid != LiquidViscosity {
		return fmt.Errorf("%w, got %q", ErrLiquidKind, s.Liquid)
	}
	return nil
}

// Params converts the form into simulation parameters.
func (s Settings) Params() calib.Params {
	p := calib.Params{
		N:        s.N,
		Nf:       s.Nf,
		Distance: s.Distance,
		TimeSim:  s.TimeSim,
		Strategy: s.Strategy,
		Terrain:  s.Terrain,
		Policy:   s.Policy,
		NSims:    s.NSims,
	}
	v := s.Value
	if s.Liquid == LiquidViscosity {
		p.Viscosity = &v
	} else {
		p.Sugar = &v
	}
	return p
}
