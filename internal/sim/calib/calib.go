// Package calib turns the physical description of a foraging experiment (liquid
// viscosity or sugar concentration, terrain difficulty, nest-source distance) into the
// integer transit/grab times and carried volumes used by the phase engine.
package calib

import (
	"errors"
	"fmt"
	"math"

	"antventure.ai/internal/sim/tuning"
)

// ErrConfig is wrapped by every parameter error. Callers use errors.Is(err, ErrConfig)
// to tell a rejected configuration apart from an aborted run.
var ErrConfig = errors.New("configuration error")

var (
	ErrNoLiquid         = fmt.Errorf("%w: please introduce a value for either viscosity (mPa·s) or sugar concentration (0-1)", ErrConfig)
	ErrBothLiquids      = fmt.Errorf("%w: viscosity and sugar concentration are mutually exclusive, please choose one", ErrConfig)
	ErrViscosityTooHigh = fmt.Errorf("%w: viscosity (mPa·s) is too high, please choose a lower value", ErrConfig)
	ErrSugarTooHigh     = fmt.Errorf("%w: sugar concentration is too high, please choose a lower value [0-1]", ErrConfig)
	ErrSugarRange       = fmt.Errorf("%w: sugar concentration must be in range [0-1]", ErrConfig)
	ErrNegativeLiquid   = fmt.Errorf("%w: viscosity (mPa·s) must be non-negative", ErrConfig)
	ErrUnknownStrategy  = fmt.Errorf("%w: behaviour is not defined", ErrConfig)
	ErrUnknownPolicy    = fmt.Errorf("%w: please choose a feeding policy: 'complex' or 'simple'", ErrConfig)
	ErrColony           = fmt.Errorf("%w: invalid colony", ErrConfig)
)

// Params is the full input of one simulation invocation.
type Params struct {
	N        int     `json:"n" yaml:"n"`
	Nf       int     `json:"nf" yaml:"nf"`
	Distance float64 `json:"distance" yaml:"distance"`
	TimeSim  int     `json:"time_sim" yaml:"time_sim"`

	// Exactly one of Viscosity (mPa·s) and Sugar (fraction 0-1) must be set.
	Viscosity *float64 `json:"viscosity,omitempty" yaml:"viscosity,omitempty"`
	Sugar     *float64 `json:"sugar,omitempty" yaml:"sugar,omitempty"`

	Strategy Strategy `json:"strategy" yaml:"strategy"`
	Terrain  float64  `json:"terrain" yaml:"terrain"`
	Policy   Policy   `json:"policy" yaml:"policy"`
	NSims    int      `json:"n_sims" yaml:"n_sims"`
}

// Constants are derived once per run and never change during it.
type Constants struct {
	Viscosity float64 `json:"viscosity_pa_s"`

	TrophaGrab   int     `json:"t_t"`
	TrophaVolume float64 `json:"v_t"`
	BucketGrab   int     `json:"t_sb"`
	BucketVolume float64 `json:"v_sb"`
	BothGrab     int     `json:"t_both"`
	BothVolume   float64 `json:"v_both"`

	DistTropha int `json:"dist_t"`
	DistBucket int `json:"dist_sb"`
	DistBoth   int `json:"dist_both"`

	BucketSpeed float64 `json:"speed_sb"`
	DropProb    float64 `json:"p_drop_sb"`
}

// SugarToViscosity converts a sugar fraction into viscosity in Pa·s.
func SugarToViscosity(sugar float64) float64 {
	return (0.3074 * math.Exp(7.29*sugar)) / 1000
}

// maxTransit bounds the bucket transit time so it fits an int on every platform.
const maxTransit = math.MaxInt32

// Validate checks everything that does not depend on the liquid model.
func (p Params) Validate() error {
	switch {
	case p.N <= 0:
		return fmt.Errorf("%w: colony size must be positive, got %d", ErrColony, p.N)
	case p.Nf <= 0 || p.Nf > p.N:
		return fmt.Errorf("%w: forager count must be in (0,%d], got %d", ErrColony, p.N, p.Nf)
	case p.Distance < 0 || math.IsNaN(p.Distance) || math.IsInf(p.Distance, 0):
		return fmt.Errorf("%w: distance must be a non-negative number", ErrColony)
	case p.TimeSim < 0:
		return fmt.Errorf("%w: simulation time must be non-negative", ErrColony)
	case p.Terrain < 0 || math.IsNaN(p.Terrain) || math.IsInf(p.Terrain, 0):
		return fmt.Errorf("%w: terrain difficulty must be a non-negative number", ErrColony)
	case p.NSims < 1:
		return fmt.Errorf("%w: number of simulations must be at least 1", ErrColony)
	case p.Distance*(1+p.Terrain) > maxTransit:
		return fmt.Errorf("%w: distance %g is too long for terrain %g", ErrColony, p.Distance, p.Terrain)
	}
	if !p.Strategy.Valid() {
		return ErrUnknownStrategy
	}
	if !p.Policy.Valid() {
		return ErrUnknownPolicy
	}
	return nil
}

// Calibrate validates p and derives the run constants. It is pure: identical inputs
// give bit-identical outputs.
func Calibrate(p Params, tu tuning.Tuning) (Constants, error) {
	var c Constants
	if err := p.Validate(); err != nil {
		return c, err
	}

	var (
		visco   float64
		tooHigh error
	)
	switch {
	case p.Viscosity != nil && p.Sugar != nil:
		return c, ErrBothLiquids
	case p.Viscosity != nil:
		if !finite(*p.Viscosity) || *p.Viscosity < 0 {
			return c, ErrNegativeLiquid
		}
		visco = *p.Viscosity / 1000
		tooHigh = ErrViscosityTooHigh
	case p.Sugar != nil:
		if !finite(*p.Sugar) || *p.Sugar < 0 || *p.Sugar > 1 {
			return c, ErrSugarRange
		}
		visco = SugarToViscosity(*p.Sugar)
		tooHigh = ErrSugarTooHigh
	default:
		return c, ErrNoLiquid
	}

	tt := math.Floor(float64(tu.TrophaGrab) - 1.4*visco*1000)
	vt := round1((1 / (31.377 + 7043.306*visco)) * tt * 10)
	if !(tt >= 0 && vt >= 0) {
		return c, tooHigh
	}

	c.Viscosity = visco
	c.TrophaGrab = int(tt)
	c.TrophaVolume = vt
	c.BucketGrab = tu.BucketGrab
	c.BucketVolume = tu.BucketVolume
	c.BothGrab = c.BucketGrab + c.TrophaGrab
	c.BothVolume = c.BucketVolume + c.TrophaVolume

	// Trophallaxis foragers walk unencumbered at speed 1; terrain only slows bucket carriers.
	c.BucketSpeed = 1 / (1 + p.Terrain)
	c.DropProb = tu.DropBase * (1 + p.Terrain)
	c.DistTropha = int(math.Floor(p.Distance))
	c.DistBucket = int(math.Floor(p.Distance / c.BucketSpeed))
	c.DistBoth = c.DistBucket
	return c, nil
}

// Grab is the number of ticks a forager of strategy s spends loading at the source.
func (c Constants) Grab(s Strategy) int {
	switch s {
	case Trophallaxis:
		return c.TrophaGrab
	case SocialBucket:
		return c.BucketGrab
	default:
		return c.BothGrab
	}
}

// Volume is the payload a forager of strategy s leaves the source with.
func (c Constants) Volume(s Strategy) float64 {
	switch s {
	case Trophallaxis:
		return c.TrophaVolume
	case SocialBucket:
		return c.BucketVolume
	default:
		return c.BothVolume
	}
}

// Transit is the one-way nest-source travel time for an informed forager of strategy s.
func (c Constants) Transit(s Strategy) int {
	switch s {
	case Trophallaxis:
		return c.DistTropha
	case SocialBucket:
		return c.DistBucket
	default:
		return c.DistBoth
	}
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}
