// Package sweep runs a factorial grid of colony and liquid parameters and extracts the
// time each repetition needs to feed half the colony.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"antventure.ai/internal/report"
	"antventure.ai/internal/sim/calib"
	"antventure.ai/internal/sim/colony"
	"antventure.ai/internal/sim/montecarlo"
	"antventure.ai/internal/sim/tuning"
)

// Grid lists the values tried on each axis. Empty axes are invalid.
type Grid struct {
	ColonySizes  []int
	ForagerCount []int
	Distances    []float64
	Terrains     []float64
	Sugars       []float64
	Strategies   []calib.Strategy

	Policy  calib.Policy
	TimeSim int
	NSims   int
}

var ErrEmptyAxis = errors.New("sweep: grid axis is empty")

func (g Grid) Validate() error {
	axes := []struct {
		name string
		n    int
	}{
		{"colony_sizes", len(g.ColonySizes)},
		{"forager_counts", len(g.ForagerCount)},
		{"distances", len(g.Distances)},
		{"terrains", len(g.Terrains)},
		{"sugars", len(g.Sugars)},
		{"strategies", len(g.Strategies)},
	}
	for _, a := range axes {
		if a.n == 0 {
			return fmt.Errorf("%w: %s", ErrEmptyAxis, a.name)
		}
	}
	return nil
}

// Size is the number of combinations.
func (g Grid) Size() int {
	return len(g.ColonySizes) * len(g.ForagerCount) * len(g.Distances) *
		len(g.Terrains) * len(g.Sugars) * len(g.Strategies)
}

// Combinations expands the grid with the last axis (strategy) varying fastest.
func (g Grid) Combinations() []calib.Params {
	out := make([]calib.Params, 0, g.Size())
	for _, n := range g.ColonySizes {
		for _, nf := range g.ForagerCount {
			for _, d := range g.Distances {
				for _, tr := range g.Terrains {
					for _, sg := range g.Sugars {
						for _, st := range g.Strategies {
							sugar := sg
							out = append(out, calib.Params{
								N: n, Nf: nf, Distance: d, TimeSim: g.TimeSim,
								Sugar: &sugar, Strategy: st, Terrain: tr,
								Policy: g.Policy, NSims: g.NSims,
							})
						}
					}
				}
			}
		}
	}
	return out
}

// Row is one repetition of one combination. A combination rejected by calibration
// yields a single row with Err set.
type Row struct {
	Combination int
	Params      calib.Params

	Repetition int
	Time       int
	Fed        float64
	Reached    bool

	Err error
}

type Options struct {
	Seed    uint64
	Workers int
	Tuning  *tuning.Tuning
	Logger  *slog.Logger
	// OnRow sees rows in output order as soon as their combination finishes.
	OnRow func(Row) error
}

// combinationSeed spreads combination indexes over the seed space so neighbouring
// combinations do not share streams.
func combinationSeed(base uint64, i int) uint64 {
	return base ^ (uint64(i+1) * 0x9E3779B97F4A7C15)
}

// Run executes every combination in order. Configuration errors are recorded per row;
// cancellation and OnRow errors stop the sweep.
func Run(ctx context.Context, g Grid, opts Options) ([]Row, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	combos := g.Combinations()
	start := time.Now()
	var out []Row
	for i, p := range combos {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		rows, err := runOne(ctx, i, p, opts)
		if err != nil {
			return out, err
		}
		for _, r := range rows {
			if opts.OnRow != nil {
				if err := opts.OnRow(r); err != nil {
					return out, err
				}
			}
		}
		out = append(out, rows...)
		log.Debug("sweep combination", "index", i, "of", len(combos), "n", p.N, "nf", p.Nf, "strategy", p.Strategy.String())
	}
	log.Info("sweep done", "combinations", len(combos), "rows", len(out), "elapsed", time.Since(start))
	return out, nil
}

func runOne(ctx context.Context, i int, p calib.Params, opts Options) ([]Row, error) {
	res, err := montecarlo.Run(ctx, p, montecarlo.Options{
		Seed:    combinationSeed(opts.Seed, i),
		Workers: opts.Workers,
		Tuning:  opts.Tuning,
		Logger:  opts.Logger,
	})
	if errors.Is(err, calib.ErrConfig) {
		return []Row{{Combination: i, Params: p, Err: err}}, nil
	}
	if err != nil {
		return nil, err
	}
	return extract(i, p, res.Rows), nil
}

func extract(i int, p calib.Params, rows []colony.Sample) []Row {
	type key struct{ rep, t int }
	fed := make(map[key]float64, len(rows))
	for _, r := range rows {
		fed[key{r.Repetition, r.Time}] = r.Fed
	}
	half := report.TimeToHalf(rows, p.N)
	out := make([]Row, 0, len(half))
	for _, h := range half {
		out = append(out, Row{
			Combination: i,
			Params:      p,
			Repetition:  h.Repetition,
			Time:        h.Time,
			Fed:         fed[key{h.Repetition, h.Time}],
			Reached:     h.Reached,
		})
	}
	return out
}
