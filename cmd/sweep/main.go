package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"antventure.ai/internal/cli"
	"antventure.ai/internal/config"
	"antventure.ai/internal/persistence/archive"
	"antventure.ai/internal/sim/sweep"
	"antventure.ai/internal/sim/tuning"
)

func main() {
	var (
		gridPath   = flag.String("grid", "./configs/sweep.yaml", "sweep grid (missing file: published grid)")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml (missing file: published defaults)")
		outDir     = flag.String("out", "./data/sweeps", "output directory")
		seed       = flag.Uint64("seed", 0, "base seed (overrides the grid file)")
		workers    = flag.Int("workers", 0, "repetitions simulated in parallel (default: ANTV_WORKERS or 4)")
		logLevel   = flag.String("log_level", "info", "debug|info|warn|error")
	)
	flag.Parse()

	logger := cli.NewLogger(os.Stderr, *logLevel)

	path := *gridPath
	if _, err := os.Stat(path); os.IsNotExist(err) {
		logger.Info("grid not found; using the published grid", "path", path)
		path = ""
	}
	grid, err := config.LoadSweep(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load grid:", err)
		os.Exit(2)
	}
	if *seed != 0 {
		grid.Seed = *seed
	}
	if grid.Seed == 0 {
		grid.Seed = uint64(time.Now().UnixNano())
	}

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintln(os.Stderr, "load tuning:", err)
			os.Exit(1)
		}
		tune = tuning.Defaults()
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		fmt.Fprintln(os.Stderr, "mkdir:", err)
		os.Exit(1)
	}
	outPath := filepath.Join(*outDir, "sweep_"+time.Now().Format(archive.StampLayout)+".csv")
	f, err := os.Create(outPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "create:", err)
		os.Exit(1)
	}
	defer f.Close()
	cw, err := sweep.NewCSVWriter(f)
	if err != nil {
		fmt.Fprintln(os.Stderr, "write:", err)
		os.Exit(1)
	}

	w := *workers
	if w <= 0 {
		w = cli.EnvInt("ANTV_WORKERS", 4)
	}
	ctx, cancel := cli.SignalContext()
	defer cancel()

	g := grid.Grid()
	logger.Info("sweep start", "combinations", g.Size(), "n_sims", g.NSims, "time_sim", g.TimeSim, "seed", grid.Seed, "out", outPath)
	var rejected int
	rows, err := sweep.Run(ctx, g, sweep.Options{
		Seed:    grid.Seed,
		Workers: w,
		Tuning:  &tune,
		Logger:  logger,
		OnRow: func(r sweep.Row) error {
			if r.Err != nil {
				rejected++
				logger.Warn("combination rejected", "index", r.Combination, "err", r.Err)
			}
			return cw.Write(r)
		},
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "sweep:", err)
		os.Exit(1)
	}
	fmt.Printf("rows=%d rejected=%d out=%s\n", len(rows), rejected, outPath)
}
