package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"antventure.ai/internal/cli"
	"antventure.ai/internal/config"
	"antventure.ai/internal/persistence/archive"
	"antventure.ai/internal/persistence/indexdb"
	"antventure.ai/internal/report"
	"antventure.ai/internal/runner"
	"antventure.ai/internal/sim/calib"
	"antventure.ai/internal/sim/tuning"
)

func main() {
	var (
		settingsPath = flag.String("settings", "./configs/settings.yaml", "saved run settings (missing file: defaults)")
		saveSettings = flag.Bool("save_settings", false, "write the effective settings back to -settings")
		tuningPath   = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml (missing file: published defaults)")

		n         = flag.Int("n", 0, "colony size")
		nf        = flag.Int("nf", 0, "number of foragers")
		distance  = flag.Float64("distance", 0, "nest to source distance")
		timeSim   = flag.Int("time", 0, "simulated ticks")
		sugar     = flag.Float64("sugar", 0, "sugar concentration (0-1)")
		viscosity = flag.Float64("viscosity", 0, "viscosity (mPa·s)")
		terrain   = flag.Float64("terrain", 0, "terrain difficulty")
		strategy  = flag.String("strategy", "", "trophallaxis|social_bucket|both")
		policy    = flag.String("policy", "", "simple|complex")
		sims      = flag.Int("sims", 0, "repetitions")
		seed      = flag.Uint64("seed", 0, "rng seed (default: derived from the run id)")
		outDir    = flag.String("out", "", "output directory for the table, meta and chart")

		workers   = flag.Int("workers", 0, "repetitions simulated in parallel (default: ANTV_WORKERS or 4)")
		noChart   = flag.Bool("no_chart", false, "skip the PNG chart")
		logDir    = flag.String("log_dir", "", "write samples-<run>.jsonl.zst here")
		logFeeds  = flag.Bool("log_feeds", false, "also write feeds-<run>.jsonl.zst (needs -log_dir)")
		indexPath = flag.String("index", "", "record the run in this sqlite index")
		logLevel  = flag.String("log_level", "info", "debug|info|warn|error")
	)
	flag.Parse()

	logger := cli.NewLogger(os.Stderr, *logLevel)

	st, err := config.LoadSettings(*settingsPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load settings:", err)
		os.Exit(2)
	}
	var flagErr error
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "n":
			st.N = *n
		case "nf":
			st.Nf = *nf
		case "distance":
			st.Distance = *distance
		case "time":
			st.TimeSim = *timeSim
		case "sugar":
			st.Liquid, st.Value = config.LiquidSugar, *sugar
		case "viscosity":
			st.Liquid, st.Value = config.LiquidViscosity, *viscosity
		case "terrain":
			st.Terrain = *terrain
		case "sims":
			st.NSims = *sims
		case "seed":
			v := *seed
			st.Seed = &v
		case "out":
			st.OutputDir = *outDir
		case "strategy":
			st.Strategy, flagErr = calib.ParseStrategy(*strategy)
		case "policy":
			st.Policy, flagErr = calib.ParsePolicy(*policy)
		}
	})
	if flagErr != nil {
		fmt.Fprintln(os.Stderr, flagErr)
		os.Exit(2)
	}
	if isSet("sugar") && isSet("viscosity") {
		fmt.Fprintln(os.Stderr, calib.ErrBothLiquids)
		os.Exit(2)
	}

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintln(os.Stderr, "load tuning:", err)
			os.Exit(1)
		}
		tune = tuning.Defaults()
	}

	var idx *indexdb.SQLiteIndex
	if strings.TrimSpace(*indexPath) != "" {
		idx, err = indexdb.OpenSQLite(*indexPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "open index:", err)
			os.Exit(1)
		}
		defer idx.Close()
		if _, err := idx.UpsertTuning(tune); err != nil {
			logger.Warn("index: upsert tuning", "err", err)
		}
	}

	w := *workers
	if w <= 0 {
		w = cli.EnvInt("ANTV_WORKERS", 4)
	}
	run := runner.New(runner.Config{
		Tuning:     tune,
		Workers:    w,
		ArchiveDir: st.OutputDir,
		LogDir:     *logDir,
		LogFeeds:   *logFeeds,
		Index:      idx,
		Logger:     logger,
	})

	ctx, cancel := cli.SignalContext()
	defer cancel()

	p := st.Params()
	out, err := run.Run(ctx, runner.Request{Params: p, Seed: st.Seed}, runner.Hooks{})
	if err != nil {
		if errors.Is(err, calib.ErrConfig) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "run:", err)
		os.Exit(1)
	}
	if idx != nil {
		if err := idx.Sync(context.Background()); err != nil {
			logger.Warn("index sync", "err", err)
		}
	}

	if *saveSettings {
		if err := st.Save(*settingsPath); err != nil {
			logger.Warn("save settings", "err", err)
		} else {
			logger.Info("parameters saved", "path", *settingsPath)
		}
	}

	if _, err := os.Stat(*settingsPath); err == nil {
		if _, err := archive.CopyInto(st.OutputDir, *settingsPath); err != nil {
			logger.Warn("copy settings", "err", err)
		}
	}

	sum := report.Summarize(out.Result.Rows, p.N)
	if !*noChart {
		if err := writeChart(out.TablePath, sum, p, logger); err != nil {
			logger.Warn("chart", "err", err)
		}
	}

	fmt.Println(out.Result.Message)
	fmt.Printf("run=%s seed=%d rows=%d digest=%s\n", out.RunID, out.Result.Seed, len(out.Result.Rows), out.Result.Digest)
	fmt.Printf("table=%s\n", out.TablePath)
	for _, h := range report.TimeToHalf(out.Result.Rows, p.N) {
		state := "reached"
		if !h.Reached {
			state = "not reached by"
		}
		fmt.Printf("colony %d: half fed %s t=%d\n", h.Repetition, state, h.Time)
	}
}

func isSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

// writeChart renders <stamp>.png next to the table and records it in the meta file.
func writeChart(tablePath string, sum report.Summary, p calib.Params, logger *slog.Logger) error {
	if tablePath == "" {
		return nil
	}
	pngPath := strings.TrimSuffix(tablePath, filepath.Ext(tablePath)) + ".png"
	f, err := os.Create(pngPath)
	if err != nil {
		return err
	}
	title := fmt.Sprintf("%s, N=%d, Nf=%d, D=%s", p.Strategy, p.N, p.Nf, strconv.FormatFloat(p.Distance, 'g', -1, 64))
	if err := report.RenderChart(f, sum, title); err != nil {
		_ = f.Close()
		_ = os.Remove(pngPath)
		if errors.Is(err, report.ErrTooFewPoints) {
			logger.Info("chart skipped", "reason", err)
			return nil
		}
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	metaPath := archive.MetaPath(tablePath)
	meta, err := archive.ReadMeta(metaPath)
	if err != nil {
		return err
	}
	meta.Chart = filepath.Base(pngPath)
	return archive.WriteMeta(metaPath, meta)
}
