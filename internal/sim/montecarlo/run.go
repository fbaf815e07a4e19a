// Package montecarlo runs independent repetitions of the colony model and collects the
// sampled trajectories into one table.
package montecarlo

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"antventure.ai/internal/sim/calib"
	"antventure.ai/internal/sim/colony"
	"antventure.ai/internal/sim/tuning"
)

// OKMessage is reported with every successful run.
const OKMessage = "No errors found"

type Options struct {
	// Seed selects the random streams. Repetition i always draws from stream
	// (Seed, i) so results do not depend on Workers.
	Seed uint64

	// Workers bounds the number of repetitions simulated at once. <= 1 runs them
	// sequentially.
	Workers int

	// Tuning overrides the model constants. Nil uses tuning.Defaults().
	Tuning *tuning.Tuning

	// OnSample observes each row as soon as it is produced. Calls are serialized;
	// with several workers rows of different repetitions interleave.
	OnSample func(colony.Sample)

	// OnFeed, if set, is attached to every repetition's engine. It is invoked from
	// worker goroutines and must be safe for concurrent use when Workers > 1.
	OnFeed func(rep int, ev colony.FeedEvent)

	Logger *slog.Logger
}

type Result struct {
	Params    calib.Params    `json:"params"`
	Constants calib.Constants `json:"constants"`
	Seed      uint64          `json:"seed"`
	Rows      []colony.Sample `json:"rows"`
	Message   string          `json:"message"`
	Digest    string          `json:"digest"`
	Elapsed   time.Duration   `json:"elapsed_ns"`
}

// RowsPerRepetition is the number of samples one repetition yields.
func RowsPerRepetition(timeSim, every int) int {
	if timeSim < 0 || every <= 0 {
		return 0
	}
	return timeSim/every + 1
}

// Run calibrates p and simulates p.NSims repetitions. A configuration error returns a nil
// Result; cancelling ctx aborts between ticks and returns ctx.Err().
func Run(ctx context.Context, p calib.Params, opts Options) (*Result, error) {
	tu := tuning.Defaults()
	if opts.Tuning != nil {
		tu = *opts.Tuning
	}
	if err := tu.Validate(); err != nil {
		return nil, err
	}
	k, err := calib.Calibrate(p, tu)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()
	logger.Debug("run start", "strategy", p.Strategy, "policy", p.Policy, "n", p.N, "nf", p.Nf, "n_sims", p.NSims, "seed", opts.Seed)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	per := RowsPerRepetition(p.TimeSim, tu.SampleEveryTicks)
	reps := make([][]colony.Sample, p.NSims)

	var emitMu sync.Mutex
	emit := func(s colony.Sample) {
		if opts.OnSample == nil {
			return
		}
		emitMu.Lock()
		opts.OnSample(s)
		emitMu.Unlock()
	}

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > p.NSims {
		workers = p.NSims
	}

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	jobs := make(chan int, p.NSims)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				rows, err := repetition(ctx, p, k, tu, opts, i, per, emit)
				if err != nil {
					errOnce.Do(func() {
						firstErr = err
						cancel()
					})
					continue
				}
				reps[i] = rows
			}
		}()
	}
	for i := 0; i < p.NSims; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	if firstErr != nil {
		logger.Info("run aborted", "err", firstErr)
		return nil, firstErr
	}

	res := &Result{
		Params:    p,
		Constants: k,
		Seed:      opts.Seed,
		Rows:      make([]colony.Sample, 0, per*p.NSims),
		Message:   OKMessage,
	}
	for _, rows := range reps {
		res.Rows = append(res.Rows, rows...)
	}
	res.Digest = Digest(res.Rows)
	res.Elapsed = time.Since(start)
	logger.Info("run finished", "rows", len(res.Rows), "digest", res.Digest[:12], "elapsed", res.Elapsed)
	return res, nil
}

func repetition(ctx context.Context, p calib.Params, k calib.Constants, tu tuning.Tuning, opts Options, rep, per int, emit func(colony.Sample)) ([]colony.Sample, error) {
	col := colony.New(p.N, p.Nf, p.Strategy)
	eng := colony.NewEngine(col, k, tu, p.Policy, colony.NewRand(opts.Seed, uint64(rep)))
	if opts.OnFeed != nil {
		eng.OnFeed = func(ev colony.FeedEvent) { opts.OnFeed(rep, ev) }
	}

	rows := make([]colony.Sample, 0, per)
	record := func(t int) {
		s := col.Sample(t, rep)
		rows = append(rows, s)
		emit(s)
	}
	record(0)
	for t := 1; t <= p.TimeSim; t++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		eng.Step()
		if t%tu.SampleEveryTicks == 0 {
			record(t)
		}
	}
	return rows, nil
}
