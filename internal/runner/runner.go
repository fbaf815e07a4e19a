// Package runner executes one simulation request end to end: it assigns a run id and
// seed, streams rows to the configured sinks, and archives the finished table.
package runner

import (
	"context"
	"encoding/binary"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"antventure.ai/internal/persistence/archive"
	"antventure.ai/internal/persistence/indexdb"
	persistlog "antventure.ai/internal/persistence/log"
	"antventure.ai/internal/sim/calib"
	"antventure.ai/internal/sim/colony"
	"antventure.ai/internal/sim/montecarlo"
	"antventure.ai/internal/sim/tuning"
)

type Config struct {
	Tuning tuning.Tuning

	// Workers is the default repetition parallelism; requests may ask for fewer.
	Workers int
	// MaxConcurrent bounds simultaneous runs. 0 means unlimited.
	MaxConcurrent int

	// ArchiveDir receives `<stamp>.csv` + meta for each finished run. Empty disables.
	ArchiveDir string
	// LogDir receives `samples-<id>.jsonl.zst` (and feed logs with LogFeeds). Empty disables.
	LogDir   string
	LogFeeds bool

	Index  *indexdb.SQLiteIndex
	Logger *slog.Logger

	// Now is stubbed in tests.
	Now func() time.Time
}

type Request struct {
	Params  calib.Params
	Seed    *uint64
	Workers int
	// RunID is generated when empty.
	RunID string
}

type Accepted struct {
	RunID        string
	Seed         uint64
	RowsExpected int
	Constants    calib.Constants
}

type Hooks struct {
	OnAccepted func(Accepted)
	OnSample   func(colony.Sample)
}

type Outcome struct {
	RunID     string
	Result    *montecarlo.Result
	TablePath string
	SampleLog string
	FeedLog   string
}

type Metrics struct {
	Started   uint64
	Completed uint64
	Failed    uint64
	Rows      uint64
	Active    int64
}

type Runner struct {
	cfg Config
	log *slog.Logger
	sem chan struct{}

	started   atomic.Uint64
	completed atomic.Uint64
	failed    atomic.Uint64
	rows      atomic.Uint64
	active    atomic.Int64
}

func New(cfg Config) *Runner {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	r := &Runner{cfg: cfg, log: cfg.Logger}
	if cfg.MaxConcurrent > 0 {
		r.sem = make(chan struct{}, cfg.MaxConcurrent)
	}
	return r
}

func (r *Runner) Tuning() tuning.Tuning        { return r.cfg.Tuning }
func (r *Runner) Index() *indexdb.SQLiteIndex { return r.cfg.Index }

func (r *Runner) Metrics() Metrics {
	return Metrics{
		Started:   r.started.Load(),
		Completed: r.completed.Load(),
		Failed:    r.failed.Load(),
		Rows:      r.rows.Load(),
		Active:    r.active.Load(),
	}
}

// NewRunID returns a fresh run identifier.
func NewRunID() string { return uuid.NewString() }

// SeedFromRunID derives a seed from the random bits of a UUID run id.
func SeedFromRunID(id string) uint64 {
	u, err := uuid.Parse(id)
	if err != nil {
		return uint64(time.Now().UnixNano())
	}
	return binary.LittleEndian.Uint64(u[:8]) ^ binary.LittleEndian.Uint64(u[8:])
}

// Run blocks until the simulation completes, fails, or ctx is cancelled. Configuration
// errors are returned before OnAccepted fires.
func (r *Runner) Run(ctx context.Context, req Request, hooks Hooks) (Outcome, error) {
	out := Outcome{RunID: req.RunID}
	if out.RunID == "" {
		out.RunID = NewRunID()
	}
	tu := r.cfg.Tuning
	k, err := calib.Calibrate(req.Params, tu)
	if err != nil {
		r.failed.Add(1)
		return out, err
	}

	if r.sem != nil {
		select {
		case r.sem <- struct{}{}:
			defer func() { <-r.sem }()
		case <-ctx.Done():
			r.failed.Add(1)
			return out, ctx.Err()
		}
	}
	r.started.Add(1)
	r.active.Add(1)
	defer r.active.Add(-1)

	seed := SeedFromRunID(out.RunID)
	if req.Seed != nil {
		seed = *req.Seed
	}
	workers := r.cfg.Workers
	if req.Workers > 0 && req.Workers < workers {
		workers = req.Workers
	}
	log := r.log.With("run_id", out.RunID)

	var (
		samples *persistlog.SampleLogger
		feeds   *persistlog.FeedLogger
	)
	if r.cfg.LogDir != "" {
		samples = persistlog.NewSampleLogger(r.cfg.LogDir, out.RunID)
		defer samples.Close()
		if r.cfg.LogFeeds {
			feeds = persistlog.NewFeedLogger(r.cfg.LogDir, out.RunID)
			defer feeds.Close()
		}
	}

	if hooks.OnAccepted != nil {
		hooks.OnAccepted(Accepted{
			RunID:        out.RunID,
			Seed:         seed,
			RowsExpected: req.Params.NSims * montecarlo.RowsPerRepetition(req.Params.TimeSim, tu.SampleEveryTicks),
			Constants:    k,
		})
	}

	var sinkErr atomic.Bool
	opts := montecarlo.Options{
		Seed:    seed,
		Workers: workers,
		Tuning:  &tu,
		Logger:  log,
		OnSample: func(s colony.Sample) {
			r.rows.Add(1)
			if samples != nil {
				if err := samples.WriteSample(s); err != nil && sinkErr.CompareAndSwap(false, true) {
					log.Warn("sample log write failed", "err", err)
				}
			}
			_ = r.cfg.Index.WriteSample(out.RunID, s)
			if hooks.OnSample != nil {
				hooks.OnSample(s)
			}
		},
	}
	if feeds != nil {
		opts.OnFeed = func(rep int, ev colony.FeedEvent) {
			if err := feeds.WriteFeed(rep, ev); err != nil && sinkErr.CompareAndSwap(false, true) {
				log.Warn("feed log write failed", "err", err)
			}
		}
	}

	res, err := montecarlo.Run(ctx, req.Params, opts)
	if err != nil {
		r.failed.Add(1)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			log.Info("run cancelled")
		} else {
			log.Warn("run failed", "err", err)
		}
		return out, err
	}
	out.Result = res
	if samples != nil {
		out.SampleLog = samples.Path()
	}
	if feeds != nil {
		out.FeedLog = feeds.Path()
	}

	if r.cfg.ArchiveDir != "" {
		path, err := archive.ArchiveRun(r.cfg.ArchiveDir, out.RunID, res, tu, r.cfg.Now())
		if err != nil {
			log.Warn("archive run", "err", err)
		} else {
			out.TablePath = path
		}
	}
	r.cfg.Index.RecordRun(indexdb.RunRecord{
		RunID:     out.RunID,
		CreatedAt: r.cfg.Now(),
		Params:    res.Params,
		Constants: res.Constants,
		Seed:      res.Seed,
		Digest:    res.Digest,
		Rows:      len(res.Rows),
		Message:   res.Message,
		TablePath: out.TablePath,
	})
	r.completed.Add(1)
	return out, nil
}
