package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"path/filepath"
	"strings"
	"time"

	"antventure.ai/internal/cli"
	"antventure.ai/internal/persistence/indexdb"
	"antventure.ai/internal/runner"
	"antventure.ai/internal/sim/tuning"
	"antventure.ai/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml (missing file: published defaults)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite run index")
		workers    = flag.Int("workers", 0, "repetitions simulated in parallel per run (default: ANTV_WORKERS or 4)")
		maxRuns    = flag.Int("max_runs", 4, "runs executing at once; further requests wait")
		logFeeds   = flag.Bool("log_feeds", false, "also write feeds-<run>.jsonl.zst per run")
		logLevel   = flag.String("log_level", "info", "debug|info|warn|error")
	)
	flag.Parse()

	logger := cli.NewLogger(os.Stderr, *logLevel)

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintln(os.Stderr, "load tuning:", err)
			os.Exit(1)
		}
		logger.Info("tuning not found; using defaults", "path", *tuningPath)
		tune = tuning.Defaults()
	}

	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(*dataDir, "index", "runs.sqlite"))
		if err != nil {
			fmt.Fprintln(os.Stderr, "open index:", err)
			os.Exit(1)
		}
		defer idx.Close()
		if digest, err := idx.UpsertTuning(tune); err != nil {
			logger.Warn("index: upsert tuning", "err", err)
		} else {
			logger.Debug("tuning indexed", "digest", digest)
		}
	}

	w := *workers
	if w <= 0 {
		w = cli.EnvInt("ANTV_WORKERS", 4)
	}
	run := runner.New(runner.Config{
		Tuning:        tune,
		Workers:       w,
		MaxConcurrent: *maxRuns,
		ArchiveDir:    filepath.Join(*dataDir, "results"),
		LogDir:        filepath.Join(*dataDir, "logs"),
		LogFeeds:      *logFeeds,
		Index:         idx,
		Logger:        logger,
	})

	ctx, cancel := cli.SignalContext()
	defer cancel()

	wsSrv := ws.NewServer(run, logger)
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(rw, run.Metrics(), idx)
	})
	mux.HandleFunc("/v1/ws", wsSrv.Handler())
	mux.HandleFunc("/v1/run", wsSrv.RunHandler())
	mux.HandleFunc("/v1/schema/run", ws.SchemaHandler())
	if cli.EnvBool("ANTV_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()) {
		runs := wsSrv.RunsHandler()
		mux.HandleFunc("/v1/runs", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			runs(rw, r)
		})
	} else {
		logger.Info("run listing disabled (ANTV_ENABLE_ADMIN_HTTP=false)")
	}
	if cli.EnvBool("ANTV_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Info("listening", "addr", *addr, "workers", w, "max_runs", *maxRuns, "index", idx != nil)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("ListenAndServe", "err", err)
		os.Exit(1)
	}
}

func writeMetrics(rw http.ResponseWriter, m runner.Metrics, idx *indexdb.SQLiteIndex) {
	fmt.Fprintf(rw, "# HELP antventure_runs_total Simulation runs by outcome.\n")
	fmt.Fprintf(rw, "# TYPE antventure_runs_total counter\n")
	fmt.Fprintf(rw, "antventure_runs_total{outcome=%q} %d\n", "started", m.Started)
	fmt.Fprintf(rw, "antventure_runs_total{outcome=%q} %d\n", "completed", m.Completed)
	fmt.Fprintf(rw, "antventure_runs_total{outcome=%q} %d\n", "failed", m.Failed)

	fmt.Fprintf(rw, "# HELP antventure_runs_active Runs currently simulating.\n")
	fmt.Fprintf(rw, "# TYPE antventure_runs_active gauge\n")
	fmt.Fprintf(rw, "antventure_runs_active %d\n", m.Active)

	fmt.Fprintf(rw, "# HELP antventure_rows_total Sample rows produced.\n")
	fmt.Fprintf(rw, "# TYPE antventure_rows_total counter\n")
	fmt.Fprintf(rw, "antventure_rows_total %d\n", m.Rows)

	if idx == nil {
		return
	}
	s := idx.Stats()
	fmt.Fprintf(rw, "# HELP antventure_index_queue_depth Index writer backlog.\n")
	fmt.Fprintf(rw, "# TYPE antventure_index_queue_depth gauge\n")
	fmt.Fprintf(rw, "antventure_index_queue_depth %d\n", s.QueueDepth)
	fmt.Fprintf(rw, "antventure_index_queue_capacity %d\n", s.QueueCapacity)

	fmt.Fprintf(rw, "# HELP antventure_index_dropped_total Index records dropped because the queue was full.\n")
	fmt.Fprintf(rw, "# TYPE antventure_index_dropped_total counter\n")
	fmt.Fprintf(rw, "antventure_index_dropped_total{kind=%q} %d\n", "run", s.DropRunTotal)
	fmt.Fprintf(rw, "antventure_index_dropped_total{kind=%q} %d\n", "sample", s.DropSampleTotal)

	fmt.Fprintf(rw, "# HELP antventure_index_write_errors_total Failed index writes.\n")
	fmt.Fprintf(rw, "# TYPE antventure_index_write_errors_total counter\n")
	fmt.Fprintf(rw, "antventure_index_write_errors_total %d\n", s.WriteErrTotal)
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}
