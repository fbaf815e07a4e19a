package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"antventure.ai/internal/persistence/indexdb"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (default: <data>/index/runs.sqlite)")
	limit := fs.Int("limit", 20, "result limit")
	runID := fs.String("run", "", "run id (samples)")
	_ = fs.Parse(args)

	q := "runs"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "index", "runs.sqlite")
	}
	db, err := indexdb.OpenReadOnly(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx := context.Background()
	switch q {
	case "runs":
		runs, err := indexdb.QueryRuns(ctx, db, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		for _, r := range runs {
			_ = printJSON(r)
		}

	case "samples":
		if strings.TrimSpace(*runID) == "" {
			fmt.Fprintln(os.Stderr, "missing -run")
			os.Exit(2)
		}
		rows, err := indexdb.QuerySamples(ctx, db, *runID)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		if len(rows) == 0 {
			fmt.Fprintln(os.Stderr, "no samples for run", *runID)
			os.Exit(1)
		}
		for _, r := range rows {
			_ = printJSON(r)
		}

	default:
		fmt.Fprintln(os.Stderr, "unknown query:", q, "(want runs|samples)")
		os.Exit(2)
	}
}
