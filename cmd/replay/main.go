package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"antventure.ai/internal/persistence/archive"
	persistlog "antventure.ai/internal/persistence/log"
	"antventure.ai/internal/sim/colony"
	"antventure.ai/internal/sim/montecarlo"
)

// replay re-simulates an archived run from its meta file and checks that the table (and
// optionally the sample log) still match bit for bit.
func main() {
	var (
		tablePath = flag.String("table", "", "path to an archived <stamp>.csv")
		samples   = flag.String("samples", "", "samples-<run>.jsonl.zst to check as well (optional)")
		workers   = flag.Int("workers", 4, "repetitions simulated in parallel")
	)
	flag.Parse()

	if *tablePath == "" {
		fmt.Fprintln(os.Stderr, "missing -table")
		os.Exit(2)
	}

	meta, err := archive.ReadMeta(archive.MetaPath(*tablePath))
	if err != nil {
		fmt.Fprintln(os.Stderr, "read meta:", err)
		os.Exit(1)
	}
	f, err := os.Open(*tablePath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open table:", err)
		os.Exit(1)
	}
	table, err := archive.ReadCSV(f)
	_ = f.Close()
	if err != nil {
		fmt.Fprintln(os.Stderr, "read table:", err)
		os.Exit(1)
	}

	fmt.Printf("run=%s seed=%d strategy=%s policy=%s n=%d sims=%d rows=%d\n",
		meta.RunID, meta.Seed, meta.Params.Strategy, meta.Params.Policy, meta.Params.N, meta.Params.NSims, len(table))

	if got := montecarlo.Digest(table); got != meta.Digest {
		fmt.Fprintf(os.Stderr, "table digest %s does not match meta %s\n", got, meta.Digest)
		os.Exit(1)
	}

	tu := meta.Tuning
	res, err := montecarlo.Run(context.Background(), meta.Params, montecarlo.Options{
		Seed:    meta.Seed,
		Workers: *workers,
		Tuning:  &tu,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "simulate:", err)
		os.Exit(1)
	}
	if res.Digest != meta.Digest {
		if i, err := firstDiff(table, res.Rows); err != nil {
			fmt.Fprintf(os.Stderr, "row %d: %v\n", i, err)
		}
		fmt.Fprintf(os.Stderr, "replay digest %s does not match %s\n", res.Digest, meta.Digest)
		os.Exit(1)
	}

	if strings.TrimSpace(*samples) != "" {
		entries, err := persistlog.ReadSamples(*samples)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read samples:", err)
			os.Exit(1)
		}
		logged := make([]colony.Sample, 0, len(entries))
		for _, e := range entries {
			if e.RunID != meta.RunID {
				fmt.Fprintf(os.Stderr, "sample log belongs to run %s\n", e.RunID)
				os.Exit(1)
			}
			logged = append(logged, e.Sample)
		}
		// The log is in completion order; the table is in repetition order.
		if got := montecarlo.Digest(sortedRows(logged)); got != meta.Digest {
			fmt.Fprintf(os.Stderr, "sample log digest %s does not match %s\n", got, meta.Digest)
			os.Exit(1)
		}
	}
	fmt.Printf("replay ok: digest=%s\n", meta.Digest)
}

func firstDiff(a, b []colony.Sample) (int, error) {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i, fmt.Errorf("archived %+v, replayed %+v", a[i], b[i])
		}
	}
	if len(a) != len(b) {
		return n, errors.New("row count differs")
	}
	return -1, nil
}
