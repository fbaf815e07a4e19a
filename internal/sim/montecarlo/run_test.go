package montecarlo

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"antventure.ai/internal/sim/calib"
	"antventure.ai/internal/sim/colony"
	"antventure.ai/internal/sim/tuning"
)

func baseParams() calib.Params {
	sugar := 0.1
	return calib.Params{
		N: 20, Nf: 5, Distance: 20, TimeSim: 50,
		Sugar:    &sugar,
		Strategy: calib.Trophallaxis,
		Policy:   calib.Simple,
		NSims:    1,
	}
}

func TestRun_SingleRepetition(t *testing.T) {
	res, err := Run(context.Background(), baseParams(), Options{Seed: 1})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Message != OKMessage {
		t.Fatalf("message=%q", res.Message)
	}
	if len(res.Rows) != 6 {
		t.Fatalf("rows=%d want 6", len(res.Rows))
	}
	for i, r := range res.Rows {
		if r.Time != i*10 || r.Repetition != 0 {
			t.Fatalf("row %d: time=%d rep=%d", i, r.Time, r.Repetition)
		}
		if r.Inside+r.Outside+r.Source != 20 {
			t.Fatalf("row %d: locations sum to %d", i, r.Inside+r.Outside+r.Source)
		}
		if r.Fed < 0 || r.Fed > 20 {
			t.Fatalf("row %d: fed=%v out of range", i, r.Fed)
		}
		if r.Informed > 5 {
			t.Fatalf("row %d: informed=%d exceeds foragers", i, r.Informed)
		}
	}
	if res.Rows[0].Fed != 0 || res.Rows[0].Inside != 20 {
		t.Fatalf("initial row: %+v", res.Rows[0])
	}
	if len(res.Digest) != 64 {
		t.Fatalf("digest=%q", res.Digest)
	}
}

func TestRun_ExtremeSugarRejected(t *testing.T) {
	p := baseParams()
	sugar := 0.99
	p.Sugar = &sugar
	res, err := Run(context.Background(), p, Options{})
	if res != nil {
		t.Fatalf("expected no result, got %d rows", len(res.Rows))
	}
	if !errors.Is(err, calib.ErrSugarTooHigh) || !errors.Is(err, calib.ErrConfig) {
		t.Fatalf("err=%v", err)
	}
	msg := err.Error()
	if !strings.Contains(msg, "sugar concentration") || strings.Contains(msg, "viscosity") {
		t.Fatalf("message should cite sugar only: %q", msg)
	}
}

func TestRun_RepetitionsTagged(t *testing.T) {
	p := baseParams()
	p.NSims = 3
	res, err := Run(context.Background(), p, Options{Seed: 9, Workers: 2})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	counts := map[int]int{}
	for _, r := range res.Rows {
		counts[r.Repetition]++
	}
	if len(counts) != 3 {
		t.Fatalf("repetitions=%v", counts)
	}
	for rep := 0; rep < 3; rep++ {
		if counts[rep] != 6 {
			t.Fatalf("repetition %d has %d rows", rep, counts[rep])
		}
	}
	for i := 1; i < len(res.Rows); i++ {
		if res.Rows[i].Repetition < res.Rows[i-1].Repetition {
			t.Fatalf("rows not in repetition order at %d", i)
		}
	}
}

func TestRun_DeterministicAcrossWorkers(t *testing.T) {
	p := baseParams()
	p.N, p.Nf, p.TimeSim, p.NSims = 60, 15, 400, 4
	p.Strategy = calib.Both
	p.Policy = calib.Complex

	a, err := Run(context.Background(), p, Options{Seed: 2024, Workers: 1})
	if err != nil {
		t.Fatalf("run a: %v", err)
	}
	b, err := Run(context.Background(), p, Options{Seed: 2024, Workers: 4})
	if err != nil {
		t.Fatalf("run b: %v", err)
	}
	if a.Digest != b.Digest {
		t.Fatalf("digest differs across worker counts: %s vs %s", a.Digest, b.Digest)
	}
	c, err := Run(context.Background(), p, Options{Seed: 2025, Workers: 4})
	if err != nil {
		t.Fatalf("run c: %v", err)
	}
	if c.Digest == a.Digest {
		t.Fatalf("different seeds gave identical tables")
	}
}

func TestRun_OnSampleSeesEveryRow(t *testing.T) {
	p := baseParams()
	p.NSims = 3
	var (
		mu   sync.Mutex
		seen []colony.Sample
	)
	res, err := Run(context.Background(), p, Options{Seed: 3, Workers: 3, OnSample: func(s colony.Sample) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	}})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(seen) != len(res.Rows) {
		t.Fatalf("streamed %d rows, table has %d", len(seen), len(res.Rows))
	}
}

func TestRun_Cancelled(t *testing.T) {
	p := baseParams()
	p.TimeSim = 100000
	p.NSims = 4
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := Run(ctx, p, Options{Workers: 2})
	if res != nil || !errors.Is(err, context.Canceled) {
		t.Fatalf("res=%v err=%v", res, err)
	}
}

func TestRun_CustomSampleInterval(t *testing.T) {
	tu := tuning.Defaults()
	tu.SampleEveryTicks = 25
	res, err := Run(context.Background(), baseParams(), Options{Tuning: &tu})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Rows) != 3 || res.Rows[2].Time != 50 {
		t.Fatalf("rows=%+v", res.Rows)
	}
}

func TestRun_BothStrategyPartition(t *testing.T) {
	p := baseParams()
	p.N, p.Nf, p.TimeSim, p.NSims = 200, 30, 2000, 2
	p.Strategy = calib.Both
	var (
		mu  sync.Mutex
		bad []colony.FeedEvent
	)
	res, err := Run(context.Background(), p, Options{Seed: 11, Workers: 2, OnFeed: func(_ int, ev colony.FeedEvent) {
		pairwiseHeavy := ev.Protocol == colony.Pairwise && ev.DonorPayload > 20.6
		groupLight := ev.Protocol == colony.Group && ev.DonorPayload <= 20.6
		if pairwiseHeavy || groupLight {
			mu.Lock()
			bad = append(bad, ev)
			mu.Unlock()
		}
	}})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Constants.TrophaVolume != 20.6 {
		t.Fatalf("v_t=%v", res.Constants.TrophaVolume)
	}
	if len(bad) > 0 {
		t.Fatalf("%d feeds used the wrong protocol, first: %+v", len(bad), bad[0])
	}
}

func TestRowsPerRepetition(t *testing.T) {
	cases := []struct{ time, every, want int }{
		{50, 10, 6},
		{0, 10, 1},
		{9, 10, 1},
		{10, 10, 2},
		{-1, 10, 0},
	}
	for _, tc := range cases {
		if got := RowsPerRepetition(tc.time, tc.every); got != tc.want {
			t.Fatalf("RowsPerRepetition(%d,%d)=%d want %d", tc.time, tc.every, got, tc.want)
		}
	}
}
