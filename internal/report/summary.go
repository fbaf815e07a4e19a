// Package report condenses a run table into per-time statistics and renders them.
package report

import (
	"math"
	"sort"

	"antventure.ai/internal/sim/colony"
)

// z for a two-sided 95% interval.
const z95 = 1.96

// Point aggregates every repetition at one sampled time. Fed values are fractions of the
// colony (fed/N).
type Point struct {
	Time  int     `json:"time"`
	Reps  int     `json:"reps"`
	Mean  float64 `json:"mean"`
	SD    float64 `json:"sd"`
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`

	Inside   float64 `json:"inside"`
	Outside  float64 `json:"outside"`
	Source   float64 `json:"source"`
	Informed float64 `json:"informed"`
}

type Summary struct {
	N      int     `json:"n"`
	Points []Point `json:"points"`
}

// Summarize groups rows by time and computes the mean fed fraction with a normal 95%
// confidence band across repetitions.
func Summarize(rows []colony.Sample, n int) Summary {
	s := Summary{N: n}
	if n <= 0 || len(rows) == 0 {
		return s
	}
	byTime := map[int][]colony.Sample{}
	for _, r := range rows {
		byTime[r.Time] = append(byTime[r.Time], r)
	}
	times := make([]int, 0, len(byTime))
	for t := range byTime {
		times = append(times, t)
	}
	sort.Ints(times)

	nf := float64(n)
	for _, t := range times {
		group := byTime[t]
		p := Point{Time: t, Reps: len(group)}
		reps := float64(len(group))
		for _, r := range group {
			p.Mean += r.Fed / nf
			p.Inside += float64(r.Inside)
			p.Outside += float64(r.Outside)
			p.Source += float64(r.Source)
			p.Informed += float64(r.Informed)
		}
		p.Mean /= reps
		p.Inside /= reps
		p.Outside /= reps
		p.Source /= reps
		p.Informed /= reps

		if len(group) > 1 {
			var ss float64
			for _, r := range group {
				d := r.Fed/nf - p.Mean
				ss += d * d
			}
			p.SD = math.Sqrt(ss / (reps - 1))
		}
		half := z95 * p.SD / math.Sqrt(reps)
		p.Lower = p.Mean - half
		p.Upper = p.Mean + half
		s.Points = append(s.Points, p)
	}
	return s
}

// HalfFed is the time a repetition first reached half the colony fed.
type HalfFed struct {
	Repetition int  `json:"repetition"`
	Time       int  `json:"time"`
	Reached    bool `json:"reached"`
}

// TimeToHalf returns, per repetition, the first sampled time with fed >= N/2. A
// repetition that never gets there reports its last sampled time with Reached=false.
func TimeToHalf(rows []colony.Sample, n int) []HalfFed {
	half := float64(n) / 2
	idx := map[int]int{}
	var out []HalfFed
	for _, r := range rows {
		i, ok := idx[r.Repetition]
		if !ok {
			i = len(out)
			idx[r.Repetition] = i
			out = append(out, HalfFed{Repetition: r.Repetition, Time: r.Time})
		}
		h := &out[i]
		if h.Reached {
			continue
		}
		if r.Time >= h.Time {
			h.Time = r.Time
		}
		if r.Fed >= half {
			h.Reached = true
			h.Time = r.Time
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Repetition < out[b].Repetition })
	return out
}
