package main

import (
	"sort"

	"antventure.ai/internal/sim/colony"
)

func sortedRows(rows []colony.Sample) []colony.Sample {
	out := append([]colony.Sample(nil), rows...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Repetition != out[j].Repetition {
			return out[i].Repetition < out[j].Repetition
		}
		return out[i].Time < out[j].Time
	})
	return out
}
