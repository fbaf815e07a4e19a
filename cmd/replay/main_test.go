package main

import (
	"testing"

	"antventure.ai/internal/sim/colony"
)

func TestSortedRows(t *testing.T) {
	in := []colony.Sample{
		{Repetition: 1, Time: 0}, {Repetition: 0, Time: 10}, {Repetition: 1, Time: 10}, {Repetition: 0, Time: 0},
	}
	got := sortedRows(in)
	want := [][2]int{{0, 0}, {0, 10}, {1, 0}, {1, 10}}
	for i, w := range want {
		if got[i].Repetition != w[0] || got[i].Time != w[1] {
			t.Fatalf("row %d = %+v", i, got[i])
		}
	}
	if in[0].Repetition != 1 {
		t.Fatalf("input was modified")
	}
}

func TestFirstDiff(t *testing.T) {
	a := []colony.Sample{{Time: 0}, {Time: 10, Fed: 1}}
	b := []colony.Sample{{Time: 0}, {Time: 10, Fed: 2}}
	if i, err := firstDiff(a, b); i != 1 || err == nil {
		t.Fatalf("i=%d err=%v", i, err)
	}
	if i, err := firstDiff(a, a[:1]); i != 1 || err == nil {
		t.Fatalf("length diff: i=%d err=%v", i, err)
	}
	if i, err := firstDiff(a, a); i != -1 || err != nil {
		t.Fatalf("equal: i=%d err=%v", i, err)
	}
}
