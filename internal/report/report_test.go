package report

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"antventure.ai/internal/sim/colony"
)

func rowsOf(fed [][]float64, every int) []colony.Sample {
	var rows []colony.Sample
	for rep, series := range fed {
		for i, f := range series {
			rows = append(rows, colony.Sample{Fed: f, Inside: 10, Time: i * every, Repetition: rep})
		}
	}
	return rows
}

func TestSummarize_MeanAndBand(t *testing.T) {
	rows := rowsOf([][]float64{
		{0, 2, 4},
		{0, 4, 8},
	}, 10)
	s := Summarize(rows, 10)
	if len(s.Points) != 3 {
		t.Fatalf("points=%d", len(s.Points))
	}
	p0 := s.Points[0]
	if p0.Time != 0 || p0.Mean != 0 || p0.SD != 0 || p0.Lower != 0 || p0.Upper != 0 {
		t.Fatalf("t=0: %+v", p0)
	}
	p1 := s.Points[1]
	if p1.Time != 10 || p1.Reps != 2 || math.Abs(p1.Mean-0.3) > 1e-12 {
		t.Fatalf("t=10: %+v", p1)
	}
	wantSD := math.Sqrt(0.02)
	if math.Abs(p1.SD-wantSD) > 1e-12 {
		t.Fatalf("sd=%v want %v", p1.SD, wantSD)
	}
	half := 1.96 * wantSD / math.Sqrt(2)
	if math.Abs(p1.Upper-(0.3+half)) > 1e-12 || math.Abs(p1.Lower-(0.3-half)) > 1e-12 {
		t.Fatalf("band=[%v,%v]", p1.Lower, p1.Upper)
	}
	if p1.Inside != 10 {
		t.Fatalf("inside=%v", p1.Inside)
	}
}

func TestSummarize_SingleRepetitionHasNoBand(t *testing.T) {
	s := Summarize(rowsOf([][]float64{{0, 5}}, 10), 10)
	for _, p := range s.Points {
		if p.SD != 0 || p.Lower != p.Mean || p.Upper != p.Mean {
			t.Fatalf("point %+v", p)
		}
	}
}

func TestSummarize_Empty(t *testing.T) {
	if s := Summarize(nil, 10); len(s.Points) != 0 {
		t.Fatalf("points=%v", s.Points)
	}
	if s := Summarize(rowsOf([][]float64{{1}}, 10), 0); len(s.Points) != 0 {
		t.Fatalf("zero colony should produce nothing")
	}
}

func TestTimeToHalf(t *testing.T) {
	rows := rowsOf([][]float64{
		{0, 3, 5, 9},
		{0, 1, 2, 4},
		{0, 6, 2, 1},
	}, 10)
	got := TimeToHalf(rows, 10)
	want := []HalfFed{
		{Repetition: 0, Time: 20, Reached: true},
		{Repetition: 1, Time: 30, Reached: false},
		{Repetition: 2, Time: 10, Reached: true},
	}
	if len(got) != len(want) {
		t.Fatalf("got %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("rep %d: got %+v want %+v", i, got[i], want[i])
		}
	}
}

func TestRenderChart_PNG(t *testing.T) {
	s := Summarize(rowsOf([][]float64{
		{0, 2, 5, 8, 10},
		{0, 3, 4, 9, 10},
		{0, 1, 6, 7, 9},
	}, 10), 10)
	var buf bytes.Buffer
	if err := RenderChart(&buf, s, "trophallaxis"); err != nil {
		t.Fatalf("render: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG\r\n\x1a\n")) {
		t.Fatalf("output is not a PNG (%d bytes)", buf.Len())
	}
}

func TestRenderChart_TooFewPoints(t *testing.T) {
	s := Summarize(rowsOf([][]float64{{0}}, 10), 10)
	if err := RenderChart(&bytes.Buffer{}, s, ""); !errors.Is(err, ErrTooFewPoints) {
		t.Fatalf("err=%v", err)
	}
}
