package report

import (
	"errors"
	"fmt"
	"io"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

var ErrTooFewPoints = errors.New("report: need at least two sampled times to draw a chart")

var (
	meanColor = drawing.Color{R: 0, G: 0, B: 0, A: 255}
	bandColor = drawing.Color{R: 120, G: 120, B: 120, A: 255}
)

// RenderChart writes a PNG of the fed fraction over time: the mean across repetitions
// between the lower and upper 95% bounds.
func RenderChart(w io.Writer, s Summary, title string) error {
	if len(s.Points) < 2 {
		return ErrTooFewPoints
	}
	xs := make([]float64, len(s.Points))
	mean := make([]float64, len(s.Points))
	lower := make([]float64, len(s.Points))
	upper := make([]float64, len(s.Points))
	for i, p := range s.Points {
		xs[i] = float64(p.Time)
		mean[i] = p.Mean
		lower[i] = clamp01(p.Lower)
		upper[i] = clamp01(p.Upper)
	}

	band := chart.Style{StrokeColor: bandColor, StrokeWidth: 1.5, StrokeDashArray: []float64{5.0, 5.0}}
	graph := chart.Chart{
		Title:  title,
		Width:  900,
		Height: 500,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: chart.XAxis{
			Name:  "time",
			Style: chart.Style{FontSize: 10.0},
			ValueFormatter: func(v interface{}) string {
				return fmt.Sprintf("%d", int(v.(float64)))
			},
		},
		YAxis: chart.YAxis{
			Name:  "proportion of fed ants",
			Style: chart.Style{FontSize: 10.0},
			Range: &chart.ContinuousRange{Min: 0, Max: 1},
		},
		Series: []chart.Series{
			chart.ContinuousSeries{Name: "upper 95%", XValues: xs, YValues: upper, Style: band},
			chart.ContinuousSeries{Name: "lower 95%", XValues: xs, YValues: lower, Style: band},
			chart.ContinuousSeries{
				Name:    "mean",
				XValues: xs,
				YValues: mean,
				Style:   chart.Style{StrokeColor: meanColor, StrokeWidth: 3.0},
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}
	if err := graph.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
