package sweep

import (
	"encoding/csv"
	"io"
	"strconv"
)

// Header matches the columns written by CSVWriter.Write.
var Header = []string{
	"colonysize", "foragers", "distance", "terrain", "sugar", "strategy",
	"fed", "time", "colony", "reached", "error",
}

type CSVWriter struct {
	w *csv.Writer
}

// NewCSVWriter writes the header immediately.
func NewCSVWriter(w io.Writer) (*CSVWriter, error) {
	cw := &CSVWriter{w: csv.NewWriter(w)}
	if err := cw.w.Write(Header); err != nil {
		return nil, err
	}
	return cw, nil
}

func (c *CSVWriter) Write(r Row) error {
	sugar := ""
	if r.Params.Sugar != nil {
		sugar = strconv.FormatFloat(*r.Params.Sugar, 'g', -1, 64)
	}
	rec := []string{
		strconv.Itoa(r.Params.N),
		strconv.Itoa(r.Params.Nf),
		strconv.FormatFloat(r.Params.Distance, 'g', -1, 64),
		strconv.FormatFloat(r.Params.Terrain, 'g', -1, 64),
		sugar,
		r.Params.Strategy.String(),
	}
	if r.Err != nil {
		rec = append(rec, "", "", "", "", r.Err.Error())
	} else {
		rec = append(rec,
			strconv.FormatFloat(r.Fed, 'g', -1, 64),
			strconv.Itoa(r.Time),
			strconv.Itoa(r.Repetition),
			strconv.FormatBool(r.Reached),
			"",
		)
	}
	if err := c.w.Write(rec); err != nil {
		return err
	}
	c.w.Flush()
	return c.w.Error()
}
