package archive

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"antventure.ai/internal/sim/calib"
	"antventure.ai/internal/sim/colony"
	"antventure.ai/internal/sim/montecarlo"
	"antventure.ai/internal/sim/tuning"
)

// StampLayout names exported tables after their creation time.
const StampLayout = "20060102_15-04-05"

// Header is the column order of an exported run table.
var Header = []string{"fed", "inside", "outside", "source", "informed", "time", "colony"}

type RunMeta struct {
	RunID     string          `json:"run_id"`
	CreatedAt string          `json:"created_at"`
	Table     string          `json:"table"`
	Chart     string          `json:"chart,omitempty"`
	Seed      uint64          `json:"seed"`
	Digest    string          `json:"digest"`
	Rows      int             `json:"rows"`
	Message   string          `json:"message"`
	Params    calib.Params    `json:"params"`
	Constants calib.Constants `json:"constants"`
	Tuning    tuning.Tuning   `json:"tuning"`
}

// ArchiveRun writes the run table to `dir/<stamp>.csv` and a sidecar `dir/<stamp>.meta.json`.
// It returns the table path.
func ArchiveRun(dir, runID string, res *montecarlo.Result, tu tuning.Tuning, now time.Time) (string, error) {
	if res == nil {
		return "", fmt.Errorf("archive: nil result")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	stamp := now.Format(StampLayout)
	tablePath := filepath.Join(dir, stamp+".csv")
	if _, err := os.Stat(tablePath); err == nil && runID != "" {
		// Two runs finished within the same second.
		short := runID
		if len(short) > 8 {
			short = short[:8]
		}
		tablePath = filepath.Join(dir, stamp+"_"+short+".csv")
	}

	f, err := os.Create(tablePath)
	if err != nil {
		return "", err
	}
	if err := WriteCSV(f, res.Rows); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	meta := RunMeta{
		RunID:     runID,
		CreatedAt: now.UTC().Format(time.RFC3339Nano),
		Table:     filepath.Base(tablePath),
		Seed:      res.Seed,
		Digest:    res.Digest,
		Rows:      len(res.Rows),
		Message:   res.Message,
		Params:    res.Params,
		Constants: res.Constants,
		Tuning:    tu,
	}
	if err := WriteMeta(MetaPath(tablePath), meta); err != nil {
		return "", err
	}
	return tablePath, nil
}

// MetaPath is the sidecar metadata file of an archived table.
func MetaPath(tablePath string) string {
	return tablePath[:len(tablePath)-len(filepath.Ext(tablePath))] + ".meta.json"
}

func WriteMeta(path string, meta RunMeta) error {
	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func ReadMeta(path string) (RunMeta, error) {
	var m RunMeta
	b, err := os.ReadFile(path)
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return m, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return m, nil
}

func WriteCSV(w io.Writer, rows []colony.Sample) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	rec := make([]string, len(Header))
	for _, r := range rows {
		rec[0] = strconv.FormatFloat(r.Fed, 'g', -1, 64)
		rec[1] = strconv.Itoa(r.Inside)
		rec[2] = strconv.Itoa(r.Outside)
		rec[3] = strconv.Itoa(r.Source)
		rec[4] = strconv.Itoa(r.Informed)
		rec[5] = strconv.Itoa(r.Time)
		rec[6] = strconv.Itoa(r.Repetition)
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses a table written by WriteCSV.
func ReadCSV(r io.Reader) ([]colony.Sample, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Header)
	recs, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("archive: missing header")
	}
	for i, h := range Header {
		if recs[0][i] != h {
			return nil, fmt.Errorf("archive: column %d is %q want %q", i, recs[0][i], h)
		}
	}
	out := make([]colony.Sample, 0, len(recs)-1)
	for line, rec := range recs[1:] {
		var s colony.Sample
		ints := []*int{&s.Inside, &s.Outside, &s.Source, &s.Informed, &s.Time, &s.Repetition}
		if s.Fed, err = strconv.ParseFloat(rec[0], 64); err != nil {
			return nil, fmt.Errorf("archive: line %d: %w", line+2, err)
		}
		for j, dst := range ints {
			if *dst, err = strconv.Atoi(rec[j+1]); err != nil {
				return nil, fmt.Errorf("archive: line %d: %w", line+2, err)
			}
		}
		out = append(out, s)
	}
	return out, nil
}

// CopyInto copies src into dir keeping its base name, e.g. to keep the settings file a
// run was launched from next to its table.
func CopyInto(dir, src string) (string, error) {
	dst := filepath.Join(dir, filepath.Base(src))
	if a, b := filepath.Clean(src), filepath.Clean(dst); a == b {
		return dst, nil
	}
	if err := copyFile(src, dst); err != nil {
		return "", err
	}
	return dst, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
