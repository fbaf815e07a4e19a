package archive

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"antventure.ai/internal/sim/calib"
	"antventure.ai/internal/sim/colony"
	"antventure.ai/internal/sim/montecarlo"
	"antventure.ai/internal/sim/tuning"
)

func smallRun(t *testing.T) *montecarlo.Result {
	t.Helper()
	sugar := 0.1
	res, err := montecarlo.Run(context.Background(), calib.Params{
		N: 20, Nf: 5, Distance: 20, TimeSim: 50, Sugar: &sugar,
		Strategy: calib.SocialBucket, Policy: calib.Complex, NSims: 2,
	}, montecarlo.Options{Seed: 5})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	return res
}

func TestArchiveRun_WritesTableAndMeta(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "results")
	res := smallRun(t)
	now := time.Date(2024, 3, 9, 14, 5, 7, 0, time.Local)

	path, err := ArchiveRun(dir, "run-1", res, tuning.Defaults(), now)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if filepath.Base(path) != "20240309_14-05-07.csv" {
		t.Fatalf("table name=%q", filepath.Base(path))
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	rows, err := ReadCSV(f)
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != len(res.Rows) {
		t.Fatalf("rows=%d want %d", len(rows), len(res.Rows))
	}
	for i := range rows {
		if rows[i] != res.Rows[i] {
			t.Fatalf("row %d: got %+v want %+v", i, rows[i], res.Rows[i])
		}
	}

	meta, err := ReadMeta(MetaPath(path))
	if err != nil {
		t.Fatalf("read meta: %v", err)
	}
	if meta.RunID != "run-1" || meta.Digest != res.Digest || meta.Rows != len(res.Rows) || meta.Table != filepath.Base(path) {
		t.Fatalf("meta=%+v", meta)
	}
	if meta.Params.Strategy != calib.SocialBucket || meta.Params.Policy != calib.Complex {
		t.Fatalf("params lost: %+v", meta.Params)
	}
	if meta.Params.Sugar == nil || *meta.Params.Sugar != 0.1 || meta.Params.Viscosity != nil {
		t.Fatalf("liquid lost: %+v", meta.Params)
	}
}

func TestWriteCSV_Header(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, []colony.Sample{{Fed: 1.5, Inside: 3, Time: 10, Repetition: 2}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if lines[0] != "fed,inside,outside,source,informed,time,colony" {
		t.Fatalf("header=%q", lines[0])
	}
	if lines[1] != "1.5,3,0,0,0,10,2" {
		t.Fatalf("row=%q", lines[1])
	}
}

func TestReadCSV_RejectsForeignTable(t *testing.T) {
	if _, err := ReadCSV(strings.NewReader("a,b,c,d,e,f,g\n1,2,3,4,5,6,7\n")); err == nil {
		t.Fatalf("expected header error")
	}
	if _, err := ReadCSV(strings.NewReader(strings.Join(Header, ",") + "\nx,1,1,1,1,1,1\n")); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestCopyInto(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "settings.yaml")
	if err := os.WriteFile(src, []byte("n: 20\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := filepath.Join(dir, "out")
	if err := os.MkdirAll(out, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	dst, err := CopyInto(out, src)
	if err != nil {
		t.Fatalf("copy: %v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil || string(got) != "n: 20\n" {
		t.Fatalf("copied=%q err=%v", got, err)
	}
	if _, err := CopyInto(dir, src); err != nil {
		t.Fatalf("copy onto itself: %v", err)
	}
	if got, _ := os.ReadFile(src); string(got) != "n: 20\n" {
		t.Fatalf("source clobbered: %q", got)
	}
}
