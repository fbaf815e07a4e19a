package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"

	"antventure.ai/internal/sim/colony"
)

// JSONLZstdWriter appends one JSON document per line to a zstd-compressed file. The file
// is created on first write.
type JSONLZstdWriter struct {
	path string

	mu  sync.Mutex
	f   *os.File
	enc *zstd.Encoder
	w   *bufio.Writer
}

func NewJSONLZstdWriter(path string) *JSONLZstdWriter {
	return &JSONLZstdWriter{path: path}
}

func (w *JSONLZstdWriter) Path() string { return w.path }

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.w == nil {
		if err := w.openLocked(); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	return w.w.WriteByte('\n')
}

func (w *JSONLZstdWriter) openLocked() error {
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		err1 = w.w.Flush()
	}
	if w.enc != nil {
		if err := w.enc.Close(); err1 == nil {
			err1 = err
		}
		w.enc = nil
	}
	if w.f != nil {
		if err := w.f.Close(); err1 == nil {
			err1 = err
		}
		w.f = nil
	}
	w.w = nil
	return err1
}

// SampleEntry is one logged row of a run table.
type SampleEntry struct {
	RunID string `json:"run_id"`
	colony.Sample
}

// SampleLogger writes every sampled row of a run to `dir/samples-<runID>.jsonl.zst`.
type SampleLogger struct {
	runID string
	w     *JSONLZstdWriter
}

func NewSampleLogger(dir, runID string) *SampleLogger {
	return &SampleLogger{runID: runID, w: NewJSONLZstdWriter(SamplePath(dir, runID))}
}

func SamplePath(dir, runID string) string {
	return filepath.Join(dir, fmt.Sprintf("samples-%s.jsonl.zst", runID))
}

func (l *SampleLogger) WriteSample(s colony.Sample) error {
	return l.w.Write(SampleEntry{RunID: l.runID, Sample: s})
}
func (l *SampleLogger) Path() string { return l.w.Path() }
func (l *SampleLogger) Close() error { return l.w.Close() }

// FeedEntry is one logged feeding event.
type FeedEntry struct {
	RunID      string  `json:"run_id"`
	Repetition int     `json:"repetition"`
	Tick       int     `json:"tick"`
	Protocol   string  `json:"protocol"`
	Donor      int     `json:"donor"`
	Payload    float64 `json:"donor_payload"`
	Passed     float64 `json:"passed"`
	Recipients []int   `json:"recipients"`
}

// FeedLogger writes feeding events to `dir/feeds-<runID>.jsonl.zst`.
type FeedLogger struct {
	runID string
	w     *JSONLZstdWriter
}

func NewFeedLogger(dir, runID string) *FeedLogger {
	return &FeedLogger{runID: runID, w: NewJSONLZstdWriter(filepath.Join(dir, fmt.Sprintf("feeds-%s.jsonl.zst", runID)))}
}

func (l *FeedLogger) WriteFeed(rep int, ev colony.FeedEvent) error {
	return l.w.Write(FeedEntry{
		RunID:      l.runID,
		Repetition: rep,
		Tick:       ev.Tick,
		Protocol:   ev.Protocol.String(),
		Donor:      ev.Donor,
		Payload:    ev.DonorPayload,
		Passed:     ev.Passed,
		Recipients: ev.Recipients,
	})
}
func (l *FeedLogger) Path() string { return l.w.Path() }
func (l *FeedLogger) Close() error { return l.w.Close() }
