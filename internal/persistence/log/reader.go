package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// ForEach decodes every line of a JSONL zstd file into a fresh T and passes it to fn.
// Returning an error from fn stops the scan.
func ForEach[T any](path string, fn func(T) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	for sc.Scan() {
		var v T
		if err := json.Unmarshal(sc.Bytes(), &v); err != nil {
			return fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
		}
		if err := fn(v); err != nil {
			return err
		}
	}
	return sc.Err()
}

func ReadSamples(path string) ([]SampleEntry, error) {
	var out []SampleEntry
	err := ForEach(path, func(e SampleEntry) error {
		out = append(out, e)
		return nil
	})
	return out, err
}

func ReadFeeds(path string) ([]FeedEntry, error) {
	var out []FeedEntry
	err := ForEach(path, func(e FeedEntry) error {
		out = append(out, e)
		return nil
	})
	return out, err
}
