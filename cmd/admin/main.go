package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"antventure.ai/internal/persistence/archive"
	persistlog "antventure.ai/internal/persistence/log"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "db":
			dbCmd(os.Args[2:])
			return
		case "log":
			logCmd(os.Args[2:])
			return
		case "remote":
			remoteCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

// listCmd prints one line per archived table in a results directory.
func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dir := fs.String("results", "./data/results", "results directory")
	_ = fs.Parse(args)

	metas, err := listMeta(*dir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, m := range metas {
		fmt.Printf("%s  %s  %-13s n=%d nf=%d sims=%d rows=%d seed=%d  %s\n",
			m.Table, m.RunID, m.Params.Strategy, m.Params.N, m.Params.Nf, m.Params.NSims, m.Rows, m.Seed, m.Message)
	}
}

func listMeta(dir string) ([]archive.RunMeta, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range ents {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".meta.json") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	out := make([]archive.RunMeta, 0, len(names))
	for _, name := range names {
		m, err := archive.ReadMeta(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// logCmd dumps a samples-*.jsonl.zst or feeds-*.jsonl.zst file as JSON lines.
func logCmd(args []string) {
	fs := flag.NewFlagSet("log", flag.ExitOnError)
	rep := fs.Int("rep", -1, "only this repetition")
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: admin log [-rep N] <samples-or-feeds.jsonl.zst>")
		os.Exit(2)
	}
	path := fs.Arg(0)

	var err error
	if strings.HasPrefix(filepath.Base(path), "feeds-") {
		err = persistlog.ForEach(path, func(e persistlog.FeedEntry) error {
			if *rep >= 0 && e.Repetition != *rep {
				return nil
			}
			return printJSON(e)
		})
	} else {
		err = persistlog.ForEach(path, func(e persistlog.SampleEntry) error {
			if *rep >= 0 && e.Repetition != *rep {
				return nil
			}
			return printJSON(e)
		})
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
}

func printJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Println(string(b))
	return err
}
