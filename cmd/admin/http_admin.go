package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// remoteCmd asks a running server for its run listing.
func remoteCmd(args []string) {
	fs := flag.NewFlagSet("remote", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	runID := fs.String("run", "", "fetch the rows of one run")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	q := url.Values{}
	if *runID != "" {
		q.Set("id", *runID)
	} else {
		q.Set("limit", fmt.Sprint(*limit))
	}
	u := strings.TrimRight(strings.TrimSpace(*baseURL), "/") + "/v1/runs?" + q.Encode()
	cl := &http.Client{Timeout: 10 * time.Second}
	resp, err := cl.Get(u)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Println(strings.TrimSpace(string(b)))
	if resp.StatusCode/100 != 2 {
		os.Exit(1)
	}
}
