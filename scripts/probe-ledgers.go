//go:build ignore

// probe-ledgers.go smoke-tests a list of ledgerd deployments: health, metrics
// exposure, and whether the token endpoint rejects bad credentials cleanly.
//
// Run with: go run scripts/probe-ledgers.go [base-url ...]
package main

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"text/tabwriter"
	"time"
)

// Default targets cover the usual local and staging setups; pass base URLs as
// arguments to override.
var defaultTargets = []string{
	"http://localhost:8080",
	"http://localhost:8081",
}

var checks = []struct {
	name   string
	method string
	path   string
	body   string
	// want is the status that indicates a healthy deployment. The token
	// endpoint should reject garbage credentials with 401, not 500.
	want int
}{
	{"health", http.MethodGet, "/healthz", "", http.StatusOK},
	{"metrics", http.MethodGet, "/metrics", "", http.StatusOK},
	{"token-reject", http.MethodPost, "/api/v1/auth/token",
		`{"client_id":"probe","client_secret":"nope"}`, http.StatusUnauthorized},
}

type result struct {
	target  string
	check   string
	status  int
	ok      bool
	err     string
	latency time.Duration
}

func probe(client *http.Client, target string, check int) result {
	c := checks[check]
	start := time.Now()

	var body io.Reader
	if c.body != "" {
		body = bytes.NewReader([]byte(c.body))
	}
	req, err := http.NewRequest(c.method, target+c.path, body)
	if err != nil {
		return result{target: target, check: c.name, err: err.Error()}
	}
	if c.body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	latency := time.Since(start)
	if err != nil {
		msg := err.Error()
		if len(msg) > 60 {
			msg = msg[:60] + "..."
		}
		return result{target: target, check: c.name, err: msg, latency: latency}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck

	return result{
		target:  target,
		check:   c.name,
		status:  resp.StatusCode,
		ok:      resp.StatusCode == c.want,
		latency: latency,
	}
}

func main() {
	targets := os.Args[1:]
	if len(targets) == 0 {
		targets = defaultTargets
	}
	for i, t := range targets {
		targets[i] = strings.TrimRight(t, "/")
	}

	client := &http.Client{Timeout: 5 * time.Second}

	results := make([]result, len(targets)*len(checks))
	var wg sync.WaitGroup
	for ti, target := range targets {
		for ci := range checks {
			wg.Add(1)
			go func(ti, ci int, target string) {
				defer wg.Done()
				results[ti*len(checks)+ci] = probe(client, target, ci)
			}(ti, ci, target)
		}
	}
	wg.Wait()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TARGET\tCHECK\tSTATUS\tLATENCY\tRESULT")
	failures := 0
	for _, r := range results {
		switch {
		case r.err != "":
			failures++
			fmt.Fprintf(w, "%s\t%s\t-\t%s\tERR %s\n", r.target, r.check, r.latency.Round(time.Millisecond), r.err)
		case !r.ok:
			failures++
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\tFAIL\n", r.target, r.check, r.status, r.latency.Round(time.Millisecond))
		default:
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\tok\n", r.target, r.check, r.status, r.latency.Round(time.Millisecond))
		}
	}
	w.Flush() //nolint:errcheck

	if failures > 0 {
		fmt.Printf("\n%d check(s) failed\n", failures)
		os.Exit(1)
	}
	fmt.Println("\nall checks passed")
}
