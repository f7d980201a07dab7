package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

func stateCmd(args []string) {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)

	os.Exit(call(http.MethodGet, adminURL(*baseURL, "/admin/v1/state"), nil, 5*time.Second))
}

func snapshotCmd(args []string) {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)

	os.Exit(call(http.MethodPost, adminURL(*baseURL, "/admin/v1/snapshot"), nil, 10*time.Second))
}

func focusCmd(args []string) {
	fs := flag.NewFlagSet("focus", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	x := fs.Float64("x", 0, "focus x in world units")
	y := fs.Float64("y", 0, "focus y in world units")
	_ = fs.Parse(args)

	body, _ := json.Marshal(map[string]float64{"x": *x, "y": *y})
	os.Exit(call(http.MethodPost, adminURL(*baseURL, "/admin/v1/focus"), body, 5*time.Second))
}

func adminURL(base, path string) string {
	return strings.TrimRight(strings.TrimSpace(base), "/") + path
}

// call performs the request, prints the body and returns a process exit code.
func call(method, u string, body []byte, timeout time.Duration) int {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, u, rd)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		return 2
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	cl := &http.Client{Timeout: timeout}
	resp, err := cl.Do(req)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		return 1
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if len(b) > 0 {
		fmt.Println(strings.TrimSpace(string(b)))
	} else {
		fmt.Println(resp.Status)
	}
	if resp.StatusCode/100 != 2 {
		return 1
	}
	return 0
}
